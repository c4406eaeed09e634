package errors

// Postgres wire helpers. Redshift speaks the same protocol and reports
// SQLSTATE codes through pgconn.PgError. These are used to label failures in
// logs and metrics; they never decide whether a batch is retried.

import (
	"context"
	stderrs "errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes and classes we label
const (
	pgErrStringDataRightTruncation = "22001"
	pgErrInvalidTextRepresentation = "22P02"
	pgErrInvalidJSONText           = "22032"
	pgErrUndefinedTable            = "42P01"
	pgErrInsufficientPrivilege     = "42501"
	pgErrCannotConnectNow          = "57P03"
	pgErrQueryCanceled             = "57014"

	pgClassConnection = "08"
	pgClassDataError  = "22"
	pgClassSyntax     = "42"
	pgClassResources  = "53"
)

// FailureClass values
const (
	FailureTimeout    = "timeout"
	FailureNetwork    = "network"
	FailureData       = "data"
	FailureSchema     = "schema"
	FailurePermission = "permission"
	FailureResources  = "resources"
	FailureServer     = "server"
	FailureOther      = "other"
)

// ExtractPgError returns (*pgconn.PgError, true) if the root cause is a PgError
func ExtractPgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if stderrs.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

// IsSQLState reports whether the error is a Postgres error with the given SQLSTATE code
func IsSQLState(err error, code string) bool {
	pgErr, ok := ExtractPgError(err)
	return ok && pgErr.Code == code
}

// IsUndefinedTable reports whether the target table is missing
func IsUndefinedTable(err error) bool { return IsSQLState(err, pgErrUndefinedTable) }

// IsConnectionUnavailable reports whether the server refused new sessions
func IsConnectionUnavailable(err error) bool { return IsSQLState(err, pgErrCannotConnectNow) }

// FailureClass labels a delivery failure for logs and metrics
func FailureClass(err error) string {
	if err == nil {
		return ""
	}
	if stderrs.Is(err, context.DeadlineExceeded) || IsSQLState(err, pgErrQueryCanceled) {
		return FailureTimeout
	}

	if pgErr, ok := ExtractPgError(err); ok {
		switch pgErr.Code {
		case pgErrStringDataRightTruncation, pgErrInvalidTextRepresentation, pgErrInvalidJSONText:
			return FailureData
		case pgErrInsufficientPrivilege:
			return FailurePermission
		case pgErrUndefinedTable:
			return FailureSchema
		case pgErrCannotConnectNow:
			return FailureNetwork
		}
		switch {
		case strings.HasPrefix(pgErr.Code, pgClassConnection):
			return FailureNetwork
		case strings.HasPrefix(pgErr.Code, pgClassDataError):
			return FailureData
		case strings.HasPrefix(pgErr.Code, pgClassSyntax):
			return FailureSchema
		case strings.HasPrefix(pgErr.Code, pgClassResources):
			return FailureResources
		}
		return FailureServer
	}

	var netErr net.Error
	if stderrs.As(err, &netErr) || pgconn.SafeToRetry(err) {
		return FailureNetwork
	}
	var connErr *pgconn.ConnectError
	if stderrs.As(err, &connErr) {
		return FailureNetwork
	}
	return FailureOther
}

// FromPostgres wraps a pg error with code and message, attaching the column
// Redshift reported (if any) as the field. Returns nil for nil
func FromPostgres(err error, code ErrorCode, msg string) error {
	if err == nil {
		return nil
	}
	out := Wrap(err, code, msg)
	if pgErr, ok := ExtractPgError(err); ok {
		if col := strings.TrimSpace(pgErr.ColumnName); col != "" {
			out = WithField(out, col)
		}
	}
	return out
}
