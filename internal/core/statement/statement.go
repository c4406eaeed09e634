// Package statement builds the SQL the exporter sends to the warehouse
package statement

import (
	"strconv"
	"strings"

	"eventsink/internal/core/sqlident"
	perr "eventsink/internal/platform/errors"
)

// Dialect says how structured columns are stored
type Dialect uint8

const (
	// Text stores properties/set/set_once as varchar JSON
	Text Dialect = iota
	// Structured stores them as SUPER and parses on insert
	Structured
)

// ParseDialect accepts text|varchar and structured|super
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "varchar":
		return Text, nil
	case "structured", "super":
		return Structured, nil
	}
	return Text, perr.WithField(perr.Newf(perr.ErrorCodeConfiguration, "unknown properties data type %q", s), "propertiesDataType")
}

func (d Dialect) String() string {
	if d == Structured {
		return "structured"
	}
	return "text"
}

// columnType is the DDL type of a structured column
func (d Dialect) columnType() string {
	if d == Structured {
		return "super"
	}
	return "varchar(65535)"
}

// structured lists the columns wrapped with JSON_PARSE under Structured
var structured = map[string]struct{}{
	"properties": {},
	"set":        {},
	"set_once":   {},
}

// MaxParams is the bind parameter ceiling of the extended query protocol
const MaxParams = 65535

// MaxRows is how many rows of the given width one Insert can carry
func MaxRows(columns int) int {
	if columns <= 0 {
		return 0
	}
	return MaxParams / columns
}

var (
	// ErrEmptyBatch is returned for a zero row insert
	ErrEmptyBatch = perr.New(perr.ErrorCodeInvalidArgument, "empty batch")
	// ErrTooManyParams is returned when rows*columns exceeds MaxParams
	ErrTooManyParams = perr.New(perr.ErrorCodeInvalidArgument, "too many bind parameters")
)

// Valuer yields one row in column order
type Valuer interface {
	Values() []any
}

// Insert builds one multi-row INSERT for rows. Row i, column j binds to
// $(len(columns)*i + j + 1) and args is the row-major flattening of every
// row's values
func Insert[R Valuer](table string, columns []string, rows []R, d Dialect) (string, []any, error) {
	if len(rows) == 0 {
		return "", nil, ErrEmptyBatch
	}
	n := len(columns)
	if n == 0 {
		return "", nil, perr.InvalidArgf("no columns")
	}
	if len(rows) > MaxRows(n) {
		return "", nil, ErrTooManyParams
	}

	var sb strings.Builder
	sb.Grow(32 + len(table) + n*12 + len(rows)*n*8)
	sb.WriteString("INSERT INTO ")
	sb.WriteString(table)
	sb.WriteString(" (")
	sb.WriteString(strings.Join(columns, ", "))
	sb.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*n)
	for i, r := range rows {
		vals := r.Values()
		if len(vals) != n {
			return "", nil, perr.InvalidArgf("row %d has %d values for %d columns", i, len(vals), n)
		}
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('(')
		base := i*n + 1
		for j, col := range columns {
			if j > 0 {
				sb.WriteString(", ")
			}
			ph := "$" + strconv.Itoa(base+j)
			if _, ok := structured[col]; ok && d == Structured {
				ph = "JSON_PARSE(" + ph + ")"
			}
			sb.WriteString(ph)
		}
		sb.WriteByte(')')
		args = append(args, vals...)
	}
	return sb.String(), args, nil
}

// CreateTable returns the idempotent DDL for the event table. schema and
// table are sanitized here
func CreateTable(schema, table string, d Dialect) string {
	t := d.columnType()
	return "CREATE TABLE IF NOT EXISTS " + sqlident.Qualified(schema, table) + " (" +
		"uuid varchar(200), " +
		"event varchar(200), " +
		"properties " + t + ", " +
		"elements varchar(65535), " +
		"set " + t + ", " +
		"set_once " + t + ", " +
		"timestamp timestamp with time zone, " +
		"team_id int, " +
		"distinct_id varchar(200), " +
		"ip varchar(200), " +
		"site_url varchar(200))"
}
