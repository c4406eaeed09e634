// Package errors is the exporter's error type: a code, a message, an optional
// field and an optional cause. Import it as perr
package errors

import (
	stderrs "errors"
	"fmt"
	"net/http"
)

// ErrorCode classifies an error. Values appear in logs and HTTP bodies
type ErrorCode uint16

const (
	ErrorCodeUnknown ErrorCode = iota
	ErrorCodePanic
	ErrorCodeUnavailable
	ErrorCodeInvalidArgument
	ErrorCodeValidation
	ErrorCodeJSON
	ErrorCodeNotFound
	ErrorCodeTooLarge

	// ErrorCodeConfiguration halts startup: options missing or out of range
	ErrorCodeConfiguration
	// ErrorCodeConnectivity halts startup: warehouse unreachable or DDL refused
	ErrorCodeConnectivity
	// ErrorCodeDelivery is a failed batch insert; the retry loop owns it
	ErrorCodeDelivery
	// ErrorCodeMissingTimestamp is an event with no usable time source
	ErrorCodeMissingTimestamp
)

type codeInfo struct {
	name   string
	status int
}

var codes = [...]codeInfo{
	ErrorCodeUnknown:          {"unknown", http.StatusInternalServerError},
	ErrorCodePanic:            {"panic", http.StatusInternalServerError},
	ErrorCodeUnavailable:      {"unavailable", http.StatusServiceUnavailable},
	ErrorCodeInvalidArgument:  {"invalid_argument", http.StatusUnprocessableEntity},
	ErrorCodeValidation:       {"validation", http.StatusBadRequest},
	ErrorCodeJSON:             {"json", http.StatusBadRequest},
	ErrorCodeNotFound:         {"not_found", http.StatusNotFound},
	ErrorCodeTooLarge:         {"too_large", http.StatusRequestEntityTooLarge},
	ErrorCodeConfiguration:    {"configuration", http.StatusInternalServerError},
	ErrorCodeConnectivity:     {"connectivity", http.StatusServiceUnavailable},
	ErrorCodeDelivery:         {"delivery", http.StatusBadGateway},
	ErrorCodeMissingTimestamp: {"missing_timestamp", http.StatusBadRequest},
}

func (c ErrorCode) info() (codeInfo, bool) {
	if int(c) < len(codes) {
		return codes[c], true
	}
	return codeInfo{}, false
}

func (c ErrorCode) String() string {
	if ci, ok := c.info(); ok {
		return ci.name
	}
	return fmt.Sprintf("code(%d)", uint16(c))
}

// Status is the HTTP status the capture API answers with; unknown codes are 500
func (c ErrorCode) Status() int {
	if ci, ok := c.info(); ok {
		return ci.status
	}
	return http.StatusInternalServerError
}

// Error carries a machine code next to the human message. field names the
// offending option or event field when there is one
type Error struct {
	code  ErrorCode
	msg   string
	field string
	cause error
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return "<nil>"
	case e.cause == nil:
		return e.msg
	default:
		return e.msg + ": " + e.cause.Error()
	}
}

func (e *Error) Unwrap() error { return e.cause }

// Code returns the classification
func (e *Error) Code() ErrorCode { return e.code }

// Field returns the offending field, or ""
func (e *Error) Field() string { return e.field }

// Wire is the JSON error body
type Wire struct {
	Code    ErrorCode `json:"code"`
	Name    string    `json:"error"`
	Message string    `json:"message"`
	Field   string    `json:"field,omitempty"`
}

// ToWire drops the cause; only msg reaches the client
func (e *Error) ToWire() Wire {
	return Wire{Code: e.code, Name: e.code.String(), Message: e.msg, Field: e.field}
}

// WireFrom renders any error; foreign errors become unknown
func WireFrom(err error) Wire {
	if err == nil {
		return Wire{}
	}
	if e, ok := As(err); ok {
		return e.ToWire()
	}
	return Wire{Code: ErrorCodeUnknown, Name: ErrorCodeUnknown.String(), Message: err.Error()}
}

// HTTP returns the status and body for err; nil is 200 with an empty body
func HTTP(err error) (int, Wire) {
	if err == nil {
		return http.StatusOK, Wire{}
	}
	return CodeOf(err).Status(), WireFrom(err)
}

// As finds the outermost *Error in err's chain
func As(err error) (*Error, bool) {
	var e *Error
	ok := stderrs.As(err, &e)
	return e, ok
}

// CodeOf returns err's code, or ErrorCodeUnknown for foreign errors
func CodeOf(err error) ErrorCode {
	if e, ok := As(err); ok {
		return e.code
	}
	return ErrorCodeUnknown
}

func IsCode(err error, code ErrorCode) bool { return CodeOf(err) == code }

// WithField returns a copy of err naming field. Foreign errors pass through
func WithField(err error, field string) error {
	e, ok := As(err)
	if !ok {
		return err
	}
	cp := *e
	cp.field = field
	return &cp
}

func New(code ErrorCode, msg string) error { return &Error{code: code, msg: msg} }

func Newf(code ErrorCode, format string, a ...any) error {
	return New(code, fmt.Sprintf(format, a...))
}

func Wrap(cause error, code ErrorCode, msg string) error {
	return &Error{code: code, msg: msg, cause: cause}
}

func Wrapf(cause error, code ErrorCode, format string, a ...any) error {
	return Wrap(cause, code, fmt.Sprintf(format, a...))
}

func InvalidArgf(format string, a ...any) error { return Newf(ErrorCodeInvalidArgument, format, a...) }
func JSONErrf(format string, a ...any) error    { return Newf(ErrorCodeJSON, format, a...) }
func TooLargef(format string, a ...any) error   { return Newf(ErrorCodeTooLarge, format, a...) }
func Configf(format string, a ...any) error     { return Newf(ErrorCodeConfiguration, format, a...) }
