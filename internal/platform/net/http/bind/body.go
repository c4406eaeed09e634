// Package bind reads and validates request bodies for handlers
package bind

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	perr "eventsink/internal/platform/errors"
	"eventsink/internal/platform/logger"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
)

// JSONOptions controls Body and ParseJSON. The zero value means no size cap,
// unknown fields allowed and empty bodies rejected; ParseJSON without options
// uses 1MB and strict fields
type JSONOptions struct {
	MaxBytes        int64 // counted after gzip inflation
	DisallowUnknown bool
	AllowEmptyBody  bool
}

var strict = JSONOptions{MaxBytes: 1 << 20, DisallowUnknown: true}

// trailing is swapped in tests
var trailing = func(dec *json.Decoder) bool { return dec.More() }

func optsOr(opts []JSONOptions) JSONOptions {
	if len(opts) == 0 {
		return strict
	}
	return opts[0]
}

func isGzip(r *http.Request) bool {
	return strings.EqualFold(strings.TrimSpace(r.Header.Get("Content-Encoding")), "gzip")
}

// Body returns the request body, inflated when Content-Encoding is gzip.
// Over MaxBytes is a TooLarge error; the body is never truncated
func Body(r *http.Request, opts ...JSONOptions) ([]byte, error) {
	o := optsOr(opts)
	defer func() {
		if err := r.Body.Close(); err != nil {
			logger.C(r.Context()).Warn().Err(err).Msg("closing request body")
		}
	}()

	src := io.Reader(r.Body)
	if isGzip(r) {
		zr, err := gzip.NewReader(r.Body)
		switch {
		case errors.Is(err, io.EOF) && o.AllowEmptyBody:
			return nil, nil
		case err != nil:
			return nil, perr.Wrap(err, perr.ErrorCodeJSON, "invalid gzip body")
		}
		defer zr.Close()
		src = zr
	}
	if o.MaxBytes > 0 {
		src = io.LimitReader(src, o.MaxBytes+1)
	}

	b, err := io.ReadAll(src)
	switch {
	case err != nil:
		return nil, perr.Wrap(err, perr.ErrorCodeJSON, "failed to read body")
	case o.MaxBytes > 0 && int64(len(b)) > o.MaxBytes:
		return nil, perr.TooLargef("body exceeds %d bytes", o.MaxBytes)
	case !o.AllowEmptyBody && len(bytes.TrimSpace(b)) == 0:
		return nil, perr.JSONErrf("empty body")
	}
	return b, nil
}

// Decode reads exactly one JSON value from b into dst
func Decode(b []byte, dst any, disallowUnknown bool) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	if disallowUnknown {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(dst); err != nil {
		return perr.JSONErrf("invalid JSON: %v", err)
	}
	if trailing(dec) {
		return perr.JSONErrf("unexpected trailing data")
	}
	return nil
}

// ParseJSON reads, decodes and (for structs) validates a T from r
func ParseJSON[T any](r *http.Request, opts ...JSONOptions) (T, error) {
	var out T
	o := optsOr(opts)

	b, err := Body(r, o)
	if err != nil || len(bytes.TrimSpace(b)) == 0 {
		return out, err
	}
	if err := Decode(b, &out, o.DisallowUnknown); err != nil {
		var zero T
		return zero, err
	}
	if reflect.Indirect(reflect.ValueOf(out)).Kind() != reflect.Struct {
		return out, nil
	}
	if err := Struct(out); err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}
