// Package http is the capture server: router facade, server lifecycle and
// the JSON envelope every endpoint answers with
package http

import (
	stdhttp "net/http"

	perr "eventsink/internal/platform/errors"
	pnet "eventsink/internal/platform/net"

	json "github.com/goccy/go-json"
)

// Envelope wraps every response body. Errors fill Code, Error and Field;
// successes fill Data
type Envelope struct {
	StatusCode int            `json:"status_code"`
	Status     string         `json:"status"`
	Code       perr.ErrorCode `json:"code,omitempty"`
	Error      string         `json:"error,omitempty"`
	Field      string         `json:"field,omitempty"`
	RequestID  string         `json:"request_id,omitempty"`
	Data       any            `json:"data,omitempty"`
}

func envelope(r *stdhttp.Request, status int) Envelope {
	return Envelope{
		StatusCode: status,
		Status:     stdhttp.StatusText(status),
		RequestID:  pnet.RequestID(r.Context()),
	}
}

// JSON encodes v with status
func JSON(w stdhttp.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// RespondError writes err as an envelope with the status its code maps to
func RespondError(w stdhttp.ResponseWriter, r *stdhttp.Request, err error) {
	status, wire := perr.HTTP(err)
	env := envelope(r, status)
	env.Code, env.Error, env.Field = wire.Code, wire.Message, wire.Field
	JSON(w, status, env)
}

// Response is what return-style handlers produce. An error Body is rendered
// through RespondError and Status is ignored
type Response struct {
	Status int
	Body   any
	Header stdhttp.Header
}

func OK(data any) Response       { return Response{Status: stdhttp.StatusOK, Body: data} }
func Accepted(data any) Response { return Response{Status: stdhttp.StatusAccepted, Body: data} }
func Error(err error) Response   { return Response{Body: err} }

// Handle turns a return-style handler into a HandlerFunc
func Handle(h func(*stdhttp.Request) Response) stdhttp.HandlerFunc {
	return func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		resp := h(r)
		for k, vs := range resp.Header {
			for _, v := range vs {
				w.Header().Add(k, v)
			}
		}

		if err, ok := resp.Body.(error); ok && err != nil {
			RespondError(w, r, err)
			return
		}
		switch resp.Status {
		case stdhttp.StatusNoContent:
			w.WriteHeader(stdhttp.StatusNoContent)
			return
		case 0:
			resp.Status = stdhttp.StatusOK
		}
		env := envelope(r, resp.Status)
		env.Data = resp.Body
		JSON(w, resp.Status, env)
	}
}
