// Package http adapts chi to the handler shape the API modules use and writes the JSON envelope
package http

import (
	"encoding/json"
	stdhttp "net/http"

	pnet "penwatch/internal/platform/net"
)

// Envelope is the body of every API reply
type Envelope = pnet.Wire

// Response is what return-style handlers hand back
type Response struct {
	Status int
	Body   any
}

// OK returns a 200 response
func OK(data any) Response { return Response{Status: stdhttp.StatusOK, Body: data} }

// Error returns a response whose status is derived from err
func Error(err error) Response { return Response{Body: err} }

// Handle adapts a Response-returning handler to net/http
func Handle(h func(r *stdhttp.Request) Response) stdhttp.HandlerFunc {
	return func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		h(r).write(w, r)
	}
}

// WriteError writes err as an error envelope
func WriteError(w stdhttp.ResponseWriter, r *stdhttp.Request, err error) {
	status, env := pnet.Fail(err, pnet.RequestID(r.Context()))
	writeJSON(w, status, env)
}

func (resp Response) write(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	if err, ok := resp.Body.(error); ok && err != nil {
		WriteError(w, r, err)
		return
	}
	status := resp.Status
	if status == 0 {
		status = stdhttp.StatusOK
	}
	writeJSON(w, status, pnet.Reply(status, resp.Body, pnet.RequestID(r.Context())))
}

func writeJSON(w stdhttp.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
