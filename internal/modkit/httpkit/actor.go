package httpkit

import (
	"net/http"

	pnet "penwatch/internal/platform/net"
)

// Actor returns the operator label stamped by middleware.Actor, or def
func Actor(r *http.Request, def string) string {
	if a := pnet.Actor(r.Context()); a != "" {
		return a
	}
	return def
}

// RequestID returns the request id assigned by the request id middleware
func RequestID(r *http.Request) string { return pnet.RequestID(r.Context()) }
