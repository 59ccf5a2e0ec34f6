// Package httpkit is what API modules import to register routes, so they never
// reach into internal/platform/net/http directly
package httpkit

import (
	"net/http"

	phttp "penwatch/internal/platform/net/http"
)

type (
	// Router is the platform router seam
	Router = phttp.Router

	// Handler is the platform handler type
	Handler = phttp.Handler

	// Response lets a handler pick its own status
	Response = phttp.Response

	// Envelope is the reply body
	Envelope = phttp.Envelope
)

// OK returns a 200 response
func OK(data any) Response { return phttp.OK(data) }

// Accepted returns a 202 response
func Accepted(data any) Response { return Response{Status: http.StatusAccepted, Body: data} }
