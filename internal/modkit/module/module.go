// Package module defines the module contract and the bootstrap port registry
package module

import (
	phttp "penwatch/internal/platform/net/http"
)

// Module is anything that can mount routes and expose a port set to its peers
type Module interface {
	MountRoutes(r phttp.Router)
	Ports() any
	Name() string
}
