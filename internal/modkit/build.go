package modkit

import (
	"net/http"

	"penwatch/internal/modkit/httpkit"
	str "penwatch/internal/platform/strings"
)

// Built is the resolved option set
type Built struct {
	Name     string
	Prefix   string
	Mw       []func(http.Handler) http.Handler
	Ports    any
	Register func(httpkit.Router)
}

// Build applies opts in order, later options win
func Build(opts ...Option) Built {
	var c buildCfg
	for _, o := range opts {
		o(&c)
	}
	if c.register == nil {
		c.register = func(httpkit.Router) {}
	}
	return Built{
		Name:     c.name,
		Prefix:   c.prefix,
		Mw:       append([]func(http.Handler) http.Handler(nil), c.mw...),
		Ports:    c.ports,
		Register: c.register,
	}
}

// Routed is a Module whose routes come from a single register func
type Routed struct {
	b      Built
	routes func(httpkit.Router)
}

// NewRouted returns a Module mounting routes with b's prefix and middleware
func NewRouted(b Built, routes func(httpkit.Router)) *Routed {
	return &Routed{b: b, routes: routes}
}

// Name implements Module
func (m *Routed) Name() string { return m.b.Name }

// Ports implements Module, routed modules export nothing
func (m *Routed) Ports() any { return nil }

// MountRoutes implements Module
func (m *Routed) MountRoutes(r httpkit.Router) {
	mount := func(rr httpkit.Router) {
		rr.Use(m.b.Mw...)
		m.routes(rr)
		m.b.Register(rr)
	}
	if m.b.Prefix == "" {
		r.Group(mount)
		return
	}
	r.Route(str.MustPrefix(m.b.Prefix), mount)
}
