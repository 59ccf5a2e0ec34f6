// Package module implements the image intake module
package module

import (
	"penwatch/internal/core/framestore"
	"penwatch/internal/modkit"
	"penwatch/internal/modkit/httpkit"
	"penwatch/internal/platform/net/tcp"
	"penwatch/internal/services/intake/service"
)

// Ports exposed by the intake module
type Ports struct {
	Server  *tcp.Server
	Service *service.Service
}

// Module implements the intake module
type Module struct {
	deps  modkit.Deps
	opts  Options
	ports Ports
}

// New constructs the intake module over the shared frame store
func New(deps modkit.Deps, store *framestore.Store, overrides Options) *Module {
	opts := FromConfig(deps.Cfg).merge(overrides)
	svc := service.New(store, service.Config{
		MaxFrameBytes: opts.MaxFrameBytes,
		IdleTimeout:   opts.IdleTimeout,
	})
	return &Module{
		deps: deps,
		opts: opts,
		ports: Ports{
			Server:  tcp.NewServer("intake", opts.Addr, svc),
			Service: svc,
		},
	}
}

// Options returns the resolved options
func (m *Module) Options() Options { return m.opts }

// Name satisfies modkit.Module
func (m *Module) Name() string { return "intake" }

// Ports satisfies modkit.Module
func (m *Module) Ports() any { return m.ports }

// MountRoutes satisfies modkit.Module
func (m *Module) MountRoutes(r httpkit.Router) {}
