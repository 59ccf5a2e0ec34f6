// Package module implements the control channel module
package module

import (
	"io"

	"penwatch/internal/core/broadcast"
	"penwatch/internal/modkit"
	"penwatch/internal/modkit/httpkit"
	"penwatch/internal/platform/net/tcp"
	"penwatch/internal/services/control/service"
)

// Ports exposed by the control module
type Ports struct {
	Server   *tcp.Server
	Listener *service.Listener
}

// Module implements the control module
type Module struct {
	deps  modkit.Deps
	opts  Options
	ctl   service.Console
	ports Ports
}

// New constructs the control module; peers join reg and drive ctl
func New(deps modkit.Deps, reg *broadcast.Registry, ctl service.Console, overrides Options) *Module {
	opts := FromConfig(deps.Cfg).merge(overrides)
	l := service.NewListener(reg, ctl, service.ListenerConfig{WriteTimeout: opts.WriteTimeout})
	return &Module{
		deps: deps,
		opts: opts,
		ctl:  ctl,
		ports: Ports{
			Server:   tcp.NewServer("control", opts.Addr, l),
			Listener: l,
		},
	}
}

// Operator builds a console bound to the same coordinator
func (m *Module) Operator(in io.Reader, out io.Writer, exit func()) *service.Operator {
	return service.NewOperator(m.ctl, in, out, exit)
}

// Options returns the resolved options
func (m *Module) Options() Options { return m.opts }

// Name satisfies modkit.Module
func (m *Module) Name() string { return "control" }

// Ports satisfies modkit.Module
func (m *Module) Ports() any { return m.ports }

// MountRoutes satisfies modkit.Module
func (m *Module) MountRoutes(r httpkit.Router) {}
