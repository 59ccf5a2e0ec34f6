// Package module wires the meta endpoints into the API
package module

import (
	"time"

	modkit "penwatch/internal/modkit"
	"penwatch/internal/modkit/httpkit"

	metahttp "penwatch/internal/services/api/meta/http"
)

// ServiceName is reported by the health and service endpoints
const ServiceName = "penwatch"

// Ports are optional collaborators injected with modkit.WithPorts
type Ports struct {
	Pipeline func() any
}

// New returns the meta module under /meta, uptime counts from this call
func New(deps modkit.Deps, opts ...modkit.Option) modkit.Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("meta"),
		modkit.WithPrefix("/meta"),
	}, opts...)...)

	ports, _ := b.Ports.(Ports)
	hd := metahttp.Deps{
		ServiceName: ServiceName,
		StartedAt:   time.Now(),
		PG:          deps.PG,
		CH:          deps.CH,
		Pipeline:    ports.Pipeline,
	}
	return modkit.NewRouted(b, func(r httpkit.Router) { metahttp.Register(r, hd) })
}
