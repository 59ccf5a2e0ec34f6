// Package module wires the operator admin endpoints into the API
package module

import (
	modkit "penwatch/internal/modkit"
	"penwatch/internal/modkit/httpkit"

	adminhttp "penwatch/internal/services/api/admin/http"
)

// New returns the admin module, mounted at the API root unless WithPrefix is given
func New(_ modkit.Deps, hd adminhttp.Deps, opts ...modkit.Option) modkit.Module {
	b := modkit.Build(append([]modkit.Option{modkit.WithName("admin")}, opts...)...)
	return modkit.NewRouted(b, func(r httpkit.Router) { adminhttp.Register(r, hd) })
}
