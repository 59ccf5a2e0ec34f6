// Package api provides the admin HTTP API for the coordinator
package api

import (
	"penwatch/internal/platform/config"
	"penwatch/internal/platform/logger"
	phttp "penwatch/internal/platform/net/http"
	"penwatch/internal/platform/store"

	"penwatch/internal/modkit"
	"penwatch/internal/modkit/httpkit"
	"penwatch/internal/modkit/module"
	"penwatch/internal/modkit/swaggerkit"

	adminhttp "penwatch/internal/services/api/admin/http"
	adminmod "penwatch/internal/services/api/admin/module"
	metamod "penwatch/internal/services/api/meta/module"
)

// Options are the API options
type Options struct {
	Config         config.Conf
	Store          *store.Store
	Logger         *logger.Logger
	EnableSwagger  bool
	EnableProfiler bool

	// Admin drives the runtime
	Admin adminhttp.Deps
	// Pipeline reports the analysis mode on /meta/pipeline
	Pipeline func() any
}

// Mount mounts the API service onto the given router
func Mount(r phttp.Router, opt Options) {
	deps := modkit.Deps{Cfg: opt.Config}
	if opt.Logger != nil {
		deps.Log = *opt.Logger
	}
	if opt.Store != nil {
		deps.PG = opt.Store.PG
		deps.CH = opt.Store.CH
	}

	mods := []module.Module{
		metamod.New(deps, modkit.WithPorts(metamod.Ports{Pipeline: opt.Pipeline})),
		adminmod.New(deps, opt.Admin),
	}

	// Swagger + profiler live outside the versioned scope
	swaggerkit.Mount(r, opt.EnableSwagger)
	phttp.MountProfiler(r, "/debug", opt.EnableProfiler)

	// versioned API with a common middleware stack
	httpkit.MountAPIV1(r, httpkit.CommonStack(), func(api httpkit.Router) {
		for _, m := range mods {
			// register each module's ports under its own name (for cross-module lookups)
			module.Register(m.Name(), m.Ports())

			m.MountRoutes(api)
		}
	})
}
