package main

import (
	"context"
	"errors"
	"os"
	"strconv"
	"time"

	mqttmirror "penwatch/internal/adapters/mqtt"
	"penwatch/internal/core/broadcast"
	"penwatch/internal/core/coordinator"
	"penwatch/internal/core/framestore"
	"penwatch/internal/core/gate"
	"penwatch/internal/core/trigger"
	"penwatch/internal/modkit"
	"penwatch/internal/modkit/module"
	"penwatch/internal/platform/config"
	"penwatch/internal/platform/logger"
	phttp "penwatch/internal/platform/net/http"
	"penwatch/internal/platform/net/middleware"
	"penwatch/internal/platform/net/tcp"
	"penwatch/internal/platform/store"

	analysisdomain "penwatch/internal/services/analysis/domain"
	analysismod "penwatch/internal/services/analysis/module"
	analysissvc "penwatch/internal/services/analysis/service"
	"penwatch/internal/services/api"
	adminhttp "penwatch/internal/services/api/admin/http"
	controlmod "penwatch/internal/services/control/module"
	intakemod "penwatch/internal/services/intake/module"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type serveFlags struct {
	IntakeAddr  string
	ControlAddr string
	HTTPAddr    string

	Mode             string
	WorkerCmd        string
	OllamaURL        string
	OllamaModel      string
	MinCues          int
	BroadcastResults bool

	MQTTBroker string
	Console    bool
	Swagger    bool
	Profiler   bool
}

var serveOpts serveFlags

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the intake and control listeners, the trigger and the admin API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd.Context(), serveOpts)
	},
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveOpts.IntakeAddr, "intake-addr", "", "image intake listen address (INTAKE_ADDR, default :12345)")
	f.StringVar(&serveOpts.ControlAddr, "control-addr", "", "control listen address (CONTROL_ADDR, default :12346)")
	f.StringVar(&serveOpts.HTTPAddr, "http-addr", "", "admin API listen address (CORE_API_API_PORT, default :4000)")
	f.StringVarP(&serveOpts.Mode, "mode", "m", "", "analysis mode: noop, worker, vision or cue (ANALYSIS_MODE)")
	f.StringVar(&serveOpts.WorkerCmd, "worker-cmd", "", "detector worker command (ANALYSIS_WORKER_CMD)")
	f.StringVar(&serveOpts.OllamaURL, "ollama-url", "", "ollama base URL (ANALYSIS_OLLAMA_URL)")
	f.StringVar(&serveOpts.OllamaModel, "ollama-model", "", "ollama model (ANALYSIS_OLLAMA_MODEL)")
	f.IntVar(&serveOpts.MinCues, "min-cues", 0, "cue count that pauses capture (ANALYSIS_MIN_CUES, default 2)")
	f.BoolVar(&serveOpts.BroadcastResults, "broadcast-results", false, "send each result summary to peers")
	f.StringVar(&serveOpts.MQTTBroker, "mqtt-broker", "", "mirror broadcasts to this MQTT broker (MQTT_BROKER)")
	f.BoolVar(&serveOpts.Console, "console", true, "read operator commands from stdin")
	f.BoolVar(&serveOpts.Swagger, "swagger", true, "serve the API docs under /api/docs")
	f.BoolVar(&serveOpts.Profiler, "profiler", false, "serve pprof under /debug")
	rootCmd.AddCommand(serveCmd)
}

func mustSetEnv(k, v string) {
	if v != "" {
		_ = os.Setenv(k, v)
	}
}

// ignoreCanceled treats a canceled context as a clean stop
func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func runServe(parent context.Context, fl serveFlags) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	// flags win over env so every module reads one source
	mustSetEnv("CORE_API_API_PORT", fl.HTTPAddr)
	mustSetEnv("MQTT_BROKER", fl.MQTTBroker)

	root := config.New()
	apiCfg := root.Prefix("CORE_API_")
	l := logger.Get()

	st, err := openStore(ctx, root)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	deps := modkit.Deps{
		Cfg: root,
		PG:  st.PG,
		CH:  st.CH,
		Log: *l,
	}

	// broadcast registry, optionally mirrored to MQTT
	var regOpts []broadcast.Option
	mirror := openMirror(ctx, root.Prefix("MQTT_"))
	if mirror != nil {
		defer mirror.Close()
		regOpts = append(regOpts, broadcast.WithMirror(mirror))
	}
	reg := broadcast.New(regOpts...)
	defer reg.CloseAll()

	frames := framestore.New()
	g := gate.New()

	am, err := analysismod.New(deps, analysismod.Options{
		Mode:        analysisdomain.Mode(fl.Mode),
		WorkerCmd:   fl.WorkerCmd,
		OllamaURL:   fl.OllamaURL,
		OllamaModel: fl.OllamaModel,
		MinCues:     fl.MinCues,

		BroadcastResults: fl.BroadcastResults,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := am.Close(); err != nil {
			l.Warn().Err(err).Msg("analysis close")
		}
	}()
	if am.Options().EnsureSchema {
		if err := am.EnsureSchema(ctx); err != nil {
			l.Warn().Err(err).Msg("journal schema setup failed, journals may reject writes")
		}
	}
	ap := module.MustPortsOf[analysismod.Ports](am)

	trig := trigger.New(frames, g, reg, ap.Analyzer, ap.Options)
	coord := coordinator.New(frames, g, reg, trig)

	in := intakemod.New(deps, frames, intakemod.Options{Addr: fl.IntakeAddr})
	ctl := controlmod.New(deps, reg, coord, controlmod.Options{Addr: fl.ControlAddr})
	inPorts := module.MustPortsOf[intakemod.Ports](in)
	ctlPorts := module.MustPortsOf[controlmod.Ports](ctl)

	for _, m := range []module.Module{am, in, ctl} {
		module.Register(m.Name(), m.Ports())
	}

	// a listener that cannot bind is the one fatal startup condition
	for _, s := range []*tcp.Server{inPorts.Server, ctlPorts.Server} {
		if err := s.Listen(); err != nil {
			l.Fatal().Err(err).Str("listener", s.Name()).Msg("bind failed")
		}
	}

	srv := phttp.NewServer(apiCfg, func(m *chi.Mux) {
		m.Use(middleware.Heartbeat("/healthz"))
	})
	api.Mount(srv.Router(), api.Options{
		Config:         apiCfg,
		Store:          st,
		Logger:         l,
		EnableSwagger:  fl.Swagger && apiCfg.MayBool("SWAGGER", true),
		EnableProfiler: fl.Profiler || apiCfg.MayBool("PROFILER", false),
		Admin: adminhttp.Deps{
			Ctl:        coord,
			Cycles:     ap.Cycles,
			Components: components(inPorts, ctlPorts, ap.Recorder, mirror),
		},
		Pipeline: func() any {
			out := map[string]any{
				"mode":     am.Options().Mode,
				"min_cues": am.Options().MinCues,
			}
			if ws, ok := am.WorkerStats(); ok {
				out["worker"] = ws
			}
			return out
		},
	})

	grp, gctx := errgroup.WithContext(ctx)
	grp.Go(func() error { return ignoreCanceled(inPorts.Server.Run(gctx)) })
	grp.Go(func() error { return ignoreCanceled(ctlPorts.Server.Run(gctx)) })
	grp.Go(func() error { return ignoreCanceled(trig.Run(gctx)) })
	grp.Go(func() error { return ignoreCanceled(ap.Recorder.Run(gctx)) })
	grp.Go(func() error {
		if err := srv.Run(gctx); err != nil {
			l.Fatal().Err(err).Str("addr", srv.Addr()).Msg("admin api bind failed")
		}
		return nil
	})
	if fl.Console {
		grp.Go(func() error {
			op := ctl.Operator(os.Stdin, os.Stdout, cancel)
			return ignoreCanceled(op.Run(gctx))
		})
	}

	l.Info().
		Str("intake", inPorts.Server.Addr().String()).
		Str("control", ctlPorts.Server.Addr().String()).
		Str("http", srv.Addr()).
		Str("mode", string(am.Options().Mode)).
		Msg("penwatch running")

	err = grp.Wait()
	l.Info().Err(err).Msg("penwatch stopped")
	return err
}

// openStore enables each backend whose DBURL is set
func openStore(ctx context.Context, root config.Conf) (*store.Store, error) {
	pgCfg := root.Prefix("SERVICE_PGSQL_")      // pgCfg lives under SERVICE_PGSQL_*
	chCfg := root.Prefix("SERVICE_CLICKHOUSE_") // chCfg lives under SERVICE_CLICKHOUSE_*

	pgURL := pgCfg.MayString("DBURL", "")
	chURL := chCfg.MayString("DBURL", "")

	return store.Open(ctx, store.Config{
		AppName: "penwatch",
		PG: store.PGConfig{
			Enabled:     pgURL != "",
			URL:         pgURL,
			MaxConns:    int32(pgCfg.MayInt("MAX_CONNS", 4)),
			SlowQueryMs: pgCfg.MayInt("SLOW_MS", 500),
			LogSQL:      pgCfg.MayBool("LOG_SQL", false),
		},
		CH: store.CHConfig{
			Enabled:     chURL != "",
			URL:         chURL,
			DialTimeout: chCfg.MayDuration("DIAL_TIMEOUT", 5*time.Second),
		},
	}, store.WithLogger(*logger.Get()))
}

// openMirror returns nil when no broker is configured
func openMirror(ctx context.Context, cfg config.Conf) *mqttmirror.Mirror {
	broker := cfg.MayString("BROKER", "")
	if broker == "" {
		return nil
	}
	qos, _ := strconv.Atoi(cfg.MayString("QOS", "0"))
	m := mqttmirror.New(mqttmirror.Config{
		Broker:      broker,
		ClientID:    cfg.MayString("CLIENT_ID", "penwatch"),
		TopicPrefix: cfg.MayString("TOPIC_PREFIX", "penwatch"),
		QoS:         byte(qos),
		Username:    cfg.MayString("USERNAME", ""),
		Password:    cfg.MayString("PASSWORD", ""),
	})
	// the client keeps retrying in the background, peers never wait on it
	if err := m.Connect(ctx); err != nil {
		logger.Named("mqtt").Warn().Err(err).Msg("mqtt not connected yet, broadcasts continue without mirror")
	}
	return m
}

// components are the extra snapshots shown on /api/v1/status
func components(in intakemod.Ports, ctl controlmod.Ports, rec *analysissvc.Recorder, mirror *mqttmirror.Mirror) map[string]func() any {
	out := map[string]func() any{
		"intake": func() any {
			return map[string]any{"conns": in.Server.Conns(), "stats": in.Service.Stats()}
		},
		"control": func() any {
			return map[string]any{"conns": ctl.Server.Conns()}
		},
		"journal": func() any { return rec.Stats() },
	}
	if mirror != nil {
		out["mqtt"] = func() any { return mirror.Stats() }
	}
	return out
}
