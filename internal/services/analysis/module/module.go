// Package module implements the analysis service module
package module

import (
	"context"
	"errors"

	"penwatch/internal/adapters/pipeline/ollama"
	"penwatch/internal/adapters/pipeline/worker"
	"penwatch/internal/core/trigger"
	"penwatch/internal/core/visualcue"
	"penwatch/internal/modkit"
	"penwatch/internal/modkit/httpkit"
	"penwatch/internal/modkit/repokit"
	perr "penwatch/internal/platform/errors"
	"penwatch/internal/platform/logger"
	"penwatch/internal/services/analysis/domain"
	"penwatch/internal/services/analysis/repo"
	"penwatch/internal/services/analysis/service"
	"penwatch/internal/services/analysis/sink"
)

// Ports exposed by the analysis module
type Ports struct {
	Analyzer trigger.Analyzer
	Recorder *service.Recorder
	// Cycles reads the journal, Postgres when configured else memory
	Cycles  domain.CycleReader
	Options trigger.Options
}

// Module implements the analysis service module
type Module struct {
	deps    modkit.Deps
	opts    Options
	ports   Ports
	worker  *worker.Client
	schemas []func(context.Context) error
	log     *logger.Logger
}

// New constructs the analysis module; overrides replace non zero config values
func New(deps modkit.Deps, overrides Options) (*Module, error) {
	opts := FromConfig(deps.Cfg).merge(overrides)
	m := &Module{deps: deps, opts: opts, log: logger.Named("analysis")}

	an, err := m.analyzer()
	if err != nil {
		return nil, err
	}

	var journals []domain.Journal
	var cycles domain.CycleReader
	if deps.PG != nil {
		pg := repokit.MustBind(repo.NewPG(), deps.PG)
		journals = append(journals, pg)
		cycles = pg
		m.schemas = append(m.schemas, pg.EnsureSchema)
	}
	if deps.CH != nil {
		ch := sink.New(deps.CH)
		journals = append(journals, ch)
		m.schemas = append(m.schemas, ch.EnsureSchema)
	}

	rec := service.NewRecorder(service.RecorderConfig{
		Queue:   opts.JournalQueue,
		Keep:    opts.JournalKeep,
		Timeout: opts.JournalTimeout,
	}, journals...)
	if cycles == nil {
		cycles = rec
	}

	m.ports = Ports{
		Analyzer: an,
		Recorder: rec,
		Cycles:   cycles,
		Options: trigger.Options{
			Predicate:        trigger.MinCount(opts.MinCues),
			BroadcastResults: opts.BroadcastResults,
			CycleTimeout:     opts.CycleTimeout,
			Observer:         rec,
		},
	}
	m.log.Info().Str("mode", string(opts.Mode)).Int("min_cues", opts.MinCues).Int("journals", len(journals)).Msg("analysis module ready")
	return m, nil
}

func (m *Module) analyzer() (trigger.Analyzer, error) {
	o := m.opts
	switch o.Mode {
	case domain.ModeNoop, "":
		return service.Noop{}, nil
	case domain.ModeWorker:
		w, err := m.startWorker()
		if err != nil {
			return nil, err
		}
		return service.NewWorkerPipeline(w), nil
	case domain.ModeVision:
		return service.NewVisionPipeline(m.ollama(), o.Prompt), nil
	case domain.ModeCue:
		w, err := m.startWorker()
		if err != nil {
			return nil, err
		}
		var gen domain.Generator
		if o.CueAsk {
			gen = m.ollama()
		}
		return service.NewCuePipeline(w, gen, visualcue.New(), o.Prompt), nil
	default:
		return nil, perr.InvalidArgf("unknown analysis mode %q", o.Mode)
	}
}

func (m *Module) startWorker() (*worker.Client, error) {
	w, err := worker.New(worker.Config{
		Command: m.opts.WorkerCmd,
		Args:    m.opts.WorkerArgs,
		Dir:     m.opts.WorkerDir,
	})
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "analysis mode %s needs ANALYSIS_WORKER_CMD", m.opts.Mode)
	}
	m.worker = w
	return w, nil
}

func (m *Module) ollama() *ollama.Client {
	return ollama.New(ollama.Config{
		BaseURL: m.opts.OllamaURL,
		Model:   m.opts.OllamaModel,
		Timeout: m.opts.OllamaTimeout,
	})
}

// EnsureSchema creates journal tables when enabled, failures are returned joined
func (m *Module) EnsureSchema(ctx context.Context) error {
	if !m.opts.EnsureSchema {
		return nil
	}
	var errs []error
	for _, fn := range m.schemas {
		errs = append(errs, fn(ctx))
	}
	return errors.Join(errs...)
}

// Options returns the resolved options
func (m *Module) Options() Options { return m.opts }

// WorkerStats reports the detector process counters, ok is false without a worker
func (m *Module) WorkerStats() (worker.Stats, bool) {
	if m.worker == nil {
		return worker.Stats{}, false
	}
	return m.worker.Stats(), true
}

// Close stops the detector process if one was started
func (m *Module) Close() error {
	if m.worker == nil {
		return nil
	}
	return m.worker.Close()
}

// Name satisfies modkit.Module
func (m *Module) Name() string { return "analysis" }

// Ports satisfies modkit.Module
func (m *Module) Ports() any { return m.ports }

// MountRoutes satisfies modkit.Module
func (m *Module) MountRoutes(r httpkit.Router) {}
