// Package trigger runs the analysis pipeline on the newest frame, one cycle
// at a time.
//
// The loop moves through four observable states:
//
//	IDLE       waiting for the store's pending signal
//	GATED      a frame is pending, waiting for the gate to be Running
//	RUNNING    the pipeline is analyzing a snapshot of the latest frame
//	RETRIGGER  a newer frame arrived during the run, go straight back to GATED
//
// The pending signal is drained at the start of every cycle, so any number
// of writes during one run cause exactly one follow-up cycle.
package trigger

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"penwatch/internal/core/broadcast"
	"penwatch/internal/core/directive"
	"penwatch/internal/core/framestore"
	"penwatch/internal/core/gate"
	perr "penwatch/internal/platform/errors"
	"penwatch/internal/platform/logger"
)

// State is the trigger loop position
type State uint32

// Trigger states
const (
	Idle State = iota
	Gated
	Running
	Retrigger
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Gated:
		return "gated"
	case Running:
		return "running"
	case Retrigger:
		return "retrigger"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name in JSON payloads
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Result is what the pipeline reports for one frame
type Result struct {
	// Count is the number of visual cues (pens) detected
	Count int `json:"count"`
	// Answer is the text to show on peers when the cycle pauses capture
	Answer string `json:"answer,omitempty"`
	// Summary is a one-line description of the frame
	Summary string   `json:"summary,omitempty"`
	Labels  []string `json:"labels,omitempty"`
}

// Analyzer is the external analysis pipeline
type Analyzer interface {
	Analyze(ctx context.Context, f framestore.Frame) (Result, error)
}

// AnalyzerFunc adapts a function to Analyzer
type AnalyzerFunc func(ctx context.Context, f framestore.Frame) (Result, error)

// Analyze calls fn
func (fn AnalyzerFunc) Analyze(ctx context.Context, f framestore.Frame) (Result, error) {
	return fn(ctx, f)
}

// Predicate decides whether a result pauses capture
type Predicate func(Result) bool

// MinCount pauses when at least n cues were detected
func MinCount(n int) Predicate {
	return func(r Result) bool { return r.Count >= n }
}

// Broadcaster delivers directives to control peers
type Broadcaster interface {
	Broadcast(ctx context.Context, d directive.Directive) broadcast.Report
}

// Cycle records one completed pipeline invocation
type Cycle struct {
	FrameSeq   uint64
	Source     string
	Bytes      int
	StartedAt  time.Time
	FinishedAt time.Time
	Result     Result
	Err        error
	Paused     bool
	Retrigger  bool
}

// Duration returns how long the pipeline ran
func (c Cycle) Duration() time.Duration { return c.FinishedAt.Sub(c.StartedAt) }

// Observer is told about every finished cycle
// It runs on the trigger goroutine and should return quickly
type Observer interface {
	Observe(ctx context.Context, c Cycle)
}

// Options tunes the loop
type Options struct {
	// Predicate defaults to MinCount(2)
	Predicate Predicate
	// BroadcastResults sends every non-empty summary to peers
	BroadcastResults bool
	// CycleTimeout bounds one Analyze call, 0 disables
	CycleTimeout time.Duration
	Observer     Observer
}

// Stats is a snapshot of loop counters
type Stats struct {
	State        State         `json:"state"`
	Cycles       uint64        `json:"cycles"`
	Failures     uint64        `json:"failures"`
	Retriggers   uint64        `json:"retriggers"`
	SelfPauses   uint64        `json:"self_pauses"`
	LastSeq      uint64        `json:"last_seq"`
	LastStarted  time.Time     `json:"last_started,omitempty"`
	LastDuration time.Duration `json:"last_duration_ns"`
	LastResult   *Result       `json:"last_result,omitempty"`
	LastError    string        `json:"last_error,omitempty"`
}

// gatePassed runs after the gate opens and before the snapshot is taken
var gatePassed = func() {}

// Trigger owns the single processing worker
type Trigger struct {
	store *framestore.Store
	gate  *gate.Gate
	bc    Broadcaster
	an    Analyzer
	opts  Options

	state   atomic.Uint32
	running atomic.Bool

	mu    sync.Mutex
	stats Stats

	log *logger.Logger
	now func() time.Time
}

// New wires a trigger; store, gate, broadcaster and analyzer are required
func New(store *framestore.Store, g *gate.Gate, bc Broadcaster, an Analyzer, opts Options) *Trigger {
	if store == nil || g == nil || bc == nil || an == nil {
		panic("trigger: store, gate, broadcaster and analyzer are required")
	}
	if opts.Predicate == nil {
		opts.Predicate = MinCount(2)
	}
	t := &Trigger{
		store: store,
		gate:  g,
		bc:    bc,
		an:    an,
		opts:  opts,
		log:   logger.Named("trigger"),
		now:   time.Now,
	}
	t.setState(Stopped)
	return t
}

// State returns the current loop position, Stopped until Run starts
func (t *Trigger) State() State { return State(t.state.Load()) }

func (t *Trigger) setState(s State) { t.state.Store(uint32(s)) }

// Stats returns a copy of the loop counters
func (t *Trigger) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	st := t.stats
	st.State = t.State()
	if st.LastResult != nil {
		r := *st.LastResult
		st.LastResult = &r
	}
	return st
}

// Run drives the loop until ctx is done and returns ctx.Err()
// Pipeline failures never end the loop
func (t *Trigger) Run(ctx context.Context) error {
	if !t.running.CompareAndSwap(false, true) {
		return perr.New(perr.ErrorCodeConflict, "trigger already running")
	}
	defer t.running.Store(false)
	defer t.setState(Stopped)

	t.log.Info().Bool("broadcast_results", t.opts.BroadcastResults).Dur("cycle_timeout", t.opts.CycleTimeout).Msg("trigger started")

	var lastSeq uint64
	retrigger, held := false, false
	for {
		if !retrigger && !held {
			t.setState(Idle)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.store.Pending():
			}
		}

		held = false
		t.setState(Gated)
		if err := t.gate.Wait(ctx); err != nil {
			return err
		}
		gatePassed()

		t.store.Drain()
		frame, err := t.store.Snapshot()
		if err != nil || frame.Seq == lastSeq {
			// signal raced a cycle that already covered this frame
			retrigger = false
			continue
		}
		if t.gate.State() == gate.Paused {
			// paused after Wait returned; the frame stays pending in GATED
			held = true
			continue
		}

		t.setState(Running)
		t.cycle(ctx, frame, retrigger)
		lastSeq = frame.Seq

		retrigger = t.store.LatestSeq() > frame.Seq
		if retrigger {
			t.setState(Retrigger)
			t.mu.Lock()
			t.stats.Retriggers++
			t.mu.Unlock()
			t.log.Debug().Uint64("seq", frame.Seq).Uint64("latest", t.store.LatestSeq()).Msg("newer frame arrived during run")
		}
	}
}

func (t *Trigger) cycle(ctx context.Context, f framestore.Frame, retrigger bool) {
	c := Cycle{FrameSeq: f.Seq, Source: f.Source, Bytes: len(f.Data), StartedAt: t.now(), Retrigger: retrigger}

	t.mu.Lock()
	t.stats.LastSeq = f.Seq
	t.stats.LastStarted = c.StartedAt
	t.mu.Unlock()

	c.Result, c.Err = t.invoke(ctx, f)
	c.FinishedAt = t.now()

	if c.Err != nil {
		t.log.Error().Err(c.Err).Uint64("seq", f.Seq).Dur("elapsed", c.Duration()).Msg("pipeline failed")
	} else {
		t.log.Info().Uint64("seq", f.Seq).Int("count", c.Result.Count).Dur("elapsed", c.Duration()).Msg("cycle complete")
		c.Paused = t.react(ctx, c.Result)
	}

	t.mu.Lock()
	t.stats.Cycles++
	t.stats.LastDuration = c.Duration()
	if c.Err != nil {
		t.stats.Failures++
		t.stats.LastError = c.Err.Error()
	} else {
		r := c.Result
		t.stats.LastResult = &r
		t.stats.LastError = ""
	}
	if c.Paused {
		t.stats.SelfPauses++
	}
	t.mu.Unlock()

	if t.opts.Observer != nil {
		t.opts.Observer.Observe(ctx, c)
	}
}

// invoke calls the analyzer, converting panics into errors
func (t *Trigger) invoke(ctx context.Context, f framestore.Frame) (res Result, err error) {
	defer func() {
		if v := recover(); v != nil {
			t.log.Error().Interface("panic", v).Str("stack", string(debug.Stack())).Msg("pipeline panicked")
			err = perr.Newf(perr.ErrorCodePanic, "pipeline panic: %v", v)
		}
	}()

	if t.opts.CycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.opts.CycleTimeout)
		defer cancel()
	}
	return t.an.Analyze(ctx, f)
}

// react applies the pause rule and result broadcast; it reports whether the cycle paused capture
func (t *Trigger) react(ctx context.Context, r Result) bool {
	paused := false
	if t.opts.Predicate(r) {
		changed := t.gate.Pause("trigger")
		rep := t.bc.Broadcast(ctx, directive.Pause())
		t.log.Info().Int("count", r.Count).Bool("changed", changed).Int("delivered", rep.Delivered).Msg("pause-worthy result, capture paused")
		if r.Answer != "" {
			if d, err := directive.Text(r.Answer); err == nil {
				t.bc.Broadcast(ctx, d)
			}
		}
		paused = true
	}

	if t.opts.BroadcastResults {
		if d, ok := directive.Result(r.Summary); ok {
			t.bc.Broadcast(ctx, d)
		}
	}
	return paused
}

// String is used in logs
func (c Cycle) String() string {
	return fmt.Sprintf("cycle seq=%d count=%d err=%v paused=%v", c.FrameSeq, c.Result.Count, c.Err, c.Paused)
}
