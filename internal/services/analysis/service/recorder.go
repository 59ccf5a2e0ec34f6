package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"penwatch/internal/core/trigger"
	perr "penwatch/internal/platform/errors"
	"penwatch/internal/platform/logger"
	"penwatch/internal/services/analysis/domain"

	"github.com/google/uuid"
)

// RecorderConfig tunes the journal fan-out
type RecorderConfig struct {
	// Queue is the number of records waiting for journals before new ones are dropped
	Queue int
	// Keep is how many recent records stay in memory
	Keep int
	// Timeout bounds one journal write
	Timeout time.Duration
}

// RecorderStats are lifetime counters
type RecorderStats struct {
	Observed uint64   `json:"observed"`
	Written  uint64   `json:"written"`
	Failed   uint64   `json:"failed"`
	Dropped  uint64   `json:"dropped"`
	Journals []string `json:"journals"`
}

// Recorder observes trigger cycles and hands them to journals off the trigger goroutine
type Recorder struct {
	cfg      RecorderConfig
	journals []domain.Journal
	queue    chan domain.CycleRecord

	mu     sync.RWMutex
	recent []domain.CycleRecord

	observed atomic.Uint64
	written  atomic.Uint64
	failed   atomic.Uint64
	dropped  atomic.Uint64

	log *logger.Logger
}

var (
	_ trigger.Observer   = (*Recorder)(nil)
	_ domain.CycleReader = (*Recorder)(nil)
)

// NewRecorder builds a recorder over zero or more journals
func NewRecorder(cfg RecorderConfig, journals ...domain.Journal) *Recorder {
	if cfg.Queue <= 0 {
		cfg.Queue = 64
	}
	if cfg.Keep <= 0 {
		cfg.Keep = 100
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	return &Recorder{
		cfg:      cfg,
		journals: journals,
		queue:    make(chan domain.CycleRecord, cfg.Queue),
		log:      logger.Named("recorder"),
	}
}

// RecordOf converts a finished cycle into a journal row
func RecordOf(c trigger.Cycle) domain.CycleRecord {
	rec := domain.CycleRecord{
		ID:         uuid.New(),
		FrameSeq:   c.FrameSeq,
		Source:     c.Source,
		Bytes:      c.Bytes,
		StartedAt:  c.StartedAt.UTC(),
		FinishedAt: c.FinishedAt.UTC(),
		DurationMs: c.Duration().Milliseconds(),
		Count:      c.Result.Count,
		Answer:     c.Result.Answer,
		Summary:    c.Result.Summary,
		Paused:     c.Paused,
		Retrigger:  c.Retrigger,
	}
	if c.Err != nil {
		rec.Error = c.Err.Error()
		rec.ErrorCode = int(perr.CodeOf(c.Err))
	}
	return rec
}

// Observe implements trigger.Observer, it never blocks
func (r *Recorder) Observe(_ context.Context, c trigger.Cycle) {
	rec := RecordOf(c)
	r.observed.Add(1)

	r.mu.Lock()
	r.recent = append(r.recent, rec)
	if over := len(r.recent) - r.cfg.Keep; over > 0 {
		r.recent = append(r.recent[:0:0], r.recent[over:]...)
	}
	r.mu.Unlock()

	if len(r.journals) == 0 {
		return
	}
	select {
	case r.queue <- rec:
	default:
		r.dropped.Add(1)
		r.log.Warn().Uint64("seq", rec.FrameSeq).Msg("journal queue full, record dropped")
	}
}

// Run writes queued records until ctx is done
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case rec := <-r.queue:
			r.write(ctx, rec)
		}
	}
}

func (r *Recorder) write(ctx context.Context, rec domain.CycleRecord) {
	for _, j := range r.journals {
		wctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
		err := j.Record(wctx, rec)
		cancel()
		if err != nil {
			r.failed.Add(1)
			r.log.Error().Err(err).Str("journal", j.Name()).Uint64("seq", rec.FrameSeq).Msg("journal write failed")
			continue
		}
		r.written.Add(1)
	}
}

// Recent implements domain.CycleReader from memory, newest first
func (r *Recorder) Recent(_ context.Context, limit int) ([]domain.CycleRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if limit <= 0 || limit > len(r.recent) {
		limit = len(r.recent)
	}
	out := make([]domain.CycleRecord, 0, limit)
	for i := len(r.recent) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.recent[i])
	}
	return out, nil
}

// Stats returns lifetime counters
func (r *Recorder) Stats() RecorderStats {
	names := make([]string, 0, len(r.journals))
	for _, j := range r.journals {
		names = append(names, j.Name())
	}
	return RecorderStats{
		Observed: r.observed.Load(),
		Written:  r.written.Load(),
		Failed:   r.failed.Load(),
		Dropped:  r.dropped.Load(),
		Journals: names,
	}
}
