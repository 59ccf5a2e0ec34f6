// Package sink writes cycle records to clickhouse for long range reporting
package sink

import (
	"context"

	perr "penwatch/internal/platform/errors"
	"penwatch/internal/platform/store"
	"penwatch/internal/services/analysis/domain"
)

// Table is the clickhouse table cycles land in
const Table = "analysis_cycles"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS analysis_cycles (
	id          UUID,
	frame_seq   UInt64,
	source      String,
	bytes       UInt32,
	started_at  DateTime64(3, 'UTC'),
	finished_at DateTime64(3, 'UTC'),
	duration_ms Int64,
	cue_count   UInt32,
	answer      String,
	summary     String,
	paused      Bool,
	retrigger   Bool,
	error       String,
	error_code  UInt16
) ENGINE = MergeTree
ORDER BY (started_at, frame_seq)`

// Clickhouse journals cycles as one row per batch insert
type Clickhouse struct {
	ch store.Clickhouse
}

var _ domain.Journal = (*Clickhouse)(nil)

// New wraps a clickhouse seam
func New(ch store.Clickhouse) *Clickhouse { return &Clickhouse{ch: ch} }

// EnsureSchema creates the table if missing
func (s *Clickhouse) EnsureSchema(ctx context.Context) error {
	if err := s.ch.Exec(ctx, schemaSQL); err != nil {
		return perr.Wrap(err, perr.ErrorCodeDB, "ensure clickhouse analysis_cycles")
	}
	return nil
}

// Name implements domain.Journal
func (s *Clickhouse) Name() string { return "ch" }

// Record implements domain.Journal
func (s *Clickhouse) Record(ctx context.Context, r domain.CycleRecord) error {
	if err := s.ch.Insert(ctx, Table, [][]any{row(r)}); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeDB, "clickhouse insert cycle %d", r.FrameSeq)
	}
	return nil
}

func row(r domain.CycleRecord) []any {
	return []any{
		r.ID,
		r.FrameSeq,
		r.Source,
		uint32(max(r.Bytes, 0)),
		r.StartedAt.UTC(),
		r.FinishedAt.UTC(),
		r.DurationMs,
		uint32(max(r.Count, 0)),
		r.Answer,
		r.Summary,
		r.Paused,
		r.Retrigger,
		r.Error,
		uint16(r.ErrorCode),
	}
}
