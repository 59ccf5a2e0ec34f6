// Package repo provides the Postgres cycle journal
package repo

import (
	"context"

	"penwatch/internal/modkit/repokit"
	perr "penwatch/internal/platform/errors"
	"penwatch/internal/services/analysis/domain"
)

type (
	pg     struct{ q repokit.Queryer }
	binder struct{}
)

// NewPG constructs a repo binder for Postgres
func NewPG() repokit.Binder[Storage] { return binder{} }

// Bind implements repokit.Binder
func (binder) Bind(q repokit.Queryer) Storage { return &pg{q: q} }

// Storage is the analysis_cycles table
type Storage interface {
	domain.Journal
	domain.CycleReader
	EnsureSchema(ctx context.Context) error
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS analysis_cycles (
	id           uuid PRIMARY KEY,
	frame_seq    bigint      NOT NULL,
	source       text        NOT NULL DEFAULT '',
	bytes        integer     NOT NULL,
	started_at   timestamptz NOT NULL,
	finished_at  timestamptz NOT NULL,
	duration_ms  bigint      NOT NULL,
	cue_count    integer     NOT NULL,
	answer       text        NOT NULL DEFAULT '',
	summary      text        NOT NULL DEFAULT '',
	paused       boolean     NOT NULL DEFAULT false,
	retrigger    boolean     NOT NULL DEFAULT false,
	error        text        NOT NULL DEFAULT '',
	error_code   integer     NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS analysis_cycles_started_at_idx ON analysis_cycles (started_at DESC);
`

// EnsureSchema creates the journal table if missing
func (s *pg) EnsureSchema(ctx context.Context) error {
	if _, err := s.q.Exec(ctx, schemaSQL); err != nil {
		return perr.FromPostgres(err, "ensure analysis_cycles schema")
	}
	return nil
}

// Name implements domain.Journal
func (s *pg) Name() string { return "pg" }

// Record implements domain.Journal, a replayed id is ignored
func (s *pg) Record(ctx context.Context, r domain.CycleRecord) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO analysis_cycles
			(id, frame_seq, source, bytes, started_at, finished_at, duration_ms,
			cue_count, answer, summary, paused, retrigger, error, error_code)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		ON CONFLICT (id) DO NOTHING`,
		r.ID, int64(r.FrameSeq), r.Source, r.Bytes, r.StartedAt, r.FinishedAt, r.DurationMs,
		r.Count, r.Answer, r.Summary, r.Paused, r.Retrigger, r.Error, r.ErrorCode,
	)
	if err != nil {
		return perr.FromPostgres(err, "insert analysis cycle")
	}
	return nil
}

// Recent implements domain.CycleReader
func (s *pg) Recent(ctx context.Context, limit int) ([]domain.CycleRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.q.Query(ctx, `
		SELECT id, frame_seq, source, bytes, started_at, finished_at, duration_ms,
			cue_count, answer, summary, paused, retrigger, error, error_code
		FROM analysis_cycles
		ORDER BY started_at DESC, frame_seq DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, perr.FromPostgres(err, "list analysis cycles")
	}
	defer rows.Close()

	out := make([]domain.CycleRecord, 0, limit)
	for rows.Next() {
		var (
			r   domain.CycleRecord
			seq int64
		)
		if err := rows.Scan(
			&r.ID, &seq, &r.Source, &r.Bytes, &r.StartedAt, &r.FinishedAt, &r.DurationMs,
			&r.Count, &r.Answer, &r.Summary, &r.Paused, &r.Retrigger, &r.Error, &r.ErrorCode,
		); err != nil {
			return nil, perr.FromPostgres(err, "scan analysis cycle")
		}
		r.FrameSeq = uint64(seq)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, perr.FromPostgres(err, "iterate analysis cycles")
	}
	return out, nil
}
