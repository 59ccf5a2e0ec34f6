package store

import (
	"context"
	"time"

	"penwatch/internal/platform/store/pg"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// pgxQuerier is what *pgxpool.Pool and pgx.Tx have in common
type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type observer interface {
	Observe(ctx context.Context, sql string, args []any, start time.Time, err error)
}

// querier traces each statement it sends to q
type querier struct {
	q   pgxQuerier
	obs observer
}

func (x querier) Exec(ctx context.Context, sql string, args ...any) (CommandTag, error) {
	start := time.Now()
	ct, err := x.q.Exec(ctx, sql, args...)
	x.obs.Observe(ctx, sql, args, start, err)
	return ct, err
}

// Query is traced when the result set opens
func (x querier) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	start := time.Now()
	rs, err := x.q.Query(ctx, sql, args...)
	x.obs.Observe(ctx, sql, args, start, err)
	if err != nil {
		return nil, err
	}
	return rs, nil
}

// QueryRow is traced after Scan so the scan error is seen
func (x querier) QueryRow(ctx context.Context, sql string, args ...any) Row {
	start := time.Now()
	return tracedRow{
		row: x.q.QueryRow(ctx, sql, args...),
		done: func(err error) {
			x.obs.Observe(ctx, sql, args, start, err)
		},
	}
}

type tracedRow struct {
	row  pgx.Row
	done func(error)
}

func (r tracedRow) Scan(dest ...any) error {
	err := r.row.Scan(dest...)
	r.done(err)
	return err
}

// sqlDB is the postgres TxRunner
type sqlDB struct {
	querier
	pg *pg.PG
}

func newSQL(p *pg.PG) *sqlDB {
	return &sqlDB{querier: querier{q: p.Pool, obs: p}, pg: p}
}

func (d *sqlDB) Tx(ctx context.Context, fn func(q RowQuerier) error) error {
	tx, err := d.pg.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(querier{q: tx, obs: d.obs}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

func (d *sqlDB) Ping(ctx context.Context) error { return d.pg.Pool.Ping(ctx) }

func (d *sqlDB) Close() error {
	d.pg.Close()
	return nil
}
