// Package pg opens the postgres pool behind the cycle journal
package pg

import (
	"context"
	"time"

	perr "penwatch/internal/platform/errors"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Config configures the pool and the readiness wait
type Config struct {
	URL      string
	MaxConns int32

	// SlowMs marks traced statements at or above it as slow, negative disables
	SlowMs int

	// ConnectRetries bounds readiness pings, default 20
	ConnectRetries int
	// PingTimeout bounds a single ping, default 3s
	PingTimeout time.Duration
}

// PG is a ready pool plus its optional tracer
type PG struct {
	Pool   *pgxpool.Pool
	Tracer QueryTracer
	SlowMs int
}

var (
	newPool = pgxpool.NewWithConfig
	ping    = func(ctx context.Context, p *pgxpool.Pool) error { return p.Ping(ctx) }

	retryStart = 150 * time.Millisecond
	retryMax   = 2 * time.Second
)

// Open builds the pool and waits until postgres answers a ping
func Open(ctx context.Context, cfg Config, tracer QueryTracer) (*PG, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeInvalidArgument, "postgres dsn")
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}

	pool, err := newPool(ctx, pcfg)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "postgres pool")
	}
	if err := waitReady(ctx, pool, cfg); err != nil {
		pool.Close()
		return nil, err
	}
	return &PG{Pool: pool, Tracer: tracer, SlowMs: cfg.SlowMs}, nil
}

func waitReady(ctx context.Context, pool *pgxpool.Pool, cfg Config) error {
	tries := cfg.ConnectRetries
	if tries <= 0 {
		tries = 20
	}
	timeout := cfg.PingTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = retryStart
	eb.MaxInterval = retryMax
	eb.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(tries-1)), ctx)

	err := backoff.Retry(func() error {
		pctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return ping(pctx, pool)
	}, policy)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "postgres not ready after %d pings", tries)
	}
	return nil
}

// Observe reports one finished statement to the tracer
func (p *PG) Observe(ctx context.Context, sql string, args []any, start time.Time, err error) {
	if p == nil || p.Tracer == nil {
		return
	}
	us := time.Since(start).Microseconds()
	p.Tracer.OnQuery(ctx, QueryEvent{
		SQL:       sql,
		Args:      args,
		ElapsedUS: us,
		Err:       err,
		Slow:      p.SlowMs >= 0 && us >= int64(p.SlowMs)*1000,
	})
}

// Close releases the pool, safe on nil
func (p *PG) Close() {
	if p != nil && p.Pool != nil {
		p.Pool.Close()
	}
}
