// Package store opens the optional journal backends
package store

import (
	"context"
	"errors"
	"time"

	"penwatch/internal/platform/logger"
	"penwatch/internal/platform/store/ch"
	"penwatch/internal/platform/store/pg"
)

// Store holds whichever backends were enabled, nil fields are off
type Store struct {
	Log logger.Logger

	PG TxRunner
	CH Clickhouse
}

// Row is a single result row
type Row interface {
	Scan(dest ...any) error
}

// Rows iterates a result set
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

// CommandTag reports what a statement touched
type CommandTag interface {
	RowsAffected() int64
}

// RowQuerier is the sql surface repos are written against
type RowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) Row
}

// TxRunner runs fn inside one transaction, rolling back when it fails
type TxRunner interface {
	RowQuerier
	Tx(ctx context.Context, fn func(q RowQuerier) error) error
}

// Clickhouse is the columnar write surface, *ch.CH satisfies it
type Clickhouse interface {
	Exec(ctx context.Context, sql string, args ...any) error
	Insert(ctx context.Context, table string, rows [][]any) error
	Ping(ctx context.Context) error
	Close() error
}

var _ Clickhouse = (*ch.CH)(nil)

// Config selects and configures the backends
type Config struct {
	AppName string

	PG PGConfig
	CH CHConfig
}

// PGConfig configures postgres
type PGConfig struct {
	Enabled     bool
	URL         string
	MaxConns    int32
	LogSQL      bool
	SlowQueryMs int

	ConnectRetries int
	PingTimeout    time.Duration
}

// CHConfig configures clickhouse
type CHConfig struct {
	Enabled     bool
	URL         string
	Role        string
	DialTimeout time.Duration
}

// Option mutates the Store before backends open
type Option func(*Store)

// WithLogger sets the logger handed to backends
func WithLogger(l logger.Logger) Option {
	return func(s *Store) { s.Log = l }
}

var (
	openPG = pg.Open
	openCH = ch.Open
)

// Open connects every enabled backend, closing the ones already open on failure
func Open(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	s := &Store{Log: logger.Logger{}}
	for _, o := range opts {
		o(s)
	}

	if cfg.PG.Enabled {
		var tr pg.QueryTracer
		if cfg.PG.LogSQL {
			tr = pg.Tracer(s.Log)
		}
		p, err := openPG(ctx, pg.Config{
			URL:            cfg.PG.URL,
			MaxConns:       cfg.PG.MaxConns,
			SlowMs:         cfg.PG.SlowQueryMs,
			ConnectRetries: cfg.PG.ConnectRetries,
			PingTimeout:    cfg.PG.PingTimeout,
		}, tr)
		if err != nil {
			return nil, err
		}
		s.PG = newSQL(p)
	}

	if cfg.CH.Enabled {
		c, err := openCH(ctx, ch.Config{
			URL:         cfg.CH.URL,
			Role:        cfg.CH.Role,
			Tag:         cfg.AppName,
			DialTimeout: cfg.CH.DialTimeout,
		})
		if err != nil {
			_ = s.Close(ctx)
			return nil, err
		}
		s.CH = c
	}

	s.Log.Debug().Bool("pg", s.PG != nil).Bool("ch", s.CH != nil).Msg("store open")
	return s, nil
}

// Close closes every open backend
func (s *Store) Close(context.Context) error {
	var errs []error
	if s.CH != nil {
		errs = append(errs, s.CH.Close())
	}
	if c, ok := s.PG.(interface{ Close() error }); ok {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
