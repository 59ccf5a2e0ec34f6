package store

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"penwatch/internal/platform/store/ch"
	"penwatch/internal/platform/store/pg"
	"penwatch/internal/platform/testkit"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

type seen struct {
	sql string
	err error
	at  time.Time
}

type recObs struct{ got []seen }

func (r *recObs) Observe(_ context.Context, sql string, _ []any, start time.Time, err error) {
	r.got = append(r.got, seen{sql: sql, err: err, at: start})
}

type scanFn func(dest ...any) error

func (f scanFn) Scan(dest ...any) error { return f(dest...) }

type fakeRows struct{ pgx.Rows }

type fakePgx struct{ err error }

func (f fakePgx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag("INSERT 0 3"), f.err
}

func (f fakePgx) Query(context.Context, string, ...any) (pgx.Rows, error) {
	if f.err != nil {
		return nil, f.err
	}
	return fakeRows{}, nil
}

func (f fakePgx) QueryRow(context.Context, string, ...any) pgx.Row {
	return scanFn(func(...any) error { return f.err })
}

func TestQuerier_TracesEachStatement(t *testing.T) {
	t.Parallel()

	obs := &recObs{}
	q := querier{q: fakePgx{}, obs: obs}
	ctx := context.Background()

	ct, err := q.Exec(ctx, "insert")
	if err != nil || ct.RowsAffected() != 3 {
		t.Fatalf("Exec = %v, %v", ct, err)
	}
	if rs, err := q.Query(ctx, "select many"); err != nil || rs == nil {
		t.Fatalf("Query = %v, %v", rs, err)
	}

	row := q.QueryRow(ctx, "select one")
	if len(obs.got) != 2 {
		t.Fatalf("QueryRow traced before Scan: %+v", obs.got)
	}
	if err := row.Scan(); err != nil {
		t.Fatalf("Scan: %v", err)
	}

	want := []string{"insert", "select many", "select one"}
	if len(obs.got) != len(want) {
		t.Fatalf("traced %d statements, want %d", len(obs.got), len(want))
	}
	for i, w := range want {
		if obs.got[i].sql != w || obs.got[i].at.IsZero() {
			t.Fatalf("trace %d = %+v", i, obs.got[i])
		}
	}
}

func TestQuerier_Errors(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	obs := &recObs{}
	q := querier{q: fakePgx{err: boom}, obs: obs}
	ctx := context.Background()

	if _, err := q.Exec(ctx, "x"); !errors.Is(err, boom) {
		t.Fatalf("Exec err = %v", err)
	}
	rs, err := q.Query(ctx, "x")
	if !errors.Is(err, boom) || rs != nil {
		t.Fatalf("Query = %v, %v; want untyped nil rows", rs, err)
	}
	if err := q.QueryRow(ctx, "x").Scan(); !errors.Is(err, boom) {
		t.Fatalf("Scan err = %v", err)
	}
	for _, s := range obs.got {
		if !errors.Is(s.err, boom) {
			t.Fatalf("trace missing error: %+v", s)
		}
	}
}

func TestOpen_NothingEnabled(t *testing.T) {
	t.Parallel()

	s, err := Open(context.Background(), Config{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if s.PG != nil || s.CH != nil {
		t.Fatalf("backends = %v %v", s.PG, s.CH)
	}
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestOpen_PassesConfig(t *testing.T) {
	var (
		gotPG  pg.Config
		traced bool
		gotCH  ch.Config
	)
	testkit.Swap(t, &openPG, func(_ context.Context, c pg.Config, tr pg.QueryTracer) (*pg.PG, error) {
		gotPG, traced = c, tr != nil
		return &pg.PG{}, nil
	})
	testkit.Swap(t, &openCH, func(_ context.Context, c ch.Config) (*ch.CH, error) {
		gotCH = c
		return nil, errors.New("ch down")
	})

	var buf bytes.Buffer
	_, err := Open(context.Background(), Config{
		AppName: "penwatch",
		PG:      PGConfig{Enabled: true, URL: "pg://x", MaxConns: 3, LogSQL: true, SlowQueryMs: 9, ConnectRetries: 2},
		CH:      CHConfig{Enabled: true, URL: "ch://y", Role: "serve", DialTimeout: time.Second},
	}, WithLogger(zerolog.New(&buf)))
	if err == nil || err.Error() != "ch down" {
		t.Fatalf("err = %v", err)
	}

	if gotPG.URL != "pg://x" || gotPG.MaxConns != 3 || gotPG.SlowMs != 9 || gotPG.ConnectRetries != 2 || !traced {
		t.Fatalf("pg config = %+v traced=%v", gotPG, traced)
	}
	if gotCH.URL != "ch://y" || gotCH.Role != "serve" || gotCH.Tag != "penwatch" || gotCH.DialTimeout != time.Second {
		t.Fatalf("ch config = %+v", gotCH)
	}
}

func TestOpen_PGFailureStops(t *testing.T) {
	chOpened := false
	testkit.Swap(t, &openPG, func(context.Context, pg.Config, pg.QueryTracer) (*pg.PG, error) {
		return nil, errors.New("pg down")
	})
	testkit.Swap(t, &openCH, func(context.Context, ch.Config) (*ch.CH, error) {
		chOpened = true
		return &ch.CH{}, nil
	})

	_, err := Open(context.Background(), Config{PG: PGConfig{Enabled: true}, CH: CHConfig{Enabled: true}})
	if err == nil || chOpened {
		t.Fatalf("err = %v chOpened = %v", err, chOpened)
	}
}
