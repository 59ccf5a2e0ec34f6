// Package tcp is a small accept-loop server: one goroutine per connection,
// graceful shutdown that closes the listener and every live connection.
package tcp

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	perr "penwatch/internal/platform/errors"
	"penwatch/internal/platform/logger"
)

// Handler serves one accepted connection; the server closes conn after it returns
type Handler interface {
	ServeConn(ctx context.Context, conn net.Conn)
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(ctx context.Context, conn net.Conn)

// ServeConn calls fn
func (fn HandlerFunc) ServeConn(ctx context.Context, conn net.Conn) { fn(ctx, conn) }

// Server accepts connections on addr and hands each to h
type Server struct {
	name string
	addr string
	h    Handler

	mu     sync.Mutex
	ln     net.Listener
	conns  map[net.Conn]struct{}
	closed bool
	wg     sync.WaitGroup

	log *logger.Logger
}

// NewServer builds a server; name labels its logs
func NewServer(name, addr string, h Handler) *Server {
	return &Server{
		name:  name,
		addr:  addr,
		h:     h,
		conns: make(map[net.Conn]struct{}),
		log:   logger.Named(name),
	}
}

// Listen binds the listening socket
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return nil
	}
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "%s: listen on %s", s.name, s.addr)
	}
	s.ln = ln
	return nil
}

// Addr returns the bound address, or nil before Listen
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Name returns the server label
func (s *Server) Name() string { return s.name }

// Run listens (if needed) and serves until ctx is done, then shuts down
func (s *Server) Run(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(sctx)
	})
	defer stop()

	err := s.serve(ctx)
	if s.isClosed() {
		s.wg.Wait()
	}
	return err
}

func (s *Server) serve(ctx context.Context) error {
	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()

	s.log.Info().Str("addr", ln.Addr().String()).Msg("tcp listening")

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isClosed() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				backoff = nextBackoff(backoff)
				s.log.Warn().Err(err).Dur("retry_in", backoff).Msg("accept error")
				time.Sleep(backoff)
				continue
			}
			return perr.Wrapf(err, perr.ErrorCodeUnavailable, "%s: accept", s.name)
		}
		backoff = 0

		if !s.track(conn) {
			_ = conn.Close()
			return nil
		}
		s.wg.Add(1)
		go s.handle(ctx, conn)
	}
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	defer s.untrack(conn)
	defer conn.Close()

	remote := conn.RemoteAddr().String()
	s.log.Debug().Str("remote", remote).Msg("connection accepted")
	defer func() {
		if v := recover(); v != nil {
			s.log.Error().Interface("panic", v).Str("remote", remote).Msg("connection handler panicked")
		}
	}()
	s.h.ServeConn(ctx, conn)
}

func (s *Server) track(c net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[c] = struct{}{}
	return true
}

func (s *Server) untrack(c net.Conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Conns returns the number of live connections
func (s *Server) Conns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Shutdown closes the listener and all connections, then waits for handlers
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	if s.ln != nil {
		_ = s.ln.Close()
	}
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.log.Info().Msg("tcp server stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}
	d *= 2
	if d > time.Second {
		d = time.Second
	}
	return d
}
