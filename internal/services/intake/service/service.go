// Package service reads length-prefixed images from capture peers into the frame store
package service

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"sync/atomic"
	"time"

	"penwatch/internal/core/framestore"
	"penwatch/internal/platform/logger"
	"penwatch/internal/platform/wire"
)

// DefaultMaxFrameBytes caps one image payload
const DefaultMaxFrameBytes = 32 << 20

// Config tunes the per connection reader
type Config struct {
	// MaxFrameBytes rejects larger declared lengths, 0 means DefaultMaxFrameBytes
	MaxFrameBytes int
	// IdleTimeout closes a connection that sends nothing for this long, 0 disables
	IdleTimeout time.Duration
}

// Stats are lifetime counters across all connections
type Stats struct {
	Conns      uint64 `json:"conns"`
	Frames     uint64 `json:"frames"`
	Bytes      uint64 `json:"bytes"`
	Keepalives uint64 `json:"keepalives"`
	Short      uint64 `json:"short"`
	Oversized  uint64 `json:"oversized"`
	Idle       uint64 `json:"idle"`
}

// Service implements tcp.Handler for the image channel
type Service struct {
	store *framestore.Store
	cfg   Config

	conns      atomic.Uint64
	frames     atomic.Uint64
	bytes      atomic.Uint64
	keepalives atomic.Uint64
	short      atomic.Uint64
	oversized  atomic.Uint64
	idle       atomic.Uint64

	log *logger.Logger
}

// New builds the intake handler over store
func New(store *framestore.Store, cfg Config) *Service {
	if cfg.MaxFrameBytes <= 0 {
		cfg.MaxFrameBytes = DefaultMaxFrameBytes
	}
	return &Service{store: store, cfg: cfg, log: logger.Named("intake")}
}

// ServeConn implements tcp.Handler; it returns when the peer disconnects or misbehaves
func (s *Service) ServeConn(ctx context.Context, conn net.Conn) {
	s.conns.Add(1)
	remote := conn.RemoteAddr().String()

	var frames, bytes uint64
	start := time.Now()
	defer func() {
		s.log.Info().Str("remote", remote).Uint64("frames", frames).Uint64("bytes", bytes).
			Dur("connected", time.Since(start)).Msg("capture peer disconnected")
	}()
	s.log.Info().Str("remote", remote).Msg("capture peer connected")

	for ctx.Err() == nil {
		if s.cfg.IdleTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout))
		}
		data, err := wire.ReadFrame(conn, s.cfg.MaxFrameBytes)
		if err != nil {
			s.readFailed(remote, err)
			return
		}
		if len(data) == 0 {
			s.keepalives.Add(1)
			continue
		}

		f := s.store.Write(data, remote)
		frames++
		bytes += uint64(len(data))
		s.frames.Add(1)
		s.bytes.Add(uint64(len(data)))
		s.log.Debug().Str("remote", remote).Uint64("seq", f.Seq).Int("bytes", len(data)).Msg("frame stored")
	}
}

func (s *Service) readFailed(remote string, err error) {
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
		return
	case errors.Is(err, wire.ErrShortFrame):
		s.short.Add(1)
		s.log.Warn().Str("remote", remote).Msg("peer closed mid-frame, partial frame discarded")
	case errors.Is(err, wire.ErrFrameTooLarge):
		s.oversized.Add(1)
		s.log.Warn().Err(err).Str("remote", remote).Int("max", s.cfg.MaxFrameBytes).Msg("frame too large, closing")
	case errors.Is(err, os.ErrDeadlineExceeded):
		s.idle.Add(1)
		s.log.Info().Str("remote", remote).Dur("idle_timeout", s.cfg.IdleTimeout).Msg("capture peer idle, closing")
	default:
		s.log.Warn().Err(err).Str("remote", remote).Msg("image read failed")
	}
}

// Stats returns lifetime counters
func (s *Service) Stats() Stats {
	return Stats{
		Conns:      s.conns.Load(),
		Frames:     s.frames.Load(),
		Bytes:      s.bytes.Load(),
		Keepalives: s.keepalives.Load(),
		Short:      s.short.Load(),
		Oversized:  s.oversized.Load(),
		Idle:       s.idle.Load(),
	}
}
