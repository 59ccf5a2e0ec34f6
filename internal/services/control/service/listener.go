// Package service implements the control peer listener and the operator console
package service

import (
	"bufio"
	"context"
	"net"
	"time"

	"penwatch/internal/core/broadcast"
	"penwatch/internal/core/coordinator"
	"penwatch/internal/core/directive"
	"penwatch/internal/platform/logger"
)

// MaxTokenBytes bounds one inbound token from a control peer
const MaxTokenBytes = 4 << 10

// Resumer is the part of the coordinator a control peer may drive
type Resumer interface {
	Resume(ctx context.Context, src coordinator.Source) coordinator.Outcome
}

// ListenerConfig tunes control connections
type ListenerConfig struct {
	// WriteTimeout bounds one outbound line, 0 disables
	WriteTimeout time.Duration
}

// Listener implements tcp.Handler for the control channel
// Each connection joins the broadcast registry until it disconnects
type Listener struct {
	peers *broadcast.Registry
	ctl   Resumer
	cfg   ListenerConfig
	log   *logger.Logger
}

// NewListener builds the control handler
func NewListener(peers *broadcast.Registry, ctl Resumer, cfg ListenerConfig) *Listener {
	return &Listener{peers: peers, ctl: ctl, cfg: cfg, log: logger.Named("control")}
}

// ServeConn implements tcp.Handler
func (l *Listener) ServeConn(ctx context.Context, conn net.Conn) {
	p := broadcast.NewConnPeer(conn, l.cfg.WriteTimeout)
	if err := l.peers.Add(p); err != nil {
		l.log.Error().Err(err).Str("remote", p.RemoteAddr()).Msg("peer registration failed")
		return
	}
	defer l.peers.Remove(p.ID())

	sc := bufio.NewScanner(conn)
	sc.Buffer(make([]byte, 0, 256), MaxTokenBytes)
	sc.Split(bufio.ScanWords)

	for sc.Scan() {
		tok := sc.Text()
		kind, ok := directive.ParseToken(tok)
		if !ok {
			l.log.Debug().Str("peer_id", p.ID()).Str("token", tok).Msg("ignored control token")
			continue
		}
		if kind == directive.KindResume {
			out := l.ctl.Resume(ctx, coordinator.PeerSource(p.ID()))
			l.log.Info().Str("peer_id", p.ID()).Bool("changed", out.Changed).Msg("peer resumed capture")
		}
	}
	if err := sc.Err(); err != nil && ctx.Err() == nil {
		l.log.Warn().Err(err).Str("peer_id", p.ID()).Msg("control read failed")
	}
}
