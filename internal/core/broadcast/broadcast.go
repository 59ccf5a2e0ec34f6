// Package broadcast fans control lines out to every connected control peer.
//
// A peer whose send fails is dropped from the registry and closed; the
// remaining peers still receive the line and the caller never sees the
// individual failure. Mirrors (for example an MQTT topic) receive a copy of
// every line on a best-effort basis.
package broadcast

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"penwatch/internal/core/directive"
	perr "penwatch/internal/platform/errors"
	"penwatch/internal/platform/logger"
)

// Peer is one control connection able to receive lines
type Peer interface {
	ID() string
	RemoteAddr() string
	// Send writes line followed by a newline
	Send(line string) error
	Close() error
}

// Mirror receives a copy of every broadcast line
type Mirror interface {
	Name() string
	Publish(ctx context.Context, line string) error
}

// PeerInfo describes a registered peer
type PeerInfo struct {
	ID       string    `json:"id"`
	Remote   string    `json:"remote"`
	JoinedAt time.Time `json:"joined_at"`
	Sent     uint64    `json:"sent"`
}

// Report summarizes one broadcast
type Report struct {
	Line      string   `json:"line"`
	Delivered int      `json:"delivered"`
	Dropped   []string `json:"dropped,omitempty"`
}

type member struct {
	peer   Peer
	joined time.Time
	sent   atomic.Uint64
}

// Registry is the set of live control peers
type Registry struct {
	mu      sync.RWMutex
	members map[string]*member
	mirrors []Mirror

	broadcasts atomic.Uint64
	drops      atomic.Uint64

	log *logger.Logger
	now func() time.Time
}

// Option customizes a Registry
type Option func(*Registry)

// WithMirror adds a best-effort mirror
func WithMirror(m Mirror) Option {
	return func(r *Registry) {
		if m != nil {
			r.mirrors = append(r.mirrors, m)
		}
	}
}

// WithLogger overrides the component logger
func WithLogger(l *logger.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.log = l
		}
	}
}

// New returns an empty registry
func New(opts ...Option) *Registry {
	r := &Registry{
		members: make(map[string]*member),
		log:     logger.Named("broadcast"),
		now:     time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Add registers p; ids must be unique
func (r *Registry) Add(p Peer) error {
	if p == nil {
		return perr.New(perr.ErrorCodeInvalidArgument, "nil peer")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[p.ID()]; ok {
		return perr.Newf(perr.ErrorCodeConflict, "peer %s already registered", p.ID())
	}
	r.members[p.ID()] = &member{peer: p, joined: r.now()}
	r.log.Info().Str("peer_id", p.ID()).Str("remote", p.RemoteAddr()).Int("peers", len(r.members)).Msg("peer joined")
	return nil
}

// Remove deregisters and closes the peer with id
// It reports whether the peer was registered
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	m, ok := r.members[id]
	if ok {
		delete(r.members, id)
	}
	n := len(r.members)
	r.mu.Unlock()

	if !ok {
		return false
	}
	_ = m.peer.Close()
	r.log.Info().Str("peer_id", id).Int("peers", n).Msg("peer left")
	return true
}

// Len returns the number of registered peers
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// Peers lists registered peers ordered by join time
func (r *Registry) Peers() []PeerInfo {
	r.mu.RLock()
	out := make([]PeerInfo, 0, len(r.members))
	for id, m := range r.members {
		out = append(out, PeerInfo{ID: id, Remote: m.peer.RemoteAddr(), JoinedAt: m.joined, Sent: m.sent.Load()})
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out
}

// Counters returns lifetime broadcast and drop totals
func (r *Registry) Counters() (broadcasts, drops uint64) {
	return r.broadcasts.Load(), r.drops.Load()
}

// Broadcast sends d to every registered peer and mirror
// Peers that fail are removed and closed before Broadcast returns
func (r *Registry) Broadcast(ctx context.Context, d directive.Directive) Report {
	line := d.Line()
	rep := Report{Line: line}
	if line == "" {
		return rep
	}
	r.broadcasts.Add(1)

	r.mu.RLock()
	targets := make([]*member, 0, len(r.members))
	for _, m := range r.members {
		targets = append(targets, m)
	}
	r.mu.RUnlock()

	// sends happen outside the lock so a slow peer never blocks Add/Remove
	errs := make([]error, len(targets))
	var wg sync.WaitGroup
	for i, m := range targets {
		wg.Add(1)
		go func(i int, m *member) {
			defer wg.Done()
			errs[i] = m.peer.Send(line)
		}(i, m)
	}
	wg.Wait()

	for i, m := range targets {
		id := m.peer.ID()
		if errs[i] != nil {
			r.log.Warn().Err(errs[i]).Str("peer_id", id).Str("line", line).Msg("send failed, dropping peer")
			if r.Remove(id) {
				r.drops.Add(1)
			}
			rep.Dropped = append(rep.Dropped, id)
			continue
		}
		m.sent.Add(1)
		rep.Delivered++
	}

	for _, mr := range r.mirrors {
		if err := mr.Publish(ctx, line); err != nil {
			r.log.Warn().Err(err).Str("mirror", mr.Name()).Msg("mirror publish failed")
		}
	}

	r.log.Debug().Str("line", line).Int("delivered", rep.Delivered).Int("dropped", len(rep.Dropped)).Msg("broadcast")
	return rep
}

// CloseAll removes and closes every peer
func (r *Registry) CloseAll() {
	r.mu.Lock()
	members := r.members
	r.members = make(map[string]*member)
	r.mu.Unlock()

	for _, m := range members {
		_ = m.peer.Close()
	}
}
