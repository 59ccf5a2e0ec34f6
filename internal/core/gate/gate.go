// Package gate is the Running/Paused switch consulted by the processing trigger
package gate

import (
	"context"
	"sync"
	"time"
)

// State is the gate position
type State uint8

const (
	// Running lets the trigger start cycles
	Running State = iota
	// Paused blocks the trigger before its next cycle
	Paused
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Paused:
		return "paused"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name in JSON payloads
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Status describes the last transition
type Status struct {
	State       State     `json:"state"`
	Source      string    `json:"source,omitempty"`
	ChangedAt   time.Time `json:"changed_at,omitempty"`
	Transitions uint64    `json:"transitions"`
}

// Gate is safe for concurrent use
// The zero value is not usable, call New
type Gate struct {
	mu      sync.Mutex
	state   State
	source  string
	changed time.Time
	flips   uint64

	// closed while Running; replaced on every pause
	open chan struct{}
	now  func() time.Time
}

// New returns a gate in the Running state
func New() *Gate {
	open := make(chan struct{})
	close(open)
	return &Gate{state: Running, open: open, now: time.Now}
}

// Pause moves the gate to Paused and reports whether the state changed
func (g *Gate) Pause(source string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == Paused {
		return false
	}
	g.state = Paused
	g.open = make(chan struct{})
	g.mark(source)
	return true
}

// Resume moves the gate to Running and reports whether the state changed
func (g *Gate) Resume(source string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == Running {
		return false
	}
	g.state = Running
	close(g.open)
	g.mark(source)
	return true
}

func (g *Gate) mark(source string) {
	g.source = source
	g.changed = g.now()
	g.flips++
}

// State returns the current position
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Snapshot returns the current state with its last transition
func (g *Gate) Snapshot() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Status{State: g.state, Source: g.source, ChangedAt: g.changed, Transitions: g.flips}
}

// Wait returns immediately while Running, otherwise blocks until Resume or ctx is done
func (g *Gate) Wait(ctx context.Context) error {
	for {
		g.mu.Lock()
		open := g.open
		g.mu.Unlock()

		select {
		case <-open:
			// a pause may have landed between the close and this wakeup
			if g.State() == Running {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
