// Package framestore holds the most recent image received from any capture
// peer and the copy currently handed to the analysis pipeline.
//
// Writers never block on readers: a Write replaces the latest slot and arms
// a single-slot pending signal. Bursts of writes collapse into one armed
// signal, so a slow consumer only ever sees the newest frame.
package framestore

import (
	"sync"
	"time"

	perr "penwatch/internal/platform/errors"
)

// ErrNoFrame is returned by Snapshot before the first Write
var ErrNoFrame = perr.New(perr.ErrorCodeNotFound, "no frame available yet")

// Frame is one complete image payload as received on the wire
// Data must not be modified once the frame has been written
type Frame struct {
	Seq        uint64
	Data       []byte
	Source     string
	ReceivedAt time.Time
}

// Empty reports whether f is the zero frame
func (f Frame) Empty() bool { return f.Seq == 0 }

// Stats is a point-in-time view of store counters
type Stats struct {
	Writes        uint64    `json:"writes"`
	Coalesced     uint64    `json:"coalesced"`
	LatestSeq     uint64    `json:"latest_seq"`
	LatestBytes   int       `json:"latest_bytes"`
	LatestAt      time.Time `json:"latest_at"`
	ProcessingSeq uint64    `json:"processing_seq"`
}

// Store is the shared latest/processing frame pair
type Store struct {
	mu         sync.Mutex
	seq        uint64
	latest     Frame
	processing Frame
	writes     uint64
	coalesced  uint64

	pending chan struct{}
	now     func() time.Time
}

// New returns an empty store
func New() *Store {
	return &Store{
		pending: make(chan struct{}, 1),
		now:     time.Now,
	}
}

// Write replaces the latest frame with data and arms the pending signal
// The store takes ownership of data; callers must not reuse the slice
func (s *Store) Write(data []byte, source string) Frame {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	f := Frame{Seq: s.seq, Data: data, Source: source, ReceivedAt: s.now()}
	s.latest = f
	s.writes++

	// arming under the lock keeps latest and the signal in step
	select {
	case s.pending <- struct{}{}:
	default:
		s.coalesced++
	}
	return f
}

// Snapshot copies the latest frame into the processing slot and returns it
func (s *Store) Snapshot() (Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.latest.Empty() {
		return Frame{}, ErrNoFrame
	}
	cp := s.latest
	cp.Data = append([]byte(nil), s.latest.Data...)
	s.processing = cp
	return cp, nil
}

// Processing returns the frame last handed out by Snapshot
func (s *Store) Processing() (Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processing, !s.processing.Empty()
}

// LatestSeq returns the sequence number of the latest frame, 0 when empty
func (s *Store) LatestSeq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest.Seq
}

// Pending delivers one value per armed signal
func (s *Store) Pending() <-chan struct{} { return s.pending }

// Drain disarms the pending signal without blocking
// It reports whether a signal was armed
func (s *Store) Drain() bool {
	select {
	case <-s.pending:
		return true
	default:
		return false
	}
}

// Stats returns a copy of the store counters
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Writes:        s.writes,
		Coalesced:     s.coalesced,
		LatestSeq:     s.latest.Seq,
		LatestBytes:   len(s.latest.Data),
		LatestAt:      s.latest.ReceivedAt,
		ProcessingSeq: s.processing.Seq,
	}
}
