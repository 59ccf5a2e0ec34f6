package module

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"net"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"penwatch/internal/core/framestore"
	"penwatch/internal/core/gate"
	"penwatch/internal/core/trigger"
	"penwatch/internal/platform/net/tcp"
	"penwatch/internal/platform/testkit"
	"penwatch/internal/platform/wire"
	intake "penwatch/internal/services/intake/service"
)

// startIntake serves the image channel into the stack's store
func (s *stack) startIntake(t *testing.T) (*intake.Service, string) {
	t.Helper()
	svc := intake.New(s.store, intake.Config{})
	srv := tcp.NewServer("intake", "127.0.0.1:0", svc)
	if err := srv.Listen(); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return svc, srv.Addr().String()
}

func TestCaptureFlow_PauseTextAndPeerResume(t *testing.T) {
	var calls atomic.Int32
	var lastSeq atomic.Uint64
	s := start(t, trigger.AnalyzerFunc(func(ctx context.Context, f framestore.Frame) (trigger.Result, error) {
		lastSeq.Store(f.Seq)
		if calls.Add(1) == 1 {
			time.Sleep(200 * time.Millisecond)
			return trigger.Result{Count: 2, Answer: "hi"}, nil
		}
		return trigger.Result{}, nil
	}))
	svc, intakeAddr := s.startIntake(t)

	type peer struct {
		conn net.Conn
		r    *bufio.Reader
	}
	var peers []peer
	for i := 0; i < 3; i++ {
		c, r := s.dial(t)
		peers = append(peers, peer{c, r})
	}

	cam, err := net.Dial("tcp", intakeAddr)
	if err != nil {
		t.Fatalf("Dial intake: %v", err)
	}
	t.Cleanup(func() { _ = cam.Close() })
	if err := wire.WriteFrame(cam, []byte("frame-1")); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	for i, p := range peers {
		for _, want := range []string{"PAUSE", "TEXT:hi"} {
			if got := readLine(t, p.conn, p.r); got != want {
				t.Fatalf("peer %d line = %q, want %q", i, got, want)
			}
		}
	}
	if s.gate.State() != gate.Paused {
		t.Fatalf("gate = %v, want paused", s.gate.State())
	}

	// a frame while paused waits at the gate
	if err := wire.WriteFrame(cam, []byte("frame-2")); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	testkit.Eventually(t, time.Second, func() bool {
		return s.store.LatestSeq() == 2 && s.trig.State() == trigger.Gated
	}, "second frame held at the gate")

	// a frame cut short leaves the latest frame alone
	torn, err := net.Dial("tcp", intakeAddr)
	if err != nil {
		t.Fatalf("Dial intake: %v", err)
	}
	var hdr [wire.HeaderSize]byte
	binary.BigEndian.PutUint32(hdr[:], 10)
	_, _ = torn.Write(append(hdr[:], "abc"...))
	_ = torn.Close()
	testkit.Eventually(t, time.Second, func() bool { return svc.Stats().Short == 1 }, "short frame counted")
	if s.store.LatestSeq() != 2 || calls.Load() != 1 {
		t.Fatalf("latest = %d calls = %d", s.store.LatestSeq(), calls.Load())
	}

	if _, err := peers[1].conn.Write([]byte("resume\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	testkit.Eventually(t, time.Second, func() bool { return calls.Load() == 2 }, "armed cycle ran after peer resume")
	if lastSeq.Load() != 2 {
		t.Fatalf("resumed cycle seq = %d, want 2", lastSeq.Load())
	}

	// a peer resume is not echoed to the other peers
	_ = peers[0].conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if line, err := peers[0].r.ReadString('\n'); !errors.Is(err, os.ErrDeadlineExceeded) {
		t.Fatalf("peer 0 got %q err %v, want read timeout", line, err)
	}
}
