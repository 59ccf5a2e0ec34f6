package broadcast

import (
	"bufio"
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"penwatch/internal/core/directive"
	perr "penwatch/internal/platform/errors"
)

type fakePeer struct {
	id   string
	fail error

	mu     sync.Mutex
	lines  []string
	closed bool
}

func (f *fakePeer) ID() string         { return f.id }
func (f *fakePeer) RemoteAddr() string { return "fake:" + f.id }
func (f *fakePeer) Send(line string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.lines = append(f.lines, line)
	return nil
}
func (f *fakePeer) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}
func (f *fakePeer) got() ([]string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.lines...), f.closed
}

type fakeMirror struct {
	mu    sync.Mutex
	lines []string
	err   error
}

func (m *fakeMirror) Name() string { return "fake" }
func (m *fakeMirror) Publish(_ context.Context, line string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines = append(m.lines, line)
	return m.err
}

func TestAddRemove(t *testing.T) {
	r := New()
	a := &fakePeer{id: "a"}
	if err := r.Add(a); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := r.Add(&fakePeer{id: "a"}); !perr.IsCode(err, perr.ErrorCodeConflict) {
		t.Fatalf("duplicate Add err = %v, want Conflict", err)
	}
	if err := r.Add(nil); err == nil {
		t.Fatalf("Add(nil) err = nil")
	}
	if r.Len() != 1 {
		t.Fatalf("Len = %d, want 1", r.Len())
	}
	if !r.Remove("a") {
		t.Fatalf("Remove(a) = false")
	}
	if r.Remove("a") {
		t.Fatalf("second Remove(a) = true")
	}
	if _, closed := a.got(); !closed {
		t.Fatalf("removed peer not closed")
	}
}

func TestBroadcast_FailingPeerIsDropped(t *testing.T) {
	mir := &fakeMirror{}
	r := New(WithMirror(mir))

	peers := []*fakePeer{{id: "p1"}, {id: "p2", fail: errors.New("broken pipe")}, {id: "p3"}}
	for _, p := range peers {
		if err := r.Add(p); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	rep := r.Broadcast(context.Background(), directive.Pause())
	if rep.Delivered != 2 || len(rep.Dropped) != 1 || rep.Dropped[0] != "p2" {
		t.Fatalf("Report = %+v, want 2 delivered and p2 dropped", rep)
	}
	for _, id := range []int{0, 2} {
		lines, _ := peers[id].got()
		if len(lines) != 1 || lines[0] != "PAUSE" {
			t.Fatalf("peer %s lines = %v, want [PAUSE]", peers[id].id, lines)
		}
	}
	if _, closed := peers[1].got(); !closed {
		t.Fatalf("failing peer not closed")
	}
	if r.Len() != 2 {
		t.Fatalf("Len = %d, want 2", r.Len())
	}

	// next broadcast only reaches survivors
	txt, _ := directive.Text("next")
	rep = r.Broadcast(context.Background(), txt)
	if rep.Delivered != 2 || len(rep.Dropped) != 0 {
		t.Fatalf("second Report = %+v", rep)
	}
	if len(mir.lines) != 2 || mir.lines[1] != "TEXT:next" {
		t.Fatalf("mirror lines = %v", mir.lines)
	}
	b, d := r.Counters()
	if b != 2 || d != 1 {
		t.Fatalf("Counters = %d,%d want 2,1", b, d)
	}
}

func TestBroadcast_MirrorFailureIgnored(t *testing.T) {
	r := New(WithMirror(&fakeMirror{err: errors.New("offline")}))
	p := &fakePeer{id: "p"}
	_ = r.Add(p)
	rep := r.Broadcast(context.Background(), directive.Resume())
	if rep.Delivered != 1 || r.Len() != 1 {
		t.Fatalf("Report = %+v, Len = %d", rep, r.Len())
	}
}

func TestBroadcast_EmptyLineIsSkipped(t *testing.T) {
	r := New()
	p := &fakePeer{id: "p"}
	_ = r.Add(p)
	rep := r.Broadcast(context.Background(), directive.Directive{Kind: directive.KindExit})
	if rep.Delivered != 0 {
		t.Fatalf("Delivered = %d, want 0", rep.Delivered)
	}
	if lines, _ := p.got(); len(lines) != 0 {
		t.Fatalf("lines = %v, want none", lines)
	}
}

func TestPeers_Listing(t *testing.T) {
	r := New()
	base := time.Unix(1700000000, 0)
	tick := 0
	r.now = func() time.Time { tick++; return base.Add(time.Duration(tick) * time.Second) }

	_ = r.Add(&fakePeer{id: "z"})
	_ = r.Add(&fakePeer{id: "a"})
	got := r.Peers()
	if len(got) != 2 || got[0].ID != "z" || got[1].ID != "a" {
		t.Fatalf("Peers = %+v, want join order z,a", got)
	}
	if got[0].Remote != "fake:z" {
		t.Fatalf("Remote = %q", got[0].Remote)
	}
}

func TestCloseAll(t *testing.T) {
	r := New()
	a, b := &fakePeer{id: "a"}, &fakePeer{id: "b"}
	_ = r.Add(a)
	_ = r.Add(b)
	r.CloseAll()
	if r.Len() != 0 {
		t.Fatalf("Len = %d, want 0", r.Len())
	}
	for _, p := range []*fakePeer{a, b} {
		if _, closed := p.got(); !closed {
			t.Fatalf("peer %s not closed", p.id)
		}
	}
}

func TestConnPeer_SendWritesLine(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	p := NewConnPeer(server, time.Second)
	if p.ID() == "" {
		t.Fatalf("empty id")
	}

	got := make(chan string, 1)
	go func() {
		line, _ := bufio.NewReader(client).ReadString('\n')
		got <- line
	}()
	if err := p.Send("TEXT:hi"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	select {
	case line := <-got:
		if line != "TEXT:hi\n" {
			t.Fatalf("line = %q, want %q", line, "TEXT:hi\n")
		}
	case <-time.After(time.Second):
		t.Fatalf("no line received")
	}

	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if err := p.Send("PAUSE"); err == nil {
		t.Fatalf("Send after Close err = nil")
	}
}

func TestConnPeer_WriteDeadline(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()
	defer server.Close()

	// nobody reads from client, so the write must time out
	p := NewConnPeer(server, 20*time.Millisecond)
	err := p.Send("PAUSE")
	var ne net.Error
	if !errors.As(err, &ne) || !ne.Timeout() {
		t.Fatalf("Send err = %v, want timeout", err)
	}
}
