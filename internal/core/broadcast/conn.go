package broadcast

import (
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ConnPeer adapts a net.Conn into a Peer
// Concurrent Sends are serialized so lines never interleave
type ConnPeer struct {
	id      string
	conn    net.Conn
	timeout time.Duration

	mu        sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// NewConnPeer wraps conn with a fresh id; timeout bounds each write (0 disables)
func NewConnPeer(conn net.Conn, timeout time.Duration) *ConnPeer {
	return &ConnPeer{id: uuid.NewString(), conn: conn, timeout: timeout}
}

// ID returns the peer id
func (p *ConnPeer) ID() string { return p.id }

// RemoteAddr returns the remote address of the connection
func (p *ConnPeer) RemoteAddr() string {
	if a := p.conn.RemoteAddr(); a != nil {
		return a.String()
	}
	return ""
}

// Send writes line and a trailing newline
func (p *ConnPeer) Send(line string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.timeout > 0 {
		if err := p.conn.SetWriteDeadline(time.Now().Add(p.timeout)); err != nil {
			return err
		}
	}
	_, err := p.conn.Write([]byte(line + "\n"))
	return err
}

// Close closes the connection once
func (p *ConnPeer) Close() error {
	p.closeOnce.Do(func() { p.closeErr = p.conn.Close() })
	return p.closeErr
}
