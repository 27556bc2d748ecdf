package relay

import (
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/google/uuid"
)

// Peer - handle of one connected remote side.
//
// Read is called only by the session owning the peer.
// Write must deliver the whole slice or fail and must be safe for concurrent use,
// since broadcasts from other sessions write to the same peer.
// Close must be idempotent and must unblock pending Read.
type Peer interface {
	io.ReadWriteCloser
	// ID - unique identifier of the peer handle.
	ID() string
	// RemoteAddr - address of the remote side.
	RemoteAddr() net.Addr
}

// connPeer - Peer over plain stream connection.
type connPeer struct {
	id   string
	conn net.Conn

	wmu       sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// NewConnPeer - wraps accepted connection into Peer handle.
func NewConnPeer(conn net.Conn) Peer {
	return &connPeer{
		id:   uuid.NewString(),
		conn: conn,
	}
}

func (p *connPeer) ID() string {
	return p.id
}

func (p *connPeer) RemoteAddr() net.Addr {
	return p.conn.RemoteAddr()
}

func (p *connPeer) Read(b []byte) (int, error) {
	return p.conn.Read(b)
}

func (p *connPeer) Write(b []byte) (int, error) {
	p.wmu.Lock()
	defer p.wmu.Unlock()
	return writeAll(p.conn, b)
}

// Close - shuts down both directions of TCP connection and releases it.
// Close does not wait for pending Write.
func (p *connPeer) Close() error {
	p.closeOnce.Do(func() {
		if tcp, ok := p.conn.(*net.TCPConn); ok {
			tcp.CloseRead()
			tcp.CloseWrite()
		}
		p.closeErr = p.conn.Close()
	})
	return p.closeErr
}

func (p *connPeer) String() string {
	return fmt.Sprintf("%s (%s)", p.id, formatAddress(p.conn.RemoteAddr()))
}

// writeAll - repeats writes until whole b is written or error occurs.
func writeAll(w io.Writer, b []byte) (int, error) {
	sent := 0
	for sent < len(b) {
		n, err := w.Write(b[sent:])
		sent += n
		if err != nil {
			return sent, err
		}
		if n == 0 {
			return sent, io.ErrShortWrite
		}
	}
	return sent, nil
}

// formatAddress - formats specified network address for logging purposes.
func formatAddress(a net.Addr) string {
	if a == nil {
		return "unknown"
	}
	return fmt.Sprintf("%s %s", a.Network(), a.String())
}
