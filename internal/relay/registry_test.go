package relay

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAddr string

func (a fakeAddr) Network() string { return "fake" }
func (a fakeAddr) String() string  { return string(a) }

// fakePeer - in-memory Peer, records everything written to it.
type fakePeer struct {
	id     string
	fail   bool
	mu     sync.Mutex
	buf    bytes.Buffer
	closed int32
}

func newFakePeer(id string) *fakePeer {
	return &fakePeer{id: id}
}

func (p *fakePeer) ID() string               { return p.id }
func (p *fakePeer) RemoteAddr() net.Addr     { return fakeAddr(p.id) }
func (p *fakePeer) Read([]byte) (int, error) { return 0, io.EOF }

func (p *fakePeer) Write(b []byte) (int, error) {
	if p.fail || atomic.LoadInt32(&p.closed) > 0 {
		return 0, errors.New("fake peer: write failed")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.Write(b)
}

func (p *fakePeer) Close() error {
	atomic.AddInt32(&p.closed, 1)
	return nil
}

func (p *fakePeer) received() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.String()
}

func TestRegistry_AddRemove(test *testing.T) {
	r := newRegistry()
	p1, p2, p3 := newFakePeer("p1"), newFakePeer("p2"), newFakePeer("p3")

	require.NoError(test, r.add(p1))
	require.NoError(test, r.add(p2))
	require.NoError(test, r.add(p3))
	assert.ErrorIs(test, r.add(p2), ErrPeerKept)
	assert.Equal(test, []Peer{p1, p2, p3}, r.snapshot())

	assert.True(test, r.remove(p2))
	assert.False(test, r.remove(p2), "remove must be idempotent")
	assert.Equal(test, []Peer{p1, p3}, r.snapshot())
	assert.False(test, r.contains(p2))
	assert.Equal(test, 2, r.len())
}

func TestRegistry_ConcurrentMembership(test *testing.T) {
	r := newRegistry()
	const workers = 64
	kept := make([]*fakePeer, workers)
	wg := sync.WaitGroup{}
	for i := 0; i < workers; i++ {
		kept[i] = newFakePeer(fmt.Sprintf("peer-%d", i))
		wg.Add(1)
		go func(p *fakePeer, leave bool) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				assert.NoError(test, r.add(p))
				assert.ErrorIs(test, r.add(p), ErrPeerKept)
				if !leave && j == 49 {
					return
				}
				assert.True(test, r.remove(p))
				assert.False(test, r.contains(p))
			}
		}(kept[i], i%2 == 0)
	}
	wg.Wait()

	snapshot := r.snapshot()
	assert.Len(test, snapshot, workers/2)
	seen := map[Peer]bool{}
	for _, p := range snapshot {
		assert.False(test, seen[p], "duplicate peer %s", p.ID())
		seen[p] = true
	}
	for i, p := range kept {
		assert.Equal(test, i%2 != 0, seen[p], p.id)
	}
}

func TestRegistry_Broadcast(test *testing.T) {
	r := newRegistry()
	good1, broken, good2 := newFakePeer("good1"), newFakePeer("broken"), newFakePeer("good2")
	broken.fail = true
	for _, p := range []Peer{good1, broken, good2} {
		require.NoError(test, r.add(p))
	}

	assert.Equal(test, 2, r.broadcast([]byte("hello\n")))
	assert.Equal(test, "hello\n", good1.received())
	assert.Equal(test, "hello\n", good2.received())
	assert.Equal(test, "", broken.received())
}

func TestRegistry_BroadcastToRemovedPeer(test *testing.T) {
	r := newRegistry()
	p := newFakePeer("gone")
	require.NoError(test, r.add(p))
	snapshot := r.snapshot()
	r.remove(p)
	p.Close()
	for _, kept := range snapshot {
		_, err := kept.Write([]byte("late"))
		assert.Error(test, err)
	}
	assert.Equal(test, 0, r.broadcast([]byte("late")))
}

func TestRegistry_Drain(test *testing.T) {
	r := newRegistry()
	p1, p2 := newFakePeer("p1"), newFakePeer("p2")
	require.NoError(test, r.add(p1))
	require.NoError(test, r.add(p2))

	assert.Equal(test, []Peer{p1, p2}, r.drain())
	assert.Equal(test, 0, r.len())
	assert.ErrorIs(test, r.add(newFakePeer("p3")), ErrServerClosed)
	assert.False(test, r.remove(p1))
}

// shortWriter - accepts at most 3 bytes per call.
type shortWriter struct{ bytes.Buffer }

func (w *shortWriter) Write(b []byte) (int, error) {
	if len(b) > 3 {
		b = b[:3]
	}
	return w.Buffer.Write(b)
}

func TestWriteAll(test *testing.T) {
	w := &shortWriter{}
	n, err := writeAll(w, []byte("hello world\n"))
	require.NoError(test, err)
	assert.Equal(test, 12, n)
	assert.Equal(test, "hello world\n", w.String())
}

func TestConfig_Policy(test *testing.T) {
	cases := []struct {
		cfg      Config
		expected Policy
	}{
		{Config{}, PolicyNone},
		{Config{Echo: true}, PolicyEcho},
		{Config{Broadcast: true}, PolicyBroadcast},
		{Config{Echo: true, Broadcast: true}, PolicyBroadcast},
	}
	for _, c := range cases {
		assert.Equal(test, c.expected, c.cfg.Policy(), "%+v", c.cfg)
	}
	assert.Equal(test, "broadcast", PolicyBroadcast.String())
	assert.Equal(test, "echo", PolicyEcho.String())
	assert.Equal(test, "none", PolicyNone.String())
}

func TestServer_relay(test *testing.T) {
	cases := []struct {
		cfg                    Config
		sender, other, outside string
	}{
		{Config{Broadcast: true}, "data", "data", ""},
		{Config{Echo: true, Broadcast: true}, "data", "data", ""},
		{Config{Echo: true}, "data", "", ""},
		{Config{}, "", "", ""},
	}
	for _, c := range cases {
		s, err := New(c.cfg, WithConsole(io.Discard))
		require.NoError(test, err)
		sender, other, outside := newFakePeer("sender"), newFakePeer("other"), newFakePeer("outside")
		require.NoError(test, s.peers.add(sender))
		require.NoError(test, s.peers.add(other))

		s.relay(sender, []byte("data"))

		assert.Equal(test, c.sender, sender.received(), "%+v sender", c.cfg)
		assert.Equal(test, c.other, other.received(), "%+v other", c.cfg)
		assert.Equal(test, c.outside, outside.received(), "%+v outside", c.cfg)
	}
}
