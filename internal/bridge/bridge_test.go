package bridge

import (
	"bytes"
	"context"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wtask/echo/internal/relay"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// startRelay - launches relay server on loopback and returns its address.
func startRelay(test *testing.T, cfg relay.Config) (*relay.Server, string) {
	test.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(test, err)
	s, err := relay.New(cfg, relay.WithConsole(io.Discard))
	require.NoError(test, err)
	go s.Serve(listener)
	test.Cleanup(func() { s.Shutdown(time.Second) })
	return s, listener.Addr().String()
}

func dial(test *testing.T, addr string) net.Conn {
	test.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(test, err)
	return conn
}

func runAsync(ctx context.Context, b *Bridge) <-chan error {
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()
	return done
}

func wait(test *testing.T, done <-chan error) error {
	test.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(3 * time.Second):
		test.Fatal("bridge is still running")
	}
	return nil
}

func TestNew(test *testing.T) {
	_, err := New(nil)
	assert.Error(test, err)

	conn, _ := net.Pipe()
	defer conn.Close()
	for _, option := range []bridgeOption{WithInput(nil), WithOutput(nil), WithLogger(nil), WithDrainTimeout(0)} {
		_, err := New(conn, option)
		assert.Error(test, err)
	}
}

func TestBridge_Echo(test *testing.T) {
	_, addr := startRelay(test, relay.Config{Echo: true})
	out := &syncBuffer{}
	b, err := New(dial(test, addr), WithInput(strings.NewReader("ping\nlast line without newline")), WithOutput(out))
	require.NoError(test, err)

	require.NoError(test, wait(test, runAsync(context.Background(), b)))
	assert.Equal(test, "ping\nlast line without newline\n", out.String())
}

func TestBridge_Broadcast(test *testing.T) {
	s, addr := startRelay(test, relay.Config{Broadcast: true})

	listenerOut := &syncBuffer{}
	idle, feed := io.Pipe()
	defer feed.Close()
	listener, err := New(dial(test, addr), WithInput(idle), WithOutput(listenerOut))
	require.NoError(test, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	listening := runAsync(ctx, listener)
	require.Eventually(test, func() bool { return s.Peers() == 1 }, time.Second, 5*time.Millisecond)

	senderOut := &syncBuffer{}
	sender, err := New(dial(test, addr), WithInput(strings.NewReader("hello\n")), WithOutput(senderOut))
	require.NoError(test, err)
	require.NoError(test, wait(test, runAsync(context.Background(), sender)))

	assert.Equal(test, "hello\n", senderOut.String())
	assert.Eventually(test, func() bool { return listenerOut.String() == "hello\n" }, time.Second, 5*time.Millisecond)

	cancel()
	assert.NoError(test, wait(test, listening))
}

func TestBridge_ServerClosed(test *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(test, err)
	defer listener.Close()
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		conn.Write([]byte("bye\n"))
		conn.Close()
	}()

	// input never ends, bridge must stop because of the server
	idle, feed := io.Pipe()
	defer feed.Close()
	out := &syncBuffer{}
	b, err := New(dial(test, listener.Addr().String()), WithInput(idle), WithOutput(out))
	require.NoError(test, err)

	assert.NoError(test, wait(test, runAsync(context.Background(), b)))
	assert.Equal(test, "bye\n", out.String())
}

func TestBridge_DrainTimeout(test *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(test, err)
	defer listener.Close()
	held := make(chan net.Conn, 1)
	go func() {
		conn, err := listener.Accept()
		if err == nil {
			held <- conn // never read, never close
		}
	}()

	b, err := New(
		dial(test, listener.Addr().String()),
		WithInput(strings.NewReader("")),
		WithOutput(io.Discard),
		WithDrainTimeout(50*time.Millisecond),
	)
	require.NoError(test, err)

	from := time.Now()
	assert.NoError(test, wait(test, runAsync(context.Background(), b)))
	assert.Less(test, time.Since(from), time.Second)

	select {
	case conn := <-held:
		conn.Close()
	case <-time.After(time.Second):
	}
}

func TestBridge_Cancel(test *testing.T) {
	_, addr := startRelay(test, relay.Config{})
	idle, feed := io.Pipe()
	defer feed.Close()
	b, err := New(dial(test, addr), WithInput(idle), WithOutput(io.Discard))
	require.NoError(test, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, b)
	time.Sleep(20 * time.Millisecond)
	cancel()
	assert.NoError(test, wait(test, done))
}

func TestWriteAll(test *testing.T) {
	out := &bytes.Buffer{}
	n, err := writeAll(out, []byte("line\n"))
	require.NoError(test, err)
	assert.Equal(test, 5, n)
	assert.Equal(test, "line\n", out.String())
}
