package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wtask/echo/pkg/background"
)

const (
	defaultBufferSize = 4096
	maxAcceptDelay    = time.Second
)

// Server - accepts peers from any number of listeners and relays their data according to Config.
type Server struct {
	cfg    Config
	policy Policy

	logger    Logger
	console   io.Writer
	consoleMu sync.Mutex
	bufSize   int
	maxPeers  int

	running  atomic.Bool
	peers    *registry
	sessions *background.Scope

	mu        sync.Mutex
	listeners map[io.Closer]struct{}
}

// New - builds Server ready to serve listeners.
func New(cfg Config, options ...serverOption) (*Server, error) {
	s := &Server{
		cfg:       cfg,
		policy:    cfg.Policy(),
		console:   os.Stdout,
		bufSize:   defaultBufferSize,
		peers:     newRegistry(),
		listeners: make(map[io.Closer]struct{}),
	}
	if err := setup(s, options...); err != nil {
		return nil, err
	}
	sessions, _, err := background.NewBoundedScope(s.maxPeers)
	if err != nil {
		return nil, fmt.Errorf("relay.New: %w", err)
	}
	s.sessions = sessions
	s.running.Store(true)
	return s, nil
}

// Listen - binds TCP listener on all IPv4 interfaces.
// Go runtime enables SO_REUSEADDR for listening sockets.
func Listen(ctx context.Context, port int) (net.Listener, error) {
	lc := net.ListenConfig{}
	l, err := lc.Listen(ctx, "tcp4", net.JoinHostPort("0.0.0.0", strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("relay.Listen: %w", err)
	}
	return l, nil
}

// Config - returns configuration the server was built with.
func (s *Server) Config() Config {
	return s.cfg
}

// Peers - returns number of currently kept peers.
func (s *Server) Peers() int {
	return s.peers.len()
}

// Running - reports whether the server was not stopped yet.
func (s *Server) Running() bool {
	return s.running.Load()
}

// Serve - accepts connections from the listener and keeps them until Shutdown.
// Listener is closed on Shutdown. Always returns non-nil error, ErrServerClosed after Shutdown.
func (s *Server) Serve(listener net.Listener) error {
	if listener == nil {
		return errors.New("relay.Server: listener is nil")
	}
	if !s.track(listener) {
		listener.Close()
		return ErrServerClosed
	}
	defer s.untrack(listener)

	var delay time.Duration
	for {
		// close listener to stop infinite loop.
		conn, err := listener.Accept()
		if err != nil {
			if !s.running.Load() {
				return ErrServerClosed
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			delay = acceptDelay(delay)
			logError(s.logger, "accept:", err, "retrying in", delay)
			select {
			case <-time.After(delay):
			case <-s.sessions.Context().Done():
			}
			continue
		}
		delay = 0

		if err := s.Keep(NewConnPeer(conn)); err != nil {
			conn.Close()
			if errors.Is(err, ErrServerClosed) {
				return ErrServerClosed
			}
			logError(s.logger, "keep", formatAddress(conn.RemoteAddr())+":", err)
		}
	}
}

func acceptDelay(prev time.Duration) time.Duration {
	if prev == 0 {
		return 5 * time.Millisecond
	}
	if prev *= 2; prev > maxAcceptDelay {
		return maxAcceptDelay
	}
	return prev
}

// Keep - registers peer and starts its session in background.
// When server runs with peer limit, Keep blocks until free slot is available.
// After Keep returned nil, the peer is registered and takes part in broadcasts.
func (s *Server) Keep(p Peer) error {
	if p == nil {
		return errors.New("relay.Server: peer is nil")
	}
	if !s.running.Load() {
		return ErrServerClosed
	}
	registered := make(chan error, 1)
	err := s.sessions.Go(func(context.Context) {
		if err := s.peers.add(p); err != nil {
			registered <- err
			return
		}
		registered <- nil
		s.hold(p)
	})
	if err != nil {
		return ErrServerClosed
	}
	return <-registered
}

// Shutdown - stops accepting, closes all kept peers and waits their sessions no longer than timeout.
// Returns duration of stopping, it is zero if the server was stopped already.
func (s *Server) Shutdown(timeout time.Duration) time.Duration {
	if !s.running.CompareAndSwap(true, false) {
		return 0
	}
	from := time.Now()

	s.closeListeners()
	s.sessions.Cancel()
	for _, p := range s.peers.drain() {
		p.Close()
	}
	if !s.sessions.WaitTimeout(timeout) {
		logWarn(s.logger, "some sessions are still running after", timeout)
	}
	return time.Since(from)
}

func (s *Server) track(c io.Closer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running.Load() {
		return false
	}
	s.listeners[c] = struct{}{}
	return true
}

func (s *Server) untrack(c io.Closer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.listeners, c)
}

func (s *Server) closeListeners() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.listeners {
		if err := c.Close(); err != nil {
			logWarn(s.logger, "closing listener:", err)
		}
	}
}
