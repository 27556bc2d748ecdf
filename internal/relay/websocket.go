package relay

import (
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const closeGracePeriod = time.Second

// wsPeer - Peer over WebSocket connection.
// Every Write is sent as single binary message, incoming messages are read as continuous stream.
type wsPeer struct {
	id   string
	conn *websocket.Conn
	r    io.Reader

	wmu       sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func newWebSocketPeer(conn *websocket.Conn) *wsPeer {
	return &wsPeer{
		id:   uuid.NewString(),
		conn: conn,
	}
}

func (p *wsPeer) ID() string {
	return p.id
}

func (p *wsPeer) RemoteAddr() net.Addr {
	return p.conn.RemoteAddr()
}

func (p *wsPeer) Read(b []byte) (int, error) {
	for {
		if p.r == nil {
			_, r, err := p.conn.NextReader()
			if err != nil {
				closeErr := &websocket.CloseError{}
				if errors.As(err, &closeErr) {
					return 0, io.EOF
				}
				return 0, err
			}
			p.r = r
		}
		n, err := p.r.Read(b)
		if errors.Is(err, io.EOF) {
			p.r = nil
			if n == 0 {
				continue
			}
			err = nil
		}
		return n, err
	}
}

func (p *wsPeer) Write(b []byte) (int, error) {
	p.wmu.Lock()
	defer p.wmu.Unlock()
	if err := p.conn.WriteMessage(websocket.BinaryMessage, b); err != nil {
		return 0, err
	}
	return len(b), nil
}

// Close - sends close frame (best effort) and closes underlying connection.
func (p *wsPeer) Close() error {
	p.closeOnce.Do(func() {
		p.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeGracePeriod),
		)
		p.closeErr = p.conn.Close()
	})
	return p.closeErr
}

// WebSocketHandler - upgrades HTTP requests to WebSocket and keeps them as peers,
// so browser clients take part in echo and broadcast as any TCP client.
func (s *Server) WebSocketHandler() http.Handler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  s.bufSize,
		WriteBufferSize: s.bufSize,
		CheckOrigin:     func(*http.Request) bool { return true },
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// upgrader has replied with HTTP error already
			logWarn(s.logger, "websocket upgrade", r.RemoteAddr+":", err)
			return
		}
		if err := s.Keep(newWebSocketPeer(conn)); err != nil {
			conn.Close()
		}
	})
}

// ServeWebSocket - serves WebSocket peers on the listener until Shutdown.
// Always returns non-nil error, ErrServerClosed after Shutdown.
func (s *Server) ServeWebSocket(listener net.Listener) error {
	if listener == nil {
		return errors.New("relay.Server: listener is nil")
	}
	srv := &http.Server{
		Handler:           s.WebSocketHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if !s.track(srv) {
		listener.Close()
		return ErrServerClosed
	}
	defer s.untrack(srv)

	err := srv.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return ErrServerClosed
	}
	return err
}
