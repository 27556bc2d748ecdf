package relay

import (
	"bytes"
	"errors"
	"io"
	"net"
)

const (
	reasonDisconnected = "peer disconnected"
	reasonShutdown     = "server is stopping"
	reasonIOError      = "I/O error"
)

// hold - runs session of registered peer until the peer leaves or the server stops.
func (s *Server) hold(p Peer) {
	addr := formatAddress(p.RemoteAddr())
	logInfo(s.logger, "session", p.ID(), "connected", addr)

	reason, err := s.receive(p)

	// Leave registry before closing, so broadcasts stop targeting the peer.
	s.peers.remove(p)
	p.Close()

	if err != nil {
		logWarn(s.logger, "session", p.ID(), addr, reason+":", err)
		return
	}
	logInfo(s.logger, "session", p.ID(), addr, reason)
}

// receive - the read loop. Returns close reason and error, if reason is I/O error.
func (s *Server) receive(p Peer) (string, error) {
	buf := make([]byte, s.bufSize)
	for s.running.Load() {
		n, err := p.Read(buf)
		if n > 0 {
			s.print(p.RemoteAddr(), buf[:n])
			s.relay(p, buf[:n])
		}
		if err == nil {
			continue
		}
		switch {
		case !s.running.Load():
			return reasonShutdown, nil
		case errors.Is(err, io.EOF):
			return reasonDisconnected, nil
		default:
			return reasonIOError, err
		}
	}
	return reasonShutdown, nil
}

// print - writes "[ip:port] " prefixed chunk to the console as a single write.
func (s *Server) print(addr net.Addr, chunk []byte) {
	record := bytes.Buffer{}
	record.Grow(len(chunk) + 32)
	record.WriteByte('[')
	if addr != nil {
		record.WriteString(addr.String())
	}
	record.WriteString("] ")
	record.Write(chunk)

	s.consoleMu.Lock()
	defer s.consoleMu.Unlock()
	s.console.Write(record.Bytes())
}
