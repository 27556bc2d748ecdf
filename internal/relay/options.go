package relay

import (
	"errors"
	"fmt"
	"io"
)

type serverOption func(s *Server) error

func setup(s *Server, options ...serverOption) error {
	if s == nil {
		return nil
	}
	for _, option := range options {
		if option == nil {
			continue
		}
		if err := option(s); err != nil {
			return err
		}
	}
	return nil
}

// WithLogger - attaches logger for diagnostic messages. Without logger server is silent.
func WithLogger(logger Logger) serverOption {
	return func(s *Server) error {
		if logger == nil {
			return errors.New("relay.WithLogger: logger is nil")
		}
		s.logger = logger
		return nil
	}
}

// WithConsole - overwrites destination of "[ip:port] data" records, os.Stdout by default.
// Use io.Discard to disable console.
func WithConsole(console io.Writer) serverOption {
	return func(s *Server) error {
		if console == nil {
			return errors.New("relay.WithConsole: console is nil")
		}
		s.console = console
		return nil
	}
}

// WithBufferSize - overwrites default size (4096) of per-session receive buffer.
func WithBufferSize(size int) serverOption {
	return func(s *Server) error {
		if size <= 0 {
			return fmt.Errorf("relay.WithBufferSize: invalid size (%d)", size)
		}
		s.bufSize = size
		return nil
	}
}

// WithMaxPeers - limits number of simultaneously running sessions.
// When limit is reached, accepting stops until some session is finished. Zero means no limit.
func WithMaxPeers(n int) serverOption {
	return func(s *Server) error {
		if n < 0 {
			return fmt.Errorf("relay.WithMaxPeers: invalid limit (%d)", n)
		}
		s.maxPeers = n
		return nil
	}
}
