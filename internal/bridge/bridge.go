// Package bridge connects terminal input and output to a stream connection:
// bytes received from the connection are copied to the output
// and every input line is sent to the connection with trailing newline.
package bridge

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync/atomic"
	"time"
)

const (
	defaultBufferSize   = 4096
	defaultDrainTimeout = 2 * time.Second
	maxLineSize         = 1 << 20
)

// Logger - interface for logging bridge events
type Logger interface {
	Println(v ...interface{})
}

// Bridge - bidirectional copier between console and connection.
type Bridge struct {
	conn         net.Conn
	in           io.Reader
	out          io.Writer
	logger       Logger
	bufSize      int
	drainTimeout time.Duration

	running atomic.Bool
}

type bridgeOption func(b *Bridge) error

// WithInput - overwrites source of lines, os.Stdin by default.
func WithInput(in io.Reader) bridgeOption {
	return func(b *Bridge) error {
		if in == nil {
			return errors.New("bridge.WithInput: reader is nil")
		}
		b.in = in
		return nil
	}
}

// WithOutput - overwrites destination of received bytes, os.Stdout by default.
func WithOutput(out io.Writer) bridgeOption {
	return func(b *Bridge) error {
		if out == nil {
			return errors.New("bridge.WithOutput: writer is nil")
		}
		b.out = out
		return nil
	}
}

// WithLogger - attaches logger for diagnostic messages.
func WithLogger(logger Logger) bridgeOption {
	return func(b *Bridge) error {
		if logger == nil {
			return errors.New("bridge.WithLogger: logger is nil")
		}
		b.logger = logger
		return nil
	}
}

// WithDrainTimeout - overwrites how long Bridge waits for the remote side
// to finish the stream after local side is half-closed.
func WithDrainTimeout(timeout time.Duration) bridgeOption {
	return func(b *Bridge) error {
		if timeout <= 0 {
			return fmt.Errorf("bridge.WithDrainTimeout: invalid timeout (%v)", timeout)
		}
		b.drainTimeout = timeout
		return nil
	}
}

// New - builds Bridge over established connection.
func New(conn net.Conn, options ...bridgeOption) (*Bridge, error) {
	if conn == nil {
		return nil, errors.New("bridge.New: connection is nil")
	}
	b := &Bridge{
		conn:         conn,
		in:           os.Stdin,
		out:          os.Stdout,
		bufSize:      defaultBufferSize,
		drainTimeout: defaultDrainTimeout,
	}
	for _, option := range options {
		if option == nil {
			continue
		}
		if err := option(b); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Run - copies data in both directions until input is exhausted,
// the connection is finished by remote side or ctx is cancelled.
// Connection is always closed when Run returns.
// Returned error describes the first failure, normal termination returns nil.
func (b *Bridge) Run(ctx context.Context) error {
	if !b.running.CompareAndSwap(false, true) {
		return errors.New("bridge.Bridge: already running")
	}

	var receiveErr error
	received := make(chan struct{})
	go func() {
		defer close(received)
		receiveErr = b.receive()
	}()

	sendErr := b.send(ctx, received)
	b.running.Store(false)

	// let the remote side know we have finished, but still read what it sends
	if hc, ok := b.conn.(interface{ CloseWrite() error }); ok {
		hc.CloseWrite()
	}
	select {
	case <-received:
	case <-time.After(b.drainTimeout):
		logWarn(b.logger, "remote side did not finish in", b.drainTimeout)
	}
	b.conn.Close()
	<-received

	if sendErr != nil {
		return sendErr
	}
	return receiveErr
}

// receive - copies connection bytes to output until the connection is finished.
func (b *Bridge) receive() error {
	buf := make([]byte, b.bufSize)
	for {
		n, err := b.conn.Read(buf)
		if n > 0 {
			if _, werr := b.out.Write(buf[:n]); werr != nil {
				b.running.Store(false)
				return fmt.Errorf("bridge: output: %w", werr)
			}
		}
		if err == nil {
			continue
		}
		wasRunning := b.running.Swap(false)
		switch {
		case errors.Is(err, io.EOF):
			logInfo(b.logger, "server closed connection")
			return nil
		case !wasRunning && errors.Is(err, net.ErrClosed):
			return nil
		default:
			logWarn(b.logger, "receive error:", err)
			return fmt.Errorf("bridge: receive: %w", err)
		}
	}
}

// send - writes input lines to the connection.
// Input is read in separate goroutine, so send stops promptly when receiving is finished.
func (b *Bridge) send(ctx context.Context, received <-chan struct{}) error {
	stop := make(chan struct{})
	defer close(stop)

	lines := make(chan []byte)
	inputDone := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(b.in)
		scanner.Buffer(make([]byte, 0, b.bufSize), maxLineSize)
		for scanner.Scan() {
			line := append(append([]byte{}, scanner.Bytes()...), '\n')
			select {
			case lines <- line:
			case <-stop:
				return
			}
		}
		inputDone <- scanner.Err()
	}()

	for b.running.Load() {
		select {
		case line := <-lines:
			if _, err := writeAll(b.conn, line); err != nil {
				logError(b.logger, "send:", err)
				return fmt.Errorf("bridge: send: %w", err)
			}
		case err := <-inputDone:
			if err != nil {
				return fmt.Errorf("bridge: input: %w", err)
			}
			return nil
		case <-received:
			return nil
		case <-ctx.Done():
			return nil
		}
	}
	return nil
}

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

func logInfo(l Logger, v ...interface{}) {
	if l == nil {
		return
	}
	l.Println(append([]interface{}{"INFO"}, v...)...)
}

func logWarn(l Logger, v ...interface{}) {
	if l == nil {
		return
	}
	l.Println(append([]interface{}{"WARN"}, v...)...)
}

func logError(l Logger, v ...interface{}) {
	if l == nil {
		return
	}
	l.Println(append([]interface{}{"ERR"}, v...)...)
}
