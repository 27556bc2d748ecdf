package main

import (
	"context"
	"errors"
	stdlog "log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/wtask/echo/internal/relay"
)

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func main() {
	logger := stdlog.New(os.Stderr, BinaryName+":"+Version+" ", stdlog.Ldate|stdlog.Ltime)

	listener, err := relay.Listen(context.Background(), Config.Port)
	if err != nil {
		logger.Println("ERR", "Unable to listen TCP:", err)
		os.Exit(1)
	}

	var wsListener net.Listener
	if Config.WebSocket != "" {
		wsListener, err = net.Listen("tcp", Config.WebSocket)
		if err != nil {
			logger.Println("ERR", "Unable to listen WebSocket:", err)
			listener.Close()
			os.Exit(1)
		}
	}

	server, err := relay.New(
		relay.Config{Echo: Config.Echo, Broadcast: Config.Broadcast},
		relay.WithLogger(logger),
		relay.WithMaxPeers(Config.MaxPeers),
	)
	if err != nil {
		logger.Println("ERR", "Can't start server:", err)
		listener.Close()
		os.Exit(1)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	served := make(chan error, 1)
	go func() { served <- server.Serve(listener) }()
	logger.Printf(
		"INFO %s listen on port %d (echo=%s, broadcast=%s)",
		BinaryName,
		Config.Port,
		onOff(Config.Echo),
		onOff(Config.Broadcast),
	)

	if wsListener != nil {
		go func() {
			if err := server.ServeWebSocket(wsListener); !errors.Is(err, relay.ErrServerClosed) {
				logger.Println("ERR", "WebSocket listener stopped:", err)
			}
		}()
		logger.Println("INFO", "WebSocket peers are accepted on", wsListener.Addr())
	}

	code := 0
	select {
	case s := <-sig:
		logger.Println("INFO", "Got stop signal:", s)
	case err := <-served:
		logger.Println("ERR", "Accept loop stopped:", err)
		code = 1
	}
	logger.Println("INFO", "Server stopped in", server.Shutdown(ShutdownTimeout))
	if code == 0 {
		<-served
	}
	logger.Println("INFO", "server terminated")
	os.Exit(code)
}
