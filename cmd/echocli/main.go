package main

import (
	"context"
	stdlog "log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/wtask/echo/internal/bridge"
)

func main() {
	logger := stdlog.New(os.Stderr, BinaryName+":"+Version+" ", stdlog.Ldate|stdlog.Ltime)

	conn, err := net.Dial("tcp4", Config.Addr())
	if err != nil {
		logger.Println("ERR", "Unable to connect:", err)
		os.Exit(1)
	}
	logger.Println("INFO", "connected to", Config.Addr())

	b, err := bridge.New(conn, bridge.WithLogger(logger))
	if err != nil {
		logger.Println("ERR", err)
		conn.Close()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := b.Run(ctx); err != nil {
		logger.Println("ERR", err)
	}
	logger.Println("INFO", "client terminated")
}
