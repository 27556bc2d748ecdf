package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/wtask/echo/internal/config"
	"github.com/wtask/echo/pkg/semver"
)

const (
	// ShutdownTimeout - how long to wait for client sessions on stop
	ShutdownTimeout = 5 * time.Second
)

var (
	// Config - current configuration of the server
	Config = config.Server{}

	// BinaryName - name of run application binary
	BinaryName = strings.TrimSuffix(filepath.Base(os.Args[0]), filepath.Ext(os.Args[0]))

	// Version - app version fingerprint
	Version = semver.MustParse("0.4.0").String()
)

func init() {
	out := os.Stderr
	cfg, err := config.ParseServer(os.Args[1:])
	switch {
	case err == nil:
	case errors.Is(err, config.ErrHelp):
		config.ServerUsage(os.Stdout, BinaryName)
		os.Exit(0)
	case errors.Is(err, config.ErrVersion):
		fmt.Println(BinaryName, Version)
		os.Exit(0)
	default:
		fmt.Fprintf(out, "%s (v%s) error:\n\n\t%v\n\n", BinaryName, Version, err)
		config.ServerUsage(out, BinaryName)
		os.Exit(1)
	}
	Config = cfg
}
