package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wtask/echo/internal/config"
	"github.com/wtask/echo/pkg/semver"
)

var (
	// Config - current configuration of the client
	Config = config.Client{}

	// BinaryName - name of run application binary
	BinaryName = strings.TrimSuffix(filepath.Base(os.Args[0]), filepath.Ext(os.Args[0]))

	// Version - app version fingerprint
	Version = semver.MustParse("0.4.0").String()
)

func init() {
	out := os.Stderr
	cfg, err := config.ParseClient(os.Args[1:])
	switch {
	case err == nil:
	case errors.Is(err, config.ErrHelp):
		config.ClientUsage(os.Stdout, BinaryName)
		os.Exit(0)
	case errors.Is(err, config.ErrVersion):
		fmt.Println(BinaryName, Version)
		os.Exit(0)
	default:
		fmt.Fprintf(out, "%s (v%s) error:\n\n\t%v\n\n", BinaryName, Version, err)
		config.ClientUsage(out, BinaryName)
		os.Exit(1)
	}
	Config = cfg
}
