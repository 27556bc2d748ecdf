// Package config parses and validates command line arguments of echosrv and echocli.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
)

var (
	// ErrUsage - arguments do not match command syntax, usage should be printed.
	ErrUsage = errors.New("config: invalid arguments")
	// ErrHelp - help was requested explicitly.
	ErrHelp = flag.ErrHelp
	// ErrVersion - version was requested explicitly.
	ErrVersion = errors.New("config: version requested")
)

type (
	// Server - server configuration
	Server struct {
		// Port - listen port on all IPv4 interfaces
		Port int
		// Echo - send received bytes back to sender
		Echo bool
		// Broadcast - send received bytes to every connected peer, takes priority over Echo
		Broadcast bool
		// WebSocket - optional listen address for WebSocket peers
		WebSocket string
		// MaxPeers - limit of simultaneously served peers, 0 is unlimited
		MaxPeers int
	}

	// Client - client configuration
	Client struct {
		IP   net.IP
		Port int
	}
)

// Addr - returns server address the client should connect to.
func (c Client) Addr() string {
	return net.JoinHostPort(c.IP.String(), strconv.Itoa(c.Port))
}

// ParsePort - parses TCP port number in range 1-65535.
func ParsePort(s string) (int, error) {
	p, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: port %q is not a number", ErrUsage, s)
	}
	if p <= 0 || p > 65535 {
		return 0, fmt.Errorf("%w: port %d is out of range 1-65535", ErrUsage, p)
	}
	return p, nil
}

// ParseIPv4 - parses dotted-decimal IPv4 address.
func ParseIPv4(s string) (net.IP, error) {
	ip := net.ParseIP(s)
	if ip == nil || ip.To4() == nil || strings.Contains(s, ":") {
		return nil, fmt.Errorf("%w: %q is not an IPv4 address", ErrUsage, s)
	}
	return ip.To4(), nil
}

// ParseServer - parses server arguments (without program name): <port> [-e] [-b] [options].
func ParseServer(args []string) (Server, error) {
	cfg := Server{}
	fs := newFlagSet()
	fs.BoolVar(&cfg.Echo, "e", false, "")
	fs.BoolVar(&cfg.Broadcast, "b", false, "")
	fs.StringVar(&cfg.WebSocket, "ws", "", "")
	fs.IntVar(&cfg.MaxPeers, "max-peers", 0, "")
	version := fs.Bool("version", false, "")

	positional, err := parse(fs, args, 1)
	if *version {
		return cfg, ErrVersion
	}
	if err != nil {
		return cfg, err
	}
	if cfg.Port, err = ParsePort(positional[0]); err != nil {
		return cfg, err
	}
	if cfg.MaxPeers < 0 {
		return cfg, fmt.Errorf("%w: max-peers (%d) must be greater or equal 0", ErrUsage, cfg.MaxPeers)
	}
	return cfg, nil
}

// ParseClient - parses client arguments (without program name): <ip> <port>.
func ParseClient(args []string) (Client, error) {
	cfg := Client{}
	fs := newFlagSet()
	version := fs.Bool("version", false, "")

	positional, err := parse(fs, args, 2)
	if *version {
		return cfg, ErrVersion
	}
	if err != nil {
		return cfg, err
	}
	if cfg.IP, err = ParseIPv4(positional[0]); err != nil {
		return cfg, err
	}
	if cfg.Port, err = ParsePort(positional[1]); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func newFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

// parse - splits exactly n leading positional arguments and parses the rest as flags.
// Flags are also accepted before positional arguments.
func parse(fs *flag.FlagSet, args []string, n int) ([]string, error) {
	positional := []string{}
	for len(args) > 0 {
		if err := fs.Parse(args); err != nil {
			if errors.Is(err, flag.ErrHelp) {
				return nil, ErrHelp
			}
			return nil, fmt.Errorf("%w: %v", ErrUsage, err)
		}
		args = fs.Args()
		if len(args) == 0 {
			break
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
	if len(positional) != n {
		return nil, fmt.Errorf("%w: expected %d positional argument(s), got %d", ErrUsage, n, len(positional))
	}
	return positional, nil
}

// ServerUsage - writes server usage message.
func ServerUsage(out io.Writer, name string) {
	fmt.Fprintf(out, "syntax : %s <port> [-e] [-b] [-ws <addr>] [-max-peers <n>]\n", name)
	fmt.Fprintf(out, "sample : %s 1234 -e -b\n\n", name)
	fmt.Fprint(out, "Options:\n\n")
	fmt.Fprint(out, "\t-e\techo received data back to sender\n")
	fmt.Fprint(out, "\t-b\tbroadcast received data to all connected peers (takes priority over -e)\n")
	fmt.Fprint(out, "\t-ws\tadditionally accept WebSocket peers on given address, e.g. :8080\n")
	fmt.Fprint(out, "\t-max-peers\tlimit of simultaneously served peers, 0 is unlimited\n")
	fmt.Fprint(out, "\t-version\tprint version and exit\n")
}

// ClientUsage - writes client usage message.
func ClientUsage(out io.Writer, name string) {
	fmt.Fprintf(out, "syntax : %s <ip> <port>\n", name)
	fmt.Fprintf(out, "sample : %s 192.168.10.2 1234\n", name)
}
