package app

import (
	"strings"

	"github.com/raysh454/asyncreq/internal/cli"
	"github.com/raysh454/asyncreq/internal/server"
	"github.com/raysh454/asyncreq/internal/transport"
)

// Config is the runtime configuration shared by the CLI and server modes.
type Config struct {
	ServerCfg server.Config

	// Transport selects and tunes the network backend.
	Transport transport.Config

	// LogLevel is the minimum level written by the stdout logger.
	LogLevel string

	// HistoryPath is the SQLite journal location. Empty disables history.
	HistoryPath string

	// Serve starts the API server alongside the execution loop.
	Serve bool
}

// DefaultConfig returns a Config populated with sensible development defaults.
func DefaultConfig() *Config {
	return &Config{
		ServerCfg: server.Config{
			ListenAddr: ":8080",
		},
		Transport:   transport.DefaultConfig(),
		LogLevel:    "info",
		HistoryPath: "",
	}
}

// ApplyArgs overlays command-line overrides onto c.
func (c *Config) ApplyArgs(args *cli.CLIArgs) {
	if args == nil {
		return
	}
	if args.Backend != "" {
		c.Transport.Backend = transport.Backend(strings.ToLower(args.Backend))
	}
	if args.Concurrency > 0 {
		c.Transport.MaxConcurrency = args.Concurrency
	}
	if args.Listen != "" {
		c.ServerCfg.ListenAddr = args.Listen
	}
	if args.HistoryPath != "" {
		c.HistoryPath = args.HistoryPath
	}
	if args.LogLevel != "" {
		c.LogLevel = args.LogLevel
	}
	c.Serve = args.Serve
}
