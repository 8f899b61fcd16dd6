// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"
)

var deviceConfigFile = altsrc.StringSourcer("device.toml")

// DeviceConfig holds the settings of the device agent.
type DeviceConfig struct { //nolint:govet // fieldalignment not critical for config structs
	ServerURL   string
	StatePath   string
	Interval    time.Duration
	Cooldown    time.Duration
	HTTPTimeout time.Duration
	Subscribe   bool
	Log         LogConfig
}

// NewDeviceFromCLI builds the device configuration from parsed flags.
func NewDeviceFromCLI(cmd *cli.Command) *DeviceConfig {
	return &DeviceConfig{
		ServerURL:   strings.TrimSuffix(cmd.String("server-url"), "/"),
		StatePath:   cmd.String("state"),
		Interval:    cmd.Duration("interval"),
		Cooldown:    cmd.Duration("cooldown"),
		HTTPTimeout: cmd.Duration("http-timeout"),
		Subscribe:   cmd.Bool("subscribe"),
		Log: LogConfig{
			Level:  cmd.String("log-level"),
			Format: cmd.String("log-format"),
		},
	}
}

// DefaultStatePath returns the state database location below the user config dir.
func DefaultStatePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".", ".cloudcopy", "state.db")
	}
	return filepath.Join(dir, "cloudcopy", "state.db")
}

// DeviceFlags are shared by all device subcommands.
func DeviceFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "server-url",
			Value:   "http://localhost:8080",
			Usage:   "Base URL of the coordination server",
			Sources: cli.NewValueSourceChain(cli.EnvVar("CLOUDCOPY_SERVER_URL"), toml.TOML("device.server_url", deviceConfigFile)),
		},
		&cli.StringFlag{
			Name:    "state",
			Value:   DefaultStatePath(),
			Usage:   "Path of the local state database",
			Sources: cli.NewValueSourceChain(cli.EnvVar("CLOUDCOPY_STATE"), toml.TOML("device.state", deviceConfigFile)),
		},
		&cli.DurationFlag{
			Name:    "interval",
			Value:   2 * time.Second,
			Usage:   "Polling interval of the sync loop",
			Sources: cli.NewValueSourceChain(cli.EnvVar("CLOUDCOPY_INTERVAL"), toml.TOML("sync.interval", deviceConfigFile)),
		},
		&cli.DurationFlag{
			Name:    "cooldown",
			Value:   60 * time.Second,
			Usage:   "Pause after a network failure",
			Sources: cli.NewValueSourceChain(cli.EnvVar("CLOUDCOPY_COOLDOWN"), toml.TOML("sync.cooldown", deviceConfigFile)),
		},
		&cli.DurationFlag{
			Name:    "http-timeout",
			Value:   30 * time.Second,
			Usage:   "Timeout of a single request to the server",
			Sources: cli.NewValueSourceChain(cli.EnvVar("CLOUDCOPY_HTTP_TIMEOUT"), toml.TOML("sync.http_timeout", deviceConfigFile)),
		},
		&cli.BoolFlag{
			Name:    "subscribe",
			Usage:   "Listen for change notifications between polls",
			Sources: cli.NewValueSourceChain(cli.EnvVar("CLOUDCOPY_SUBSCRIBE"), toml.TOML("sync.subscribe", deviceConfigFile)),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Value:   "info",
			Usage:   "Log level (debug, info, warn, error)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("CLOUDCOPY_LOG_LEVEL"), toml.TOML("log.level", deviceConfigFile)),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Value:   "text",
			Usage:   "Log format (text, json)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("CLOUDCOPY_LOG_FORMAT"), toml.TOML("log.format", deviceConfigFile)),
		},
	}
}
