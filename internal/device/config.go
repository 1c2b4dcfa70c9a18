package device

import (
	"fmt"
	"strings"
	"time"

	"github.com/danmuck/crankctl/internal/platform"
)

const (
	EnvSerialPath = "CRANK_SERIAL_PATH"
	EnvMountPath  = "CRANK_MOUNT_PATH"
	EnvTimeout    = "CRANK_DEVICE_TIMEOUT"
)

const (
	DefaultTick              = 100 * time.Millisecond
	DefaultMountSettleTicks  = 5
	DefaultSerialSettleTicks = 10
	DefaultGamesDir          = "Games"
	DiskModeCommand          = "datadisk"
)

// Config is the resolved device deploy configuration.
type Config struct {
	SerialPath        string
	MountPath         string
	GamesDir          string
	Tick              time.Duration
	MountSettleTicks  int
	SerialSettleTicks int
	// Timeout bounds each individual wait. Zero waits forever.
	Timeout time.Duration
}

// DefaultConfig returns the platform defaults with an unbounded timeout.
func DefaultConfig(p platform.Platform) Config {
	return Config{
		SerialPath:        p.DefaultSerialPath(),
		MountPath:         p.DefaultMountPath(),
		GamesDir:          DefaultGamesDir,
		Tick:              DefaultTick,
		MountSettleTicks:  DefaultMountSettleTicks,
		SerialSettleTicks: DefaultSerialSettleTicks,
	}
}

// ApplyEnv overrides paths and timeout from CRANK_* environment variables.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := strings.TrimSpace(getenv(EnvSerialPath)); v != "" {
		c.SerialPath = v
	}
	if v := strings.TrimSpace(getenv(EnvMountPath)); v != "" {
		c.MountPath = v
	}
	if v := strings.TrimSpace(getenv(EnvTimeout)); v != "" {
		d, err := ParseTimeout(v)
		if err != nil {
			return fmt.Errorf("parse %s: %w", EnvTimeout, err)
		}
		c.Timeout = d
	}
	return nil
}

// ParseTimeout accepts a Go duration, or "0", "none", "infinite" for no bound.
func ParseTimeout(raw string) (time.Duration, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "0", "none", "infinite", "forever":
		return 0, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative timeout %s", raw)
	}
	return d, nil
}

// RunCommand is the serial command that launches an installed bundle.
func (c Config) RunCommand(title string) string {
	return fmt.Sprintf("run /%s/%s.pdx", c.gamesDir(), title)
}

func (c Config) gamesDir() string {
	if c.GamesDir == "" {
		return DefaultGamesDir
	}
	return c.GamesDir
}

func (c Config) tick() time.Duration {
	if c.Tick <= 0 {
		return DefaultTick
	}
	return c.Tick
}
