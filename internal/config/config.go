// Package config resolves everything a crank invocation needs before any
// stage runs: the host platform, SDK, tool paths, device settings and the
// project manifest. Sources are applied in order: defaults, Crank.toml, env.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/crankctl/internal/device"
	"github.com/danmuck/crankctl/internal/manifest"
	"github.com/danmuck/crankctl/internal/platform"
	"github.com/danmuck/crankctl/internal/sdk"
	"github.com/danmuck/crankctl/internal/toolchain"
	"github.com/danmuck/crankctl/internal/tools"
)

// Sources are the inputs to Load. Zero values fall back to the host.
type Sources struct {
	ProjectRoot   string
	CrankManifest string
	GOOS          string
	Home          string
	Getenv        func(string) string
}

type Config struct {
	Platform     platform.Platform
	SDK          sdk.SDK
	Toolchain    toolchain.Config
	Device       device.Config
	ManifestPath string
	Manifest     *manifest.Manifest
}

type fileDevice struct {
	SerialPath string `toml:"serial_path"`
	MountPath  string `toml:"mount_path"`
	Tick       string `toml:"tick"`
	Timeout    string `toml:"timeout"`
}

type fileConfig struct {
	Device fileDevice `toml:"device"`
}

// Load resolves the configuration for one invocation.
func Load(src Sources) (Config, error) {
	getenv := src.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	p, err := platformFor(src.GOOS, getenv)
	if err != nil {
		return Config{}, err
	}

	home := src.Home
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	s, err := sdk.Resolve(getenv, home)
	if err != nil {
		return Config{}, err
	}

	manifestPath := src.CrankManifest
	if manifestPath == "" {
		manifestPath = filepath.Join(src.ProjectRoot, manifest.DefaultFilename)
	}
	m, err := manifest.Load(manifestPath)
	if err != nil {
		return Config{}, err
	}

	tc := toolchain.DefaultConfig(s, p.ExeName)
	tc.ApplyEnv(getenv)

	dev := device.DefaultConfig(p)
	if err := overlayDevice(manifestPath, &dev); err != nil {
		return Config{}, err
	}
	if err := dev.ApplyEnv(getenv); err != nil {
		return Config{}, &tools.ConfigError{Reason: "environment", Err: err}
	}

	return Config{
		Platform:     p,
		SDK:          s,
		Toolchain:    tc,
		Device:       dev,
		ManifestPath: manifestPath,
		Manifest:     m,
	}, nil
}

func platformFor(goos string, getenv func(string) string) (platform.Platform, error) {
	if goos == "" {
		goos = runtime.GOOS
	}
	return platform.ForOS(goos, getenv)
}

// overlayDevice applies the [device] table of the manifest file, if any.
// Only keys present in the file replace defaults.
func overlayDevice(path string, cfg *device.Config) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return &tools.ConfigError{Path: path, Reason: "parse", Err: err}
	}

	if meta.IsDefined("device", "serial_path") {
		cfg.SerialPath = strings.TrimSpace(raw.Device.SerialPath)
	}
	if meta.IsDefined("device", "mount_path") {
		cfg.MountPath = strings.TrimSpace(raw.Device.MountPath)
	}
	if meta.IsDefined("device", "tick") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Device.Tick))
		if err != nil || d <= 0 {
			return tools.ConfigErrorf(path, "device.tick must be a positive duration, got %q", raw.Device.Tick)
		}
		cfg.Tick = d
	}
	if meta.IsDefined("device", "timeout") {
		d, err := device.ParseTimeout(raw.Device.Timeout)
		if err != nil {
			return &tools.ConfigError{Path: path, Reason: fmt.Sprintf("device.timeout %q", raw.Device.Timeout), Err: err}
		}
		cfg.Timeout = d
	}
	return nil
}
