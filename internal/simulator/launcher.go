// Package simulator launches the desktop simulator on a built bundle.
package simulator

import (
	"errors"
	"fmt"

	"github.com/danmuck/crankctl/internal/platform"
	"github.com/danmuck/crankctl/internal/sdk"
	"github.com/danmuck/crankctl/internal/tools"
	"github.com/rs/zerolog/log"
)

var ErrLaunch = errors.New("simulator: launch failed")

// LaunchError distinguishes a simulator that could not be found from one
// that ran and failed.
type LaunchError struct {
	Executable string
	NotFound   bool
	ExitCode   int32
	Err        error
}

func (e *LaunchError) Error() string {
	if e.NotFound {
		return fmt.Sprintf("simulator not found at %q; check the Playdate SDK installation (%s)", e.Executable, sdk.EnvSDKRoot)
	}
	return fmt.Sprintf("simulator exited with status %d", e.ExitCode)
}

func (e *LaunchError) Is(target error) bool { return target == ErrLaunch }

func (e *LaunchError) Unwrap() error { return e.Err }

// Launcher starts the simulator and blocks until it exits.
type Launcher struct {
	sdk      sdk.SDK
	platform platform.Platform
	runner   tools.CommandRunner
}

// NewLauncher builds a Launcher. A nil runner executes on the host.
func NewLauncher(s sdk.SDK, p platform.Platform, runner tools.CommandRunner) *Launcher {
	if runner == nil {
		runner = tools.ExecRunner{}
	}
	return &Launcher{sdk: s, platform: p, runner: runner}
}

// Launch runs the simulator with bundlePath as its only argument.
func (l *Launcher) Launch(bundlePath string) error {
	cmd := l.platform.SimulatorCommand(l.sdk, bundlePath)
	log.Info().Msgf("simulator.Launcher.Launch bundle=%q", bundlePath)
	_, err := tools.Invoke(l.runner, cmd)
	if err == nil {
		return nil
	}
	var invErr *tools.InvocationError
	if errors.As(err, &invErr) {
		return &LaunchError{Executable: cmd.Name, NotFound: invErr.NotFound, ExitCode: invErr.ExitCode, Err: err}
	}
	return &LaunchError{Executable: cmd.Name, Err: err}
}
