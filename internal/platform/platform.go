// Package platform owns every per-operating-system difference the build and
// deploy flows depend on: artifact names, default device paths, and the
// commands used to eject a volume, launch the simulator, and reveal a file.
//
// One implementation is selected at startup with ForOS and passed down
// explicitly.
package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/danmuck/crankctl/internal/sdk"
	"github.com/danmuck/crankctl/internal/tools"
)

var ErrUnsupported = errors.New("platform: unsupported operating system")

// Platform is the capability set for one host operating system.
type Platform interface {
	Name() string
	// DylibName is the simulator library file cargo produces for crate.
	DylibName(crate string) string
	// DylibExt is the extension used for the staged simulator library.
	DylibExt() string
	// ExeName appends the host executable suffix.
	ExeName(name string) string
	DefaultSerialPath() string
	DefaultMountPath() string
	EjectCommand(mountPath string) tools.Command
	SimulatorCommand(s sdk.SDK, bundlePath string) tools.Command
	RevealCommand(path string) tools.Command
}

// Current returns the platform for the running binary.
func Current() (Platform, error) {
	return ForOS(runtime.GOOS, os.Getenv)
}

// ForOS returns the platform implementation for goos. getenv supplies USER
// for the linux mount default; nil means no user is known.
func ForOS(goos string, getenv func(string) string) (Platform, error) {
	if getenv == nil {
		getenv = func(string) string { return "" }
	}
	switch goos {
	case "darwin":
		return darwin{}, nil
	case "linux":
		return linux{user: strings.TrimSpace(getenv("USER"))}, nil
	case "windows":
		return windows{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, goos)
	}
}

type darwin struct{}

func (darwin) Name() string                  { return "darwin" }
func (darwin) DylibName(crate string) string { return "lib" + crate + ".dylib" }
func (darwin) DylibExt() string              { return "dylib" }
func (darwin) ExeName(name string) string    { return name }
func (darwin) DefaultSerialPath() string     { return "/dev/cu.usbmodem00000000001A1" }
func (darwin) DefaultMountPath() string      { return "/Volumes/PLAYDATE" }
func (darwin) EjectCommand(mount string) tools.Command {
	return tools.Command{Name: "diskutil", Args: []string{"eject", mount}}
}
func (darwin) SimulatorCommand(s sdk.SDK, bundle string) tools.Command {
	exe := filepath.Join(s.Bin("Playdate Simulator.app"), "Contents", "MacOS", "Playdate Simulator")
	return tools.Command{Name: exe, Args: []string{bundle}, Output: tools.OutputInherit}
}
func (darwin) RevealCommand(path string) tools.Command {
	return tools.Command{Name: "open", Args: []string{"-R", path}}
}

type linux struct {
	user string
}

func (linux) Name() string                  { return "linux" }
func (linux) DylibName(crate string) string { return "lib" + crate + ".so" }
func (linux) DylibExt() string              { return "so" }
func (linux) ExeName(name string) string    { return name }
func (linux) DefaultSerialPath() string     { return "/dev/ttyACM0" }
func (l linux) DefaultMountPath() string {
	if l.user == "" {
		return filepath.Join("/media", "PLAYDATE")
	}
	return filepath.Join("/run/media", l.user, "PLAYDATE")
}
func (linux) EjectCommand(mount string) tools.Command {
	return tools.Command{Name: "umount", Args: []string{mount}}
}
func (linux) SimulatorCommand(s sdk.SDK, bundle string) tools.Command {
	return tools.Command{Name: s.Bin("PlaydateSimulator"), Args: []string{bundle}, Output: tools.OutputInherit}
}
func (linux) RevealCommand(path string) tools.Command {
	return tools.Command{Name: "xdg-open", Args: []string{filepath.Dir(path)}}
}

// windows exposes neither a serial path nor a fixed drive letter; both must
// be configured.
type windows struct{}

func (windows) Name() string                  { return "windows" }
func (windows) DylibName(crate string) string { return crate + ".dll" }
func (windows) DylibExt() string              { return "dll" }
func (windows) ExeName(name string) string    { return name + ".exe" }
func (windows) DefaultSerialPath() string     { return "" }
func (windows) DefaultMountPath() string      { return "" }
func (windows) EjectCommand(mount string) tools.Command {
	script := fmt.Sprintf(
		"(New-Object -ComObject Shell.Application).Namespace(17).ParseName('%s').InvokeVerb('Eject')",
		filepath.VolumeName(mount),
	)
	return tools.Command{Name: "powershell", Args: []string{"-NoProfile", "-Command", script}}
}
func (w windows) SimulatorCommand(s sdk.SDK, bundle string) tools.Command {
	return tools.Command{Name: s.Bin(w.ExeName("PlaydateSimulator")), Args: []string{bundle}, Output: tools.OutputInherit}
}
func (windows) RevealCommand(path string) tools.Command {
	return tools.Command{Name: "explorer", Args: []string{"/select," + path}}
}
