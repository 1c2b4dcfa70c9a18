// Package deploy routes a built bundle to the simulator or to hardware.
package deploy

import (
	"fmt"

	"github.com/danmuck/crankctl/internal/device"
)

// Kind is where a bundle runs.
type Kind int

const (
	KindSimulator Kind = iota
	KindDevice
)

func (k Kind) String() string {
	if k == KindDevice {
		return "device"
	}
	return "simulator"
}

// SimulatorLauncher is satisfied by *simulator.Launcher.
type SimulatorLauncher interface {
	Launch(bundlePath string) error
}

// DeviceDeployer is satisfied by *device.Machine.
type DeviceDeployer interface {
	Deploy(bundlePath string, title string) (device.Session, error)
}

// Dispatcher picks the deploy path for a target kind. It has no side effects
// of its own.
type Dispatcher struct {
	Simulator SimulatorLauncher
	Device    DeviceDeployer
}

// Dispatch hands bundlePath to the simulator or the device state machine.
func (d *Dispatcher) Dispatch(kind Kind, bundlePath string, title string) error {
	switch kind {
	case KindDevice:
		if d.Device == nil {
			return fmt.Errorf("deploy: no device deployer configured")
		}
		_, err := d.Device.Deploy(bundlePath, title)
		return err
	case KindSimulator:
		if d.Simulator == nil {
			return fmt.Errorf("deploy: no simulator launcher configured")
		}
		return d.Simulator.Launch(bundlePath)
	default:
		return fmt.Errorf("deploy: unknown target kind %d", kind)
	}
}
