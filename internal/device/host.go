package device

import (
	"fmt"
	"os"

	"github.com/danmuck/crankctl/internal/tools"
)

// Host is the device-facing surface of the local machine: path existence checks and
// short serial commands.
type Host interface {
	Exists(path string) bool
	Send(serialPath string, command string) error
}

// OSHost checks the real filesystem and writes commands to the serial device node.
type OSHost struct{}

func (OSHost) Exists(path string) bool { return tools.Exists(path) }

func (OSHost) Send(serialPath string, command string) error {
	f, err := os.OpenFile(serialPath, os.O_WRONLY, 0)
	if err != nil {
		return tools.FSErr("open serial", serialPath, err)
	}
	if _, err := fmt.Fprintf(f, "%s\n", command); err != nil {
		f.Close()
		return tools.FSErr("write serial", serialPath, err)
	}
	if err := f.Close(); err != nil {
		return tools.FSErr("close serial", serialPath, err)
	}
	return nil
}
