package device

// State is the position of a DeviceSession in the deploy handshake.
type State int

const (
	StateIdle State = iota
	StateAwaitingDiskMode
	StateAwaitingMount
	StateCopying
	StateEjecting
	StateAwaitingSerialReturn
	StateRunning
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingDiskMode:
		return "awaiting_disk_mode"
	case StateAwaitingMount:
		return "awaiting_mount"
	case StateCopying:
		return "copying"
	case StateEjecting:
		return "ejecting"
	case StateAwaitingSerialReturn:
		return "awaiting_serial_return"
	case StateRunning:
		return "running"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition can follow s.
func (s State) Terminal() bool {
	return s == StateRunning || s == StateFailed
}

// Session is the ephemeral record of one deploy attempt.
type Session struct {
	SerialPath string
	MountPath  string
	BundlePath string
	Title      string
	State      State
	Err        error
}
