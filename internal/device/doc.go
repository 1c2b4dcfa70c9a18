// Package device deploys a built bundle onto physical hardware.
//
// Ownership boundary:
// - run-mode / disk-mode switching over the serial path
//
// - mount detection and bundle copy onto the volume
//
// - eject and run command issue
//
// Lifecycle order:
// - Idle -> AwaitingDiskMode -> AwaitingMount -> Copying -> Ejecting -> AwaitingSerialReturn -> Running
//
// - any state may end in Failed
//
// Every wait polls on a fixed tick and blocks the calling goroutine. Waits
// are bounded by Config.Timeout; a zero timeout waits forever, which is what
// a human unplugging and re-plugging a device sometimes needs.
//
// Concurrent deploys against the same device are not supported.
package device
