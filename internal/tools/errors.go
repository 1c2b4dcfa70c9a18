package tools

import (
	"errors"
	"fmt"
)

var (
	ErrToolFailed  = errors.New("tools: external tool failed")
	ErrFilesystem  = errors.New("tools: filesystem operation failed")
	ErrToolMissing = errors.New("tools: executable not found")
)

// InvocationError reports an external process that failed to spawn or exited nonzero.
type InvocationError struct {
	Command  string
	ExitCode int32
	Stdout   string
	Stderr   string
	NotFound bool
	Err      error
}

func (e *InvocationError) Error() string {
	if e.NotFound {
		return fmt.Sprintf("command not found cmd=%q: %v", e.Command, e.Err)
	}
	msg := fmt.Sprintf("command failed cmd=%q exit=%d", e.Command, e.ExitCode)
	if e.Stderr != "" {
		msg += fmt.Sprintf(" stderr=%q", e.Stderr)
	}
	return msg
}

func (e *InvocationError) Is(target error) bool {
	if target == ErrToolFailed {
		return true
	}
	return target == ErrToolMissing && e.NotFound
}

func (e *InvocationError) Unwrap() error { return e.Err }

// FilesystemError reports a create/copy/read failure together with the offending path.
type FilesystemError struct {
	Op   string
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FilesystemError) Is(target error) bool { return target == ErrFilesystem }

func (e *FilesystemError) Unwrap() error { return e.Err }

// FSErr wraps err as a *FilesystemError unless it already is one or is nil.
func FSErr(op string, path string, err error) error {
	if err == nil {
		return nil
	}
	var fsErr *FilesystemError
	if errors.As(err, &fsErr) {
		return err
	}
	return &FilesystemError{Op: op, Path: path, Err: err}
}

var ErrConfig = errors.New("tools: invalid configuration")

// ConfigError reports a malformed manifest, a bad setting or an unbuildable
// target selection. It is raised before any external tool runs.
type ConfigError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	msg := "config error"
	if e.Path != "" {
		msg += fmt.Sprintf(" path=%q", e.Path)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Is(target error) bool { return target == ErrConfig }

func (e *ConfigError) Unwrap() error { return e.Err }

// ConfigErrorf builds a *ConfigError without an underlying cause.
func ConfigErrorf(path string, format string, args ...any) error {
	return &ConfigError{Path: path, Reason: fmt.Sprintf(format, args...)}
}
