package tools

import (
	"bytes"
	"errors"
	"io"
	"os"
	"os/exec"
	"strings"
)

// OutputMode selects how a child process's stdout/stderr reach the user.
type OutputMode int

const (
	// OutputCapture buffers both streams; nothing reaches the terminal.
	OutputCapture OutputMode = iota
	// OutputInherit connects both streams to this process's stdout/stderr.
	OutputInherit
	// OutputErrorsOnly discards stdout and tees stderr to the terminal while capturing it.
	OutputErrorsOnly
)

// Command is one external process invocation.
type Command struct {
	Name   string
	Args   []string
	Dir    string
	Env    []string
	Output OutputMode
}

// String renders the command line the way it would be typed in a shell.
func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, quoteArg(c.Name))
	for _, arg := range c.Args {
		parts = append(parts, quoteArg(arg))
	}
	return strings.Join(parts, " ")
}

// Result is the captured outcome of a finished command.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int32
}

// CommandRunner abstracts process execution for toolchain and deploy adapters.
type CommandRunner interface {
	Run(cmd Command) (Result, error)
}

// ExitCodeNotFound is reported when the executable could not be spawned.
const ExitCodeNotFound int32 = 127

// ExecRunner executes commands on the local host.
type ExecRunner struct {
	Stdout io.Writer
	Stderr io.Writer
}

// tools command-runner implementation backed by os/exec.
func (r ExecRunner) Run(c Command) (Result, error) {
	cmd := exec.Command(c.Name, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	switch c.Output {
	case OutputInherit:
		cmd.Stdin = os.Stdin
		cmd.Stdout = r.stdout()
		cmd.Stderr = r.stderr()
	case OutputErrorsOnly:
		cmd.Stdout = io.Discard
		cmd.Stderr = io.MultiWriter(&stderr, r.stderr())
	default:
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
	}

	err := cmd.Run()
	res := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err == nil {
		return res, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = int32(exitErr.ExitCode())
		return res, err
	}

	res.ExitCode = 1
	var execErr *exec.Error
	if errors.As(err, &execErr) || errors.Is(err, os.ErrNotExist) {
		res.ExitCode = ExitCodeNotFound
	}
	return res, err
}

func (r ExecRunner) stdout() io.Writer {
	if r.Stdout != nil {
		return r.Stdout
	}
	return os.Stdout
}

func (r ExecRunner) stderr() io.Writer {
	if r.Stderr != nil {
		return r.Stderr
	}
	return os.Stderr
}

// Invoke runs cmd and converts any failure into an *InvocationError.
func Invoke(runner CommandRunner, cmd Command) (Result, error) {
	res, err := runner.Run(cmd)
	if err == nil && res.ExitCode == 0 {
		return res, nil
	}
	return res, &InvocationError{
		Command:  cmd.String(),
		ExitCode: res.ExitCode,
		Stdout:   strings.TrimSpace(string(res.Stdout)),
		Stderr:   strings.TrimSpace(string(res.Stderr)),
		NotFound: res.ExitCode == ExitCodeNotFound,
		Err:      err,
	}
}

func quoteArg(s string) string {
	if s == "" {
		return `""`
	}
	if strings.ContainsAny(s, " \t\"'") {
		return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
	}
	return s
}
