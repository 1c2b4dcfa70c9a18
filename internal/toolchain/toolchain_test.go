package toolchain

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danmuck/crankctl/internal/sdk"
	"github.com/danmuck/crankctl/internal/testutil/testlog"
	"github.com/danmuck/crankctl/internal/tools"
)

type recordingRunner struct {
	commands []tools.Command
	results  []tools.Result
}

func (r *recordingRunner) Run(cmd tools.Command) (tools.Result, error) {
	r.commands = append(r.commands, cmd)
	if len(r.results) > 0 {
		next := r.results[0]
		r.results = r.results[1:]
		if next.ExitCode != 0 {
			return next, errors.New("exit status")
		}
		return next, nil
	}
	return tools.Result{}, nil
}

func newNative(runner tools.CommandRunner) *Native {
	return NewNative(DefaultConfig(sdk.SDK{Root: "/sdk"}, nil), runner)
}

func TestBuildDeviceReleaseArgs(t *testing.T) {
	testlog.Start(t)
	runner := &recordingRunner{}
	err := newNative(runner).Build(BuildRequest{
		Dir:          "/proj",
		ManifestPath: "/proj/Cargo.toml",
		Example:      "hello_world",
		Release:      true,
		Device:       true,
		Features:     []string{"alloc", "sound"},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	got := runner.commands[0].String()
	want := "cargo build --manifest-path /proj/Cargo.toml --example hello_world --release --target thumbv7em-none-eabihf --features alloc,sound"
	if got != want {
		t.Fatalf("unexpected build command:\n got %q\nwant %q", got, want)
	}
	if runner.commands[0].Output != tools.OutputInherit || runner.commands[0].Dir != "/proj" {
		t.Fatalf("unexpected build command shape: %+v", runner.commands[0])
	}
}

func TestBuildLibSimulatorArgs(t *testing.T) {
	testlog.Start(t)
	runner := &recordingRunner{}
	if err := newNative(runner).Build(BuildRequest{}); err != nil {
		t.Fatalf("build: %v", err)
	}
	if got := runner.commands[0].String(); got != "cargo build --lib" {
		t.Fatalf("unexpected build command: %q", got)
	}
}

func TestCompileLinkExtract(t *testing.T) {
	testlog.Start(t)
	runner := &recordingRunner{}
	n := newNative(runner)

	if err := n.Compile(CompileRequest{Source: "/sdk/C_API/buildsupport/setup.c", Output: "/out/setup.o"}); err != nil {
		t.Fatalf("compile: %v", err)
	}
	if err := n.Link(LinkRequest{Inputs: []string{"/out/setup.o", "/out/libhello.a"}, Output: "/out/hello.elf"}); err != nil {
		t.Fatalf("link: %v", err)
	}
	if err := n.ExtractBinary("/out/hello.elf", "/out/hello.bin"); err != nil {
		t.Fatalf("extract: %v", err)
	}

	compile := strings.Join(runner.commands[0].Args, " ")
	if !strings.Contains(compile, "-mcpu=cortex-m7") || !strings.Contains(compile, "-I "+filepath.Join("/sdk", "C_API")) {
		t.Fatalf("unexpected compile args: %q", compile)
	}
	if runner.commands[0].Output != tools.OutputErrorsOnly {
		t.Fatalf("compile must suppress stdout")
	}
	link := strings.Join(runner.commands[1].Args, " ")
	if !strings.HasPrefix(link, "/out/setup.o /out/libhello.a") || !strings.Contains(link, "-T "+filepath.Join("/sdk", "C_API", "buildsupport", "link_map.ld")) {
		t.Fatalf("unexpected link args: %q", link)
	}
	if got := runner.commands[2].String(); got != "arm-none-eabi-objcopy -O binary /out/hello.elf /out/hello.bin" {
		t.Fatalf("unexpected objcopy command: %q", got)
	}
}

func TestRunBundleCompilerFailureCarriesOutput(t *testing.T) {
	testlog.Start(t)
	runner := &recordingRunner{results: []tools.Result{{ExitCode: 1, Stderr: []byte("error: missing pdex.bin")}}}
	err := newNative(runner).RunBundleCompiler("/proj/target/Hello", "/proj/target/Hello.pdx")

	var invErr *tools.InvocationError
	if !errors.As(err, &invErr) {
		t.Fatalf("expected InvocationError, got %v", err)
	}
	if invErr.Stderr != "error: missing pdex.bin" {
		t.Fatalf("unexpected stderr: %q", invErr.Stderr)
	}
	if runner.commands[0].Output != tools.OutputCapture {
		t.Fatalf("pdc output must be captured")
	}
	if got := runner.commands[0].Args; got[len(got)-2] != "/proj/target/Hello" || got[len(got)-1] != "/proj/target/Hello.pdx" {
		t.Fatalf("unexpected pdc args: %+v", got)
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := DefaultConfig(sdk.SDK{Root: "/sdk"}, func(n string) string { return n + ".exe" })
	env := map[string]string{EnvGCC: "/opt/arm/bin/arm-none-eabi-gcc"}
	cfg.ApplyEnv(func(k string) string { return env[k] })
	if cfg.GCC != "/opt/arm/bin/arm-none-eabi-gcc" || cfg.Cargo != "cargo" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.PDC != filepath.Join("/sdk", "bin", "pdc.exe") {
		t.Fatalf("unexpected pdc path: %q", cfg.PDC)
	}
}
