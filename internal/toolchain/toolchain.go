// Package toolchain wraps the external build tools: cargo, the ARM GNU
// cross-compiler and objcopy, and the SDK bundle compiler (pdc).
//
// Every call is synchronous and returns a *tools.InvocationError on failed
// spawn or nonzero exit.
package toolchain

import (
	"strings"

	"github.com/danmuck/crankctl/internal/sdk"
	"github.com/danmuck/crankctl/internal/tools"
	"github.com/rs/zerolog/log"
)

// DeviceTriple is the Rust target triple for the console CPU.
const DeviceTriple = "thumbv7em-none-eabihf"

const (
	EnvCargo   = "CRANK_CARGO"
	EnvGCC     = "CRANK_GCC"
	EnvObjcopy = "CRANK_OBJCOPY"
)

var (
	compileFlags = strings.Fields(`-g -c -mthumb -mcpu=cortex-m7 -mfloat-abi=hard
		-mfpu=fpv4-sp-d16 -D__FPU_USED=1 -O2 -falign-functions=16 -fomit-frame-pointer
		-gdwarf-2 -Wall -Wno-unused -Wstrict-prototypes -Wno-unknown-pragmas -fverbose-asm
		-ffunction-sections -fdata-sections -DTARGET_PLAYDATE=1 -DTARGET_EXTENSION=1`)
	linkFlags = strings.Fields(`-mthumb -mcpu=cortex-m7 -mfloat-abi=hard
		-mfpu=fpv4-sp-d16 -D__FPU_USED=1 -Wl,--gc-sections,--no-warn-mismatch`)
)

// Toolchain is the set of external tool calls the pipeline sequences.
type Toolchain interface {
	Build(req BuildRequest) error
	Clean(req CleanRequest) error
	Compile(req CompileRequest) error
	Link(req LinkRequest) error
	ExtractBinary(elfPath string, binPath string) error
	RunBundleCompiler(stagingDir string, packagePath string) error
}

// BuildRequest describes one cargo build.
type BuildRequest struct {
	Dir          string
	ManifestPath string
	Example      string
	Release      bool
	Device       bool
	Features     []string
}

// CleanRequest describes one cargo clean.
type CleanRequest struct {
	Dir          string
	ManifestPath string
}

// CompileRequest compiles one C source into an object file.
type CompileRequest struct {
	Source      string
	Output      string
	IncludeDirs []string
}

// LinkRequest links objects and archives into an executable image.
type LinkRequest struct {
	Inputs  []string
	LinkMap string
	Output  string
}

// Config names the executables and SDK the native toolchain uses.
type Config struct {
	Cargo   string
	GCC     string
	Objcopy string
	PDC     string
	SDK     sdk.SDK
}

// DefaultConfig resolves executables from PATH and pdc from the SDK.
func DefaultConfig(s sdk.SDK, exeName func(string) string) Config {
	if exeName == nil {
		exeName = func(name string) string { return name }
	}
	return Config{
		Cargo:   "cargo",
		GCC:     "arm-none-eabi-gcc",
		Objcopy: "arm-none-eabi-objcopy",
		PDC:     s.Bin(exeName("pdc")),
		SDK:     s,
	}
}

// ApplyEnv overrides executables from CRANK_* environment variables.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := strings.TrimSpace(getenv(EnvCargo)); v != "" {
		c.Cargo = v
	}
	if v := strings.TrimSpace(getenv(EnvGCC)); v != "" {
		c.GCC = v
	}
	if v := strings.TrimSpace(getenv(EnvObjcopy)); v != "" {
		c.Objcopy = v
	}
}

// Native runs the real tools through a CommandRunner.
type Native struct {
	cfg    Config
	runner tools.CommandRunner
}

// NewNative builds a Native toolchain. A nil runner executes on the host.
func NewNative(cfg Config, runner tools.CommandRunner) *Native {
	if runner == nil {
		runner = tools.ExecRunner{}
	}
	return &Native{cfg: cfg, runner: runner}
}

func (n *Native) Build(req BuildRequest) error {
	args := []string{"build"}
	if req.ManifestPath != "" {
		args = append(args, "--manifest-path", req.ManifestPath)
	}
	if req.Example != "" {
		args = append(args, "--example", req.Example)
	} else {
		args = append(args, "--lib")
	}
	if req.Release {
		args = append(args, "--release")
	}
	if req.Device {
		args = append(args, "--target", DeviceTriple)
	}
	if len(req.Features) > 0 {
		args = append(args, "--features", strings.Join(req.Features, ","))
	}
	return n.run(tools.Command{Name: n.cfg.Cargo, Args: args, Dir: req.Dir, Output: tools.OutputInherit})
}

func (n *Native) Clean(req CleanRequest) error {
	args := []string{"clean"}
	if req.ManifestPath != "" {
		args = append(args, "--manifest-path", req.ManifestPath)
	}
	return n.run(tools.Command{Name: n.cfg.Cargo, Args: args, Dir: req.Dir, Output: tools.OutputInherit})
}

func (n *Native) Compile(req CompileRequest) error {
	args := append([]string(nil), compileFlags...)
	args = append(args, req.Source)
	includes := req.IncludeDirs
	if len(includes) == 0 {
		includes = []string{n.cfg.SDK.CAPI()}
	}
	for _, dir := range includes {
		args = append(args, "-I", dir)
	}
	args = append(args, "-o", req.Output)
	return n.run(tools.Command{Name: n.cfg.GCC, Args: args, Output: tools.OutputErrorsOnly})
}

func (n *Native) Link(req LinkRequest) error {
	args := append([]string(nil), req.Inputs...)
	args = append(args, linkFlags...)
	linkMap := req.LinkMap
	if linkMap == "" {
		linkMap = n.cfg.SDK.LinkMap()
	}
	args = append(args, "-T", linkMap, "-o", req.Output)
	return n.run(tools.Command{Name: n.cfg.GCC, Args: args, Output: tools.OutputErrorsOnly})
}

func (n *Native) ExtractBinary(elfPath string, binPath string) error {
	return n.run(tools.Command{
		Name:   n.cfg.Objcopy,
		Args:   []string{"-O", "binary", elfPath, binPath},
		Output: tools.OutputErrorsOnly,
	})
}

func (n *Native) RunBundleCompiler(stagingDir string, packagePath string) error {
	args := []string{}
	if n.cfg.SDK.Root != "" {
		args = append(args, "-sdkpath", n.cfg.SDK.Root)
	}
	args = append(args, stagingDir, packagePath)
	return n.run(tools.Command{Name: n.cfg.PDC, Args: args, Output: tools.OutputCapture})
}

func (n *Native) run(cmd tools.Command) error {
	log.Debug().Msgf("toolchain.Native exec cmd=%s", cmd.String())
	_, err := tools.Invoke(n.runner, cmd)
	return err
}
