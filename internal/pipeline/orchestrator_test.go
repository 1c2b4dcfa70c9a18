package pipeline

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/danmuck/crankctl/internal/bundle"
	"github.com/danmuck/crankctl/internal/deploy"
	"github.com/danmuck/crankctl/internal/manifest"
	"github.com/danmuck/crankctl/internal/platform"
	"github.com/danmuck/crankctl/internal/sdk"
	"github.com/danmuck/crankctl/internal/testutil/testlog"
	"github.com/danmuck/crankctl/internal/toolchain"
	"github.com/danmuck/crankctl/internal/tools"
)

// fakeToolchain records calls and produces the files each real tool would.
type fakeToolchain struct {
	calls  []string
	failAt string
	builds []toolchain.BuildRequest
}

func (f *fakeToolchain) step(name string) error {
	f.calls = append(f.calls, name)
	if f.failAt == name {
		return &tools.InvocationError{Command: name, ExitCode: 2}
	}
	return nil
}

func (f *fakeToolchain) Build(req toolchain.BuildRequest) error {
	f.builds = append(f.builds, req)
	return f.step("build")
}

func (f *fakeToolchain) Clean(toolchain.CleanRequest) error { return f.step("clean") }

func (f *fakeToolchain) Compile(req toolchain.CompileRequest) error {
	if err := f.step("compile"); err != nil {
		return err
	}
	return writeFile(req.Output, "obj")
}

func (f *fakeToolchain) Link(req toolchain.LinkRequest) error {
	if err := f.step("link"); err != nil {
		return err
	}
	return writeFile(req.Output, "elf")
}

func (f *fakeToolchain) ExtractBinary(elfPath string, binPath string) error {
	if err := f.step("objcopy"); err != nil {
		return err
	}
	return writeFile(binPath, "device-binary")
}

func (f *fakeToolchain) RunBundleCompiler(stagingDir string, packagePath string) error {
	if err := f.step("pdc"); err != nil {
		return err
	}
	return tools.CopyTree(stagingDir, packagePath, nil)
}

type recordingDeployer struct {
	kind   deploy.Kind
	bundle string
	title  string
	calls  int
	err    error
}

func (d *recordingDeployer) Dispatch(kind deploy.Kind, bundlePath string, title string) error {
	d.calls++
	d.kind, d.bundle, d.title = kind, bundlePath, title
	return d.err
}

func writeFile(path string, body string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(body), 0o644)
}

func mustWrite(t *testing.T, path string, body string) {
	t.Helper()
	if err := writeFile(path, body); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func linux(t *testing.T) platform.Platform {
	t.Helper()
	p, err := platform.ForOS("linux", nil)
	if err != nil {
		t.Fatalf("platform: %v", err)
	}
	return p
}

const helloManifest = `
[[target]]
name = "hello_world"
assets = ["images", "sounds/boot.wav"]

[target.metadata]
author = "Panic"
bundle_id = "com.example.hello"
build_number = 3
`

func newProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "images", "player.png"), "png")
	mustWrite(t, filepath.Join(root, "images", "ui", "font.fnt"), "fnt")
	mustWrite(t, filepath.Join(root, "sounds", "boot.wav"), "wav")
	return root
}

func parseManifest(t *testing.T, raw string) *manifest.Manifest {
	t.Helper()
	m, err := manifest.Parse(raw)
	if err != nil {
		t.Fatalf("parse manifest: %v", err)
	}
	return m
}

func TestDeviceRunProducesBundle(t *testing.T) {
	testlog.Start(t)

	root := newProject(t)
	tc := &fakeToolchain{}
	var stages []Stage
	o := New(tc, linux(t), sdk.SDK{Root: "/sdk"}, parseManifest(t, helloManifest),
		WithObserver(func(s Stage) { stages = append(stages, s) }))

	cfg := NewBuildConfig(Device, Release, Example("hello_world"), root, "b,a", "a")
	res, err := o.Run(cfg, RunOptions{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if want := []string{"build", "compile", "link", "objcopy", "pdc"}; !reflect.DeepEqual(tc.calls, want) {
		t.Fatalf("unexpected tool calls: got=%v want=%v", tc.calls, want)
	}
	wantStages := []Stage{StageResolve, StageBuild, StageBinary, StageStage, StageAssets, StageMetadata, StagePackage}
	if !reflect.DeepEqual(stages, wantStages) {
		t.Fatalf("unexpected stages: got=%v want=%v", stages, wantStages)
	}

	req := tc.builds[0]
	if !req.Device || !req.Release || req.Example != "hello_world" || !reflect.DeepEqual(req.Features, []string{"a", "b"}) {
		t.Fatalf("unexpected build request: %+v", req)
	}

	if res.Title != "Hello World" || res.Identifier != "hello_world" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.StagingDir != filepath.Join(root, "target", "Hello World") {
		t.Fatalf("unexpected staging dir: %s", res.StagingDir)
	}
	if res.PackagePath != filepath.Join(root, "target", "Hello World.pdx") {
		t.Fatalf("unexpected package path: %s", res.PackagePath)
	}

	bin, err := os.ReadFile(filepath.Join(res.StagingDir, bundle.BinaryName))
	if err != nil || string(bin) != "device-binary" {
		t.Fatalf("pdex.bin not staged: %q %v", bin, err)
	}
	if tools.Exists(filepath.Join(res.StagingDir, "pdex.so")) {
		t.Fatalf("device staging must not hold a simulator library")
	}
	for _, rel := range []string{"images/player.png", "images/ui/font.fnt", "sounds/boot.wav"} {
		if !tools.Exists(filepath.Join(res.StagingDir, filepath.FromSlash(rel))) {
			t.Fatalf("asset %s not staged", rel)
		}
		if !tools.Exists(filepath.Join(res.PackagePath, filepath.FromSlash(rel))) {
			t.Fatalf("asset %s missing from package", rel)
		}
	}
	info, err := os.ReadFile(filepath.Join(res.StagingDir, bundle.MetadataFilename))
	if err != nil {
		t.Fatalf("read pdxinfo: %v", err)
	}
	if want := "author=Panic\nbundleID=com.example.hello\nbuildNumber=3\n"; string(info) != want {
		t.Fatalf("unexpected pdxinfo: %q", info)
	}
}

func TestDeviceRunRemovesStaleLibrary(t *testing.T) {
	testlog.Start(t)

	root := t.TempDir()
	stale := filepath.Join(root, "target", "Hello World", "pdex.so")
	mustWrite(t, stale, "old-simulator-build")

	o := New(&fakeToolchain{}, linux(t), sdk.SDK{Root: "/sdk"}, nil)
	if _, err := o.Run(NewBuildConfig(Device, Debug, Example("hello_world"), root), RunOptions{}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if tools.Exists(stale) {
		t.Fatalf("stale simulator library should be removed")
	}
}

func TestSimulatorLibTargetUsesCrateName(t *testing.T) {
	testlog.Start(t)

	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "Cargo.toml"), "[package]\nname = \"my-game\"\nversion = \"0.1.0\"\n")
	mustWrite(t, filepath.Join(root, "target", "debug", "libmy_game.so"), "shared-object")

	tc := &fakeToolchain{}
	o := New(tc, linux(t), sdk.SDK{Root: "/sdk"}, nil)
	res, err := o.Run(NewBuildConfig(Simulator, Debug, Lib(), root), RunOptions{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Identifier != "my-game" || res.Title != "My Game" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if want := []string{"build", "pdc"}; !reflect.DeepEqual(tc.calls, want) {
		t.Fatalf("simulator runs must not compile or link: %v", tc.calls)
	}
	if tc.builds[0].Device || tc.builds[0].Example != "" {
		t.Fatalf("unexpected build request: %+v", tc.builds[0])
	}

	lib, err := os.ReadFile(filepath.Join(res.StagingDir, "pdex.so"))
	if err != nil || string(lib) != "shared-object" {
		t.Fatalf("library not staged: %q %v", lib, err)
	}
	placeholder, err := os.Stat(filepath.Join(res.StagingDir, bundle.BinaryName))
	if err != nil || placeholder.Size() != 0 {
		t.Fatalf("expected empty pdex.bin placeholder: %v", err)
	}
	if tools.Exists(filepath.Join(res.StagingDir, bundle.MetadataFilename)) {
		t.Fatalf("no metadata declared, pdxinfo must not be written")
	}
}

func TestSimulatorRunKeepsExistingDeviceBinary(t *testing.T) {
	testlog.Start(t)

	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "target", "release", "examples", "libhello_world.so"), "so")
	existing := filepath.Join(root, "target", "Hello World", bundle.BinaryName)
	mustWrite(t, existing, "device-binary")

	o := New(&fakeToolchain{}, linux(t), sdk.SDK{Root: "/sdk"}, nil)
	if _, err := o.Run(NewBuildConfig(Simulator, Release, Example("hello_world"), root), RunOptions{}); err != nil {
		t.Fatalf("run: %v", err)
	}
	body, err := os.ReadFile(existing)
	if err != nil || string(body) != "device-binary" {
		t.Fatalf("device binary should survive a simulator run: %q %v", body, err)
	}
}

func TestSimulatorMissingLibrary(t *testing.T) {
	testlog.Start(t)

	tc := &fakeToolchain{}
	o := New(tc, linux(t), sdk.SDK{Root: "/sdk"}, nil)
	_, err := o.Run(NewBuildConfig(Simulator, Debug, Example("hello_world"), t.TempDir()), RunOptions{})

	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != StageBinary {
		t.Fatalf("expected binary stage error, got %v", err)
	}
	if !errors.Is(err, tools.ErrFilesystem) {
		t.Fatalf("expected filesystem error, got %v", err)
	}
}

func TestLibTargetWithoutCrateName(t *testing.T) {
	testlog.Start(t)

	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "Cargo.toml"), "[workspace]\nmembers = []\n")

	tc := &fakeToolchain{}
	o := New(tc, linux(t), sdk.SDK{Root: "/sdk"}, nil)
	_, err := o.Run(NewBuildConfig(Device, Debug, Lib(), root), RunOptions{Clean: true})
	if !errors.Is(err, tools.ErrConfig) {
		t.Fatalf("expected config error, got %v", err)
	}
	if len(tc.calls) != 0 {
		t.Fatalf("no tool may run before the target resolves: %v", tc.calls)
	}
}

func TestFailingStageStopsRun(t *testing.T) {
	testlog.Start(t)

	cases := []struct {
		failAt string
		stage  Stage
	}{
		{failAt: "build", stage: StageBuild},
		{failAt: "link", stage: StageBinary},
		{failAt: "objcopy", stage: StageBinary},
		{failAt: "pdc", stage: StagePackage},
	}
	for _, tc := range cases {
		t.Run(tc.failAt, func(t *testing.T) {
			chain := &fakeToolchain{failAt: tc.failAt}
			d := &recordingDeployer{}
			o := New(chain, linux(t), sdk.SDK{Root: "/sdk"}, nil, WithDeployer(d))
			_, err := o.Run(NewBuildConfig(Device, Debug, Example("demo"), t.TempDir()), RunOptions{Deploy: true})

			var stageErr *StageError
			if !errors.As(err, &stageErr) || stageErr.Stage != tc.stage {
				t.Fatalf("expected stage=%s, got %v", tc.stage, err)
			}
			if !errors.Is(err, tools.ErrToolFailed) {
				t.Fatalf("expected tool failure, got %v", err)
			}
			if last := chain.calls[len(chain.calls)-1]; last != tc.failAt {
				t.Fatalf("run continued past failure: %v", chain.calls)
			}
			if d.calls != 0 {
				t.Fatalf("deploy must not run after a failure")
			}
		})
	}
}

func TestMissingAssetStopsBeforePackage(t *testing.T) {
	testlog.Start(t)

	tc := &fakeToolchain{}
	m := parseManifest(t, "[[target]]\nname = \"demo\"\nassets = [\"missing.png\"]\n")
	o := New(tc, linux(t), sdk.SDK{Root: "/sdk"}, m)
	_, err := o.Run(NewBuildConfig(Device, Debug, Example("demo"), t.TempDir()), RunOptions{})

	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != StageAssets {
		t.Fatalf("expected assets stage error, got %v", err)
	}
	var fsErr *tools.FilesystemError
	if !errors.As(err, &fsErr) || filepath.Base(fsErr.Path) != "missing.png" {
		t.Fatalf("expected error naming the asset, got %v", err)
	}
	for _, call := range tc.calls {
		if call == "pdc" {
			t.Fatalf("bundle compiler must not run")
		}
	}
}

func TestDeployReceivesPackageAndTitle(t *testing.T) {
	testlog.Start(t)

	m := parseManifest(t, "[[target]]\nname = \"demo\"\nassets = []\n\n[target.metadata]\nname = \"Space Rocks\"\n")
	d := &recordingDeployer{}
	o := New(&fakeToolchain{}, linux(t), sdk.SDK{Root: "/sdk"}, m, WithDeployer(d))
	res, err := o.Run(NewBuildConfig(Device, Debug, Example("demo"), t.TempDir()), RunOptions{Deploy: true})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if d.calls != 1 || d.kind != deploy.KindDevice {
		t.Fatalf("unexpected deploy: %+v", d)
	}
	if d.title != "Space Rocks" || d.bundle != res.PackagePath {
		t.Fatalf("unexpected deploy args: title=%q bundle=%q", d.title, d.bundle)
	}
	if filepath.Base(res.PackagePath) != "Space Rocks.pdx" {
		t.Fatalf("package should use the metadata name: %s", res.PackagePath)
	}
}

func TestDeployWithoutDeployer(t *testing.T) {
	testlog.Start(t)

	o := New(&fakeToolchain{}, linux(t), sdk.SDK{Root: "/sdk"}, nil)
	_, err := o.Run(NewBuildConfig(Device, Debug, Example("demo"), t.TempDir()), RunOptions{Deploy: true})
	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != StageDeploy {
		t.Fatalf("expected deploy stage error, got %v", err)
	}
}

func TestCleanRunsFirstAndResetsStaging(t *testing.T) {
	testlog.Start(t)

	root := t.TempDir()
	leftover := filepath.Join(root, "target", "Demo", "old-asset.png")
	mustWrite(t, leftover, "old")

	tc := &fakeToolchain{}
	o := New(tc, linux(t), sdk.SDK{Root: "/sdk"}, nil)
	if _, err := o.Run(NewBuildConfig(Device, Debug, Example("demo"), root), RunOptions{Clean: true}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if tc.calls[0] != "clean" || tc.calls[1] != "build" {
		t.Fatalf("clean must precede build: %v", tc.calls)
	}
	if tools.Exists(leftover) {
		t.Fatalf("clean should reset the staging directory")
	}
}

func TestRerunReplacesPackage(t *testing.T) {
	testlog.Start(t)

	root := t.TempDir()
	stale := filepath.Join(root, "target", "Demo.pdx", "stale.txt")
	mustWrite(t, stale, "stale")

	o := New(&fakeToolchain{}, linux(t), sdk.SDK{Root: "/sdk"}, nil)
	res, err := o.Run(NewBuildConfig(Device, Debug, Example("demo"), root), RunOptions{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if tools.Exists(stale) {
		t.Fatalf("previous package contents should be removed")
	}
	if !tools.Exists(filepath.Join(res.PackagePath, bundle.BinaryName)) {
		t.Fatalf("package missing binary")
	}
}

func TestNewBuildConfigNormalizesFeatures(t *testing.T) {
	cfg := NewBuildConfig(Device, Debug, Lib(), "/p", " b ,a", "", "a,c")
	if got := cfg.Features(); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("unexpected features: %v", got)
	}
	cfg.Features()[0] = "mutated"
	if cfg.Features()[0] != "a" {
		t.Fatalf("Features must return a copy")
	}
	other := cfg.With(Simulator, Release)
	if other.Kind != Simulator || other.Profile != Release || cfg.Kind != Device {
		t.Fatalf("With must not modify the receiver")
	}
}
