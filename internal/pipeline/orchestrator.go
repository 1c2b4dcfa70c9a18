// Package pipeline turns a crate target into a console bundle.
//
// Stage order is fixed: clean (optional) -> build -> binary -> stage ->
// assets -> metadata -> package -> deploy (optional). A failing stage stops
// the run; the staging directory is left in place for inspection.
package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/danmuck/crankctl/internal/bundle"
	"github.com/danmuck/crankctl/internal/deploy"
	"github.com/danmuck/crankctl/internal/manifest"
	"github.com/danmuck/crankctl/internal/platform"
	"github.com/danmuck/crankctl/internal/sdk"
	"github.com/danmuck/crankctl/internal/toolchain"
	"github.com/danmuck/crankctl/internal/tools"
	"github.com/rs/zerolog/log"
)

// Stage names one pipeline step.
type Stage string

const (
	StageResolve  Stage = "resolve"
	StageClean    Stage = "clean"
	StageBuild    Stage = "build"
	StageBinary   Stage = "binary"
	StageStage    Stage = "stage"
	StageAssets   Stage = "assets"
	StageMetadata Stage = "metadata"
	StagePackage  Stage = "package"
	StageDeploy   Stage = "deploy"
)

var ErrStagingInvariant = errors.New("pipeline: staging directory must hold exactly one loadable binary")

// StageError records which stage stopped the run.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("pipeline stage=%s: %v", e.Stage, e.Err) }

func (e *StageError) Unwrap() error { return e.Err }

// Deployer receives the finished bundle when a run is requested.
type Deployer interface {
	Dispatch(kind deploy.Kind, bundlePath string, title string) error
}

// Observer is told when each stage starts.
type Observer func(stage Stage)

// RunOptions are per-invocation switches that are not part of the build itself.
type RunOptions struct {
	Clean  bool
	Deploy bool
}

// Result describes the outputs of a successful run.
type Result struct {
	Identifier  string
	Title       string
	StagingDir  string
	PackagePath string
	Kind        deploy.Kind
}

// Orchestrator sequences toolchain calls and bundle assembly.
type Orchestrator struct {
	toolchain toolchain.Toolchain
	platform  platform.Platform
	sdk       sdk.SDK
	manifest  *manifest.Manifest
	deployer  Deployer
	observer  Observer
}

type Option func(*Orchestrator)

func WithDeployer(d Deployer) Option { return func(o *Orchestrator) { o.deployer = d } }
func WithObserver(f Observer) Option { return func(o *Orchestrator) { o.observer = f } }

// New builds an Orchestrator. A nil manifest is treated as empty.
func New(tc toolchain.Toolchain, p platform.Platform, s sdk.SDK, m *manifest.Manifest, opts ...Option) *Orchestrator {
	if m == nil {
		m = manifest.Empty()
	}
	o := &Orchestrator{toolchain: tc, platform: p, sdk: s, manifest: m}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// plan is everything derived from a BuildConfig before any tool runs.
type plan struct {
	cfg         BuildConfig
	identifier  string
	artifact    string
	spec        manifest.TargetSpec
	title       string
	artifactDir string
	staging     *bundle.Assembler
	packagePath string
}

// Run executes the pipeline for cfg.
func (o *Orchestrator) Run(cfg BuildConfig, opts RunOptions) (Result, error) {
	o.enter(StageResolve)
	p, err := o.resolve(cfg)
	if err != nil {
		return Result{}, &StageError{Stage: StageResolve, Err: err}
	}
	res := Result{
		Identifier:  p.identifier,
		Title:       p.title,
		StagingDir:  p.staging.Dir,
		PackagePath: p.packagePath,
		Kind:        cfg.Kind,
	}
	log.Info().Msgf(
		"pipeline.Orchestrator.Run target=%s kind=%s profile=%s title=%q",
		cfg.Target, cfg.Kind, cfg.Profile, p.title,
	)

	type step struct {
		stage Stage
		run   func() error
		skip  bool
	}
	var binary string
	steps := []step{
		{stage: StageClean, run: func() error { return o.clean(p) }, skip: !opts.Clean},
		{stage: StageBuild, run: func() error { return o.build(p) }},
		{stage: StageBinary, run: func() (err error) { binary, err = o.binary(p); return err }},
		{stage: StageStage, run: func() error { return o.stage(p, binary) }},
		{stage: StageAssets, run: func() error { return p.staging.CopyAssets(p.spec.Assets) }},
		{stage: StageMetadata, run: func() error { return p.staging.WriteMetadata(p.spec.Metadata) }},
		{stage: StagePackage, run: func() error { return o.pack(p) }},
		{stage: StageDeploy, run: func() error { return o.deploy(p) }, skip: !opts.Deploy},
	}
	for _, s := range steps {
		if s.skip {
			continue
		}
		o.enter(s.stage)
		if err := s.run(); err != nil {
			log.Error().Msgf("pipeline.Orchestrator.Run failed stage=%s err=%v", s.stage, err)
			return res, &StageError{Stage: s.stage, Err: err}
		}
	}
	log.Info().Msgf("pipeline.Orchestrator.Run complete package=%q", p.packagePath)
	return res, nil
}

func (o *Orchestrator) resolve(cfg BuildConfig) (*plan, error) {
	if cfg.ProjectRoot == "" {
		return nil, tools.ConfigErrorf("", "project root is not set")
	}
	identifier := cfg.Target.ExampleName()
	if cfg.Target.IsLib() {
		name, err := crateName(cargoManifestPath(cfg))
		if err != nil {
			return nil, err
		}
		identifier = name
	}

	spec, _ := o.manifest.Target(identifier)
	title := bundle.DisplayTitle(identifier, spec.Metadata)
	targetDir := cfg.TargetDir()

	artifactDir := targetDir
	if cfg.Kind == Device {
		artifactDir = filepath.Join(artifactDir, toolchain.DeviceTriple)
	}
	artifactDir = filepath.Join(artifactDir, cfg.Profile.String())
	if !cfg.Target.IsLib() {
		artifactDir = filepath.Join(artifactDir, "examples")
	}

	return &plan{
		cfg:         cfg,
		identifier:  identifier,
		artifact:    artifactName(identifier),
		spec:        spec,
		title:       title,
		artifactDir: artifactDir,
		staging:     bundle.New(cfg.ProjectRoot, filepath.Join(targetDir, title)),
		packagePath: filepath.Join(targetDir, title+bundle.PackageExt),
	}, nil
}

func (o *Orchestrator) clean(p *plan) error {
	if err := o.toolchain.Clean(toolchain.CleanRequest{
		Dir:          p.cfg.ProjectRoot,
		ManifestPath: p.cfg.ManifestPath,
	}); err != nil {
		return err
	}
	if err := os.RemoveAll(p.staging.Dir); err != nil {
		return tools.FSErr("remove", p.staging.Dir, err)
	}
	return nil
}

func (o *Orchestrator) build(p *plan) error {
	return o.toolchain.Build(toolchain.BuildRequest{
		Dir:          p.cfg.ProjectRoot,
		ManifestPath: p.cfg.ManifestPath,
		Example:      p.cfg.Target.ExampleName(),
		Release:      p.cfg.Profile == Release,
		Device:       p.cfg.Kind == Device,
		Features:     p.cfg.Features(),
	})
}

// binary produces the loadable artifact and returns its path: a flat binary
// for the device, the cargo-built dynamic library for the simulator.
func (o *Orchestrator) binary(p *plan) (string, error) {
	if p.cfg.Kind != Device {
		lib := filepath.Join(p.artifactDir, o.platform.DylibName(p.artifact))
		if _, err := os.Stat(lib); err != nil {
			return "", tools.FSErr("locate simulator library", lib, err)
		}
		return lib, nil
	}

	setupObj := filepath.Join(p.artifactDir, "setup.o")
	elf := filepath.Join(p.artifactDir, p.artifact+".elf")
	bin := filepath.Join(p.artifactDir, p.artifact+".bin")
	if err := o.toolchain.Compile(toolchain.CompileRequest{
		Source:      o.sdk.SetupSource(),
		Output:      setupObj,
		IncludeDirs: []string{o.sdk.CAPI()},
	}); err != nil {
		return "", err
	}
	if err := o.toolchain.Link(toolchain.LinkRequest{
		Inputs:  []string{setupObj, filepath.Join(p.artifactDir, "lib"+p.artifact+".a")},
		LinkMap: o.sdk.LinkMap(),
		Output:  elf,
	}); err != nil {
		return "", err
	}
	if err := o.toolchain.ExtractBinary(elf, bin); err != nil {
		return "", err
	}
	return bin, nil
}

// stage creates the staging directory and places the loadable binary in it.
func (o *Orchestrator) stage(p *plan, binary string) error {
	if err := p.staging.Create(); err != nil {
		return err
	}
	pdexBin := p.staging.Path(bundle.BinaryName)
	pdexLib := p.staging.Path(bundle.LibraryName(o.platform.DylibExt()))

	if p.cfg.Kind == Device {
		if _, err := tools.CopyFile(binary, pdexBin, 0o644); err != nil {
			return err
		}
		if err := os.Remove(pdexLib); err != nil && !errors.Is(err, os.ErrNotExist) {
			return tools.FSErr("remove", pdexLib, err)
		}
		return nil
	}

	if _, err := tools.CopyFile(binary, pdexLib, 0o755); err != nil {
		return err
	}
	// pdc requires pdex.bin; keep a device binary staged by an earlier run.
	if !tools.Exists(pdexBin) {
		if err := os.WriteFile(pdexBin, nil, 0o644); err != nil {
			return tools.FSErr("create", pdexBin, err)
		}
	}
	return nil
}

func (o *Orchestrator) pack(p *plan) error {
	if err := o.verifyStaging(p); err != nil {
		return err
	}
	if err := os.RemoveAll(p.packagePath); err != nil {
		return tools.FSErr("remove", p.packagePath, err)
	}
	return o.toolchain.RunBundleCompiler(p.staging.Dir, p.packagePath)
}

func (o *Orchestrator) verifyStaging(p *plan) error {
	hasBin := tools.Exists(p.staging.Path(bundle.BinaryName))
	hasLib := tools.Exists(p.staging.Path(bundle.LibraryName(o.platform.DylibExt())))
	switch {
	case p.cfg.Kind == Device && hasBin && !hasLib:
		return nil
	case p.cfg.Kind == Simulator && hasLib:
		return nil
	}
	return fmt.Errorf("%w: kind=%s dir=%q pdex.bin=%t library=%t",
		ErrStagingInvariant, p.cfg.Kind, p.staging.Dir, hasBin, hasLib)
}

func (o *Orchestrator) deploy(p *plan) error {
	if o.deployer == nil {
		return errors.New("pipeline: run requested but no deployer configured")
	}
	return o.deployer.Dispatch(p.cfg.Kind, p.packagePath, p.title)
}

func (o *Orchestrator) enter(stage Stage) {
	log.Debug().Msgf("pipeline.Orchestrator stage=%s", stage)
	if o.observer != nil {
		o.observer(stage)
	}
}
