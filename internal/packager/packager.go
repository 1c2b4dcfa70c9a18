// Package packager produces a distributable archive holding both the device
// and simulator builds of one target.
package packager

import (
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/danmuck/crankctl/internal/bundle"
	"github.com/danmuck/crankctl/internal/pipeline"
	"github.com/danmuck/crankctl/internal/platform"
	"github.com/danmuck/crankctl/internal/tools"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
	"github.com/rs/zerolog/log"
)

// Runner is satisfied by *pipeline.Orchestrator.
type Runner interface {
	Run(cfg pipeline.BuildConfig, opts pipeline.RunOptions) (pipeline.Result, error)
}

// Options control one packaging invocation.
type Options struct {
	Clean  bool
	Reveal bool
}

// Result names the produced artifacts.
type Result struct {
	Title       string
	PackagePath string
	ArchivePath string
}

type Packager struct {
	runner   Runner
	platform platform.Platform
	exec     tools.CommandRunner
}

// New returns a packager. exec is only used for the reveal command.
func New(runner Runner, p platform.Platform, exec tools.CommandRunner) *Packager {
	return &Packager{runner: runner, platform: p, exec: exec}
}

// Package runs a release device build followed by a release simulator build
// of the same target, then zips the resulting bundle. Nothing is deployed.
func (p *Packager) Package(base pipeline.BuildConfig, opts Options) (Result, error) {
	runs := []struct {
		cfg   pipeline.BuildConfig
		clean bool
	}{
		{cfg: base.With(pipeline.Device, pipeline.Release), clean: opts.Clean},
		{cfg: base.With(pipeline.Simulator, pipeline.Release)},
	}

	var last pipeline.Result
	for _, run := range runs {
		log.Info().Msgf("packager.Packager.Package kind=%s target=%s", run.cfg.Kind, run.cfg.Target)
		res, err := p.runner.Run(run.cfg, pipeline.RunOptions{Clean: run.clean})
		if err != nil {
			return Result{}, err
		}
		last = res
	}

	out := Result{
		Title:       last.Title,
		PackagePath: last.PackagePath,
		ArchivePath: last.PackagePath + bundle.ArchiveExt,
	}
	if err := Archive(out.PackagePath, out.ArchivePath); err != nil {
		return out, err
	}
	log.Info().Msgf("packager.Packager.Package archive=%q", out.ArchivePath)

	if opts.Reveal {
		p.reveal(out.ArchivePath)
	}
	return out, nil
}

func (p *Packager) reveal(path string) {
	if p.exec == nil || p.platform == nil {
		return
	}
	if _, err := tools.Invoke(p.exec, p.platform.RevealCommand(path)); err != nil {
		log.Warn().Msgf("packager.Packager.reveal path=%q err=%v", path, err)
	}
}

// Archive replaces archivePath with a deflate zip of the directory at
// bundlePath. Entries are prefixed with the bundle directory's base name.
func Archive(bundlePath string, archivePath string) error {
	if err := os.Remove(archivePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return tools.FSErr("remove", archivePath, err)
	}
	f, err := os.Create(archivePath)
	if err != nil {
		return tools.FSErr("create", archivePath, err)
	}

	zw := zip.NewWriter(f)
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, flate.BestCompression)
	})

	prefix := filepath.Base(bundlePath)
	walkErr := filepath.WalkDir(bundlePath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return tools.FSErr("walk", path, err)
		}
		rel, err := filepath.Rel(bundlePath, path)
		if err != nil {
			return tools.FSErr("walk", path, err)
		}
		name := filepath.ToSlash(filepath.Join(prefix, rel))
		if d.IsDir() {
			_, err := zw.Create(name + "/")
			return tools.FSErr("archive", path, err)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return addFile(zw, path, name)
	})

	closeErr := zw.Close()
	if err := f.Close(); closeErr == nil {
		closeErr = err
	}
	if walkErr != nil {
		return walkErr
	}
	return tools.FSErr("write", archivePath, closeErr)
}

func addFile(zw *zip.Writer, path string, name string) error {
	info, err := os.Stat(path)
	if err != nil {
		return tools.FSErr("stat", path, err)
	}
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return tools.FSErr("archive", path, err)
	}
	hdr.Name = name
	hdr.Method = zip.Deflate

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return tools.FSErr("archive", path, err)
	}
	in, err := os.Open(path)
	if err != nil {
		return tools.FSErr("open", path, err)
	}
	defer in.Close()
	if _, err := io.Copy(w, in); err != nil {
		return tools.FSErr("archive", path, err)
	}
	return nil
}
