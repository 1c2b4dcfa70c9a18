package main

import (
	"io"
	"os"
	"path/filepath"

	"github.com/danmuck/crankctl/internal/logging"
	"github.com/danmuck/crankctl/internal/tools"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// env is the process surface the commands touch. Tests swap every field.
type env struct {
	stdout   io.Writer
	stderr   io.Writer
	getenv   func(string) string
	getwd    func() (string, error)
	home     string
	goos     string
	runner   tools.CommandRunner
	terminal bool
}

func hostEnv() env {
	home, _ := os.UserHomeDir()
	return env{
		stdout:   os.Stdout,
		stderr:   os.Stderr,
		getenv:   os.Getenv,
		getwd:    os.Getwd,
		home:     home,
		runner:   tools.ExecRunner{},
		terminal: term.IsTerminal(int(os.Stderr.Fd())),
	}
}

type rootOptions struct {
	manifestPath  string
	crankManifest string
	verbose       bool
}

// paths resolves the flags against the working directory. root is the
// directory holding Cargo.toml: the parent of --manifest-path when given, the
// working directory otherwise. cargoManifest is "" when the flag is unset.
func (o rootOptions) paths(e env) (root string, cargoManifest string, crankManifest string, err error) {
	wd, err := e.getwd()
	if err != nil {
		return "", "", "", err
	}
	cargoManifest = absFrom(wd, o.manifestPath)
	crankManifest = absFrom(wd, o.crankManifest)
	if cargoManifest == "" {
		return wd, "", crankManifest, nil
	}
	return filepath.Dir(cargoManifest), cargoManifest, crankManifest, nil
}

func absFrom(wd string, path string) string {
	if path == "" {
		return ""
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(wd, path)
	}
	return filepath.Clean(path)
}

func newRootCmd(e env) *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "crankctl",
		Short:         "Build, bundle and deploy Rust games for the Playdate",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.ConfigureRuntime(opts.verbose)
		},
	}
	root.SetOut(e.stdout)
	root.SetErr(e.stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&opts.manifestPath, "manifest-path", "", "Path to the crate's Cargo.toml")
	flags.StringVar(&opts.crankManifest, "crank-manifest", "", "Path to Crank.toml (default: <project>/Crank.toml)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		newBuildCmd(e, opts),
		newRunCmd(e, opts),
		newPackageCmd(e, opts),
		newTargetsCmd(e, opts),
	)
	return root
}
