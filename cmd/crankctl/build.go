package main

import (
	"fmt"

	"github.com/danmuck/crankctl/internal/device"
	"github.com/danmuck/crankctl/internal/pipeline"
	"github.com/gookit/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type buildOptions struct {
	device   bool
	release  bool
	clean    bool
	example  string
	features []string
}

func addBuildFlags(fs *pflag.FlagSet, o *buildOptions) {
	fs.BoolVar(&o.device, "device", false, "Build for the console instead of the simulator")
	fs.BoolVar(&o.release, "release", false, "Build with the release profile")
	fs.BoolVar(&o.clean, "clean", false, "Run cargo clean before building")
	fs.StringVar(&o.example, "example", "", "Build examples/<name>.rs instead of the library")
	fs.StringSliceVar(&o.features, "features", nil, "Comma separated cargo features")
}

func (o buildOptions) config(root string, cargoManifest string) pipeline.BuildConfig {
	kind := pipeline.Simulator
	if o.device {
		kind = pipeline.Device
	}
	profile := pipeline.Debug
	if o.release {
		profile = pipeline.Release
	}
	target := pipeline.Lib()
	if o.example != "" {
		target = pipeline.Example(o.example)
	}
	cfg := pipeline.NewBuildConfig(kind, profile, target, root, o.features...)
	cfg.ManifestPath = cargoManifest
	return cfg
}

func newBuildCmd(e env, rootOpts *rootOptions) *cobra.Command {
	opts := &buildOptions{}
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Compile the target and produce a .pdx bundle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(e, rootOpts, *opts, false, "")
		},
	}
	addBuildFlags(cmd.Flags(), opts)
	return cmd
}

func newRunCmd(e env, rootOpts *rootOptions) *cobra.Command {
	opts := &buildOptions{}
	var timeout string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Build the bundle, then launch it in the simulator or on the device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(e, rootOpts, *opts, true, timeout)
		},
	}
	addBuildFlags(cmd.Flags(), opts)
	cmd.Flags().StringVar(&timeout, "device-timeout", "", "Bound each device wait (Go duration, 0 waits forever)")
	return cmd
}

func runPipeline(e env, rootOpts *rootOptions, opts buildOptions, deploy bool, timeout string) error {
	a, err := loadApp(e, rootOpts)
	if err != nil {
		return err
	}
	if timeout != "" {
		d, err := device.ParseTimeout(timeout)
		if err != nil {
			return fmt.Errorf("parse --device-timeout: %w", err)
		}
		a.cfg.Device.Timeout = d
	}

	var pipeOpts []pipeline.Option
	if deploy {
		pipeOpts = append(pipeOpts, pipeline.WithDeployer(a.dispatcher()))
	}
	res, err := a.orchestrator(pipeOpts...).Run(
		opts.config(a.root, a.cargoManifest),
		pipeline.RunOptions{Clean: opts.clean, Deploy: deploy},
	)
	if err != nil {
		return err
	}
	fmt.Fprintln(e.stdout, color.Success.Sprintf("built %s", res.PackagePath))
	return nil
}
