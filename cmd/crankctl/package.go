package main

import (
	"fmt"

	"github.com/danmuck/crankctl/internal/packager"
	"github.com/gookit/color"
	"github.com/spf13/cobra"
)

func newPackageCmd(e env, rootOpts *rootOptions) *cobra.Command {
	opts := &buildOptions{}
	var reveal bool
	cmd := &cobra.Command{
		Use:   "package",
		Short: "Build device and simulator release bundles and zip them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(e, rootOpts)
			if err != nil {
				return err
			}
			p := packager.New(a.orchestrator(), a.cfg.Platform, e.runner)
			res, err := p.Package(opts.config(a.root, a.cargoManifest), packager.Options{Clean: opts.clean, Reveal: reveal})
			if err != nil {
				return err
			}
			fmt.Fprintln(e.stdout, color.Success.Sprintf("packaged %s", res.ArchivePath))
			return nil
		},
	}

	// package always builds both kinds in release.
	fs := cmd.Flags()
	fs.BoolVar(&opts.clean, "clean", false, "Run cargo clean before the device build")
	fs.StringVar(&opts.example, "example", "", "Package examples/<name>.rs instead of the library")
	fs.StringSliceVar(&opts.features, "features", nil, "Comma separated cargo features")
	fs.BoolVar(&reveal, "reveal", false, "Show the archive in the file manager when done")
	return cmd
}
