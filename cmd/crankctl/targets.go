package main

import (
	"fmt"

	"github.com/danmuck/crankctl/internal/bundle"
	"github.com/gookit/color"
	"github.com/spf13/cobra"
)

func newTargetsCmd(e env, rootOpts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "targets",
		Short: "List targets declared in Crank.toml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(e, rootOpts)
			if err != nil {
				return err
			}
			m := a.cfg.Manifest
			if m.Len() == 0 {
				fmt.Fprintf(e.stdout, "no targets declared in %s\n", a.cfg.ManifestPath)
				return nil
			}
			for _, name := range m.Names() {
				spec, _ := m.Target(name)
				fmt.Fprintf(e.stdout, "%s\t%s\tassets=%d\n",
					color.Cyan.Sprint(name), bundle.DisplayTitle(name, spec.Metadata), len(spec.Assets))
			}
			return nil
		},
	}
}
