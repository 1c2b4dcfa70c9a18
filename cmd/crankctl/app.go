package main

import (
	"github.com/danmuck/crankctl/internal/config"
	"github.com/danmuck/crankctl/internal/deploy"
	"github.com/danmuck/crankctl/internal/device"
	"github.com/danmuck/crankctl/internal/pipeline"
	"github.com/danmuck/crankctl/internal/simulator"
	"github.com/danmuck/crankctl/internal/toolchain"
	"github.com/rs/zerolog/log"
)

// app is the resolved configuration plus the wired components for one command.
type app struct {
	env           env
	cfg           config.Config
	root          string
	cargoManifest string
}

func loadApp(e env, opts *rootOptions) (*app, error) {
	root, cargoManifest, crankManifest, err := opts.paths(e)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(config.Sources{
		ProjectRoot:   root,
		CrankManifest: crankManifest,
		GOOS:          e.goos,
		Home:          e.home,
		Getenv:        e.getenv,
	})
	if err != nil {
		return nil, err
	}
	log.Debug().Msgf(
		"crankctl.loadApp root=%q platform=%s sdk=%q manifest=%q targets=%d",
		root, cfg.Platform.Name(), cfg.SDK.Root, cfg.ManifestPath, cfg.Manifest.Len(),
	)
	return &app{env: e, cfg: cfg, root: root, cargoManifest: cargoManifest}, nil
}

func (a *app) orchestrator(opts ...pipeline.Option) *pipeline.Orchestrator {
	tc := toolchain.NewNative(a.cfg.Toolchain, a.env.runner)
	return pipeline.New(tc, a.cfg.Platform, a.cfg.SDK, a.cfg.Manifest, opts...)
}

// dispatcher wires the simulator launcher and the device state machine.
func (a *app) dispatcher() *deploy.Dispatcher {
	machineOpts := []device.Option{
		device.WithObserver(func(from device.State, to device.State) {
			log.Info().Msgf("crankctl.deploy device state from=%s to=%s", from, to)
		}),
	}
	if a.env.terminal {
		machineOpts = append(machineOpts, device.WithProgress(device.BarProgress(a.env.stderr)))
	}
	return &deploy.Dispatcher{
		Simulator: simulator.NewLauncher(a.cfg.SDK, a.cfg.Platform, a.env.runner),
		Device:    device.NewMachine(a.cfg.Device, a.cfg.Platform, a.env.runner, machineOpts...),
	}
}
