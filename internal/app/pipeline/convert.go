// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"github.com/invowk/pybundle/internal/config"
	"github.com/invowk/pybundle/internal/deps"
	"github.com/invowk/pybundle/internal/entrypoint"
	"github.com/invowk/pybundle/internal/packager"
	"github.com/invowk/pybundle/internal/retry"
	"github.com/invowk/pybundle/internal/venv"
)

// The functions below map configuration sections onto component inputs.

func entrySpec(app config.AppConfig) entrypoint.Spec {
	return entrypoint.Spec{
		AppName:   app.Name,
		Module:    app.Module,
		Function:  app.Function,
		ForceUTF8: app.ForceUTF8,
	}
}

func packages(cfg config.DependenciesConfig) []deps.Package {
	out := make([]deps.Package, len(cfg.Packages))
	for i, p := range cfg.Packages {
		out[i] = deps.Package{Name: p.Name, Critical: p.Critical}
	}
	return out
}

func venvOptions(cfg config.EnvironmentConfig) venv.Options {
	return venv.Options{
		Dir:            cfg.Dir,
		StaleArtifacts: cfg.StaleArtifacts,
		CreateAlias:    cfg.CreateAlias,
	}
}

func policy(cfg config.RetryConfig, sleep retryDelay) retry.Policy {
	return retry.Policy{MaxAttempts: cfg.MaxAttempts, Delay: cfg.Delay, Sleep: sleep}
}

func packagerConfig(cfg *config.Config, goos, goarch string) packager.Config {
	p := cfg.Packaging
	extra := make([]packager.DataMapping, len(p.ExtraData))
	for i, d := range p.ExtraData {
		extra[i] = packager.DataMapping{Source: d.Source, Dest: d.Dest}
	}
	return packager.Config{
		AppName:         cfg.App.Name,
		Entry:           entrySpec(cfg.App),
		EntryScript:     p.EntryScript,
		OutputDir:       p.OutputDir,
		WorkDir:         p.WorkDir,
		SpecDir:         p.SpecDir,
		ExcludedModules: p.ExcludedModules,
		CollectData:     p.CollectData,
		HiddenImports:   p.HiddenImports,
		ExtraData:       extra,
		PlatformFlags:   packager.PlatformFlags(goos, goarch),
		Tool:            packager.Tool{Package: p.Tool.Package, Module: p.Tool.Module},
		Timeout:         p.Timeout,
		MinSize:         p.MinSize,
	}
}
