// SPDX-License-Identifier: MPL-2.0

package packager

import (
	"path/filepath"
	"slices"
	"time"

	"github.com/invowk/pybundle/internal/entrypoint"
	"github.com/invowk/pybundle/pkg/platform"
)

// DefaultTimeout is the packaging tool's time budget. Bundling is slow.
const DefaultTimeout = 10 * time.Minute

type (
	// DataMapping adds a data directory to the bundle. Source is a glob
	// relative to the environment root, e.g.
	// "lib/python*/site-packages/ytmusicapi/locales".
	DataMapping struct {
		Source string
		Dest   string
	}

	// Tool names the packaging tool: the package to install and the module
	// to run with "python -m".
	Tool struct {
		Package string
		Module  string
	}

	// Config is the declarative description of one packaging run.
	Config struct {
		// AppName is the bundle name and the base name of the output file.
		AppName string
		Entry   entrypoint.Spec
		// EntryScript is the file name of the generated launcher.
		EntryScript string

		OutputDir string // final artifact directory
		WorkDir   string // tool scratch directory, removed afterwards
		SpecDir   string // where the tool writes <AppName>.spec

		ExcludedModules []string
		CollectData     []string
		HiddenImports   []string
		ExtraData       []DataMapping
		PlatformFlags   []string

		Tool    Tool
		Timeout time.Duration
		MinSize int64
	}
)

// DefaultTool is PyInstaller.
var DefaultTool = Tool{Package: "pyinstaller", Module: "PyInstaller"}

// PlatformFlags returns the tool flags specific to the target platform.
func PlatformFlags(goos, goarch string) []string {
	if goos != platform.Darwin {
		return nil
	}
	switch goarch {
	case platform.ARM64:
		return []string{"--target-architecture", "arm64"}
	case platform.AMD64:
		return []string{"--target-architecture", "x86_64"}
	default:
		return nil
	}
}

// Normalized returns a copy with defaults applied and every set sorted and
// de-duplicated, so the same configuration always yields the same command.
func (c Config) Normalized() Config {
	out := c
	if out.EntryScript == "" {
		out.EntryScript = out.AppName + "_entry.py"
	}
	if out.WorkDir == "" {
		out.WorkDir = "build"
	}
	if out.SpecDir == "" {
		out.SpecDir = "."
	}
	if out.OutputDir == "" {
		out.OutputDir = "dist"
	}
	if out.Tool == (Tool{}) {
		out.Tool = DefaultTool
	}
	if out.Timeout <= 0 {
		out.Timeout = DefaultTimeout
	}
	out.ExcludedModules = sortedSet(c.ExcludedModules)
	out.CollectData = sortedSet(c.CollectData)
	out.HiddenImports = sortedSet(c.HiddenImports)
	out.ExtraData = slices.Clone(c.ExtraData)
	out.PlatformFlags = slices.Clone(c.PlatformFlags)
	return out
}

// OutputPath returns the expected artifact path for goos.
func (c Config) OutputPath(goos string) string {
	return filepath.Join(c.OutputDir, c.AppName+platform.ExeSuffix(goos))
}

// SpecFile returns the path of the tool's generated spec file.
func (c Config) SpecFile() string {
	return filepath.Join(c.SpecDir, c.AppName+".spec")
}

// Args composes the tool's argument list after "python -m <module>".
// dataArgs holds already-resolved "SRC<sep>DEST" pairs.
func (c Config) Args(scriptPath string, dataArgs []string) []string {
	args := []string{
		"--onefile",
		"--name", c.AppName,
		"--distpath", c.OutputDir,
		"--workpath", c.WorkDir,
		"--specpath", c.SpecDir,
		"--clean",
		"--noconfirm",
	}
	for _, m := range c.ExcludedModules {
		args = append(args, "--exclude-module", m)
	}
	for _, m := range c.CollectData {
		args = append(args, "--collect-data", m)
	}
	for _, m := range c.HiddenImports {
		args = append(args, "--hidden-import", m)
	}
	for _, d := range dataArgs {
		args = append(args, "--add-data", d)
	}
	args = append(args, c.PlatformFlags...)
	return append(args, scriptPath)
}

// dataSeparator is the SRC/DEST separator the tool expects on goos.
func dataSeparator(goos string) string {
	if platform.IsWindows(goos) {
		return ";"
	}
	return ":"
}

func sortedSet(in []string) []string {
	out := slices.Clone(in)
	slices.Sort(out)
	return slices.Compact(out)
}
