// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/mod/semver"
)

// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
var ErrInvalidConfig = errors.New("invalid config")

type (
	// Config is the root configuration.
	Config struct {
		App          AppConfig          `json:"app" mapstructure:"app"`
		Interpreter  InterpreterConfig  `json:"interpreter" mapstructure:"interpreter"`
		Environment  EnvironmentConfig  `json:"environment" mapstructure:"environment"`
		Dependencies DependenciesConfig `json:"dependencies" mapstructure:"dependencies"`
		Packaging    PackagingConfig    `json:"packaging" mapstructure:"packaging"`
		Fetch        FetchConfig        `json:"fetch" mapstructure:"fetch"`
		UI           UIConfig           `json:"ui" mapstructure:"ui"`
	}

	// AppConfig names the application being bundled and its entry point.
	AppConfig struct {
		// Name is the bundle and executable name.
		Name string `json:"name" mapstructure:"name"`
		// Module is the dotted module that holds the entry function.
		Module string `json:"module" mapstructure:"module"`
		// Function is the callable invoked by the launcher.
		Function string `json:"function" mapstructure:"function"`
		// ForceUTF8 makes the launcher reconfigure stdio to UTF-8.
		ForceUTF8 bool `json:"force_utf8" mapstructure:"force_utf8"`
	}

	// InterpreterConfig controls interpreter discovery.
	InterpreterConfig struct {
		// MinVersion is "MAJOR.MINOR".
		MinVersion string `json:"min_version" mapstructure:"min_version"`
		// Candidates are probed in order.
		Candidates   []string      `json:"candidates" mapstructure:"candidates"`
		ProbeTimeout time.Duration `json:"probe_timeout" mapstructure:"probe_timeout"`
	}

	// EnvironmentConfig controls the isolated environment.
	EnvironmentConfig struct {
		Dir string `json:"dir" mapstructure:"dir"`
		// StaleArtifacts are removed before every run.
		StaleArtifacts []string `json:"stale_artifacts" mapstructure:"stale_artifacts"`
		// CreateAlias links "python" to "python3" on POSIX hosts.
		CreateAlias   bool          `json:"create_alias" mapstructure:"create_alias"`
		CreateTimeout time.Duration `json:"create_timeout" mapstructure:"create_timeout"`
		// Wrapper is the launcher file name written by the environment pipeline.
		Wrapper string `json:"wrapper" mapstructure:"wrapper"`
	}

	// PackageEntry is one package to install.
	PackageEntry struct {
		Name     string `json:"name" mapstructure:"name"`
		Critical bool   `json:"critical" mapstructure:"critical"`
	}

	// RetryConfig bounds a retry loop.
	RetryConfig struct {
		MaxAttempts int           `json:"max_attempts" mapstructure:"max_attempts"`
		Delay       time.Duration `json:"delay" mapstructure:"delay"`
	}

	// DependenciesConfig lists the packages to install.
	DependenciesConfig struct {
		Packages       []PackageEntry `json:"packages" mapstructure:"packages"`
		Retry          RetryConfig    `json:"retry" mapstructure:"retry"`
		InstallTimeout time.Duration  `json:"install_timeout" mapstructure:"install_timeout"`
	}

	// DataEntry maps a glob under the environment root into the bundle.
	DataEntry struct {
		Source string `json:"source" mapstructure:"source"`
		Dest   string `json:"dest" mapstructure:"dest"`
	}

	// ToolConfig names the packaging tool.
	ToolConfig struct {
		Package string `json:"package" mapstructure:"package"`
		Module  string `json:"module" mapstructure:"module"`
	}

	// PackagingConfig controls the executable packager.
	PackagingConfig struct {
		OutputDir       string        `json:"output_dir" mapstructure:"output_dir"`
		WorkDir         string        `json:"work_dir" mapstructure:"work_dir"`
		SpecDir         string        `json:"spec_dir" mapstructure:"spec_dir"`
		EntryScript     string        `json:"entry_script" mapstructure:"entry_script"`
		ExcludedModules []string      `json:"excluded_modules" mapstructure:"excluded_modules"`
		CollectData     []string      `json:"collect_data" mapstructure:"collect_data"`
		HiddenImports   []string      `json:"hidden_imports" mapstructure:"hidden_imports"`
		ExtraData       []DataEntry   `json:"extra_data" mapstructure:"extra_data"`
		Tool            ToolConfig    `json:"tool" mapstructure:"tool"`
		Timeout         time.Duration `json:"timeout" mapstructure:"timeout"`
		MinSize         int64         `json:"min_size" mapstructure:"min_size"`
	}

	// FetchConfig controls the platform binary fetcher.
	FetchConfig struct {
		ReleaseBase string `json:"release_base" mapstructure:"release_base"`
		OutputDir   string `json:"output_dir" mapstructure:"output_dir"`
		// ChecksumAsset is the release's sha256sum file; empty disables the check.
		ChecksumAsset string        `json:"checksum_asset" mapstructure:"checksum_asset"`
		Retry         RetryConfig   `json:"retry" mapstructure:"retry"`
		VerifyTimeout time.Duration `json:"verify_timeout" mapstructure:"verify_timeout"`
	}

	// UIConfig contains user interface settings.
	UIConfig struct {
		// Verbose enables debug-level progress output.
		Verbose bool `json:"verbose" mapstructure:"verbose"`
	}

	// InvalidConfigError lists every problem CUE could not catch.
	// It wraps ErrInvalidConfig for errors.Is() compatibility.
	InvalidConfigError struct {
		Problems []string
	}
)

// Error implements the error interface.
func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid config: %s", strings.Join(e.Problems, "; "))
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

// DefaultConfig returns the defaults, which bundle spotdl.
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:      "spotdl",
			Module:    "spotdl.console.entry_point",
			Function:  "entry_point",
			ForceUTF8: true,
		},
		Interpreter: InterpreterConfig{
			MinVersion:   "3.10",
			Candidates:   []string{"python3.12", "python3.11", "python3.10", "python3", "python"},
			ProbeTimeout: 5 * time.Second,
		},
		Environment: EnvironmentConfig{
			Dir:            "spotdl_env",
			StaleArtifacts: []string{"spotdl-executable", "build", "dist", "spotdl.spec"},
			CreateAlias:    true,
			CreateTimeout:  5 * time.Minute,
			Wrapper:        "spotdl_wrapper.py",
		},
		Dependencies: DependenciesConfig{
			Packages: []PackageEntry{
				{Name: "spotdl", Critical: true},
				{Name: "yt-dlp", Critical: false},
			},
			Retry:          RetryConfig{MaxAttempts: 3, Delay: 5 * time.Second},
			InstallTimeout: 5 * time.Minute,
		},
		Packaging: PackagingConfig{
			OutputDir:       "dist",
			WorkDir:         "build",
			SpecDir:         ".",
			EntryScript:     "spotdl_entry.py",
			ExcludedModules: []string{"PIL", "matplotlib", "numpy", "pytest", "setuptools", "tkinter"},
			CollectData:     []string{"pykakasi", "spotdl", "ytmusicapi"},
			ExtraData: []DataEntry{
				{Source: "lib/python*/site-packages/ytmusicapi/locales", Dest: "ytmusicapi/locales"},
			},
			Tool:    ToolConfig{Package: "pyinstaller", Module: "PyInstaller"},
			Timeout: 10 * time.Minute,
			MinSize: 1,
		},
		Fetch: FetchConfig{
			ReleaseBase:   "https://github.com/yt-dlp/yt-dlp",
			OutputDir:     "bin",
			ChecksumAsset: "SHA2-256SUMS",
			Retry:         RetryConfig{MaxAttempts: 3, Delay: 2 * time.Second},
			VerifyTimeout: 30 * time.Second,
		},
		UI: UIConfig{Verbose: false},
	}
}

// Validate checks the constraints the CUE schema cannot express.
func (c *Config) Validate() error {
	var problems []string

	if strings.Count(c.Interpreter.MinVersion, ".") != 1 || !semver.IsValid("v"+c.Interpreter.MinVersion) {
		problems = append(problems, fmt.Sprintf("interpreter.min_version %q is not MAJOR.MINOR", c.Interpreter.MinVersion))
	}
	if len(c.Interpreter.Candidates) == 0 {
		problems = append(problems, "interpreter.candidates must not be empty")
	}

	seen := make(map[string]bool, len(c.Dependencies.Packages))
	critical := 0
	for i, p := range c.Dependencies.Packages {
		key := strings.ToLower(p.Name)
		if seen[key] {
			problems = append(problems, fmt.Sprintf("dependencies.packages[%d]: duplicate package %q", i, p.Name))
		}
		seen[key] = true
		if p.Critical {
			critical++
		}
	}
	if critical == 0 {
		problems = append(problems, "dependencies.packages must contain at least one critical package")
	}

	for i, d := range c.Packaging.ExtraData {
		if strings.TrimSpace(d.Source) == "" || strings.TrimSpace(d.Dest) == "" {
			problems = append(problems, fmt.Sprintf("packaging.extra_data[%d]: source and dest are required", i))
		}
	}
	if !isSubdir(c.Environment.Dir) {
		problems = append(problems, fmt.Sprintf("environment.dir %q must name a subdirectory of the working directory", c.Environment.Dir))
	}
	for i, a := range c.Environment.StaleArtifacts {
		if !isSubdir(a) {
			problems = append(problems, fmt.Sprintf("environment.stale_artifacts[%d]: %q must name a path inside the working directory", i, a))
		}
	}

	if len(problems) > 0 {
		return &InvalidConfigError{Problems: problems}
	}
	return nil
}

// isSubdir reports whether p is a relative path that stays below the working
// directory without naming the directory itself.
func isSubdir(p string) bool {
	p = strings.TrimSpace(p)
	if p == "" {
		return false
	}
	clean := filepath.Clean(p)
	return clean != "." && filepath.IsLocal(clean)
}
