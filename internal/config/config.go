// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/invowk/pybundle/internal/issue"
	"github.com/invowk/pybundle/pkg/cueutil"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "pybundle"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// LocalConfigFile is the per-project config file looked up in the work directory.
	LocalConfigFile = AppName + "." + ConfigFileExt
	// EnvPrefix prefixes environment overrides, e.g. PYBUNDLE_UI_VERBOSE.
	EnvPrefix = "PYBUNDLE"
)

//go:embed config_schema.cue
var configSchema string

// ConfigDir returns the pybundle configuration directory under the XDG config
// home ($XDG_CONFIG_HOME, ~/Library/Application Support or %LOCALAPPDATA%).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	// Allow tests to override the config directory
	if configDirOverride != "" {
		return configDirOverride, nil
	}
	if xdg.ConfigHome == "" {
		return "", fmt.Errorf("failed to determine the user config directory")
	}
	return filepath.Join(xdg.ConfigHome, AppName), nil
}

// loadWithOptions performs option-driven config loading without mutating
// package-level state. It returns the config and the path it was read from
// ("" when only defaults and environment applied).
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	resolvedPath, err := findConfigFile(opts)
	if err != nil {
		return nil, "", err
	}
	if resolvedPath != "" {
		if err := loadCUEIntoViper(v, resolvedPath); err != nil {
			return nil, "", loadError(resolvedPath, err,
				"Check that the file contains valid CUE syntax",
				"Verify the configuration values match the expected schema",
				"Use 'pybundle config show' to see the effective configuration")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", loadError(resolvedPath, fmt.Errorf("failed to parse config: %w", err),
			"Durations are strings such as \"5s\" or \"10m\"")
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", loadError(resolvedPath, err,
			"Fix the listed values in your config file or PYBUNDLE_* environment variables")
	}

	return &cfg, resolvedPath, nil
}

// findConfigFile applies the lookup order: explicit file, user config
// directory, then the project file in the work directory. No file is not an
// error.
func findConfigFile(opts LoadOptions) (string, error) {
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return "", loadError(opts.ConfigFilePath,
				fmt.Errorf("config file not found: %s", opts.ConfigFilePath),
				"Verify the file path is correct",
				"Check that the file exists and is readable")
		}
		return opts.ConfigFilePath, nil
	}

	cfgDir, err := configDirWithOverride(opts.ConfigDirPath)
	if err != nil {
		return "", err
	}
	if cuePath := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt); fileExists(cuePath) {
		return cuePath, nil
	}

	localPath := LocalConfigFile
	if opts.WorkDir != "" {
		localPath = filepath.Join(opts.WorkDir, LocalConfigFile)
	}
	if fileExists(localPath) {
		return localPath, nil
	}
	return "", nil
}

// configDirWithOverride resolves the configuration directory, honoring
// explicit provider options before platform defaults.
func configDirWithOverride(configDirPath string) (string, error) {
	if configDirPath != "" {
		return configDirPath, nil
	}

	return ConfigDir()
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("app.name", d.App.Name)
	v.SetDefault("app.module", d.App.Module)
	v.SetDefault("app.function", d.App.Function)
	v.SetDefault("app.force_utf8", d.App.ForceUTF8)

	v.SetDefault("interpreter.min_version", d.Interpreter.MinVersion)
	v.SetDefault("interpreter.candidates", d.Interpreter.Candidates)
	v.SetDefault("interpreter.probe_timeout", d.Interpreter.ProbeTimeout)

	v.SetDefault("environment.dir", d.Environment.Dir)
	v.SetDefault("environment.stale_artifacts", d.Environment.StaleArtifacts)
	v.SetDefault("environment.create_alias", d.Environment.CreateAlias)
	v.SetDefault("environment.create_timeout", d.Environment.CreateTimeout)
	v.SetDefault("environment.wrapper", d.Environment.Wrapper)

	v.SetDefault("dependencies.packages", d.Dependencies.Packages)
	v.SetDefault("dependencies.retry.max_attempts", d.Dependencies.Retry.MaxAttempts)
	v.SetDefault("dependencies.retry.delay", d.Dependencies.Retry.Delay)
	v.SetDefault("dependencies.install_timeout", d.Dependencies.InstallTimeout)

	v.SetDefault("packaging.output_dir", d.Packaging.OutputDir)
	v.SetDefault("packaging.work_dir", d.Packaging.WorkDir)
	v.SetDefault("packaging.spec_dir", d.Packaging.SpecDir)
	v.SetDefault("packaging.entry_script", d.Packaging.EntryScript)
	v.SetDefault("packaging.excluded_modules", d.Packaging.ExcludedModules)
	v.SetDefault("packaging.collect_data", d.Packaging.CollectData)
	v.SetDefault("packaging.hidden_imports", d.Packaging.HiddenImports)
	v.SetDefault("packaging.extra_data", d.Packaging.ExtraData)
	v.SetDefault("packaging.tool.package", d.Packaging.Tool.Package)
	v.SetDefault("packaging.tool.module", d.Packaging.Tool.Module)
	v.SetDefault("packaging.timeout", d.Packaging.Timeout)
	v.SetDefault("packaging.min_size", d.Packaging.MinSize)

	v.SetDefault("fetch.release_base", d.Fetch.ReleaseBase)
	v.SetDefault("fetch.output_dir", d.Fetch.OutputDir)
	v.SetDefault("fetch.checksum_asset", d.Fetch.ChecksumAsset)
	v.SetDefault("fetch.retry.max_attempts", d.Fetch.Retry.MaxAttempts)
	v.SetDefault("fetch.retry.delay", d.Fetch.Retry.Delay)
	v.SetDefault("fetch.verify_timeout", d.Fetch.VerifyTimeout)

	v.SetDefault("ui.verbose", d.UI.Verbose)
}

// loadCUEIntoViper parses a CUE file, validates it against the #Config schema,
// and merges its contents into Viper. Every field is optional, so validation
// runs with Concrete(false) and the result is decoded into a plain map that
// layers over the defaults.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := cueutil.CheckFileSize(data, cueutil.DefaultMaxFileSize, path); err != nil {
		return err
	}

	ctx := cuecontext.New()

	schemaValue := ctx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return cueutil.FormatError(userValue.Err(), path)
	}

	// Unify with schema to validate against #Config definition
	schema := schemaValue.LookupPath(cue.ParsePath("#Config"))
	unified := schema.Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return cueutil.FormatError(err, path)
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return cueutil.FormatError(err, path)
	}

	// Merge into Viper (preserves defaults, allows env overrides)
	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}

	return nil
}

func loadError(path string, cause error, suggestions ...string) error {
	return issue.NewErrorContext().
		WithIssue(issue.ConfigLoadFailedId).
		WithOperation("load configuration").
		WithResource(path).
		WithSuggestions(suggestions...).
		Wrap(cause).
		BuildError()
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// CreateDefaultConfig writes the default config file into the config
// directory unless one already exists. It returns the file path.
func CreateDefaultConfig() (string, error) {
	cfgDir, err := ConfigDir()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	cfgPath := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt)
	if _, err := os.Stat(cfgPath); err == nil {
		return cfgPath, nil
	}

	if err := os.WriteFile(cfgPath, []byte(GenerateCUE(DefaultConfig())), 0o644); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}
	return cfgPath, nil
}

// GenerateCUE generates a CUE representation of the configuration
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// pybundle configuration file\n\n")

	sb.WriteString("app: {\n")
	fmt.Fprintf(&sb, "\tname:       %q\n", cfg.App.Name)
	fmt.Fprintf(&sb, "\tmodule:     %q\n", cfg.App.Module)
	fmt.Fprintf(&sb, "\tfunction:   %q\n", cfg.App.Function)
	fmt.Fprintf(&sb, "\tforce_utf8: %v\n", cfg.App.ForceUTF8)
	sb.WriteString("}\n")

	sb.WriteString("\ninterpreter: {\n")
	fmt.Fprintf(&sb, "\tmin_version:   %q\n", cfg.Interpreter.MinVersion)
	fmt.Fprintf(&sb, "\tcandidates:    %s\n", cueList(cfg.Interpreter.Candidates))
	fmt.Fprintf(&sb, "\tprobe_timeout: %s\n", cueDuration(cfg.Interpreter.ProbeTimeout))
	sb.WriteString("}\n")

	sb.WriteString("\nenvironment: {\n")
	fmt.Fprintf(&sb, "\tdir:             %q\n", cfg.Environment.Dir)
	fmt.Fprintf(&sb, "\tstale_artifacts: %s\n", cueList(cfg.Environment.StaleArtifacts))
	fmt.Fprintf(&sb, "\tcreate_alias:    %v\n", cfg.Environment.CreateAlias)
	fmt.Fprintf(&sb, "\tcreate_timeout:  %s\n", cueDuration(cfg.Environment.CreateTimeout))
	fmt.Fprintf(&sb, "\twrapper:         %q\n", cfg.Environment.Wrapper)
	sb.WriteString("}\n")

	sb.WriteString("\ndependencies: {\n")
	sb.WriteString("\tpackages: [\n")
	for _, p := range cfg.Dependencies.Packages {
		fmt.Fprintf(&sb, "\t\t{name: %q, critical: %v},\n", p.Name, p.Critical)
	}
	sb.WriteString("\t]\n")
	writeRetry(&sb, cfg.Dependencies.Retry)
	fmt.Fprintf(&sb, "\tinstall_timeout: %s\n", cueDuration(cfg.Dependencies.InstallTimeout))
	sb.WriteString("}\n")

	sb.WriteString("\npackaging: {\n")
	fmt.Fprintf(&sb, "\toutput_dir:       %q\n", cfg.Packaging.OutputDir)
	fmt.Fprintf(&sb, "\twork_dir:         %q\n", cfg.Packaging.WorkDir)
	fmt.Fprintf(&sb, "\tspec_dir:         %q\n", cfg.Packaging.SpecDir)
	fmt.Fprintf(&sb, "\tentry_script:     %q\n", cfg.Packaging.EntryScript)
	fmt.Fprintf(&sb, "\texcluded_modules: %s\n", cueList(cfg.Packaging.ExcludedModules))
	fmt.Fprintf(&sb, "\tcollect_data:     %s\n", cueList(cfg.Packaging.CollectData))
	fmt.Fprintf(&sb, "\thidden_imports:   %s\n", cueList(cfg.Packaging.HiddenImports))
	if len(cfg.Packaging.ExtraData) > 0 {
		sb.WriteString("\textra_data: [\n")
		for _, d := range cfg.Packaging.ExtraData {
			fmt.Fprintf(&sb, "\t\t{source: %q, dest: %q},\n", d.Source, d.Dest)
		}
		sb.WriteString("\t]\n")
	}
	fmt.Fprintf(&sb, "\ttool: {\"package\": %q, module: %q}\n", cfg.Packaging.Tool.Package, cfg.Packaging.Tool.Module)
	fmt.Fprintf(&sb, "\ttimeout:  %s\n", cueDuration(cfg.Packaging.Timeout))
	fmt.Fprintf(&sb, "\tmin_size: %d\n", cfg.Packaging.MinSize)
	sb.WriteString("}\n")

	sb.WriteString("\nfetch: {\n")
	fmt.Fprintf(&sb, "\trelease_base:   %q\n", cfg.Fetch.ReleaseBase)
	fmt.Fprintf(&sb, "\toutput_dir:     %q\n", cfg.Fetch.OutputDir)
	fmt.Fprintf(&sb, "\tchecksum_asset: %q\n", cfg.Fetch.ChecksumAsset)
	writeRetry(&sb, cfg.Fetch.Retry)
	fmt.Fprintf(&sb, "\tverify_timeout: %s\n", cueDuration(cfg.Fetch.VerifyTimeout))
	sb.WriteString("}\n")

	sb.WriteString("\nui: {\n")
	fmt.Fprintf(&sb, "\tverbose: %v\n", cfg.UI.Verbose)
	sb.WriteString("}\n")

	return sb.String()
}

func writeRetry(sb *strings.Builder, r RetryConfig) {
	fmt.Fprintf(sb, "\tretry: {max_attempts: %d, delay: %s}\n", r.MaxAttempts, cueDuration(r.Delay))
}

func cueList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

func cueDuration(d time.Duration) string {
	return fmt.Sprintf("%q", d.String())
}
