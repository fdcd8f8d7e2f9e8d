// SPDX-License-Identifier: MPL-2.0

package packager

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/invowk/pybundle/internal/artifact"
	"github.com/invowk/pybundle/internal/deps"
	"github.com/invowk/pybundle/internal/entrypoint"
	"github.com/invowk/pybundle/internal/issue"
	"github.com/invowk/pybundle/internal/progress"
	"github.com/invowk/pybundle/internal/retry"
	"github.com/invowk/pybundle/internal/shell"
	"github.com/invowk/pybundle/internal/testutil/shelltest"
	"github.com/invowk/pybundle/internal/venv"
)

func testConfig() Config {
	return Config{
		AppName: "spotdl",
		Entry: entrypoint.Spec{
			AppName:   "spotdl",
			Module:    "spotdl.console.entry_point",
			Function:  "entry_point",
			ForceUTF8: true,
		},
		OutputDir:       "binaries/spotdl",
		ExcludedModules: []string{"tkinter", "numpy", "tkinter"},
		CollectData:     []string{"spotdl", "pykakasi"},
		ExtraData: []DataMapping{
			{Source: "lib/python*/site-packages/ytmusicapi/locales", Dest: "ytmusicapi/locales"},
			{Source: "lib/python*/site-packages/missing", Dest: "missing"},
		},
	}
}

type fixture struct {
	work   string
	env    venv.Environment
	runner *shelltest.Runner
	rec    *progress.Recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	work := t.TempDir()
	root := filepath.Join(work, "env")
	locales := filepath.Join(root, "lib", "python3.11", "site-packages", "ytmusicapi", "locales")
	if err := os.MkdirAll(locales, 0o755); err != nil {
		t.Fatal(err)
	}
	return &fixture{
		work: work,
		env: venv.Environment{
			Root:        root,
			BinDir:      filepath.Join(root, "bin"),
			Interpreter: filepath.Join(root, "bin", "python3"),
			Installer:   filepath.Join(root, "bin", "pip3"),
		},
		runner: shelltest.New().On("install pyinstaller", shelltest.OK("")),
		rec:    &progress.Recorder{},
	}
}

func (f *fixture) packager() *Packager {
	inst := deps.NewInstaller(f.runner, f.rec)
	return New(f.runner, inst, f.rec, WithWorkDir(f.work), WithGOOS("linux"))
}

// buildsOutput simulates a tool run that leaves its scratch files behind and
// writes the executable.
func (f *fixture) buildsOutput(t *testing.T, content string) shelltest.Responder {
	t.Helper()
	return shelltest.Do(func(cmd shell.Command) {
		out := filepath.Join(f.work, "binaries", "spotdl", "spotdl")
		_ = os.MkdirAll(filepath.Dir(out), 0o755)
		_ = os.WriteFile(out, []byte(content), 0o644)
		_ = os.MkdirAll(filepath.Join(f.work, "build", "spotdl"), 0o755)
		_ = os.WriteFile(filepath.Join(f.work, "spotdl.spec"), []byte("# spec"), 0o644)
		if _, err := os.Stat(filepath.Join(f.work, "spotdl_entry.py")); err != nil {
			t.Errorf("entry script must exist while the tool runs: %v", err)
		}
	}, shelltest.OK(""))
}

func (f *fixture) assertCleaned(t *testing.T) {
	t.Helper()
	for _, p := range []string{"spotdl_entry.py", "build", "spotdl.spec"} {
		if _, err := os.Stat(filepath.Join(f.work, p)); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("%s should have been removed", p)
		}
	}
}

func TestPackage_Success(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.runner.On("-m PyInstaller", f.buildsOutput(t, "ELF binary"))

	a, err := f.packager().Package(context.Background(), f.env, testConfig())
	if err != nil {
		t.Fatalf("Package() error: %v", err)
	}
	if a.Path != filepath.Join(f.work, "binaries", "spotdl", "spotdl") || a.SizeBytes != int64(len("ELF binary")) {
		t.Errorf("artifact = %+v", a)
	}
	f.assertCleaned(t)

	if f.runner.Count("install pyinstaller") != 1 {
		t.Error("packaging tool should be installed first")
	}
	var toolLine string
	for _, l := range f.runner.Lines() {
		if strings.Contains(l, "-m PyInstaller") {
			toolLine = l
		}
	}
	for _, want := range []string{
		"--onefile", "--name spotdl", "--distpath binaries/spotdl", "--workpath build",
		"--clean", "--noconfirm",
		"--exclude-module numpy --exclude-module tkinter",
		"--collect-data pykakasi --collect-data spotdl",
		"site-packages/ytmusicapi/locales:ytmusicapi/locales",
	} {
		if !strings.Contains(toolLine, want) {
			t.Errorf("tool command missing %q:\n%s", want, toolLine)
		}
	}
	if strings.Count(toolLine, "--exclude-module tkinter") != 1 {
		t.Errorf("duplicate excludes should collapse:\n%s", toolLine)
	}
	if !slices.Contains(f.rec.Warnings(), "data directory not found, skipping") {
		t.Errorf("unresolved data glob should warn, got %v", f.rec.Warnings())
	}
}

func TestPackage_ToolSucceedsWithoutOutput(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.runner.On("-m PyInstaller", shelltest.OK("done"))

	// A stale artifact from an earlier run must not count as output.
	stale := filepath.Join(f.work, "binaries", "spotdl", "spotdl")
	if err := os.MkdirAll(filepath.Dir(stale), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(stale, []byte("old"), 0o755); err != nil {
		t.Fatal(err)
	}

	_, err := f.packager().Package(context.Background(), f.env, testConfig())
	if issue.IdOf(err) != issue.PackagingVerificationFailedId {
		t.Fatalf("IdOf(%v) = %v, want PackagingVerificationFailed", err, issue.IdOf(err))
	}
	if !errors.Is(err, artifact.ErrMissing) {
		t.Errorf("err should wrap artifact.ErrMissing: %v", err)
	}
	f.assertCleaned(t)
}

func TestPackage_ToolFails(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.runner.On("-m PyInstaller", shelltest.Fail(1, "ModuleNotFoundError: No module named 'x'"))

	_, err := f.packager().Package(context.Background(), f.env, testConfig())
	if issue.IdOf(err) != issue.PackagingFailedId {
		t.Fatalf("IdOf(%v) = %v, want PackagingFailed", err, issue.IdOf(err))
	}
	if !strings.Contains(err.Error(), "ModuleNotFoundError") {
		t.Errorf("error should carry the tool's stderr: %v", err)
	}
	f.assertCleaned(t)
}

func TestPackage_ToolInstallFails(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.runner = shelltest.New().On("install pyinstaller", shelltest.Fail(1, "offline"))
	inst := deps.NewInstaller(f.runner, f.rec, deps.WithPolicy(fastPolicy()))
	p := New(f.runner, inst, f.rec, WithWorkDir(f.work), WithGOOS("linux"))

	_, err := p.Package(context.Background(), f.env, testConfig())
	if issue.IdOf(err) != issue.DependencyInstallFailedId {
		t.Fatalf("IdOf(%v) = %v, want DependencyInstallFailed", err, issue.IdOf(err))
	}
	if f.runner.Count("-m PyInstaller") != 0 {
		t.Error("tool must not run when it could not be installed")
	}
}

func TestConfig_Args(t *testing.T) {
	t.Parallel()

	cfg := Config{
		AppName:       "app",
		HiddenImports: []string{"b", "a"},
		PlatformFlags: PlatformFlags("darwin", "arm64"),
	}.Normalized()

	got := cfg.Args("/w/app_entry.py", []string{"/env/x;x"})
	want := []string{
		"--onefile", "--name", "app", "--distpath", "dist", "--workpath", "build", "--specpath", ".",
		"--clean", "--noconfirm",
		"--hidden-import", "a", "--hidden-import", "b",
		"--add-data", "/env/x;x",
		"--target-architecture", "arm64",
		"/w/app_entry.py",
	}
	if !slices.Equal(got, want) {
		t.Errorf("Args() =\n%v\nwant\n%v", got, want)
	}
	if cfg.EntryScript != "app_entry.py" || cfg.Tool != DefaultTool || cfg.Timeout != DefaultTimeout {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

func TestPlatformFlags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		goos, goarch string
		want         []string
	}{
		{"darwin", "arm64", []string{"--target-architecture", "arm64"}},
		{"darwin", "amd64", []string{"--target-architecture", "x86_64"}},
		{"linux", "amd64", nil},
		{"windows", "arm64", nil},
	}
	for _, tt := range tests {
		if got := PlatformFlags(tt.goos, tt.goarch); !slices.Equal(got, tt.want) {
			t.Errorf("PlatformFlags(%s, %s) = %v, want %v", tt.goos, tt.goarch, got, tt.want)
		}
	}
}

func TestConfig_OutputPath(t *testing.T) {
	t.Parallel()

	cfg := Config{AppName: "spotdl", OutputDir: "out"}
	if got := cfg.OutputPath("windows"); got != filepath.Join("out", "spotdl.exe") {
		t.Errorf("OutputPath(windows) = %q", got)
	}
	if got := cfg.OutputPath("linux"); got != filepath.Join("out", "spotdl") {
		t.Errorf("OutputPath(linux) = %q", got)
	}
	if got := dataSeparator("windows"); got != ";" {
		t.Errorf("dataSeparator(windows) = %q", got)
	}
}

func fastPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: 3, Sleep: func(context.Context, time.Duration) error { return nil }}
}
