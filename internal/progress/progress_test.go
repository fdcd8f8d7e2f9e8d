// SPDX-License-Identifier: MPL-2.0

package progress

import (
	"bytes"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func TestReporterTagsPhase(t *testing.T) {
	t.Parallel()

	rec := &Recorder{}
	r := For(rec, "venv")
	r.Info("creating environment", "dir", "env")
	r.Warn("strategy failed")
	For(rec, "deps").Success("installed")

	events := rec.Events()
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	if events[0].Phase != "venv" || events[0].Level != LevelInfo {
		t.Errorf("events[0] = %+v", events[0])
	}
	if got := rec.Phases(); !slices.Equal(got, []string{"venv", "deps"}) {
		t.Errorf("Phases() = %v", got)
	}
	if got := rec.Warnings(); !slices.Equal(got, []string{"strategy failed"}) {
		t.Errorf("Warnings() = %v", got)
	}
}

func TestForNilSinkDiscards(t *testing.T) {
	t.Parallel()

	r := For(nil, "x")
	r.Error("dropped")
	if r.Sink() != Discard {
		t.Error("nil sink should be replaced by Discard")
	}
}

func TestLogSink(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		verbose   bool
		wantDebug bool
	}{
		{name: "quiet hides debug", verbose: false, wantDebug: false},
		{name: "verbose shows debug", verbose: true, wantDebug: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			r := For(NewLogSink(&buf, tt.verbose), "shell")
			r.Debug("probe detail")
			r.Warn("careful", "attempt", 2)

			out := buf.String()
			if got := strings.Contains(out, "probe detail"); got != tt.wantDebug {
				t.Errorf("debug visible = %v, want %v:\n%s", got, tt.wantDebug, out)
			}
			if !strings.Contains(out, "careful") || !strings.Contains(out, "attempt") {
				t.Errorf("warn event not rendered:\n%s", out)
			}
		})
	}
}

func TestDetectCI(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		env    map[string]string
		want   string
		wantOK bool
	}{
		{name: "none", env: map[string]string{}, wantOK: false},
		{name: "github", env: map[string]string{"GITHUB_ACTIONS": "true", "CI": "true"}, want: "GitHub Actions", wantOK: true},
		{name: "generic", env: map[string]string{"CI": "1"}, want: "CI", wantOK: true},
		{name: "explicit false", env: map[string]string{"CI": "false"}, wantOK: false},
		{name: "jenkins", env: map[string]string{"JENKINS_HOME": "/var/jenkins"}, want: "Jenkins", wantOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := DetectCI(func(k string) string { return tt.env[k] })
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("DetectCI() = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestInContainer(t *testing.T) { //nolint:paralleltest // mutates cgroupPath
	orig := cgroupPath
	t.Cleanup(func() { cgroupPath = orig })

	dir := t.TempDir()
	path := filepath.Join(dir, "cgroup")
	if err := os.WriteFile(path, []byte("12:devices:/docker/abc123\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cgroupPath = path
	if !InContainer() {
		t.Error("InContainer() = false for docker cgroup")
	}

	cgroupPath = filepath.Join(dir, "missing")
	if InContainer() {
		t.Error("InContainer() = true for missing file")
	}
}
