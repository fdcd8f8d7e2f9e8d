// SPDX-License-Identifier: MPL-2.0

package progress

import (
	"os"
	"strings"
)

// ciIndicators maps well-known CI environment variables to a display name.
// Checked in order; the first one set wins.
var ciIndicators = []struct {
	envVar string
	name   string
}{
	{"GITHUB_ACTIONS", "GitHub Actions"},
	{"GITLAB_CI", "GitLab CI"},
	{"TRAVIS", "Travis CI"},
	{"JENKINS_HOME", "Jenkins"},
	{"BUILDKITE", "Buildkite"},
	{"CI", "CI"},
}

// DetectCI reports the name of the CI system the process runs under.
// The result only ever affects log verbosity, never control flow.
func DetectCI(getenv func(string) string) (string, bool) {
	for _, ind := range ciIndicators {
		if v := getenv(ind.envVar); v != "" && !strings.EqualFold(v, "false") {
			return ind.name, true
		}
	}
	return "", false
}

// cgroupPath is a test seam for container detection.
var cgroupPath = "/proc/1/cgroup" //nolint:gochecknoglobals // test seam

// InContainer reports whether the process appears to run inside a Docker
// container. Any read error means "no".
func InContainer() bool {
	data, err := os.ReadFile(cgroupPath)
	if err != nil {
		return false
	}
	return strings.Contains(string(data), "docker")
}
