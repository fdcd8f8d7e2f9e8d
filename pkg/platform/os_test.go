// SPDX-License-Identifier: MPL-2.0

package platform

import "testing"

func TestExeSuffix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		goos string
		want string
	}{
		{Windows, ".exe"},
		{Linux, ""},
		{Darwin, ""},
	}

	for _, tt := range tests {
		if got := ExeSuffix(tt.goos); got != tt.want {
			t.Errorf("ExeSuffix(%q) = %q, want %q", tt.goos, got, tt.want)
		}
		if got := IsPOSIX(tt.goos); got == IsWindows(tt.goos) {
			t.Errorf("IsPOSIX(%q) = %v, must be the negation of IsWindows", tt.goos, got)
		}
	}
}
