// SPDX-License-Identifier: MPL-2.0

package interpreter

import (
	"errors"
	"testing"
)

func TestParseVersion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    Version
		wantErr bool
	}{
		{name: "standard", input: "Python 3.11.4", want: Version{3, 11, 4}},
		{name: "trailing newline", input: "Python 3.10.12\n", want: Version{3, 10, 12}},
		{name: "release candidate", input: "Python 3.13.0rc1", want: Version{3, 13, 0}},
		{name: "debian plus suffix", input: "Python 3.8.10+", want: Version{3, 8, 10}},
		{name: "two components", input: "Python 3.9", want: Version{3, 9, 0}},
		{name: "python 2", input: "Python 2.7.18", want: Version{2, 7, 18}},
		{name: "garbage", input: "command not found", wantErr: true},
		{name: "empty", input: "", wantErr: true},
		{name: "bare major", input: "Python 3", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseVersion(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidVersion) {
					t.Fatalf("ParseVersion(%q) error = %v, want ErrInvalidVersion", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseVersion(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseVersion(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseMinVersion(t *testing.T) {
	t.Parallel()

	v, err := ParseMinVersion("3.10")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != (Version{Major: 3, Minor: 10}) {
		t.Errorf("ParseMinVersion(3.10) = %v", v)
	}
	if _, err := ParseMinVersion("three"); err == nil {
		t.Error("expected error for non-numeric minimum")
	}
}

func TestVersionSatisfies(t *testing.T) {
	t.Parallel()

	minimum := Version{Major: 3, Minor: 10}
	tests := []struct {
		v    Version
		want bool
	}{
		{Version{3, 10, 0}, true},
		{Version{3, 11, 4}, true},
		{Version{3, 9, 18}, false},
		{Version{4, 0, 0}, false}, // a different major never qualifies
		{Version{2, 99, 0}, false},
		{Version{3, 10, 99}, true},
	}

	for _, tt := range tests {
		if got := tt.v.Satisfies(minimum); got != tt.want {
			t.Errorf("%v.Satisfies(%v) = %v, want %v", tt.v, minimum, got, tt.want)
		}
	}
}
