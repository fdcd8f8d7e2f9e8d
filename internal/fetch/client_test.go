// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func TestClient_AssetURL(t *testing.T) {
	t.Parallel()

	c := NewClient(WithBaseURL("https://example.com/owner/repo/"))
	want := "https://example.com/owner/repo/releases/latest/download/yt-dlp.exe"
	if got := c.AssetURL("yt-dlp.exe"); got != want {
		t.Errorf("AssetURL() = %q, want %q", got, want)
	}

	if got := NewClient().AssetURL("yt-dlp_linux"); !strings.HasPrefix(got, DefaultReleaseBase) {
		t.Errorf("default AssetURL() = %q, want prefix %q", got, DefaultReleaseBase)
	}
}

func TestClient_DownloadStreamsBody(t *testing.T) {
	t.Parallel()

	var gotUA, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAuth = r.Header.Get("Authorization")
		_, _ = io.WriteString(w, "payload")
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithUserAgent("pybundle/test"), WithToken("secret"))
	body, err := c.Download(context.Background(), c.AssetURL("asset"))
	if err != nil {
		t.Fatalf("Download() error: %v", err)
	}
	defer func() { _ = body.Close() }()

	data, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	if string(data) != "payload" {
		t.Errorf("body = %q, want %q", data, "payload")
	}
	if gotUA != "pybundle/test" {
		t.Errorf("User-Agent = %q", gotUA)
	}
	// The test server is the configured release host, so the token is sent.
	if gotAuth != "Bearer secret" {
		t.Errorf("Authorization = %q, want bearer token", gotAuth)
	}
}

func TestClient_DownloadStatusError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	_, err := c.Download(context.Background(), c.AssetURL("asset")+"?token=abc")
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StatusError, got %v", err)
	}
	if se.Code != http.StatusNotFound {
		t.Errorf("Code = %d, want 404", se.Code)
	}
	if se.Transient() {
		t.Error("404 must not be transient")
	}
	if strings.Contains(err.Error(), "token=abc") {
		t.Errorf("error leaks query string: %v", err)
	}
}

func TestStatusError_Transient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code int
		want bool
	}{
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
		{http.StatusTooManyRequests, true},
		{http.StatusNotFound, false},
		{http.StatusForbidden, false},
	}
	for _, tt := range tests {
		if got := (&StatusError{Code: tt.code}).Transient(); got != tt.want {
			t.Errorf("StatusError{%d}.Transient() = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestIsTransient(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	if !isTransient(ctx, errors.New("connection reset")) {
		t.Error("network errors should be transient")
	}
	if isTransient(ctx, &StatusError{Code: http.StatusNotFound}) {
		t.Error("404 should not be transient")
	}
	if isTransient(ctx, &DigestMismatchError{Asset: "bin"}) {
		t.Error("a checksum mismatch should not be retried")
	}

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	if isTransient(canceled, errors.New("connection reset")) {
		t.Error("nothing is transient once the context is done")
	}
}

func TestIsGitHubHost(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		base string
		want bool
	}{
		{"https://github.com/a/b/releases/latest/download/x", DefaultReleaseBase, true},
		{"https://api.github.com/repos/a/b", DefaultReleaseBase, true},
		{"https://mirror.example.com/x", "https://mirror.example.com/a/b", true},
		{"https://objects.githubusercontent.com/x", DefaultReleaseBase, false},
	}
	for _, tt := range tests {
		u, err := url.Parse(tt.raw)
		if err != nil {
			t.Fatal(err)
		}
		if got := isGitHubHost(u, tt.base); got != tt.want {
			t.Errorf("isGitHubHost(%q, %q) = %v, want %v", tt.raw, tt.base, got, tt.want)
		}
	}
}
