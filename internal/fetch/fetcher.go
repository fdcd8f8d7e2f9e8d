// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/invowk/pybundle/internal/artifact"
	"github.com/invowk/pybundle/internal/issue"
	"github.com/invowk/pybundle/internal/progress"
	"github.com/invowk/pybundle/internal/retry"
	"github.com/invowk/pybundle/internal/shell"
)

// DefaultVerifyTimeout bounds the "--version" smoke test of a downloaded binary.
const DefaultVerifyTimeout = 30 * time.Second

// ErrNoVersionOutput means the binary ran but printed nothing.
var ErrNoVersionOutput = errors.New("binary printed no version")

// DefaultDownloadPolicy retries transient download failures.
var DefaultDownloadPolicy = retry.Policy{MaxAttempts: 3, Delay: 2 * time.Second}

type (
	// Request describes one fetch.
	Request struct {
		Target    Target
		OutputDir string
		// ChecksumAsset names the release's sha256sum file; empty disables
		// checksum verification.
		ChecksumAsset string
	}

	// Result is a downloaded and verified binary.
	Result struct {
		Spec     Spec
		Artifact artifact.Artifact
		// Version is the first line the binary printed for "--version".
		Version string
	}

	// Fetcher resolves, downloads and verifies platform binaries.
	Fetcher struct {
		client        *Client
		runner        shell.Runner
		report        progress.Reporter
		table         Table
		policy        retry.Policy
		verifyTimeout time.Duration
		hostOS        string
	}

	// FetcherOption configures a Fetcher.
	FetcherOption func(*Fetcher)
)

// WithTable replaces DefaultTable.
func WithTable(t Table) FetcherOption {
	return func(f *Fetcher) { f.table = t }
}

// WithDownloadPolicy overrides DefaultDownloadPolicy.
func WithDownloadPolicy(p retry.Policy) FetcherOption {
	return func(f *Fetcher) { f.policy = p }
}

// WithVerifyTimeout overrides DefaultVerifyTimeout.
func WithVerifyTimeout(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		if d > 0 {
			f.verifyTimeout = d
		}
	}
}

// WithHostOS overrides the OS used for permission handling (tests).
func WithHostOS(goos string) FetcherOption {
	return func(f *Fetcher) { f.hostOS = goos }
}

// NewFetcher creates a Fetcher.
func NewFetcher(client *Client, runner shell.Runner, sink progress.Sink, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client:        client,
		runner:        runner,
		report:        progress.For(sink, "fetch"),
		table:         DefaultTable,
		policy:        DefaultDownloadPolicy,
		verifyTimeout: DefaultVerifyTimeout,
		hostOS:        runtime.GOOS,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch resolves the request's target, downloads the matching binary into
// OutputDir and verifies it. An unsupported target fails before any network
// access. A download that does not match the published checksum never
// reaches OutputDir; a binary that fails the smoke test is left on disk for
// inspection.
func (f *Fetcher) Fetch(ctx context.Context, req Request) (Result, error) {
	spec, err := f.table.Resolve(req.Target)
	if err != nil {
		return Result{}, issue.NewErrorContext().
			WithIssue(issue.UnsupportedPlatformId).
			WithOperation("select a pre-built binary").
			WithResource(req.Target.String()).
			WithSuggestion("Supported targets: " + joinTargets(f.table.Targets())).
			Wrap(err).
			BuildError()
	}
	f.report.Info("Resolved platform binary", "target", spec.Target, "asset", spec.RemoteName)

	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return Result{}, f.downloadError(spec, fmt.Errorf("creating output directory: %w", err))
	}

	var want string
	if req.ChecksumAsset != "" {
		want, err = f.publishedDigest(ctx, req.ChecksumAsset, spec.RemoteName)
		if err != nil {
			return Result{}, fmt.Errorf("fetching checksums: %w", err)
		}
	}

	finalPath := filepath.Join(req.OutputDir, spec.RemoteName)
	if err := f.download(ctx, f.client.AssetURL(spec.RemoteName), finalPath, want); err != nil {
		if ctx.Err() != nil {
			return Result{}, fmt.Errorf("downloading %s: %w", spec.RemoteName, ctx.Err())
		}
		if errors.Is(err, ErrChecksumMismatch) {
			return Result{}, issue.NewErrorContext().
				WithIssue(issue.BinaryVerificationFailedId).
				WithOperation("verify downloaded binary").
				WithResource(spec.RemoteName).
				WithSuggestion("The download was discarded; fetch again or check the release for a replaced asset").
				Wrap(err).
				BuildError()
		}
		return Result{}, f.downloadError(spec, err)
	}

	a, err := artifact.Verify(finalPath, artifact.Check{GOOS: f.hostOS})
	if err != nil {
		return Result{}, f.verificationError(finalPath, err)
	}
	f.report.Success("Downloaded", "path", a.Path, "size_mb", fmt.Sprintf("%.1f", a.SizeMB()))

	version, err := f.smokeTest(ctx, finalPath)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, fmt.Errorf("verifying binary: %w", ctx.Err())
		}
		return Result{}, f.verificationError(finalPath, err)
	}
	f.report.Success("Binary verified", "version", version)

	return Result{Spec: spec, Artifact: a, Version: version}, nil
}

// download streams assetURL into a temp file next to dest and renames it into
// place, retrying transient failures. A non-empty want must match the
// SHA-256 of the streamed bytes before the file is renamed.
func (f *Fetcher) download(ctx context.Context, assetURL, dest, want string) error {
	return retry.Do(ctx, f.policy, func(attempt int) (bool, error) {
		if attempt > 0 {
			f.report.Info("retrying download", "attempt", attempt+1)
		}
		err := f.downloadOnce(ctx, assetURL, dest, want)
		if err == nil {
			return false, nil
		}
		return isTransient(ctx, err), err
	})
}

func (f *Fetcher) downloadOnce(ctx context.Context, assetURL, dest, want string) (err error) {
	body, err := f.client.Download(ctx, assetURL)
	if err != nil {
		return err
	}
	defer func() { _ = body.Close() }() // read-only HTTP response body

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".pybundle-download-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			// Best-effort removal of the partial or rejected temp file.
			_ = os.Remove(tmpName)
		}
	}()

	dw := newDigestWriter(tmp)
	if _, err := io.Copy(dw, body); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing %s: %w", filepath.Base(dest), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := dw.check(filepath.Base(dest), want); err != nil {
		return err
	}
	if want != "" {
		f.report.Debug("checksum verified", "sha256", want)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return fmt.Errorf("moving download into place: %w", err)
	}
	return nil
}

// publishedDigest returns the release's digest for assetName. A checksum
// file that cannot be fetched or does not list the asset yields "" with a
// warning; only cancellation is an error.
func (f *Fetcher) publishedDigest(ctx context.Context, checksumAsset, assetName string) (string, error) {
	body, err := f.client.Download(ctx, f.client.AssetURL(checksumAsset))
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		f.report.Warn("checksum file unavailable, skipping checksum verification", "asset", checksumAsset, "err", err)
		return "", nil
	}
	defer func() { _ = body.Close() }() // read-only HTTP response body

	sums, err := ParseSums(body)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		f.report.Warn("checksum file unreadable, skipping checksum verification", "err", err)
		return "", nil
	}
	want, ok := sums[assetName]
	if !ok {
		f.report.Warn("asset not listed in checksum file", "asset", assetName)
	}
	return want, nil
}

// smokeTest runs the binary with --version and returns the first output line.
func (f *Fetcher) smokeTest(ctx context.Context, path string) (string, error) {
	line := shell.Join(path, "--version")
	res := f.runner.Run(ctx, shell.Command{
		Line:        line,
		Timeout:     f.verifyTimeout,
		Description: "Verifying " + filepath.Base(path),
	})
	if !res.Succeeded {
		return "", res.Err(line)
	}
	out := strings.TrimSpace(res.Stdout)
	if out == "" {
		return "", ErrNoVersionOutput
	}
	first, _, _ := strings.Cut(out, "\n")
	return strings.TrimSpace(first), nil
}

func (f *Fetcher) downloadError(spec Spec, cause error) error {
	return issue.NewErrorContext().
		WithIssue(issue.DownloadFailedId).
		WithOperation("download binary").
		WithResource(spec.RemoteName).
		WithSuggestion("Check network access to " + f.client.baseURL).
		Wrap(cause).
		BuildError()
}

func (f *Fetcher) verificationError(path string, cause error) error {
	return issue.NewErrorContext().
		WithIssue(issue.BinaryVerificationFailedId).
		WithOperation("verify downloaded binary").
		WithResource(path).
		WithSuggestion("The file was kept for inspection; run it by hand to see its error").
		Wrap(cause).
		BuildError()
}

func joinTargets(targets []Target) string {
	names := make([]string, len(targets))
	for i, t := range targets {
		names[i] = t.String()
	}
	return strings.Join(names, ", ")
}
