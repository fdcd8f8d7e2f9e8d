// SPDX-License-Identifier: MPL-2.0

// Package retry provides the bounded, fixed-delay retry combinator shared by
// the dependency installer and the binary downloader.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrExhausted is wrapped by ExhaustedError.
var ErrExhausted = errors.New("retry attempts exhausted")

type (
	// Policy bounds a retry loop. MaxAttempts counts the first try, so a
	// policy of {MaxAttempts: 3} runs op at most three times.
	Policy struct {
		MaxAttempts int
		Delay       time.Duration
		// Sleep waits between attempts. Nil means a timer that returns early
		// with ctx.Err() when the context is done.
		Sleep func(ctx context.Context, d time.Duration) error
	}

	// ExhaustedError reports that every attempt failed.
	ExhaustedError struct {
		Attempts int
		Last     error
	}
)

// Error implements the error interface.
func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempt(s): %v", e.Attempts, e.Last)
}

// Unwrap exposes both the sentinel and the last failure.
func (e *ExhaustedError) Unwrap() []error { return []error{ErrExhausted, e.Last} }

// Do runs op until it succeeds, asks not to be retried, or the policy is
// exhausted. attempt is zero-based.
//
// op returns (retry bool, err error). A nil err ends the loop successfully.
// A non-nil err with retry == false is returned unchanged. On exhaustion an
// *ExhaustedError wrapping the last error is returned. Cancellation during the
// delay aborts immediately with the context error.
func Do(ctx context.Context, p Policy, op func(attempt int) (retry bool, err error)) error {
	attempts := max(p.MaxAttempts, 1)
	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	var lastErr error
	for attempt := range attempts {
		if attempt > 0 {
			if err := sleep(ctx, p.Delay); err != nil {
				return fmt.Errorf("retry aborted: %w", err)
			}
		}

		retry, err := op(attempt)
		if err == nil {
			return nil
		}
		if !retry {
			return err
		}
		lastErr = err
	}
	return &ExhaustedError{Attempts: attempts, Last: lastErr}
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
