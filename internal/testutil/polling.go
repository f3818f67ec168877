// Package testutil provides helpers shared by the relayframe tests: polling
// for asynchronous state, race-aware timeouts and scripted hosts.
package testutil

import (
	"context"
	"fmt"
	"time"
)

// PollingInterval is the default interval between condition checks.
const PollingInterval = 5 * time.Millisecond

// Poll repeatedly checks condition until it returns true, timeout expires, or
// ctx is done.
func Poll(ctx context.Context, condition func() bool, timeout, interval time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if condition() {
			return nil
		}
		if !time.Now().Before(deadline) {
			return fmt.Errorf("timeout waiting for condition (threshold: %v)", timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// WaitForState polls getter until predicate accepts its value.
func WaitForState[T any](ctx context.Context, getter func() T, predicate func(T) bool, timeout, interval time.Duration) (T, error) {
	var last T
	err := Poll(ctx, func() bool {
		last = getter()
		return predicate(last)
	}, timeout, interval)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("waiting for target state (type %T, last %v): %w", last, last, err)
	}
	return last, nil
}

// Within fails the returned error if fn does not return within timeout. fn
// keeps running in the background if it overruns.
func Within(timeout time.Duration, fn func()) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("did not finish within %v", timeout)
	}
}
