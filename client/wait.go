package client

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	DefaultPollInterval   = 100 * time.Millisecond
	DefaultStartupTimeout = 5 * time.Second
)

// ErrStartupTimeout is returned when a stub is not ready in time
var ErrStartupTimeout = errors.New("stub did not start correctly")

// Predicate reports readiness; an error counts as not ready
type Predicate func(ctx context.Context) (bool, error)

// WaitFor polls predicate every interval until it holds or timeout elapses.
// The predicate is always evaluated at least once. On timeout the last
// predicate error, if any, is wrapped with ErrStartupTimeout.
func WaitFor(ctx context.Context, predicate Predicate, timeout, interval time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultStartupTimeout
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastErr error
	for {
		ok, err := predicate(ctx)
		if err == nil && ok {
			return nil
		}
		if err != nil {
			lastErr = err
		}

		select {
		case <-ctx.Done():
			if lastErr != nil {
				return fmt.Errorf("%w: last error: %v", ErrStartupTimeout, lastErr)
			}
			return ErrStartupTimeout
		case <-ticker.C:
		}
	}
}

// WaitUntilHealthy blocks until the stub behind c answers its health check
func WaitUntilHealthy(ctx context.Context, c *Client, timeout time.Duration) error {
	return WaitFor(ctx, func(ctx context.Context) (bool, error) {
		if err := c.Health(ctx); err != nil {
			return false, err
		}
		return true, nil
	}, timeout, DefaultPollInterval)
}
