// Package delay holds the timer-based suspension primitive used for dispatch
// spacing.
package delay

import (
	"context"
	"time"
)

// Sleep suspends for at least d. It returns early with ctx.Err() if the
// context ends first. A non-positive d returns immediately.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Until sleeps until t, see Sleep.
func Until(ctx context.Context, t time.Time) error {
	return Sleep(ctx, time.Until(t))
}
