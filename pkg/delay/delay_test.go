package delay

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSleepWaitsAtLeastDuration(t *testing.T) {
	start := time.Now()
	require.NoError(t, Sleep(context.Background(), 30*time.Millisecond))
	require.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestSleepNonPositiveReturnsImmediately(t *testing.T) {
	start := time.Now()
	require.NoError(t, Sleep(context.Background(), 0))
	require.NoError(t, Sleep(context.Background(), -time.Second))
	require.Less(t, time.Since(start), 10*time.Millisecond)
}

func TestSleepHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := Sleep(ctx, time.Minute)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), time.Second)
}

func TestUntil(t *testing.T) {
	target := time.Now().Add(20 * time.Millisecond)
	require.NoError(t, Until(context.Background(), target))
	require.False(t, time.Now().Before(target))
}
