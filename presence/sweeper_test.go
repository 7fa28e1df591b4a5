package presence

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweeper_EvictsExpiredUsersOnTick(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newFixture(map[string][]string{"u1": {"u2"}})

	require.NoError(t, f.coordinator.Connect(ctx, "c1", "u1"))
	require.NoError(t, f.coordinator.Connect(ctx, "c2", "u2"))

	const timeout = 50 * time.Millisecond
	f.coordinator.now = func() time.Time { return time.Now().Add(-2 * timeout) }
	require.NoError(t, f.coordinator.Heartbeat(ctx, "c1"))
	f.coordinator.now = time.Now
	require.NoError(t, f.coordinator.Heartbeat(ctx, "c2"))

	sweeper := NewSweeper(f.coordinator, timeout, 10*time.Millisecond, zerolog.Nop())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		online, err := f.liveness.Online(ctx, "u1")
		return err == nil && !online
	}, time.Second, 5*time.Millisecond)

	online, err := f.liveness.Online(ctx, "u2")
	require.NoError(t, err)
	assert.True(t, online)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop on context cancellation")
	}
}
