package repositories_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/eventdeck/gatehouse/internal/models"
	"github.com/eventdeck/gatehouse/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testThreshold = 5
	testLockout   = 15 * time.Minute
)

// fakeClock is a mutable clock for driving lockout expiry in tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestAttemptStoreLocksAtThreshold(t *testing.T) {
	clock := newFakeClock()
	store := repositories.NewMemoryAttemptStore(clock.Now)
	ctx := context.Background()

	for i := 1; i < testThreshold; i++ {
		outcome, err := store.RecordFailure(ctx, "a@x.com", testThreshold, testLockout)
		require.NoError(t, err)
		assert.False(t, outcome.Locked, "attempt %d should not lock", i)
		assert.Equal(t, i, outcome.AttemptCount)
	}

	outcome, err := store.RecordFailure(ctx, "a@x.com", testThreshold, testLockout)
	require.NoError(t, err)
	assert.True(t, outcome.Locked)
	require.NotNil(t, outcome.LockedUntil)
	assert.Equal(t, clock.Now().Add(testLockout), *outcome.LockedUntil)

	status, err := store.Status(ctx, "a@x.com")
	require.NoError(t, err)
	assert.True(t, status.Locked)
	assert.Equal(t, testThreshold, status.AttemptCount)
	assert.Equal(t, 900, status.RemainingSeconds)
}

func TestAttemptStoreOverflowDoesNotExtendLock(t *testing.T) {
	clock := newFakeClock()
	store := repositories.NewMemoryAttemptStore(clock.Now)
	ctx := context.Background()

	var tripped models.FailureOutcome
	for i := 0; i < testThreshold; i++ {
		outcome, err := store.RecordFailure(ctx, "b@x.com", testThreshold, testLockout)
		require.NoError(t, err)
		tripped = outcome
	}
	assert.True(t, tripped.JustLocked, "the fifth failure trips the lock")

	first, err := store.Status(ctx, "b@x.com")
	require.NoError(t, err)
	require.True(t, first.Locked)

	// Attempt #6 while locked: no counter movement, no lock extension.
	clock.Advance(5 * time.Minute)
	outcome, err := store.RecordFailure(ctx, "b@x.com", testThreshold, testLockout)
	require.NoError(t, err)
	assert.True(t, outcome.Locked)
	assert.False(t, outcome.JustLocked, "overflow failures did not trip the lock")
	assert.Equal(t, testThreshold, outcome.AttemptCount)

	status, err := store.Status(ctx, "b@x.com")
	require.NoError(t, err)
	assert.True(t, status.Locked)
	assert.Equal(t, 600, status.RemainingSeconds, "lock must still expire 15m after the tripping failure")
}

func TestAttemptStoreClearResetsCount(t *testing.T) {
	clock := newFakeClock()
	store := repositories.NewMemoryAttemptStore(clock.Now)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := store.RecordFailure(ctx, "c@x.com", testThreshold, testLockout)
		require.NoError(t, err)
	}

	require.NoError(t, store.Clear(ctx, "c@x.com"))

	outcome, err := store.RecordFailure(ctx, "c@x.com", testThreshold, testLockout)
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.AttemptCount, "success must reset the counter, not leave it at 4")
}

func TestAttemptStoreLazyResetAfterExpiry(t *testing.T) {
	clock := newFakeClock()
	store := repositories.NewMemoryAttemptStore(clock.Now)
	ctx := context.Background()

	for i := 0; i < testThreshold; i++ {
		_, err := store.RecordFailure(ctx, "d@x.com", testThreshold, testLockout)
		require.NoError(t, err)
	}

	clock.Advance(testLockout + time.Second)

	// Reads past expiry report clean without mutating.
	status, err := store.Status(ctx, "d@x.com")
	require.NoError(t, err)
	assert.False(t, status.Locked)
	assert.Equal(t, 0, status.AttemptCount)

	// The next write starts a fresh record.
	outcome, err := store.RecordFailure(ctx, "d@x.com", testThreshold, testLockout)
	require.NoError(t, err)
	assert.False(t, outcome.Locked)
	assert.Equal(t, 1, outcome.AttemptCount)
}

func TestAttemptStoreStatusUnknownIdentifier(t *testing.T) {
	store := repositories.NewMemoryAttemptStore(nil)

	status, err := store.Status(context.Background(), "nobody@x.com")
	require.NoError(t, err)
	assert.False(t, status.Locked)
	assert.Equal(t, 0, status.AttemptCount)
}

func TestAttemptStoreConcurrentFailures(t *testing.T) {
	clock := newFakeClock()
	store := repositories.NewMemoryAttemptStore(clock.Now)
	ctx := context.Background()

	const workers = 20

	var wg sync.WaitGroup
	outcomes := make(chan int, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, err := store.RecordFailure(ctx, "storm@x.com", testThreshold, testLockout)
			assert.NoError(t, err)
			outcomes <- outcome.AttemptCount
		}()
	}
	wg.Wait()
	close(outcomes)

	// Linearizable increments: each pre-lock count 1..4 is observed exactly
	// once; everything else is clamped at the threshold.
	seen := make(map[int]int)
	for count := range outcomes {
		seen[count]++
	}
	for i := 1; i < testThreshold; i++ {
		assert.Equal(t, 1, seen[i], "count %d must be observed exactly once", i)
	}
	assert.Equal(t, workers-(testThreshold-1), seen[testThreshold])

	status, err := store.Status(ctx, "storm@x.com")
	require.NoError(t, err)
	assert.True(t, status.Locked)
	assert.Equal(t, testThreshold, status.AttemptCount, "counter must clamp at the threshold")
}
