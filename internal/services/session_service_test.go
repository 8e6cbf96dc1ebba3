package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/eventdeck/gatehouse/internal/models"
	"github.com/eventdeck/gatehouse/internal/repositories"
	"github.com/eventdeck/gatehouse/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSessionService(clock *fakeClock, idleTimeout time.Duration) *services.SessionService {
	store := repositories.NewMemorySessionStore()
	return services.NewSessionService(store, services.SessionConfig{
		IdleTimeout: idleTimeout,
	}, newTestLogger(), clock.Now)
}

func TestSessionServiceNewSessionClassifiesDevice(t *testing.T) {
	clock := newFakeClock()
	service := newSessionService(clock, 30*time.Minute)

	session := service.NewSession("u1", "u1@x.com", "192.0.2.1",
		"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) Mobile/15E148 Safari/604.1")

	assert.NotEmpty(t, session.SessionToken)
	assert.Equal(t, models.DeviceClassMobile, session.Device.DeviceClass)
	assert.Equal(t, "iOS", session.Device.OS)
	assert.Equal(t, clock.Now(), session.CreatedAt)
	assert.Equal(t, clock.Now(), session.LastActivityAt)
}

func TestSessionServiceHeartbeat(t *testing.T) {
	clock := newFakeClock()
	service := newSessionService(clock, 30*time.Minute)
	ctx := context.Background()

	session := service.NewSession("u1", "u1@x.com", "192.0.2.1", "test-agent")
	require.NoError(t, service.Register(ctx, session))

	clock.Advance(5 * time.Minute)

	alive, err := service.Heartbeat(ctx, session.SessionToken)
	require.NoError(t, err)
	assert.True(t, alive)

	stored, err := service.Get(ctx, session.SessionToken)
	require.NoError(t, err)
	assert.Equal(t, clock.Now(), stored.LastActivityAt)

	alive, err = service.Heartbeat(ctx, "never-registered")
	require.NoError(t, err)
	assert.False(t, alive)
}

func TestSessionServiceHeartbeatAfterTerminate(t *testing.T) {
	clock := newFakeClock()
	service := newSessionService(clock, 30*time.Minute)
	ctx := context.Background()

	session := service.NewSession("u1", "u1@x.com", "192.0.2.1", "test-agent")
	require.NoError(t, service.Register(ctx, session))
	require.NoError(t, service.Terminate(ctx, session.SessionToken))

	alive, err := service.Heartbeat(ctx, session.SessionToken)
	require.NoError(t, err)
	assert.False(t, alive)

	// Idempotent terminate
	require.NoError(t, service.Terminate(ctx, session.SessionToken))
}

func TestSessionServiceSweepIdle(t *testing.T) {
	clock := newFakeClock()
	service := newSessionService(clock, 30*time.Minute)
	ctx := context.Background()

	stale := service.NewSession("u1", "u1@x.com", "192.0.2.1", "test-agent")
	require.NoError(t, service.Register(ctx, stale))

	clock.Advance(20 * time.Minute)
	fresh := service.NewSession("u2", "u2@x.com", "192.0.2.2", "test-agent")
	require.NoError(t, service.Register(ctx, fresh))

	clock.Advance(15 * time.Minute)

	removed, err := service.SweepIdle(ctx)
	require.NoError(t, err)
	require.Len(t, removed, 1)
	assert.Equal(t, stale.SessionToken, removed[0].SessionToken)

	// The fresh session survives and a second pass removes nothing.
	_, err = service.Get(ctx, fresh.SessionToken)
	assert.NoError(t, err)

	removed, err = service.SweepIdle(ctx)
	require.NoError(t, err)
	assert.Empty(t, removed)
}

func TestSessionServiceHeartbeatDefersExpiry(t *testing.T) {
	clock := newFakeClock()
	service := newSessionService(clock, 30*time.Minute)
	ctx := context.Background()

	session := service.NewSession("u1", "u1@x.com", "192.0.2.1", "test-agent")
	require.NoError(t, service.Register(ctx, session))

	// Keep the session alive past the idle timeout with heartbeats.
	for i := 0; i < 3; i++ {
		clock.Advance(20 * time.Minute)
		alive, err := service.Heartbeat(ctx, session.SessionToken)
		require.NoError(t, err)
		require.True(t, alive)
	}

	removed, err := service.SweepIdle(ctx)
	require.NoError(t, err)
	assert.Empty(t, removed)
}
