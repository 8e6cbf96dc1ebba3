package background_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/eventdeck/gatehouse/internal/background"
	"github.com/eventdeck/gatehouse/internal/models"
	"github.com/eventdeck/gatehouse/internal/repositories"
	"github.com/eventdeck/gatehouse/internal/services"
	pkglogger "github.com/eventdeck/gatehouse/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sweeperFixture struct {
	mu      sync.Mutex
	now     time.Time
	store   *services.MockAuditStore
	service *services.SessionService
	sweeper *background.SessionSweeper
}

func newSweeperFixture(idleTimeout time.Duration) *sweeperFixture {
	f := &sweeperFixture{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	f.store = &services.MockAuditStore{}

	f.service = services.NewSessionService(
		repositories.NewMemorySessionStore(),
		services.SessionConfig{IdleTimeout: idleTimeout},
		logger, f.clock)

	audit := services.NewAuditService(f.store, logger, pkglogger.NewAuditLogger(logger), f.clock)
	f.sweeper = background.NewSessionSweeper(f.service, audit, logger, time.Minute)
	return f
}

func (f *sweeperFixture) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *sweeperFixture) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func TestRunSweepRecordsExpiredSessions(t *testing.T) {
	f := newSweeperFixture(30 * time.Minute)
	ctx := context.Background()

	stale := f.service.NewSession("u1", "u1@x.com", "192.0.2.1", "test-agent")
	require.NoError(t, f.service.Register(ctx, stale))

	f.advance(20 * time.Minute)
	fresh := f.service.NewSession("u2", "u2@x.com", "192.0.2.2", "test-agent")
	require.NoError(t, f.service.Register(ctx, fresh))

	f.advance(15 * time.Minute)
	f.sweeper.RunSweep(ctx)

	expired := f.store.EventsOfType(models.AuditEventSessionExpired)
	require.Len(t, expired, 1)
	assert.Equal(t, "u1@x.com", expired[0].Email)
	require.NotNil(t, expired[0].SessionToken)
	assert.Equal(t, stale.SessionToken, *expired[0].SessionToken)

	// The fresh session is untouched and a second pass finds nothing.
	_, err := f.service.Get(ctx, fresh.SessionToken)
	assert.NoError(t, err)

	f.sweeper.RunSweep(ctx)
	assert.Len(t, f.store.EventsOfType(models.AuditEventSessionExpired), 1)
}

func TestRunSweepEmptyRegistry(t *testing.T) {
	f := newSweeperFixture(30 * time.Minute)

	f.sweeper.RunSweep(context.Background())
	assert.Empty(t, f.store.Events())
}

func TestSweeperStop(t *testing.T) {
	f := newSweeperFixture(30 * time.Minute)

	done := make(chan struct{})
	go func() {
		f.sweeper.Start(context.Background())
		close(done)
	}()

	f.sweeper.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}
