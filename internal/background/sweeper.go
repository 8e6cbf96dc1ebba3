package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/eventdeck/gatehouse/internal/models"
	"github.com/eventdeck/gatehouse/internal/services"
)

// SessionSweeper periodically removes idle sessions from the registry and
// records one session_expired audit event per reaped session. It runs on its
// own goroutine so it never blocks heartbeat or register calls.
type SessionSweeper struct {
	sessions *services.SessionService
	audit    *services.AuditService
	logger   *slog.Logger
	interval time.Duration
	stopCh   chan struct{}
}

// NewSessionSweeper creates a new session sweeper
func NewSessionSweeper(
	sessions *services.SessionService,
	audit *services.AuditService,
	logger *slog.Logger,
	interval time.Duration,
) *SessionSweeper {
	return &SessionSweeper{
		sessions: sessions,
		audit:    audit,
		logger:   logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic sweep. It blocks until Stop is called or the
// context is cancelled; a sweep pass in flight finishes before it returns.
func (sw *SessionSweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			sw.RunSweep(ctx)
		case <-sw.stopCh:
			sw.logger.Info("session sweeper stopped")
			return
		case <-ctx.Done():
			sw.logger.Info("session sweeper context cancelled")
			return
		}
	}
}

// RunSweep executes one sweep pass.
func (sw *SessionSweeper) RunSweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	removed, err := sw.sessions.SweepIdle(sweepCtx)
	if err != nil {
		sw.logger.Error("idle session sweep failed", slog.Any("error", err))
		return
	}

	for _, session := range removed {
		event := &models.AuditEvent{
			Email:        session.Email,
			EventType:    models.AuditEventSessionExpired,
			IPAddress:    session.IPAddress,
			UserAgent:    session.UserAgent,
			Device:       session.Device,
			SessionToken: &session.SessionToken,
		}
		if err := sw.audit.Append(sweepCtx, event); err != nil {
			sw.logger.Error("failed to record session expiry",
				slog.String("user_id", session.UserID),
				slog.Any("error", err))
		}
	}

	if len(removed) > 0 {
		sw.logger.Info("sweep pass completed", slog.Int("expired_sessions", len(removed)))
	}
}

// Stop signals the sweeper to stop
func (sw *SessionSweeper) Stop() {
	close(sw.stopCh)
}
