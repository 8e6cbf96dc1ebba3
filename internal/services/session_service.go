package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/eventdeck/gatehouse/internal/models"
	"github.com/google/uuid"
)

// SessionStore defines the storage interface for the active-session registry.
type SessionStore interface {
	Insert(ctx context.Context, session *models.ActiveSession) error
	Get(ctx context.Context, token string) (*models.ActiveSession, error)
	Touch(ctx context.Context, token string, at time.Time) (bool, error)
	ListByUser(ctx context.Context, userID string) ([]*models.ActiveSession, error)
	ListAll(ctx context.Context) ([]*models.ActiveSession, error)
	Delete(ctx context.Context, token string) error
	DeleteIdle(ctx context.Context, cutoff time.Time) ([]*models.ActiveSession, error)
}

// SessionConfig holds the session registry policy.
type SessionConfig struct {
	IdleTimeout time.Duration
}

// SessionService tracks currently-active authenticated sessions. Who may
// hold a session and how many is the login coordinator's decision; this
// component only owns the registry itself.
type SessionService struct {
	store  SessionStore
	config SessionConfig
	logger *slog.Logger
	nowFn  func() time.Time
}

// NewSessionService creates a new SessionService. nowFn may be nil, in which
// case time.Now is used.
func NewSessionService(store SessionStore, config SessionConfig, logger *slog.Logger, nowFn func() time.Time) *SessionService {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &SessionService{
		store:  store,
		config: config,
		logger: logger,
		nowFn:  nowFn,
	}
}

// NewSession builds an ActiveSession for a verified principal with a fresh
// opaque token and device info classified from the User-Agent.
func (s *SessionService) NewSession(userID, email, ipAddress, userAgent string) *models.ActiveSession {
	now := s.nowFn()
	return &models.ActiveSession{
		SessionToken:   uuid.NewString(),
		UserID:         userID,
		Email:          email,
		Device:         models.ClassifyDevice(userAgent),
		IPAddress:      ipAddress,
		UserAgent:      userAgent,
		CreatedAt:      now,
		LastActivityAt: now,
	}
}

// Register inserts a new active session.
func (s *SessionService) Register(ctx context.Context, session *models.ActiveSession) error {
	if err := s.store.Insert(ctx, session); err != nil {
		return models.ErrStorageUnavailable
	}

	s.logger.Info("session registered",
		slog.String("user_id", session.UserID),
		slog.String("device_class", session.Device.DeviceClass))
	return nil
}

// Heartbeat refreshes LastActivityAt for a token. A false return tells the
// caller the session is dead (terminated or expired).
func (s *SessionService) Heartbeat(ctx context.Context, token string) (bool, error) {
	alive, err := s.store.Touch(ctx, token, s.nowFn())
	if err != nil {
		return false, models.ErrStorageUnavailable
	}
	return alive, nil
}

// Get returns the session for a token, or ErrSessionNotFound.
func (s *SessionService) Get(ctx context.Context, token string) (*models.ActiveSession, error) {
	return s.store.Get(ctx, token)
}

// ListByUser returns all active sessions for one user, oldest first.
func (s *SessionService) ListByUser(ctx context.Context, userID string) ([]*models.ActiveSession, error) {
	sessions, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, models.ErrStorageUnavailable
	}
	return sessions, nil
}

// ListAll returns every active session for the operator console.
func (s *SessionService) ListAll(ctx context.Context) ([]*models.ActiveSession, error) {
	sessions, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, models.ErrStorageUnavailable
	}
	return sessions, nil
}

// Terminate removes a session. Idempotent: terminating an already-gone
// token is not an error.
func (s *SessionService) Terminate(ctx context.Context, token string) error {
	if err := s.store.Delete(ctx, token); err != nil {
		return models.ErrStorageUnavailable
	}
	return nil
}

// SweepIdle removes sessions idle past the configured timeout and returns
// the removed sessions so the caller can record one session_expired audit
// event per victim.
func (s *SessionService) SweepIdle(ctx context.Context) ([]*models.ActiveSession, error) {
	cutoff := s.nowFn().Add(-s.config.IdleTimeout)

	removed, err := s.store.DeleteIdle(ctx, cutoff)
	if err != nil {
		return nil, models.ErrStorageUnavailable
	}

	if len(removed) > 0 {
		s.logger.Info("idle sessions swept", slog.Int("count", len(removed)))
	}
	return removed, nil
}
