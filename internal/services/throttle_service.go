package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/eventdeck/gatehouse/internal/models"
	pkglogger "github.com/eventdeck/gatehouse/pkg/logger"
)

// AttemptStore defines the storage interface for login failure bookkeeping.
// RecordFailure must be linearizable per identifier: no two concurrent calls
// may observe the same pre-increment count.
type AttemptStore interface {
	Status(ctx context.Context, identifier string) (models.ThrottleStatus, error)
	RecordFailure(ctx context.Context, identifier string, threshold int, lockDuration time.Duration) (models.FailureOutcome, error)
	Clear(ctx context.Context, identifier string) error
}

// ThrottleConfig holds the brute-force lockout policy.
type ThrottleConfig struct {
	MaxFailedAttempts int
	LockoutDuration   time.Duration
}

// ThrottleService is the brute-force lockout bookkeeping component. It never
// raises user-facing errors; storage faults surface as ErrStorageUnavailable
// and the login coordinator applies the fail-open/fail-closed policy.
type ThrottleService struct {
	store       AttemptStore
	config      ThrottleConfig
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewThrottleService creates a new ThrottleService
func NewThrottleService(store AttemptStore, config ThrottleConfig, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *ThrottleService {
	return &ThrottleService{
		store:       store,
		config:      config,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// NormalizeIdentifier canonicalizes an email for throttle keying.
func NormalizeIdentifier(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Check reports the lockout state for an identifier without mutating it.
func (s *ThrottleService) Check(ctx context.Context, identifier string) (models.ThrottleStatus, error) {
	status, err := s.store.Status(ctx, NormalizeIdentifier(identifier))
	if err != nil {
		return models.ThrottleStatus{}, models.ErrStorageUnavailable
	}
	return status, nil
}

// RecordFailure counts one failed attempt. The lockout fires when the count
// reaches the configured threshold; once locked, further failures neither
// extend the lock nor move the counter.
func (s *ThrottleService) RecordFailure(ctx context.Context, identifier string) (models.FailureOutcome, error) {
	identifier = NormalizeIdentifier(identifier)

	outcome, err := s.store.RecordFailure(ctx, identifier, s.config.MaxFailedAttempts, s.config.LockoutDuration)
	if err != nil {
		return models.FailureOutcome{}, models.ErrStorageUnavailable
	}

	// Only the attempt that tripped the lock logs; overflow failures during
	// an active lock would otherwise emit a duplicate line each.
	if outcome.JustLocked && outcome.LockedUntil != nil {
		s.auditLogger.LogLockout(identifier, outcome.AttemptCount, *outcome.LockedUntil)
	}

	return outcome, nil
}

// Clear wipes the failure record for an identifier after a successful login.
func (s *ThrottleService) Clear(ctx context.Context, identifier string) error {
	if err := s.store.Clear(ctx, NormalizeIdentifier(identifier)); err != nil {
		return models.ErrStorageUnavailable
	}
	return nil
}

// AttemptsRemaining converts a failure outcome into the attempts the caller
// has left before the lockout fires.
func (s *ThrottleService) AttemptsRemaining(outcome models.FailureOutcome) int {
	remaining := s.config.MaxFailedAttempts - outcome.AttemptCount
	if remaining < 0 {
		return 0
	}
	return remaining
}
