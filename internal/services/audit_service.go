package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/eventdeck/gatehouse/internal/models"
	pkglogger "github.com/eventdeck/gatehouse/pkg/logger"
)

// AuditStore defines the storage interface for the append-only audit trail.
type AuditStore interface {
	Append(ctx context.Context, event *models.AuditEvent) error
	Query(ctx context.Context, filter models.AuditFilter, limit, offset int) ([]*models.AuditEvent, int, error)
	Statistics(ctx context.Context, since time.Time) (*models.AuditStats, error)
}

const (
	defaultAuditPageSize = 50
	maxAuditPageSize     = 200
)

// AuditService owns the append-only security audit trail. Appends are
// durable and never fail silently; a failed append is surfaced so the
// coordinator can refuse to proceed without a trail.
type AuditService struct {
	store       AuditStore
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
	nowFn       func() time.Time
}

// NewAuditService creates a new AuditService. nowFn may be nil, in which
// case time.Now is used.
func NewAuditService(store AuditStore, logger *slog.Logger, auditLogger *pkglogger.AuditLogger, nowFn func() time.Time) *AuditService {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &AuditService{
		store:       store,
		logger:      logger,
		auditLogger: auditLogger,
		nowFn:       nowFn,
	}
}

// Append durably records one audit event and mirrors it to structured logs.
func (s *AuditService) Append(ctx context.Context, event *models.AuditEvent) error {
	if err := s.store.Append(ctx, event); err != nil {
		s.logger.Error("audit append failed",
			slog.String("event_type", event.EventType),
			slog.Any("error", err))
		return fmt.Errorf("audit append: %w", models.ErrStorageUnavailable)
	}

	s.auditLogger.LogEvent(event)
	return nil
}

// Query returns one page of audit events for the operator console, ordered
// by non-decreasing created_at.
func (s *AuditService) Query(ctx context.Context, filter models.AuditFilter, page, pageSize int) (*models.AuditPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultAuditPageSize
	}
	if pageSize > maxAuditPageSize {
		pageSize = maxAuditPageSize
	}

	events, total, err := s.store.Query(ctx, filter, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("audit query: %w", err)
	}

	return &models.AuditPage{
		Events:     events,
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
	}, nil
}

// Statistics aggregates login activity over the trailing window.
func (s *AuditService) Statistics(ctx context.Context, windowDays int) (*models.AuditStats, error) {
	if windowDays < 1 {
		windowDays = 1
	}

	since := s.nowFn().AddDate(0, 0, -windowDays)
	stats, err := s.store.Statistics(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("audit statistics: %w", err)
	}
	return stats, nil
}
