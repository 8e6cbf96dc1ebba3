package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/eventdeck/gatehouse/internal/database"
	"github.com/eventdeck/gatehouse/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditLogRepository handles durable audit event storage in Postgres.
type AuditLogRepository struct {
	pool *pgxpool.Pool
}

// NewAuditLogRepository creates a new AuditLogRepository
func NewAuditLogRepository(db *database.DB) *AuditLogRepository {
	return &AuditLogRepository{pool: db.Pool}
}

const auditEventColumns = `id, email, event_type, failure_reason, ip_address, user_agent,
	       browser, os, device_class, session_token, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAuditEventRow(row rowScanner) (*models.AuditEvent, error) {
	var event models.AuditEvent

	err := row.Scan(
		&event.ID, &event.Email, &event.EventType, &event.FailureReason,
		&event.IPAddress, &event.UserAgent,
		&event.Device.Browser, &event.Device.OS, &event.Device.DeviceClass,
		&event.SessionToken, &event.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &event, nil
}

func scanAuditEventRows(rows pgx.Rows) ([]*models.AuditEvent, error) {
	defer rows.Close()

	events := make([]*models.AuditEvent, 0)

	for rows.Next() {
		event, err := scanAuditEventRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit event rows: %w", err)
	}

	return events, nil
}

// Append writes one audit event. The write is atomic: either the full event
// becomes visible or nothing does, and a failure is always reported.
func (r *AuditLogRepository) Append(ctx context.Context, event *models.AuditEvent) error {
	query := `
		INSERT INTO audit_events (email, event_type, failure_reason, ip_address, user_agent,
		                          browser, os, device_class, session_token)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`

	err := r.pool.QueryRow(ctx, query,
		event.Email, event.EventType, event.FailureReason,
		event.IPAddress, event.UserAgent,
		event.Device.Browser, event.Device.OS, event.Device.DeviceClass,
		event.SessionToken,
	).Scan(&event.ID, &event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append audit event: %w", database.MapPostgresError(err))
	}

	return nil
}

// Query returns one page of audit events matching the filter, ordered by
// non-decreasing created_at, plus the total match count for pagination.
func (r *AuditLogRepository) Query(ctx context.Context, filter models.AuditFilter, limit, offset int) ([]*models.AuditEvent, int, error) {
	where, args := buildAuditFilter(filter)

	countQuery := "SELECT COUNT(*) FROM audit_events" + where
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count audit events: %w", database.MapPostgresError(err))
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM audit_events%s
		ORDER BY created_at, id
		LIMIT $%d OFFSET $%d
	`, auditEventColumns, where, len(args)+1, len(args)+2)

	rows, err := r.pool.Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query audit events: %w", database.MapPostgresError(err))
	}

	events, err := scanAuditEventRows(rows)
	if err != nil {
		return nil, 0, err
	}

	return events, total, nil
}

// Statistics aggregates login activity since the given time. unique_users
// counts distinct emails among successful logins only.
func (r *AuditLogRepository) Statistics(ctx context.Context, since time.Time) (*models.AuditStats, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE event_type IN ('login_success', 'login_failed')),
			COUNT(*) FILTER (WHERE event_type = 'login_success'),
			COUNT(*) FILTER (WHERE event_type = 'login_failed'),
			COUNT(DISTINCT email) FILTER (WHERE event_type = 'login_success'),
			COUNT(*) FILTER (WHERE event_type = 'forced_logout')
		FROM audit_events
		WHERE created_at >= $1
	`

	var stats models.AuditStats
	err := r.pool.QueryRow(ctx, query, since).Scan(
		&stats.TotalLogins,
		&stats.SuccessfulLogins,
		&stats.FailedLogins,
		&stats.UniqueUsers,
		&stats.ForcedLogouts,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compute audit statistics: %w", database.MapPostgresError(err))
	}

	return &stats, nil
}

func buildAuditFilter(filter models.AuditFilter) (string, []any) {
	var clauses []string
	var args []any

	if filter.Email != "" {
		args = append(args, filter.Email)
		clauses = append(clauses, fmt.Sprintf("email = $%d", len(args)))
	}
	if filter.EventType != "" {
		args = append(args, filter.EventType)
		clauses = append(clauses, fmt.Sprintf("event_type = $%d", len(args)))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}
