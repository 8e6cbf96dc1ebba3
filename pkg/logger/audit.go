package logger

import (
	"context"
	"log/slog"
	"time"

	"github.com/eventdeck/gatehouse/internal/models"
)

// AuditLogger mirrors every durable audit event as a structured slog record,
// so the security trail is visible in log aggregation even before anyone
// opens the operator console.
type AuditLogger struct {
	logger *slog.Logger
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger,
	}
}

// LogEvent emits one audit event. Failures log at Warn, everything else at
// Info. Emails are masked; the durable store keeps the full value.
func (al *AuditLogger) LogEvent(event *models.AuditEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", "auth"),
		slog.String("event_type", event.EventType),
		slog.String("email", SanitizedEmail(event.Email)),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if event.FailureReason != nil {
		attrs = append(attrs, slog.String("failure_reason", *event.FailureReason))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.Device.DeviceClass != "" {
		attrs = append(attrs, slog.String("device_class", event.Device.DeviceClass))
	}
	if event.SessionToken != nil {
		attrs = append(attrs, slog.String("session_token", *event.SessionToken))
	}

	level := slog.LevelInfo
	if event.EventType == models.AuditEventLoginFailed || event.EventType == models.AuditEventForcedLogout {
		level = slog.LevelWarn
	}

	al.logger.LogAttrs(context.Background(), level, "audit", attrs...)
}

// LogLockout records an identifier crossing the lockout threshold.
func (al *AuditLogger) LogLockout(email string, attemptCount int, lockedUntil time.Time) {
	al.logger.LogAttrs(context.Background(), slog.LevelWarn, "audit",
		slog.String("audit_type", "auth"),
		slog.String("event_type", "account_locked"),
		slog.String("email", SanitizedEmail(email)),
		slog.Int("attempt_count", attemptCount),
		slog.String("locked_until", lockedUntil.UTC().Format(time.RFC3339)),
	)
}
