package models

import (
	"time"

	"github.com/google/uuid"
)

// Event types for the security audit trail
const (
	AuditEventLoginSuccess   = "login_success"
	AuditEventLoginFailed    = "login_failed"
	AuditEventLogout         = "logout"
	AuditEventForcedLogout   = "forced_logout"
	AuditEventSessionExpired = "session_expired"
)

// Failure reasons recorded on login_failed and forced_logout events.
// Unrecognized identity provider errors map to FailureReasonUnknown
// rather than leaking provider-specific detail.
const (
	FailureReasonInvalidPassword   = "invalid_password"
	FailureReasonUserNotFound      = "user_not_found"
	FailureReasonAccountDisabled   = "account_disabled"
	FailureReasonEmailNotConfirmed = "email_not_confirmed"
	FailureReasonTooManyRequests   = "too_many_requests"
	FailureReasonUnknown           = "unknown_error"

	// Forced-logout reasons
	FailureReasonAdminAction  = "admin_action"
	FailureReasonSessionLimit = "session_limit"
)

// AuditEvent is an immutable record of a security-relevant occurrence.
// SessionToken is a soft reference; the session it names may already be gone.
type AuditEvent struct {
	ID            uuid.UUID  `db:"id"`
	Email         string     `db:"email"`
	EventType     string     `db:"event_type"`
	FailureReason *string    `db:"failure_reason"`
	IPAddress     string     `db:"ip_address"`
	UserAgent     string     `db:"user_agent"`
	Device        DeviceInfo `db:"device"`
	SessionToken  *string    `db:"session_token"`
	CreatedAt     time.Time  `db:"created_at"`
}

// AuditFilter narrows an audit log query. Zero values mean "no filter".
type AuditFilter struct {
	Email     string
	EventType string
	From      time.Time
	To        time.Time
}

// AuditPage is one page of audit events plus the total match count.
type AuditPage struct {
	Events     []*AuditEvent `json:"events"`
	TotalCount int           `json:"total_count"`
	Page       int           `json:"page"`
	PageSize   int           `json:"page_size"`
}

// AuditStats aggregates login activity over a trailing window.
// UniqueUsers counts distinct emails among successful logins only.
type AuditStats struct {
	TotalLogins      int `json:"total_logins"`
	SuccessfulLogins int `json:"successful_logins"`
	FailedLogins     int `json:"failed_logins"`
	UniqueUsers      int `json:"unique_users"`
	ForcedLogouts    int `json:"forced_logouts"`
}
