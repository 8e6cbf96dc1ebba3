package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/eventdeck/gatehouse/internal/identity"
	"github.com/eventdeck/gatehouse/internal/models"
)

// Login outcomes
type LoginStatus string

const (
	LoginAdmitted  LoginStatus = "admitted"
	LoginRejected  LoginStatus = "rejected"
	LoginLockedOut LoginStatus = "locked_out"
)

// LoginResult is the typed outcome of one login attempt.
type LoginResult struct {
	Status            LoginStatus
	Session           *models.ActiveSession // set when admitted
	AttemptsRemaining int                   // set when rejected
	FailureReason     string                // set when rejected
	RemainingSeconds  int                   // set when locked out
}

// LoginConfig holds the coordinator's policy knobs.
type LoginConfig struct {
	MaxSessionsPerUser int
	LogoutDeadline     time.Duration
}

// LoginService coordinates a login attempt across the throttle, the external
// identity provider, the session registry and the audit trail. It holds no
// persistent state of its own.
type LoginService struct {
	provider identity.Provider
	throttle *ThrottleService
	sessions *SessionService
	audit    *AuditService
	config   LoginConfig
	logger   *slog.Logger
	nowFn    func() time.Time
}

// NewLoginService creates a new LoginService. nowFn may be nil, in which
// case time.Now is used.
func NewLoginService(
	provider identity.Provider,
	throttle *ThrottleService,
	sessions *SessionService,
	audit *AuditService,
	config LoginConfig,
	logger *slog.Logger,
	nowFn func() time.Time,
) *LoginService {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &LoginService{
		provider: provider,
		throttle: throttle,
		sessions: sessions,
		audit:    audit,
		config:   config,
		logger:   logger,
		nowFn:    nowFn,
	}
}

// AttemptLogin runs one login attempt: lockout check, credential
// verification with the external provider, then throttle/registry/audit
// updates per outcome.
//
// Throttle reads fail open (a storage fault must not lock out legitimate
// users), but every write on the path — failure counting, session
// registration, audit append — fails closed: a login is never admitted
// without durable bookkeeping.
func (s *LoginService) AttemptLogin(ctx context.Context, email, password, ipAddress, userAgent string) (*LoginResult, error) {
	email = NormalizeIdentifier(email)

	// CHECKING_LOCK. No audit event here: no credential attempt occurred.
	status, err := s.throttle.Check(ctx, email)
	if err != nil {
		s.logger.Error("throttle check failed, failing open", slog.Any("error", err))
	} else if status.Locked {
		return &LoginResult{
			Status:           LoginLockedOut,
			RemainingSeconds: status.RemainingSeconds,
		}, nil
	}

	// VERIFYING_CREDENTIALS
	ident, err := s.provider.VerifyCredentials(ctx, email, password)
	if err != nil {
		if errors.Is(err, identity.ErrUnavailable) {
			// Not evidence of guessing: no throttle increment, no audit.
			s.logger.Error("identity provider unavailable during login")
			return nil, models.ErrProviderUnavailable
		}
		return s.rejectLogin(ctx, email, ipAddress, userAgent, err)
	}

	// ADMITTING
	return s.admitLogin(ctx, ident, ipAddress, userAgent)
}

// rejectLogin handles the REJECTING branch: count the failure, write the
// login_failed audit event, and report remaining attempts or lock state.
func (s *LoginService) rejectLogin(ctx context.Context, email, ipAddress, userAgent string, verifyErr error) (*LoginResult, error) {
	reason := classifyFailureReason(verifyErr)

	outcome, err := s.throttle.RecordFailure(ctx, email)
	if err != nil {
		// A failure that cannot be counted would weaken the lockout
		// guarantee; refuse to continue.
		return nil, err
	}

	event := &models.AuditEvent{
		Email:         email,
		EventType:     models.AuditEventLoginFailed,
		FailureReason: &reason,
		IPAddress:     ipAddress,
		UserAgent:     userAgent,
		Device:        models.ClassifyDevice(userAgent),
	}
	if err := s.audit.Append(ctx, event); err != nil {
		return nil, err
	}

	if outcome.Locked {
		remaining := 0
		if outcome.LockedUntil != nil {
			remaining = int(outcome.LockedUntil.Sub(s.nowFn()).Round(time.Second) / time.Second)
			if remaining < 1 {
				remaining = 1
			}
		}
		return &LoginResult{
			Status:           LoginLockedOut,
			RemainingSeconds: remaining,
		}, nil
	}

	return &LoginResult{
		Status:            LoginRejected,
		AttemptsRemaining: s.throttle.AttemptsRemaining(outcome),
		FailureReason:     reason,
	}, nil
}

// admitLogin handles the ADMITTING branch: clear the throttle, apply the
// duplicate-login policy, register the session and write login_success.
func (s *LoginService) admitLogin(ctx context.Context, ident *identity.Identity, ipAddress, userAgent string) (*LoginResult, error) {
	if err := s.throttle.Clear(ctx, ident.Email); err != nil {
		return nil, err
	}

	// Duplicate-login policy: evict oldest sessions beyond the per-user
	// maximum before admitting the new one. Registry reads fail open.
	existing, err := s.sessions.ListByUser(ctx, ident.UserID)
	if err != nil {
		s.logger.Error("session list failed, skipping eviction", slog.Any("error", err))
		existing = nil
	}
	for len(existing) >= s.config.MaxSessionsPerUser && len(existing) > 0 {
		oldest := existing[0]
		existing = existing[1:]
		if err := s.evictSession(ctx, oldest, models.FailureReasonSessionLimit); err != nil {
			return nil, err
		}
	}

	session := s.sessions.NewSession(ident.UserID, ident.Email, ipAddress, userAgent)
	if err := s.sessions.Register(ctx, session); err != nil {
		return nil, err
	}
	s.provider.Bind(session.SessionToken, ident.ProviderToken)

	event := &models.AuditEvent{
		Email:        ident.Email,
		EventType:    models.AuditEventLoginSuccess,
		IPAddress:    ipAddress,
		UserAgent:    userAgent,
		Device:       session.Device,
		SessionToken: &session.SessionToken,
	}
	if err := s.audit.Append(ctx, event); err != nil {
		// Never admit a login without a durable trail: roll the session back.
		_ = s.sessions.Terminate(ctx, session.SessionToken)
		s.provider.ClearLocal(session.SessionToken)
		return nil, err
	}

	return &LoginResult{
		Status:  LoginAdmitted,
		Session: session,
	}, nil
}

// Logout is best-effort and bounded in time. The provider sign-out races a
// fixed deadline; whichever finishes first releases the caller. The provider
// call is not cancelled — a slow response arriving later is discarded. Local
// cleanup, session termination and the logout audit event always run, so the
// user is never stuck on a hung sign-out.
func (s *LoginService) Logout(ctx context.Context, sessionToken string) error {
	session, err := s.sessions.Get(ctx, sessionToken)
	if err != nil && !errors.Is(err, models.ErrSessionNotFound) {
		s.logger.Error("session lookup failed during logout", slog.Any("error", err))
	}

	// Local cleanup first: popping the cached credential is synchronous and
	// fast, and hands the sign-out goroutine the only reference to the
	// provider token, so the two can never race over the cache entry.
	providerToken, bound := s.provider.ClearLocal(sessionToken)

	if bound {
		providerDone := make(chan error, 1)
		go func() {
			// Detached from the request context so the call may outlive the
			// deadline; the buffered channel absorbs the discarded result.
			providerDone <- s.provider.SignOut(context.WithoutCancel(ctx), providerToken)
		}()

		timer := time.NewTimer(s.config.LogoutDeadline)
		select {
		case err := <-providerDone:
			if err != nil {
				s.logger.Warn("provider sign-out failed", slog.Any("error", err))
			}
		case <-timer.C:
			s.logger.Warn("provider sign-out exceeded deadline, proceeding with local logout")
		}
		timer.Stop()
	}

	if err := s.sessions.Terminate(ctx, sessionToken); err != nil {
		s.logger.Error("session terminate failed during logout", slog.Any("error", err))
	}

	// The session may already be gone (double logout); there is nothing to
	// attribute an audit event to in that case.
	if session != nil {
		event := &models.AuditEvent{
			Email:        session.Email,
			EventType:    models.AuditEventLogout,
			IPAddress:    session.IPAddress,
			UserAgent:    session.UserAgent,
			Device:       session.Device,
			SessionToken: &session.SessionToken,
		}
		if err := s.audit.Append(ctx, event); err != nil {
			// Logout always succeeds from the caller's perspective.
			s.logger.Error("logout audit append failed", slog.Any("error", err))
		}
	}

	return nil
}

// ForceLogout is the administrative entry point: it terminates someone
// else's session directly, bypassing the login/logout flow. Operator
// authorization is enforced upstream.
func (s *LoginService) ForceLogout(ctx context.Context, sessionToken, operatorID string) error {
	session, err := s.sessions.Get(ctx, sessionToken)
	if err != nil {
		return err
	}

	if err := s.evictSession(ctx, session, models.FailureReasonAdminAction); err != nil {
		return err
	}

	s.logger.Info("session force-terminated",
		slog.String("operator_id", operatorID),
		slog.String("user_id", session.UserID))
	return nil
}

// Heartbeat refreshes a session's activity timestamp.
func (s *LoginService) Heartbeat(ctx context.Context, sessionToken string) (bool, error) {
	return s.sessions.Heartbeat(ctx, sessionToken)
}

// evictSession terminates a session outside the normal logout flow and
// records a forced_logout audit event with the given reason.
func (s *LoginService) evictSession(ctx context.Context, session *models.ActiveSession, reason string) error {
	if err := s.sessions.Terminate(ctx, session.SessionToken); err != nil {
		return err
	}

	// Best-effort provider-side revocation; local termination is
	// authoritative for the user-visible state.
	if providerToken, bound := s.provider.ClearLocal(session.SessionToken); bound {
		go func() {
			if err := s.provider.SignOut(context.Background(), providerToken); err != nil {
				s.logger.Warn("provider sign-out failed for evicted session", slog.Any("error", err))
			}
		}()
	}

	event := &models.AuditEvent{
		Email:         session.Email,
		EventType:     models.AuditEventForcedLogout,
		FailureReason: &reason,
		IPAddress:     session.IPAddress,
		UserAgent:     session.UserAgent,
		Device:        session.Device,
		SessionToken:  &session.SessionToken,
	}
	return s.audit.Append(ctx, event)
}

// classifyFailureReason maps provider errors onto the fixed failure reason
// enum. Unrecognized errors become unknown_error rather than leaking
// provider detail.
func classifyFailureReason(err error) string {
	switch {
	case errors.Is(err, identity.ErrInvalidPassword):
		return models.FailureReasonInvalidPassword
	case errors.Is(err, identity.ErrUserNotFound):
		return models.FailureReasonUserNotFound
	case errors.Is(err, identity.ErrAccountDisabled):
		return models.FailureReasonAccountDisabled
	case errors.Is(err, identity.ErrEmailNotConfirmed):
		return models.FailureReasonEmailNotConfirmed
	case errors.Is(err, identity.ErrTooManyRequests):
		return models.FailureReasonTooManyRequests
	default:
		return models.FailureReasonUnknown
	}
}
