// Package identity is the boundary to the external identity provider that
// owns credential storage and password verification. The auth core never
// sees password hashes; it only learns whether a credential check passed
// and, if not, which class of failure occurred.
package identity

import (
	"context"
	"errors"
)

// Identity is the verified principal returned by the provider on a
// successful credential check.
type Identity struct {
	UserID string
	Email  string

	// ProviderToken is the provider-issued token backing this login. It is
	// cached locally (keyed by our session token) so sign-out can reference
	// it, and it is the "locally cached credential" cleared on logout.
	ProviderToken string
}

// Classified provider failures. Anything the provider reports that does not
// map onto one of these is treated as an unknown credential failure;
// transport-level failures map to ErrUnavailable and must never count as a
// guessing attempt.
var (
	ErrInvalidPassword   = errors.New("identity: invalid password")
	ErrUserNotFound      = errors.New("identity: user not found")
	ErrAccountDisabled   = errors.New("identity: account disabled")
	ErrEmailNotConfirmed = errors.New("identity: email not confirmed")
	ErrTooManyRequests   = errors.New("identity: too many requests")
	ErrUnavailable       = errors.New("identity: provider unavailable")
)

// Provider is the external identity provider as seen by the login
// coordinator.
type Provider interface {
	// VerifyCredentials checks email/password with the provider.
	VerifyCredentials(ctx context.Context, email, password string) (*Identity, error)

	// Bind associates a locally issued session token with the provider
	// token returned at login, so SignOut and ClearLocal can find it.
	Bind(sessionToken, providerToken string)

	// SignOut asks the provider to revoke the given provider token. It may
	// be slow; callers bound it with their own deadline. An empty token is
	// a no-op.
	SignOut(ctx context.Context, providerToken string) error

	// ClearLocal removes and returns the locally cached provider credential
	// for a session token, so the caller holds the only reference before
	// any concurrent sign-out starts. Fast, idempotent; bound reports
	// whether a credential was cached.
	ClearLocal(sessionToken string) (providerToken string, bound bool)
}
