package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// HTTPProvider talks to the identity provider over its JSON API. The
// provider answers a successful credential check with a signed ID token;
// integrity of that token is guaranteed by the TLS channel to the provider,
// so claims are extracted without re-verifying the signature here.
type HTTPProvider struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger

	mu     sync.Mutex
	tokens map[string]string // session token -> provider token
}

// NewHTTPProvider creates a provider client for the given base URL.
func NewHTTPProvider(baseURL string, timeout time.Duration, logger *slog.Logger) *HTTPProvider {
	return &HTTPProvider{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
		tokens:  make(map[string]string),
	}
}

type verifyRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type verifyResponse struct {
	IDToken string `json:"id_token"`
}

type providerErrorResponse struct {
	Error string `json:"error"`
}

type idTokenClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// VerifyCredentials checks email/password against the provider and extracts
// the principal from the returned ID token.
func (p *HTTPProvider) VerifyCredentials(ctx context.Context, email, password string) (*Identity, error) {
	body, err := json.Marshal(verifyRequest{Email: email, Password: password})
	if err != nil {
		return nil, fmt.Errorf("failed to encode verify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/credentials/verify", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build verify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Error("identity provider unreachable", slog.Any("error", err))
		return nil, ErrUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, p.classifyError(resp)
	}

	var vr verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&vr); err != nil {
		p.logger.Error("malformed verify response", slog.Any("error", err))
		return nil, ErrUnavailable
	}

	claims := &idTokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(vr.IDToken, claims); err != nil {
		p.logger.Error("malformed provider id token", slog.Any("error", err))
		return nil, ErrUnavailable
	}
	if claims.Subject == "" {
		p.logger.Error("provider id token missing subject")
		return nil, ErrUnavailable
	}

	identityEmail := claims.Email
	if identityEmail == "" {
		identityEmail = email
	}

	return &Identity{
		UserID:        claims.Subject,
		Email:         identityEmail,
		ProviderToken: vr.IDToken,
	}, nil
}

// Bind caches the provider token under our session token.
func (p *HTTPProvider) Bind(sessionToken, providerToken string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokens[sessionToken] = providerToken
}

// SignOut revokes a provider token. The caller obtains the token from
// ClearLocal before calling, so a concurrent local cleanup can never leave
// this call with nothing to revoke. An empty token is a no-op.
func (p *HTTPProvider) SignOut(ctx context.Context, providerToken string) error {
	if providerToken == "" {
		return nil
	}

	body, err := json.Marshal(map[string]string{"token": providerToken})
	if err != nil {
		return fmt.Errorf("failed to encode sign-out request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/sessions/revoke", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build sign-out request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return ErrUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return ErrUnavailable
	}

	return nil
}

// ClearLocal removes the cached provider credential for a session token and
// hands it to the caller.
func (p *HTTPProvider) ClearLocal(sessionToken string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	providerToken, ok := p.tokens[sessionToken]
	delete(p.tokens, sessionToken)
	return providerToken, ok
}

// classifyError maps a provider error response onto the fixed sentinel set.
func (p *HTTPProvider) classifyError(resp *http.Response) error {
	if resp.StatusCode >= http.StatusInternalServerError {
		return ErrUnavailable
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return ErrTooManyRequests
	}

	var per providerErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&per); err != nil {
		return fmt.Errorf("identity: unclassified provider error (status %d)", resp.StatusCode)
	}

	switch per.Error {
	case "invalid_password", "invalid_credentials":
		return ErrInvalidPassword
	case "user_not_found":
		return ErrUserNotFound
	case "account_disabled", "account_suspended":
		return ErrAccountDisabled
	case "email_not_confirmed", "email_not_verified":
		return ErrEmailNotConfirmed
	case "too_many_requests":
		return ErrTooManyRequests
	default:
		return fmt.Errorf("identity: unclassified provider error %q", per.Error)
	}
}
