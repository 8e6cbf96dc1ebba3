package services

import (
	"context"
	"sync"
	"time"

	"github.com/eventdeck/gatehouse/internal/identity"
	"github.com/eventdeck/gatehouse/internal/models"
)

// MockProvider implements identity.Provider for testing
type MockProvider struct {
	VerifyCredentialsFunc func(ctx context.Context, email, password string) (*identity.Identity, error)
	SignOutFunc           func(ctx context.Context, providerToken string) error

	mu           sync.Mutex
	bound        map[string]string
	signOutCalls int
	verifyCalls  int
	clearedLocal []string
}

func (m *MockProvider) VerifyCredentials(ctx context.Context, email, password string) (*identity.Identity, error) {
	m.mu.Lock()
	m.verifyCalls++
	m.mu.Unlock()

	if m.VerifyCredentialsFunc != nil {
		return m.VerifyCredentialsFunc(ctx, email, password)
	}
	return &identity.Identity{UserID: "user-1", Email: email, ProviderToken: "pt-1"}, nil
}

func (m *MockProvider) Bind(sessionToken, providerToken string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.bound == nil {
		m.bound = make(map[string]string)
	}
	m.bound[sessionToken] = providerToken
}

func (m *MockProvider) SignOut(ctx context.Context, providerToken string) error {
	m.mu.Lock()
	m.signOutCalls++
	m.mu.Unlock()

	if m.SignOutFunc != nil {
		return m.SignOutFunc(ctx, providerToken)
	}
	return nil
}

func (m *MockProvider) ClearLocal(sessionToken string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.clearedLocal = append(m.clearedLocal, sessionToken)
	providerToken, ok := m.bound[sessionToken]
	delete(m.bound, sessionToken)
	return providerToken, ok
}

func (m *MockProvider) VerifyCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.verifyCalls
}

func (m *MockProvider) SignOutCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.signOutCalls
}

func (m *MockProvider) ClearedLocal() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.clearedLocal...)
}

// MockAuditStore implements AuditStore for testing. With no AppendFunc set
// it records events in memory for inspection.
type MockAuditStore struct {
	AppendFunc     func(ctx context.Context, event *models.AuditEvent) error
	QueryFunc      func(ctx context.Context, filter models.AuditFilter, limit, offset int) ([]*models.AuditEvent, int, error)
	StatisticsFunc func(ctx context.Context, since time.Time) (*models.AuditStats, error)

	mu     sync.Mutex
	events []*models.AuditEvent
}

func (m *MockAuditStore) Append(ctx context.Context, event *models.AuditEvent) error {
	if m.AppendFunc != nil {
		return m.AppendFunc(ctx, event)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *event
	m.events = append(m.events, &copied)
	return nil
}

func (m *MockAuditStore) Query(ctx context.Context, filter models.AuditFilter, limit, offset int) ([]*models.AuditEvent, int, error) {
	if m.QueryFunc != nil {
		return m.QueryFunc(ctx, filter, limit, offset)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*models.AuditEvent(nil), m.events...), len(m.events), nil
}

func (m *MockAuditStore) Statistics(ctx context.Context, since time.Time) (*models.AuditStats, error) {
	if m.StatisticsFunc != nil {
		return m.StatisticsFunc(ctx, since)
	}
	return &models.AuditStats{}, nil
}

// Events returns a snapshot of everything appended so far.
func (m *MockAuditStore) Events() []*models.AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*models.AuditEvent(nil), m.events...)
}

// EventsOfType filters the recorded events by event type.
func (m *MockAuditStore) EventsOfType(eventType string) []*models.AuditEvent {
	var matched []*models.AuditEvent
	for _, event := range m.Events() {
		if event.EventType == eventType {
			matched = append(matched, event)
		}
	}
	return matched
}

// MockAttemptStore implements AttemptStore for testing failure paths.
type MockAttemptStore struct {
	StatusFunc        func(ctx context.Context, identifier string) (models.ThrottleStatus, error)
	RecordFailureFunc func(ctx context.Context, identifier string, threshold int, lockDuration time.Duration) (models.FailureOutcome, error)
	ClearFunc         func(ctx context.Context, identifier string) error
}

func (m *MockAttemptStore) Status(ctx context.Context, identifier string) (models.ThrottleStatus, error) {
	if m.StatusFunc != nil {
		return m.StatusFunc(ctx, identifier)
	}
	return models.ThrottleStatus{}, nil
}

func (m *MockAttemptStore) RecordFailure(ctx context.Context, identifier string, threshold int, lockDuration time.Duration) (models.FailureOutcome, error) {
	if m.RecordFailureFunc != nil {
		return m.RecordFailureFunc(ctx, identifier, threshold, lockDuration)
	}
	return models.FailureOutcome{AttemptCount: 1}, nil
}

func (m *MockAttemptStore) Clear(ctx context.Context, identifier string) error {
	if m.ClearFunc != nil {
		return m.ClearFunc(ctx, identifier)
	}
	return nil
}
