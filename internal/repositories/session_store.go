package repositories

import (
	"context"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/eventdeck/gatehouse/internal/models"
)

const sessionShardCount = 32

type sessionShard struct {
	mu       sync.RWMutex
	sessions map[string]*models.ActiveSession
}

// MemorySessionStore is a sharded in-memory registry of active sessions
// keyed by session token. Shard-level locking keeps the periodic idle sweep
// from serializing heartbeats for unrelated sessions.
type MemorySessionStore struct {
	shards [sessionShardCount]*sessionShard
}

func NewMemorySessionStore() *MemorySessionStore {
	s := &MemorySessionStore{}
	for i := range s.shards {
		s.shards[i] = &sessionShard{sessions: make(map[string]*models.ActiveSession)}
	}
	return s
}

func (s *MemorySessionStore) shard(token string) *sessionShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(token))
	return s.shards[h.Sum32()%sessionShardCount]
}

// Insert adds a new active session.
func (s *MemorySessionStore) Insert(ctx context.Context, session *models.ActiveSession) error {
	shard := s.shard(session.SessionToken)

	shard.mu.Lock()
	defer shard.mu.Unlock()

	copied := *session
	shard.sessions[session.SessionToken] = &copied
	return nil
}

// Get returns a copy of the session for a token, or ErrSessionNotFound.
func (s *MemorySessionStore) Get(ctx context.Context, token string) (*models.ActiveSession, error) {
	shard := s.shard(token)

	shard.mu.RLock()
	defer shard.mu.RUnlock()

	session, ok := shard.sessions[token]
	if !ok {
		return nil, models.ErrSessionNotFound
	}

	copied := *session
	return &copied, nil
}

// Touch updates LastActivityAt for a token. Returns false if the token no
// longer exists, signaling the caller that the session is dead.
func (s *MemorySessionStore) Touch(ctx context.Context, token string, at time.Time) (bool, error) {
	shard := s.shard(token)

	shard.mu.Lock()
	defer shard.mu.Unlock()

	session, ok := shard.sessions[token]
	if !ok {
		return false, nil
	}

	session.LastActivityAt = at
	return true, nil
}

// ListByUser returns copies of all sessions for one user, oldest first.
func (s *MemorySessionStore) ListByUser(ctx context.Context, userID string) ([]*models.ActiveSession, error) {
	return s.collect(func(session *models.ActiveSession) bool {
		return session.UserID == userID
	}), nil
}

// ListAll returns copies of every active session, oldest first.
func (s *MemorySessionStore) ListAll(ctx context.Context) ([]*models.ActiveSession, error) {
	return s.collect(func(*models.ActiveSession) bool { return true }), nil
}

// Delete removes the session for a token. Idempotent: deleting an
// already-gone token is not an error.
func (s *MemorySessionStore) Delete(ctx context.Context, token string) error {
	shard := s.shard(token)

	shard.mu.Lock()
	defer shard.mu.Unlock()

	delete(shard.sessions, token)
	return nil
}

// DeleteIdle removes every session whose LastActivityAt is strictly before
// cutoff and returns copies of the removed sessions so the caller can write
// one session_expired audit event per reaped session.
func (s *MemorySessionStore) DeleteIdle(ctx context.Context, cutoff time.Time) ([]*models.ActiveSession, error) {
	var removed []*models.ActiveSession

	for _, shard := range s.shards {
		shard.mu.Lock()
		for token, session := range shard.sessions {
			if session.LastActivityAt.Before(cutoff) {
				copied := *session
				removed = append(removed, &copied)
				delete(shard.sessions, token)
			}
		}
		shard.mu.Unlock()
	}

	sortSessionsByCreation(removed)
	return removed, nil
}

func (s *MemorySessionStore) collect(match func(*models.ActiveSession) bool) []*models.ActiveSession {
	result := make([]*models.ActiveSession, 0)

	for _, shard := range s.shards {
		shard.mu.RLock()
		for _, session := range shard.sessions {
			if match(session) {
				copied := *session
				result = append(result, &copied)
			}
		}
		shard.mu.RUnlock()
	}

	sortSessionsByCreation(result)
	return result
}

// sortSessionsByCreation orders sessions oldest-created first, so the
// duplicate-login policy can evict index 0.
func sortSessionsByCreation(sessions []*models.ActiveSession) {
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
}
