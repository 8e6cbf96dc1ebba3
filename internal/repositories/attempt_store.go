package repositories

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/eventdeck/gatehouse/internal/models"
)

const attemptShardCount = 32

type attemptShard struct {
	mu      sync.Mutex
	records map[string]*models.AttemptRecord
}

// MemoryAttemptStore is a sharded in-memory store for login failure
// bookkeeping. Each identifier maps to exactly one shard, so a
// read-modify-write under the shard mutex is linearizable per identifier
// while failures for unrelated identifiers proceed in parallel.
type MemoryAttemptStore struct {
	shards [attemptShardCount]*attemptShard
	nowFn  func() time.Time
}

// NewMemoryAttemptStore creates an empty attempt store. nowFn may be nil,
// in which case time.Now is used.
func NewMemoryAttemptStore(nowFn func() time.Time) *MemoryAttemptStore {
	if nowFn == nil {
		nowFn = time.Now
	}

	s := &MemoryAttemptStore{nowFn: nowFn}
	for i := range s.shards {
		s.shards[i] = &attemptShard{records: make(map[string]*models.AttemptRecord)}
	}
	return s
}

func (s *MemoryAttemptStore) shard(identifier string) *attemptShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(identifier))
	return s.shards[h.Sum32()%attemptShardCount]
}

// Status reports the current lockout state for an identifier. It is a pure
// read: a record whose lock has already expired is reported as unlocked with
// zero attempts, but the reset itself happens lazily on the next write so
// concurrent readers never race a mutation.
func (s *MemoryAttemptStore) Status(ctx context.Context, identifier string) (models.ThrottleStatus, error) {
	shard := s.shard(identifier)
	now := s.nowFn()

	shard.mu.Lock()
	defer shard.mu.Unlock()

	record, ok := shard.records[identifier]
	if !ok {
		return models.ThrottleStatus{}, nil
	}

	if record.LockedUntil != nil {
		if now.Before(*record.LockedUntil) {
			remaining := int(record.LockedUntil.Sub(now).Round(time.Second) / time.Second)
			if remaining < 1 {
				remaining = 1
			}
			return models.ThrottleStatus{
				Locked:           true,
				RemainingSeconds: remaining,
				AttemptCount:     record.FailureCount,
			}, nil
		}
		// Expired lock: report as clean, reset on next write.
		return models.ThrottleStatus{}, nil
	}

	return models.ThrottleStatus{AttemptCount: record.FailureCount}, nil
}

// RecordFailure increments the failure counter for an identifier and fires
// the lock when the counter reaches threshold. Failures arriving while the
// lock is active do not extend it and do not move the counter past the
// threshold. A failure arriving after the lock expired starts a fresh record.
func (s *MemoryAttemptStore) RecordFailure(ctx context.Context, identifier string, threshold int, lockDuration time.Duration) (models.FailureOutcome, error) {
	shard := s.shard(identifier)
	now := s.nowFn()

	shard.mu.Lock()
	defer shard.mu.Unlock()

	record, ok := shard.records[identifier]
	if ok && record.LockedUntil != nil {
		if now.Before(*record.LockedUntil) {
			// Already locked: overflow is idempotent.
			return models.FailureOutcome{
				Locked:       true,
				LockedUntil:  record.LockedUntil,
				AttemptCount: record.FailureCount,
			}, nil
		}
		// Lock expired; lazy reset.
		ok = false
	}

	if !ok {
		first := now
		record = &models.AttemptRecord{
			Identifier:     identifier,
			FirstFailureAt: &first,
		}
		shard.records[identifier] = record
	}

	record.FailureCount++
	justLocked := false
	if record.FailureCount >= threshold {
		record.FailureCount = threshold
		lockedUntil := now.Add(lockDuration)
		record.LockedUntil = &lockedUntil
		justLocked = true
	}

	return models.FailureOutcome{
		Locked:       record.LockedUntil != nil,
		JustLocked:   justLocked,
		LockedUntil:  record.LockedUntil,
		AttemptCount: record.FailureCount,
	}, nil
}

// Clear removes the record for an identifier entirely. Invoked on successful
// login; clearing an absent identifier is a no-op.
func (s *MemoryAttemptStore) Clear(ctx context.Context, identifier string) error {
	shard := s.shard(identifier)

	shard.mu.Lock()
	defer shard.mu.Unlock()

	delete(shard.records, identifier)
	return nil
}
