package models

import "time"

// AttemptRecord tracks consecutive login failures for one identifier.
// The identifier is the normalized (lower-cased, trimmed) email.
type AttemptRecord struct {
	Identifier     string
	FailureCount   int
	FirstFailureAt *time.Time
	LockedUntil    *time.Time
}

// Locked reports whether the record holds an unexpired lockout.
func (r *AttemptRecord) Locked(now time.Time) bool {
	return r.LockedUntil != nil && now.Before(*r.LockedUntil)
}

// ThrottleStatus is the result of a lockout check for one identifier.
type ThrottleStatus struct {
	Locked           bool
	RemainingSeconds int
	AttemptCount     int
}

// FailureOutcome is the result of recording one failed attempt. JustLocked
// is true only for the attempt that tripped the lock, not for overflow
// failures arriving while the lock is already active.
type FailureOutcome struct {
	Locked       bool
	JustLocked   bool
	LockedUntil  *time.Time
	AttemptCount int
}
