// Package ratelimit counts failed attempts per key and locks a key out once
// it crosses a threshold.
package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"cipherdm/internal/domain"
)

const (
	DefaultMaxAttempts = 5
	DefaultLockout     = 15 * time.Minute
)

type record struct {
	failures    int
	lockedUntil time.Time
}

// Limiter tracks consecutive failures. When a key reaches max failures it is
// locked for the lockout period and its counter starts again from zero.
type Limiter struct {
	max     int
	lockout time.Duration
	now     func() time.Time

	mu      sync.Mutex
	records map[string]*record
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New returns a Limiter. Non-positive arguments fall back to the defaults.
func New(max int, lockout time.Duration, opts ...Option) *Limiter {
	if max <= 0 {
		max = DefaultMaxAttempts
	}
	if lockout <= 0 {
		lockout = DefaultLockout
	}
	l := &Limiter{max: max, lockout: lockout, now: time.Now, records: make(map[string]*record)}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Allow returns ErrTooManyAttempts while key is locked out.
func (l *Limiter) Allow(key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.records[key]
	if !ok {
		return nil
	}
	if until := r.lockedUntil; l.now().Before(until) {
		return fmt.Errorf("%w: retry after %s", domain.ErrTooManyAttempts, until.Format(time.RFC3339))
	}
	return nil
}

// Failure records a failed attempt. It returns ErrTooManyAttempts when this
// failure triggers a lockout.
func (l *Limiter) Failure(key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.records[key]
	if !ok {
		r = &record{}
		l.records[key] = r
	}
	r.failures++
	if r.failures < l.max {
		return nil
	}
	r.failures = 0
	r.lockedUntil = l.now().Add(l.lockout)
	return fmt.Errorf("%w: locked for %s", domain.ErrTooManyAttempts, l.lockout)
}

// Success forgets all failures for key.
func (l *Limiter) Success(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.records, key)
}

// Failures returns the current failure count for key.
func (l *Limiter) Failures(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if r, ok := l.records[key]; ok {
		return r.failures
	}
	return 0
}
