package ratelimit_test

import (
	"errors"
	"testing"
	"time"

	"cipherdm/internal/domain"
	"cipherdm/internal/ratelimit"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestLockoutAfterMaxFailures(t *testing.T) {
	c := &clock{t: time.Unix(1_700_000_000, 0)}
	l := ratelimit.New(5, time.Minute, ratelimit.WithClock(c.now))

	for i := 1; i < 5; i++ {
		if err := l.Failure("alice"); err != nil {
			t.Fatalf("failure %d: unexpected %v", i, err)
		}
		if err := l.Allow("alice"); err != nil {
			t.Fatalf("allow after %d failures: %v", i, err)
		}
	}
	if err := l.Failure("alice"); !errors.Is(err, domain.ErrTooManyAttempts) {
		t.Fatalf("5th failure: want ErrTooManyAttempts, got %v", err)
	}
	if got := l.Failures("alice"); got != 0 {
		t.Fatalf("counter not reset on lockout: %d", got)
	}
	if err := l.Allow("alice"); !errors.Is(err, domain.ErrTooManyAttempts) {
		t.Fatalf("allow while locked: want ErrTooManyAttempts, got %v", err)
	}
	if err := l.Allow("bob"); err != nil {
		t.Fatalf("other keys must not be affected: %v", err)
	}

	c.t = c.t.Add(time.Minute + time.Second)
	if err := l.Allow("alice"); err != nil {
		t.Fatalf("allow after lockout expired: %v", err)
	}
}

func TestSuccessResets(t *testing.T) {
	l := ratelimit.New(3, time.Minute)
	_ = l.Failure("k")
	_ = l.Failure("k")
	l.Success("k")
	if got := l.Failures("k"); got != 0 {
		t.Fatalf("failures after success = %d", got)
	}
	if err := l.Failure("k"); err != nil {
		t.Fatalf("first failure after reset: %v", err)
	}
}
