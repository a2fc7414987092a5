package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/smarthub-edu/smarthub/internal/eligibility"
	"github.com/smarthub-edu/smarthub/internal/quiz"
)

func TestMemoryEligibilityRoundTrip(t *testing.T) {
	m := NewMemory()
	if _, err := m.GetEligibility("u1", "c1"); !errors.Is(err, ErrMiss) {
		t.Fatalf("empty cache err = %v; want ErrMiss", err)
	}

	rec := eligibility.Record{Eligible: true, AttemptsToday: 1, MaxAttemptsPerDay: 3}
	if err := m.SetEligibility("u1", "c1", rec, time.Minute); err != nil {
		t.Fatal(err)
	}
	got, err := m.GetEligibility("u1", "c1")
	if err != nil {
		t.Fatal(err)
	}
	if got != rec {
		t.Fatalf("got %+v; want %+v", got, rec)
	}

	// keyed per user and course
	if _, err := m.GetEligibility("u2", "c1"); !errors.Is(err, ErrMiss) {
		t.Fatal("other user must miss")
	}

	if err := m.InvalidateEligibility("u1", "c1"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.GetEligibility("u1", "c1"); !errors.Is(err, ErrMiss) {
		t.Fatal("invalidated entry must miss")
	}
}

func TestMemoryTTLExpiry(t *testing.T) {
	m := NewMemory()
	if err := m.SetStats("u1", "c1", quiz.Stats{Attempts: 2}, 10*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if _, err := m.GetStats("u1", "c1"); err != nil {
		t.Fatalf("fresh entry: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	if _, err := m.GetStats("u1", "c1"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expired entry err = %v; want ErrMiss", err)
	}
}
