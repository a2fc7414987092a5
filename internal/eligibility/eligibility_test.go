package eligibility

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type fakeCounter struct {
	n     int
	err   error
	since time.Time
}

func (f *fakeCounter) CountAttemptsSince(_ context.Context, _, _ string, since time.Time) (int, error) {
	f.since = since
	return f.n, f.err
}

func TestCheckEligible(t *testing.T) {
	now := time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)
	fc := &fakeCounter{n: 1}
	c := NewChecker(fc, 3, func() time.Time { return now })

	rec, err := c.Check(context.Background(), "u1", "c1")
	if err != nil {
		t.Fatal(err)
	}
	if !rec.Eligible {
		t.Fatal("1 of 3 attempts used, should be eligible")
	}
	if rec.AttemptsToday != 1 || rec.MaxAttemptsPerDay != 3 {
		t.Fatalf("rec = %+v", rec)
	}
	if !strings.Contains(rec.Message, "1/3") {
		t.Fatalf("message %q must cite the 1/3 count", rec.Message)
	}
	if rec.NextAvailableAt != 0 {
		t.Fatalf("NextAvailableAt = %d; want unset while eligible", rec.NextAvailableAt)
	}

	wantMidnight := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	if !fc.since.Equal(wantMidnight) {
		t.Fatalf("counted since %v; want local midnight %v", fc.since, wantMidnight)
	}
}

func TestCheckLimitReached(t *testing.T) {
	now := time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)
	c := NewChecker(&fakeCounter{n: 3}, 3, func() time.Time { return now })

	rec, err := c.Check(context.Background(), "u1", "c1")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Eligible {
		t.Fatal("3 of 3 attempts used, must be ineligible")
	}
	if !strings.Contains(rec.Message, "3/3") {
		t.Fatalf("message %q must cite the 3/3 count", rec.Message)
	}
	wantNext := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC).Unix()
	if rec.NextAvailableAt != wantNext {
		t.Fatalf("NextAvailableAt = %d; want next midnight %d", rec.NextAvailableAt, wantNext)
	}
}

func TestCheckOverLimitStaysIneligible(t *testing.T) {
	c := NewChecker(&fakeCounter{n: 7}, 3, nil)
	rec, err := c.Check(context.Background(), "u1", "c1")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Eligible {
		t.Fatal("over the limit must stay ineligible")
	}
}

func TestCheckCounterError(t *testing.T) {
	boom := errors.New("db down")
	c := NewChecker(&fakeCounter{err: boom}, 3, nil)
	if _, err := c.Check(context.Background(), "u1", "c1"); !errors.Is(err, boom) {
		t.Fatalf("err = %v; want wrapped %v", err, boom)
	}
}

func TestDefaultMaxPerDay(t *testing.T) {
	c := NewChecker(&fakeCounter{n: 2}, 0, nil)
	rec, err := c.Check(context.Background(), "u1", "c1")
	if err != nil {
		t.Fatal(err)
	}
	if rec.MaxAttemptsPerDay != 3 {
		t.Fatalf("default max = %d; want 3", rec.MaxAttemptsPerDay)
	}
}
