// Package eligibility decides whether a learner may start a new quiz
// attempt and formats the counters the client shows next to the start
// button.
package eligibility

import (
	"context"
	"fmt"
	"time"
)

// Record is the server-computed permission/quota data for one learner
// and course.
type Record struct {
	Eligible          bool   `json:"eligible"`
	AttemptsToday     int    `json:"attemptsToday"`
	MaxAttemptsPerDay int    `json:"maxAttemptsPerDay"`
	NextAvailableAt   int64  `json:"nextAvailableAt,omitempty"` // unix seconds
	Message           string `json:"message"`
}

// Counter reports how many attempts a learner started since a point in
// time. The quiz store satisfies it.
type Counter interface {
	CountAttemptsSince(ctx context.Context, userID, courseID string, since time.Time) (int, error)
}

type Checker struct {
	counter   Counter
	maxPerDay int
	now       func() time.Time
}

func NewChecker(counter Counter, maxPerDay int, now func() time.Time) *Checker {
	if maxPerDay <= 0 {
		maxPerDay = 3
	}
	if now == nil {
		now = time.Now
	}
	return &Checker{counter: counter, maxPerDay: maxPerDay, now: now}
}

// Check computes the eligibility record for one learner and course.
// The daily window resets at local midnight.
func (c *Checker) Check(ctx context.Context, userID, courseID string) (Record, error) {
	now := c.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	n, err := c.counter.CountAttemptsSince(ctx, userID, courseID, midnight)
	if err != nil {
		return Record{}, fmt.Errorf("count attempts: %w", err)
	}
	r := Record{
		AttemptsToday:     n,
		MaxAttemptsPerDay: c.maxPerDay,
		Eligible:          n < c.maxPerDay,
	}
	if !r.Eligible {
		r.NextAvailableAt = midnight.AddDate(0, 0, 1).Unix()
	}
	r.Message = Format(r)
	return r, nil
}

// Format renders the record into the message shown beside the start
// button, citing the N/M count.
func Format(r Record) string {
	if r.Eligible {
		return fmt.Sprintf("%d/%d attempts used today", r.AttemptsToday, r.MaxAttemptsPerDay)
	}
	msg := fmt.Sprintf("Daily attempt limit reached (%d/%d)", r.AttemptsToday, r.MaxAttemptsPerDay)
	if r.NextAvailableAt > 0 {
		msg += fmt.Sprintf("; next attempt available at %s",
			time.Unix(r.NextAvailableAt, 0).Format("15:04 Jan 2"))
	}
	return msg
}
