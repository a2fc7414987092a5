// Package cache holds short-lived read-side data for the quiz flow:
// eligibility records and per-course stats. Both are recomputed from
// the store on miss, so a cache failure only costs a query.
package cache

import (
	"errors"
	"time"

	"github.com/smarthub-edu/smarthub/internal/eligibility"
	"github.com/smarthub-edu/smarthub/internal/quiz"
)

var ErrMiss = errors.New("cache miss")

type Cache interface {
	GetEligibility(userID, courseID string) (eligibility.Record, error)
	SetEligibility(userID, courseID string, r eligibility.Record, ttl time.Duration) error
	InvalidateEligibility(userID, courseID string) error

	GetStats(userID, courseID string) (quiz.Stats, error)
	SetStats(userID, courseID string, s quiz.Stats, ttl time.Duration) error
	InvalidateStats(userID, courseID string) error
}
