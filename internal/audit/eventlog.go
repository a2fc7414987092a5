// Package audit appends quiz-flow lifecycle events to an append-only
// log table. The log is write-only from the service's point of view;
// reporting reads it offline.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

const (
	EventAttemptStarted   = "AttemptStarted"
	EventAttemptSubmitted = "AttemptSubmitted"
	EventFallbackServed   = "FallbackServed"
)

type Event struct {
	Type string
	Key  string // natural key, usually attemptID
	Data interface{}
}

// Log is the append surface; EventRepo is the SQL-backed implementation.
type Log interface {
	Append(ctx context.Context, e Event) error
}

type EventRepo struct{ db *sql.DB }

func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

func (r *EventRepo) Append(ctx context.Context, e Event) error {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO event_log (typ, key, data, created_at) VALUES ($1,$2,$3,$4)`,
		e.Type, e.Key, string(data), time.Now().Unix())
	return err
}
