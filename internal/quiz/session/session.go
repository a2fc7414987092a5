package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/smarthub-edu/smarthub/internal/quiz"
)

// Clock lets tests freeze time.
type Clock func() time.Time

// State of the submission controller. Submitting is terminal-committed:
// once entered there is no way back to Idle, which guarantees at most
// one outstanding submission per attempt.
type State string

const (
	StateIdle       State = "idle"
	StateSubmitting State = "submitting"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

var (
	ErrNotActive     = errors.New("session is not accepting edits")
	ErrSubmitStarted = errors.New("submission already started")
)

// ErrIncomplete is returned by Submit when the ledger covers fewer
// questions than the quiz has and force was not set. Callers surface
// it as a confirmation prompt.
type ErrIncomplete struct {
	Answered int
	Total    int
}

func (e ErrIncomplete) Error() string {
	return fmt.Sprintf("only %d of %d questions answered", e.Answered, e.Total)
}

// Submitter persists the ledger and finalizes the attempt. Both quiz
// stores satisfy it.
type Submitter interface {
	SaveResponses(ctx context.Context, attemptID string, resp quiz.Ledger) (quiz.Attempt, error)
	Submit(ctx context.Context, attemptID string, auto bool, now time.Time) (quiz.Attempt, error)
}

// Session owns one attempt for its lifetime: the answer ledger, the
// countdown timer and the submission state machine. All methods are
// safe for concurrent use; the timer-driven auto-submit and a manual
// submit may race and exactly one wins.
type Session struct {
	mu      sync.Mutex
	state   State
	ledger  quiz.Ledger
	attempt quiz.Attempt
	total   int // number of questions

	store Submitter
	now   Clock
	timer *time.Timer

	result   quiz.Attempt
	err      error
	onFinish func(attemptID string)
}

type Option func(*Session)

// WithClock overrides the wall clock.
func WithClock(c Clock) Option { return func(s *Session) { s.now = c } }

// WithOnFinish registers a callback fired after the session reaches a
// terminal state. Used by the manager to drop finished sessions.
func WithOnFinish(f func(attemptID string)) Option { return func(s *Session) { s.onFinish = f } }

// New builds a session for an in-progress attempt and arms the
// auto-submit timer for the attempt deadline.
func New(att quiz.Attempt, totalQuestions int, store Submitter, opts ...Option) *Session {
	s := &Session{
		state:   StateIdle,
		ledger:  quiz.NewLedger(),
		attempt: att,
		total:   totalQuestions,
		store:   store,
		now:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	if att.Responses != nil {
		s.ledger = att.Responses.Clone()
	}
	d := time.Unix(att.Deadline, 0).Sub(s.now())
	if d < 0 {
		d = 0
	}
	s.timer = time.AfterFunc(d, s.autoSubmit)
	return s
}

func (s *Session) AttemptID() string { return s.attempt.ID }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Ledger returns a snapshot of the current answers.
func (s *Session) Ledger() quiz.Ledger {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Clone()
}

// Answered reports how many questions currently have a ledger entry.
func (s *Session) Answered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Answered()
}

// Remaining is the time left before the deadline, clamped at zero.
func (s *Session) Remaining() time.Duration {
	d := time.Unix(s.attempt.Deadline, 0).Sub(s.now())
	if d < 0 {
		return 0
	}
	return d
}

// RemainingDisplay formats the time left as MM:SS, e.g. 45:00 for a
// fresh 45-minute attempt and 00:00 at expiry.
func (s *Session) RemainingDisplay() string {
	return FormatRemaining(s.Remaining())
}

func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int(d.Round(time.Second) / time.Second)
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}

// edit applies a ledger mutation while the session is still idle.
func (s *Session) edit(f func(l quiz.Ledger)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		return ErrNotActive
	}
	f(s.ledger)
	return nil
}

// SetChoice records a single-selection answer (single choice, true/false
// or short answer), replacing any previous entry for the question.
func (s *Session) SetChoice(key, value string) error {
	return s.edit(func(l quiz.Ledger) { l.SetChoice(key, value) })
}

// ToggleOption toggles one option of a multiple-choice answer.
func (s *Session) ToggleOption(key, option string) error {
	return s.edit(func(l quiz.Ledger) { l.ToggleOption(key, option) })
}

// SetMatch records one left→right pairing of a matching answer.
func (s *Session) SetMatch(key, left, right string) error {
	return s.edit(func(l quiz.Ledger) { l.SetMatch(key, left, right) })
}

// MergeLedger folds an externally built ledger into the session, e.g.
// a partial save posted by a client.
func (s *Session) MergeLedger(in quiz.Ledger) error {
	return s.edit(func(l quiz.Ledger) {
		for k, v := range in {
			l[k] = v
		}
	})
}

// Submit finalizes the attempt. Unless force is set, submitting with
// unanswered questions fails with ErrIncomplete so the caller can ask
// for confirmation. Only the first Submit (manual or timer-driven)
// proceeds; later calls get ErrSubmitStarted or the finished result.
func (s *Session) Submit(ctx context.Context, force bool) (quiz.Attempt, error) {
	return s.submit(ctx, force, false)
}

func (s *Session) submit(ctx context.Context, force, auto bool) (quiz.Attempt, error) {
	s.mu.Lock()
	switch s.state {
	case StateCompleted:
		res := s.result
		s.mu.Unlock()
		return res, nil
	case StateSubmitting, StateFailed:
		err := s.err
		s.mu.Unlock()
		if err == nil {
			err = ErrSubmitStarted
		}
		return quiz.Attempt{}, err
	}
	if !force && s.ledger.Answered() < s.total {
		answered := s.ledger.Answered()
		s.mu.Unlock()
		return quiz.Attempt{}, ErrIncomplete{Answered: answered, Total: s.total}
	}
	s.state = StateSubmitting
	ledger := s.ledger.Clone()
	s.mu.Unlock()

	s.timer.Stop()

	att, err := s.finalize(ctx, ledger, auto)

	s.mu.Lock()
	if err != nil {
		s.state = StateFailed
		s.err = err
	} else {
		s.state = StateCompleted
		s.result = att
	}
	finish := s.onFinish
	s.mu.Unlock()

	if finish != nil {
		finish(s.attempt.ID)
	}
	return att, err
}

func (s *Session) finalize(ctx context.Context, ledger quiz.Ledger, auto bool) (quiz.Attempt, error) {
	if len(ledger) > 0 {
		if _, err := s.store.SaveResponses(ctx, s.attempt.ID, ledger); err != nil {
			return quiz.Attempt{}, fmt.Errorf("save responses: %w", err)
		}
	}
	att, err := s.store.Submit(ctx, s.attempt.ID, auto, s.now())
	if err != nil {
		return quiz.Attempt{}, fmt.Errorf("submit attempt: %w", err)
	}
	return att, nil
}

// autoSubmit fires when the countdown reaches zero. The state machine
// makes it a no-op if a manual submit already won the race, and the
// stopped timer never fires twice.
func (s *Session) autoSubmit() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_, _ = s.submit(ctx, true, true)
}

// Stop disarms the timer without submitting. Used when the learner
// abandons the attempt or the service shuts down.
func (s *Session) Stop() {
	s.timer.Stop()
}

// Result returns the terminal outcome, if any.
func (s *Session) Result() (att quiz.Attempt, done bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateCompleted:
		return s.result, true, nil
	case StateFailed:
		return quiz.Attempt{}, true, s.err
	default:
		return quiz.Attempt{}, false, nil
	}
}
