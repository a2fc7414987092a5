package quiz

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smarthub-edu/smarthub/internal/grading"
)

var (
	ErrQuizNotFound     = errors.New("quiz not found")
	ErrAttemptNotFound  = errors.New("attempt not found")
	ErrAlreadySubmitted = errors.New("attempt already submitted")
)

type AttemptListOpts struct {
	QuizID   string
	CourseID string
	UserID   string
	Status   string
	Limit    int
	Offset   int
}

type Store interface {
	PutQuiz(ctx context.Context, q Quiz) error
	GetQuiz(ctx context.Context, id string) (Quiz, error)      // student-safe, keys stripped
	GetQuizAdmin(ctx context.Context, id string) (Quiz, error) // full quiz, for grading
	LatestQuizForCourse(ctx context.Context, courseID string) (Quiz, error)

	NewAttempt(ctx context.Context, q Quiz, userID string, now time.Time) (Attempt, error)
	GetAttempt(ctx context.Context, id string) (Attempt, error)
	SaveResponses(ctx context.Context, attemptID string, resp Ledger) (Attempt, error)
	Submit(ctx context.Context, attemptID string, auto bool, now time.Time) (Attempt, error)
	ListAttempts(ctx context.Context, opts AttemptListOpts) ([]Attempt, error)

	CountAttemptsSince(ctx context.Context, userID, courseID string, since time.Time) (int, error)
	Stats(ctx context.Context, userID, courseID string) (Stats, error)
}

type memoryStore struct {
	mu       sync.RWMutex
	quizzes  map[string]Quiz
	attempts map[string]Attempt
	grader   grading.Grader
}

func NewInMemoryStore(grader grading.Grader) Store {
	return &memoryStore{
		quizzes:  map[string]Quiz{},
		attempts: map[string]Attempt{},
		grader:   grader,
	}
}

func (m *memoryStore) PutQuiz(_ context.Context, q Quiz) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if q.CreatedAt == 0 {
		q.CreatedAt = time.Now().Unix()
	}
	m.quizzes[q.ID] = q
	return nil
}

func (m *memoryStore) GetQuiz(ctx context.Context, id string) (Quiz, error) {
	q, err := m.GetQuizAdmin(ctx, id)
	if err != nil {
		return Quiz{}, err
	}
	return q.Sanitized(), nil
}

func (m *memoryStore) GetQuizAdmin(_ context.Context, id string) (Quiz, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.quizzes[id]
	if !ok {
		return Quiz{}, ErrQuizNotFound
	}
	return q, nil
}

func (m *memoryStore) LatestQuizForCourse(_ context.Context, courseID string) (Quiz, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var best Quiz
	found := false
	for _, q := range m.quizzes {
		// generated quizzes are attempt-scoped, never the course default
		if q.CourseID != courseID || q.Source != "" {
			continue
		}
		if !found || q.CreatedAt > best.CreatedAt {
			best = q
			found = true
		}
	}
	if !found {
		return Quiz{}, ErrQuizNotFound
	}
	return best, nil
}

func (m *memoryStore) NewAttempt(_ context.Context, q Quiz, userID string, now time.Time) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.quizzes[q.ID]; !ok {
		return Attempt{}, ErrQuizNotFound
	}
	a := Attempt{
		ID:        uuid.NewString(),
		QuizID:    q.ID,
		CourseID:  q.CourseID,
		UserID:    userID,
		Status:    StatusInProgress,
		MaxScore:  q.MaxPoints(),
		Responses: NewLedger(),
		StartedAt: now.Unix(),
		Deadline:  now.Unix() + int64(q.TimeLimitSec),
	}
	m.attempts[a.ID] = a
	return a, nil
}

func (m *memoryStore) GetAttempt(_ context.Context, id string) (Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.attempts[id]
	if !ok {
		return Attempt{}, ErrAttemptNotFound
	}
	return a, nil
}

func (m *memoryStore) SaveResponses(_ context.Context, attemptID string, resp Ledger) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[attemptID]
	if !ok {
		return Attempt{}, ErrAttemptNotFound
	}
	if a.Status != StatusInProgress {
		return Attempt{}, ErrAlreadySubmitted
	}
	if a.Responses == nil {
		a.Responses = NewLedger()
	}
	for k, v := range resp {
		a.Responses[k] = v
	}
	m.attempts[attemptID] = a
	return a, nil
}

func (m *memoryStore) Submit(ctx context.Context, attemptID string, auto bool, now time.Time) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[attemptID]
	if !ok {
		return Attempt{}, ErrAttemptNotFound
	}
	if a.Status != StatusInProgress {
		return Attempt{}, ErrAlreadySubmitted
	}
	q := m.quizzes[a.QuizID]
	a.Score = gradeAttempt(ctx, m.grader, q, a)
	a.Status = StatusSubmitted
	a.AutoSubmit = auto
	ts := now.Unix()
	a.SubmittedAt = &ts
	m.attempts[attemptID] = a
	return a, nil
}

func (m *memoryStore) ListAttempts(_ context.Context, opts AttemptListOpts) ([]Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Attempt, 0)
	for _, a := range m.attempts {
		if opts.QuizID != "" && a.QuizID != opts.QuizID {
			continue
		}
		if opts.CourseID != "" && a.CourseID != opts.CourseID {
			continue
		}
		if opts.UserID != "" && a.UserID != opts.UserID {
			continue
		}
		if opts.Status != "" && a.Status != opts.Status {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt > out[j].StartedAt })
	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return []Attempt{}, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (m *memoryStore) CountAttemptsSince(_ context.Context, userID, courseID string, since time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, a := range m.attempts {
		if a.UserID == userID && a.CourseID == courseID && a.StartedAt >= since.Unix() {
			n++
		}
	}
	return n, nil
}

func (m *memoryStore) Stats(_ context.Context, userID, courseID string) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st := Stats{UserID: userID, CourseID: courseID}
	total := 0.0
	for _, a := range m.attempts {
		if a.UserID != userID || a.CourseID != courseID || a.Status != StatusSubmitted {
			continue
		}
		st.Attempts++
		total += a.Score
		if a.Score > st.BestScore {
			st.BestScore = a.Score
		}
		if a.SubmittedAt != nil && *a.SubmittedAt > st.LastSubmitted {
			st.LastSubmitted = *a.SubmittedAt
		}
	}
	if st.Attempts > 0 {
		st.AvgScore = total / float64(st.Attempts)
	}
	return st, nil
}

// gradeAttempt scores every answered question through the grading
// engine. Unanswered questions contribute nothing.
func gradeAttempt(ctx context.Context, grader grading.Grader, q Quiz, a Attempt) float64 {
	if grader == nil {
		return 0
	}
	score := 0.0
	for i, qu := range q.Questions {
		resp, ok := a.Responses[QuestionKey(i)]
		if !ok {
			continue
		}
		gq := grading.Q{Kind: qu.Kind, Points: qu.Points, AnswerKey: qu.AnswerKey, MatchKey: qu.MatchKey}
		res, err := grader.Grade(ctx, gq, resp)
		if err != nil {
			continue
		}
		score += res.Points
	}
	return score
}
