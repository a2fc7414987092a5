package quiz

import (
	"encoding/json"
	"strconv"
)

// Question kinds served by the platform. The renderer and the grading
// engine both dispatch on these values.
const (
	KindSingleChoice   = "single_choice"
	KindMultipleChoice = "multiple_choice"
	KindTrueFalse      = "true_false"
	KindShortAnswer    = "short_answer"
	KindMatching       = "matching"
)

type Option struct {
	ID    string `json:"id"`
	Label string `json:"label,omitempty"`
}

// MatchPair is one left/right pairing of a matching question. Right-hand
// values are shuffled client-side; the answer key pairs them back up.
type MatchPair struct {
	Left  string `json:"left"`
	Right string `json:"right"`
}

type Question struct {
	ID          string            `json:"id"`
	Kind        string            `json:"kind"`
	Prompt      string            `json:"prompt"`
	Options     []Option          `json:"options,omitempty"` // choice kinds
	Pairs       []MatchPair       `json:"pairs,omitempty"`   // matching kind
	AnswerKey   []string          `json:"answer_key,omitempty"`
	MatchKey    map[string]string `json:"match_key,omitempty"` // matching kind
	Explanation string            `json:"explanation,omitempty"`
	Points      float64           `json:"points"`
}

// Quiz is a stored quiz definition. Adaptive quizzes generated by the
// agent service are persisted with Source set to their strategy name;
// fallback quizzes carry Source "fallback" so callers can tell.
type Quiz struct {
	ID           string     `json:"id"`
	CourseID     string     `json:"course_id"`
	Title        string     `json:"title"`
	TimeLimitSec int        `json:"time_limit_sec"`
	Questions    []Question `json:"questions"`
	Source       string     `json:"source,omitempty"`
	CreatedAt    int64      `json:"created_at,omitempty"`
}

const (
	StatusInProgress = "in_progress"
	StatusSubmitted  = "submitted"
	StatusExpired    = "expired"
)

// Attempt is one quiz-taking session. Responses hold the answer ledger
// keyed by synthetic q<index> keys.
type Attempt struct {
	ID          string  `json:"id"`
	QuizID      string  `json:"quiz_id"`
	CourseID    string  `json:"course_id"`
	UserID      string  `json:"user_id"`
	Status      string  `json:"status"`
	Score       float64 `json:"score"`
	MaxScore    float64 `json:"max_score"`
	Responses   Ledger  `json:"responses"`
	StartedAt   int64   `json:"started_at"`
	Deadline    int64   `json:"deadline"`
	SubmittedAt *int64  `json:"submitted_at,omitempty"`
	AutoSubmit  bool    `json:"auto_submitted,omitempty"`
}

// Stats aggregates a learner's graded attempts for one course.
type Stats struct {
	UserID        string  `json:"user_id"`
	CourseID      string  `json:"course_id"`
	Attempts      int     `json:"attempts"`
	AvgScore      float64 `json:"avg_score"`
	BestScore     float64 `json:"best_score"`
	LastSubmitted int64   `json:"last_submitted,omitempty"`
}

// ValidKind reports whether k is a question kind the platform renders
// and grades.
func ValidKind(k string) bool {
	switch k {
	case KindSingleChoice, KindMultipleChoice, KindTrueFalse, KindShortAnswer, KindMatching:
		return true
	}
	return false
}

// QuestionKey is the synthetic ledger key for the question at index i.
func QuestionKey(i int) string {
	return "q" + strconv.Itoa(i)
}

// MaxPoints sums the question points of a quiz.
func (q Quiz) MaxPoints() float64 {
	total := 0.0
	for _, qu := range q.Questions {
		total += qu.Points
	}
	return total
}

// Sanitized returns a copy of the quiz with all answer keys stripped,
// safe to serve to students.
func (q Quiz) Sanitized() Quiz {
	out := q
	out.Questions = make([]Question, len(q.Questions))
	for i, qu := range q.Questions {
		qu.AnswerKey = nil
		qu.MatchKey = nil
		qu.Explanation = ""
		out.Questions[i] = qu
	}
	return out
}

func (q Quiz) MarshalQuestions() (string, error) {
	b, err := json.Marshal(q.Questions)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
