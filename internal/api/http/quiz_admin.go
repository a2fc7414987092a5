package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/smarthub-edu/smarthub/internal/quiz"
)

// CreateQuiz stores a teacher-authored quiz for a course. The answer
// key stays server-side; students only ever see the sanitized form.
func (api *QuizAPI) CreateQuiz(w http.ResponseWriter, r *http.Request) {
	var q quiz.Quiz
	if err := decodeJSON(r, &q); err != nil {
		writeError(w, http.StatusBadRequest, "invalid quiz body")
		return
	}
	if strings.TrimSpace(q.CourseID) == "" || len(q.Questions) == 0 {
		writeError(w, http.StatusBadRequest, "course_id and questions required")
		return
	}
	for i, question := range q.Questions {
		if !quiz.ValidKind(question.Kind) {
			writeError(w, http.StatusBadRequest, "unknown question kind for "+quiz.QuestionKey(i))
			return
		}
	}
	if q.ID == "" {
		q.ID = "quiz-" + uuid.NewString()
	}
	if q.TimeLimitSec <= 0 {
		q.TimeLimitSec = 2700
	}
	q.Source = ""
	q.CreatedAt = time.Now().Unix()
	if err := api.Store.PutQuiz(r.Context(), q); err != nil {
		api.Log.Error().Err(err).Str("quiz", q.ID).Msg("store quiz")
		writeError(w, http.StatusInternalServerError, "store failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": q.ID})
}

// GetQuizAdmin returns the full quiz including the answer key.
func (api *QuizAPI) GetQuizAdmin(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "quizID")
	q, err := api.Store.GetQuizAdmin(r.Context(), id)
	if errors.Is(err, quiz.ErrQuizNotFound) {
		writeError(w, http.StatusNotFound, "quiz not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load failed")
		return
	}
	writeJSON(w, http.StatusOK, q)
}
