package http

import (
	"net/http"

	"github.com/smarthub-edu/smarthub/internal/auth"
	"github.com/smarthub-edu/smarthub/internal/quiz"
)

// ListAttempts returns graded attempts. Students are pinned to their
// own attempts regardless of the query; teachers and admins may filter
// by any user, quiz or course.
func (api *QuizAPI) ListAttempts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := quiz.AttemptListOpts{
		QuizID:   q.Get("quizId"),
		CourseID: q.Get("courseId"),
		UserID:   q.Get("userId"),
		Status:   q.Get("status"),
		Limit:    parseIntDefault(q.Get("limit"), 50),
		Offset:   parseIntDefault(q.Get("offset"), 0),
	}
	if opts.Limit > 200 {
		opts.Limit = 200
	}
	if auth.RoleFromContext(r.Context()) == "student" {
		opts.UserID = auth.SubjectFromContext(r.Context())
	}
	attempts, err := api.Store.ListAttempts(r.Context(), opts)
	if err != nil {
		api.Log.Error().Err(err).Msg("list attempts")
		writeError(w, http.StatusInternalServerError, "list failed")
		return
	}
	writeJSON(w, http.StatusOK, attempts)
}
