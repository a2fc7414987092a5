package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/smarthub-edu/smarthub/internal/agent"
	"github.com/smarthub-edu/smarthub/internal/audit"
	"github.com/smarthub-edu/smarthub/internal/auth"
	"github.com/smarthub-edu/smarthub/internal/cache"
	"github.com/smarthub-edu/smarthub/internal/eligibility"
	"github.com/smarthub-edu/smarthub/internal/quiz"
	"github.com/smarthub-edu/smarthub/internal/quiz/session"
	"github.com/smarthub-edu/smarthub/internal/render"
)

const (
	eligibilityTTL = 30 * time.Second
	statsTTL       = time.Minute
)

// QuizAPI bundles the collaborators of the quiz-taking flow.
type QuizAPI struct {
	Store    quiz.Store
	Sessions *session.Manager
	Checker  *eligibility.Checker
	Cache    cache.Cache
	Events   audit.Log
	Agent    *agent.Client
	Log      zerolog.Logger
}

type attemptView struct {
	Attempt   quiz.Attempt  `json:"attempt"`
	Remaining string        `json:"remaining"`
	Questions []render.View `json:"questions"`
	Source    string        `json:"source,omitempty"`
}

// GET /agent/course-quiz/eligibility?userId=&courseId=
func (api *QuizAPI) Eligibility(w http.ResponseWriter, r *http.Request) {
	userID, courseID, ok := api.subjectScope(w, r)
	if !ok {
		return
	}
	if rec, err := api.Cache.GetEligibility(userID, courseID); err == nil {
		writeJSON(w, http.StatusOK, rec)
		return
	}
	rec, err := api.Checker.Check(r.Context(), userID, courseID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := api.Cache.SetEligibility(userID, courseID, rec, eligibilityTTL); err != nil {
		api.Log.Warn().Err(err).Msg("eligibility cache write failed")
	}
	writeJSON(w, http.StatusOK, rec)
}

// POST /agent/course-quiz/initiate?userId=&courseId=
func (api *QuizAPI) Initiate(w http.ResponseWriter, r *http.Request) {
	userID, courseID, ok := api.subjectScope(w, r)
	if !ok {
		return
	}
	rec, err := api.Checker.Check(r.Context(), userID, courseID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !rec.Eligible {
		writeJSON(w, http.StatusForbidden, rec)
		return
	}

	q, err := api.Store.LatestQuizForCourse(r.Context(), courseID)
	if err != nil {
		if errors.Is(err, quiz.ErrQuizNotFound) {
			writeError(w, http.StatusNotFound, "no quiz for course")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	api.startAttempt(w, r, q, userID)
}

// startAttempt creates the attempt, registers the live session and
// responds with the student-safe question views.
func (api *QuizAPI) startAttempt(w http.ResponseWriter, r *http.Request, q quiz.Quiz, userID string) {
	att, err := api.Store.NewAttempt(r.Context(), q, userID, time.Now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	sess := api.Sessions.Start(att, len(q.Questions))

	if err := api.Cache.InvalidateEligibility(userID, q.CourseID); err != nil {
		api.Log.Warn().Err(err).Msg("eligibility cache invalidate failed")
	}
	if err := api.Events.Append(r.Context(), audit.Event{
		Type: audit.EventAttemptStarted,
		Key:  att.ID,
		Data: map[string]string{"quiz_id": q.ID, "user_id": userID, "source": q.Source},
	}); err != nil {
		api.Log.Warn().Err(err).Msg("event append failed")
	}

	views, err := render.Quiz(q.Sanitized(), att.Responses)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, attemptView{
		Attempt:   att,
		Remaining: sess.RemainingDisplay(),
		Questions: views,
		Source:    q.Source,
	})
}

// POST /agent/course-quiz/save/{attemptID}, partial ledger save.
func (api *QuizAPI) SaveResponses(w http.ResponseWriter, r *http.Request) {
	attemptID := chi.URLParam(r, "attemptID")
	var ledger quiz.Ledger
	if err := decodeJSON(r, &ledger); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if !api.ownAttempt(w, r, attemptID) {
		return
	}
	if sess, err := api.Sessions.Get(attemptID); err == nil {
		if err := sess.MergeLedger(ledger); err != nil {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
	}
	att, err := api.Store.SaveResponses(r.Context(), attemptID, ledger)
	if err != nil {
		api.attemptError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, att)
}

// POST /agent/course-quiz/submit/{attemptID}?force=1  body = ledger
func (api *QuizAPI) Submit(w http.ResponseWriter, r *http.Request) {
	attemptID := chi.URLParam(r, "attemptID")
	force := r.URL.Query().Get("force") == "1"

	var ledger quiz.Ledger
	if err := decodeJSON(r, &ledger); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if !api.ownAttempt(w, r, attemptID) {
		return
	}

	var att quiz.Attempt
	sess, err := api.Sessions.Get(attemptID)
	if err == nil {
		if len(ledger) > 0 {
			if err := sess.MergeLedger(ledger); err != nil && !force {
				writeError(w, http.StatusConflict, err.Error())
				return
			}
		}
		att, err = sess.Submit(r.Context(), force)
	} else {
		// no live session (e.g. service restarted); submit directly
		if len(ledger) > 0 {
			if _, err := api.Store.SaveResponses(r.Context(), attemptID, ledger); err != nil {
				api.attemptError(w, err)
				return
			}
		}
		att, err = api.Store.Submit(r.Context(), attemptID, false, time.Now())
	}
	if err != nil {
		var inc session.ErrIncomplete
		if errors.As(err, &inc) {
			writeJSON(w, http.StatusConflict, map[string]interface{}{
				"confirm_required": true,
				"answered":         inc.Answered,
				"total":            inc.Total,
				"error":            inc.Error(),
			})
			return
		}
		api.attemptError(w, err)
		return
	}

	userID := att.UserID
	if err := api.Cache.InvalidateStats(userID, att.CourseID); err != nil {
		api.Log.Warn().Err(err).Msg("stats cache invalidate failed")
	}
	if err := api.Events.Append(r.Context(), audit.Event{
		Type: audit.EventAttemptSubmitted,
		Key:  att.ID,
		Data: map[string]interface{}{"score": att.Score, "max_score": att.MaxScore, "auto": att.AutoSubmit},
	}); err != nil {
		api.Log.Warn().Err(err).Msg("event append failed")
	}
	writeJSON(w, http.StatusOK, att)
}

// GET /agent/course-quiz/attempt/{attemptID} returns current state,
// used to resume an open attempt.
func (api *QuizAPI) GetAttempt(w http.ResponseWriter, r *http.Request) {
	attemptID := chi.URLParam(r, "attemptID")
	if !api.ownAttempt(w, r, attemptID) {
		return
	}
	att, err := api.Store.GetAttempt(r.Context(), attemptID)
	if err != nil {
		api.attemptError(w, err)
		return
	}
	remaining := "00:00"
	if sess, err := api.Sessions.Get(attemptID); err == nil {
		remaining = sess.RemainingDisplay()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"attempt":   att,
		"remaining": remaining,
	})
}

// GET /agent/course-quiz/stats?userId=&courseId=
func (api *QuizAPI) Stats(w http.ResponseWriter, r *http.Request) {
	userID, courseID, ok := api.subjectScope(w, r)
	if !ok {
		return
	}
	if st, err := api.Cache.GetStats(userID, courseID); err == nil {
		writeJSON(w, http.StatusOK, st)
		return
	}
	st, err := api.Store.Stats(r.Context(), userID, courseID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := api.Cache.SetStats(userID, courseID, st, statsTTL); err != nil {
		api.Log.Warn().Err(err).Msg("stats cache write failed")
	}
	writeJSON(w, http.StatusOK, st)
}

// subjectScope resolves userId/courseId and forces userId to the
// authenticated subject for students.
func (api *QuizAPI) subjectScope(w http.ResponseWriter, r *http.Request) (userID, courseID string, ok bool) {
	userID = strings.TrimSpace(r.URL.Query().Get("userId"))
	courseID = strings.TrimSpace(r.URL.Query().Get("courseId"))
	sub := auth.SubjectFromContext(r.Context())
	role := auth.RoleFromContext(r.Context())
	if userID == "" {
		userID = sub
	}
	if role == "student" && userID != sub {
		writeError(w, http.StatusForbidden, "forbidden")
		return "", "", false
	}
	if courseID == "" {
		writeError(w, http.StatusBadRequest, "courseId required")
		return "", "", false
	}
	return userID, courseID, true
}

// ownAttempt denies students access to attempts they do not own.
func (api *QuizAPI) ownAttempt(w http.ResponseWriter, r *http.Request, attemptID string) bool {
	role := auth.RoleFromContext(r.Context())
	if role != "student" {
		return true
	}
	att, err := api.Store.GetAttempt(r.Context(), attemptID)
	if err != nil {
		api.attemptError(w, err)
		return false
	}
	if att.UserID != auth.SubjectFromContext(r.Context()) {
		writeError(w, http.StatusForbidden, "forbidden")
		return false
	}
	return true
}

func (api *QuizAPI) attemptError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, quiz.ErrAttemptNotFound), errors.Is(err, quiz.ErrQuizNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, quiz.ErrAlreadySubmitted), errors.Is(err, session.ErrSubmitStarted),
		errors.Is(err, session.ErrNotActive):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
