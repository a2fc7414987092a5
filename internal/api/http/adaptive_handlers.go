package http

import (
	"net/http"
	"strings"

	"github.com/smarthub-edu/smarthub/internal/agent"
	"github.com/smarthub-edu/smarthub/internal/audit"
)

// POST /agent/adaptive-quiz/initiate?userId=&courseId=&strategy=
// Generation is delegated to the remote agent service; a timed-out
// generation comes back as the placeholder quiz with Source set to
// "fallback" so the client can tell the learner.
func (api *QuizAPI) InitiateAdaptive(w http.ResponseWriter, r *http.Request) {
	userID, courseID, ok := api.subjectScope(w, r)
	if !ok {
		return
	}
	strategy := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("strategy")))
	if !agent.ValidStrategy(strategy) {
		writeError(w, http.StatusBadRequest, "strategy must be one of DIAGNOSTIC, REMEDIATION, CHALLENGE, REINFORCEMENT")
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

	q, err := api.Agent.Generate(r.Context(), userID, courseID, strategy)
	if err != nil {
		api.Log.Error().Err(err).Str("strategy", strategy).Msg("adaptive generation failed")
		writeError(w, http.StatusBadGateway, "quiz generation failed")
		return
	}
	if q.Source == agent.FallbackSource {
		if err := api.Events.Append(r.Context(), audit.Event{
			Type: audit.EventFallbackServed,
			Key:  q.ID,
			Data: map[string]string{"user_id": userID, "course_id": courseID, "strategy": strategy},
		}); err != nil {
			api.Log.Warn().Err(err).Msg("event append failed")
		}
	}

	// persist the generated quiz so submission can grade against it
	if err := api.Store.PutQuiz(r.Context(), q); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	api.startAttempt(w, r, q, userID)
}
