package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/smarthub-edu/smarthub/internal/agent"
	"github.com/smarthub-edu/smarthub/internal/audit"
	"github.com/smarthub-edu/smarthub/internal/quiz"
)

func withAgent(t *testing.T, f *apiFixture, handler http.HandlerFunc, genTimeout time.Duration) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := agent.New(agent.Config{
		BaseURL:         srv.URL,
		RequestTimeout:  time.Second,
		GenerateTimeout: genTimeout,
	})
	if err != nil {
		t.Fatal(err)
	}
	f.api.Agent = c
	f.router.Post("/agent/adaptive-quiz/initiate", f.api.InitiateAdaptive)
}

func TestInitiateAdaptiveSuccess(t *testing.T) {
	f := newFixture(t)
	withAgent(t, f, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"title":          "Targeted practice",
			"time_limit_sec": 600,
			"questions": []quiz.Question{
				{ID: "g1", Kind: quiz.KindSingleChoice, Prompt: "p",
					Options:   []quiz.Option{{ID: "a"}, {ID: "b"}},
					AnswerKey: []string{"a"}, Points: 1},
			},
		})
	}, 5*time.Second)

	w := f.do(t, "POST", "/agent/adaptive-quiz/initiate?courseId=course-1&strategy=REMEDIATION", nil, "student")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body)
	}
	var view attemptView
	decodeBody(t, w, &view)
	if view.Source != agent.StrategyRemediation {
		t.Fatalf("source = %q", view.Source)
	}
	if view.Remaining != "10:00" {
		t.Fatalf("remaining = %q; want 10:00", view.Remaining)
	}
	// answer keys must not leak through the rendered views
	b, _ := json.Marshal(view.Questions)
	if strings.Contains(string(b), "answer_key") || strings.Contains(string(b), "match_key") {
		t.Fatalf("rendered questions leaked grading data: %s", b)
	}
	// generated quiz is persisted so the submit path can grade it
	if _, err := f.store.GetQuizAdmin(context.Background(), view.Attempt.QuizID); err != nil {
		t.Fatalf("generated quiz not stored: %v", err)
	}
}

func TestInitiateAdaptiveTimeoutFallsBack(t *testing.T) {
	f := newFixture(t)
	block := make(chan struct{})
	withAgent(t, f, func(w http.ResponseWriter, r *http.Request) {
		<-block
	}, 50*time.Millisecond)
	// registered after withAgent so it runs before srv.Close in LIFO
	// cleanup order; otherwise Close waits forever on the blocked handler
	t.Cleanup(func() { close(block) })

	w := f.do(t, "POST", "/agent/adaptive-quiz/initiate?courseId=course-1&strategy=DIAGNOSTIC", nil, "student")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body)
	}
	var view attemptView
	decodeBody(t, w, &view)
	if view.Source != agent.FallbackSource {
		t.Fatalf("source = %q; want fallback", view.Source)
	}
	if len(view.Questions) < 2 {
		t.Fatalf("fallback served %d questions", len(view.Questions))
	}
	if got := f.events.byType(audit.EventFallbackServed); len(got) != 1 {
		t.Fatalf("FallbackServed events = %d", len(got))
	}
}

// Generation may run far past the deadline that guards ordinary
// requests, so the route must be mounted behind a timeout sized to the
// generation budget. Mounted behind the ordinary one, every slow
// generation silently degrades to the fallback.
func TestInitiateAdaptiveOutlivesRequestTimeout(t *testing.T) {
	slowAgent := func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"title":          "Targeted practice",
			"time_limit_sec": 600,
			"questions": []quiz.Question{
				{ID: "g1", Kind: quiz.KindSingleChoice, Prompt: "p",
					Options:   []quiz.Option{{ID: "a"}, {ID: "b"}},
					AnswerKey: []string{"a"}, Points: 1},
			},
		})
	}
	srv := httptest.NewServer(http.HandlerFunc(slowAgent))
	t.Cleanup(srv.Close)
	c, err := agent.New(agent.Config{
		BaseURL:         srv.URL,
		RequestTimeout:  time.Second,
		GenerateTimeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatal(err)
	}

	f := newFixture(t)
	f.api.Agent = c
	f.router.With(middleware.Timeout(6*time.Second)).
		Post("/agent/adaptive-quiz/initiate", f.api.InitiateAdaptive)

	w := f.do(t, "POST", "/agent/adaptive-quiz/initiate?courseId=course-1&strategy=REINFORCEMENT", nil, "student")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body)
	}
	var view attemptView
	decodeBody(t, w, &view)
	if view.Source != agent.StrategyReinforcement {
		t.Fatalf("source = %q; want %q", view.Source, agent.StrategyReinforcement)
	}

	// same agent, route wrapped in a timeout shorter than the
	// generation: the router deadline, not the budget, decides
	f2 := newFixture(t)
	f2.api.Agent = c
	f2.router.With(middleware.Timeout(100*time.Millisecond)).
		Post("/agent/adaptive-quiz/initiate", f2.api.InitiateAdaptive)

	w2 := f2.do(t, "POST", "/agent/adaptive-quiz/initiate?courseId=course-1&strategy=REINFORCEMENT", nil, "student")
	if w2.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w2.Code, w2.Body)
	}
	var degraded attemptView
	decodeBody(t, w2, &degraded)
	if degraded.Source != agent.FallbackSource {
		t.Fatalf("source = %q; want %q when the route deadline is short", degraded.Source, agent.FallbackSource)
	}
}

func TestInitiateAdaptiveRejectsUnknownStrategy(t *testing.T) {
	f := newFixture(t)
	withAgent(t, f, func(w http.ResponseWriter, r *http.Request) {
		t.Error("agent must not be called for a bad strategy")
	}, time.Second)

	w := f.do(t, "POST", "/agent/adaptive-quiz/initiate?courseId=course-1&strategy=SPEEDRUN", nil, "student")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d; want 400", w.Code)
	}
}

func TestInitiateAdaptiveAgentFailure(t *testing.T) {
	f := newFixture(t)
	withAgent(t, f, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model error", http.StatusInternalServerError)
	}, time.Second)

	w := f.do(t, "POST", "/agent/adaptive-quiz/initiate?courseId=course-1&strategy=CHALLENGE", nil, "student")
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d; want 502", w.Code)
	}
}
