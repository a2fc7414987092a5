package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/smarthub-edu/smarthub/internal/audit"
	"github.com/smarthub-edu/smarthub/internal/auth"
	"github.com/smarthub-edu/smarthub/internal/cache"
	"github.com/smarthub-edu/smarthub/internal/eligibility"
	"github.com/smarthub-edu/smarthub/internal/grading"
	"github.com/smarthub-edu/smarthub/internal/quiz"
	"github.com/smarthub-edu/smarthub/internal/quiz/session"
)

type fakeEvents struct {
	mu     sync.Mutex
	events []audit.Event
}

func (f *fakeEvents) Append(_ context.Context, e audit.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return nil
}

func (f *fakeEvents) byType(typ string) []audit.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []audit.Event
	for _, e := range f.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

type apiFixture struct {
	api    *QuizAPI
	store  quiz.Store
	events *fakeEvents
	router chi.Router
}

func newFixture(t *testing.T) *apiFixture {
	t.Helper()
	store := quiz.NewInMemoryStore(grading.NewDefaultGrader())
	if err := store.PutQuiz(context.Background(), quiz.Quiz{
		ID:           "quiz-1",
		CourseID:     "course-1",
		Title:        "Biology check",
		TimeLimitSec: 2700,
		Questions: []quiz.Question{
			{ID: "a", Kind: quiz.KindSingleChoice, Prompt: "Powerhouse of the cell?",
				Options:   []quiz.Option{{ID: "a", Label: "Nucleus"}, {ID: "b", Label: "Mitochondria"}},
				AnswerKey: []string{"b"}, Points: 1},
			{ID: "b", Kind: quiz.KindTrueFalse, Prompt: "DNA is double stranded.",
				AnswerKey: []string{"true"}, Points: 1},
		},
	}); err != nil {
		t.Fatal(err)
	}

	events := &fakeEvents{}
	mgr := session.NewManager(store, nil)
	t.Cleanup(mgr.Shutdown)
	api := &QuizAPI{
		Store:    store,
		Sessions: mgr,
		Checker:  eligibility.NewChecker(store, 3, nil),
		Cache:    cache.NewMemory(),
		Events:   events,
		Log:      zerolog.Nop(),
	}

	r := chi.NewRouter()
	r.Route("/agent/course-quiz", func(qr chi.Router) {
		qr.Get("/eligibility", api.Eligibility)
		qr.Post("/initiate", api.Initiate)
		qr.Post("/save/{attemptID}", api.SaveResponses)
		qr.Post("/submit/{attemptID}", api.Submit)
		qr.Get("/attempt/{attemptID}", api.GetAttempt)
		qr.Get("/stats", api.Stats)
	})
	return &apiFixture{api: api, store: store, events: events, router: r}
}

func (f *apiFixture) do(t *testing.T, method, target string, body interface{}, role string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, rd)
	ctx := auth.WithSubject(req.Context(), "u1")
	ctx = auth.WithRole(ctx, role)
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestEligibilityEndpoint(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, "GET", "/agent/course-quiz/eligibility?courseId=course-1", nil, "student")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body)
	}
	var rec eligibility.Record
	decodeBody(t, w, &rec)
	if !rec.Eligible || rec.AttemptsToday != 0 {
		t.Fatalf("record = %+v", rec)
	}
	if !strings.Contains(rec.Message, "0/3") {
		t.Fatalf("message = %q", rec.Message)
	}
}

func TestEligibilityRequiresCourse(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, "GET", "/agent/course-quiz/eligibility", nil, "student")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestStudentCannotReadOtherUsers(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, "GET", "/agent/course-quiz/eligibility?courseId=course-1&userId=u2", nil, "student")
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d; want 403", w.Code)
	}
	// a teacher may ask about any learner
	w = f.do(t, "GET", "/agent/course-quiz/eligibility?courseId=course-1&userId=u2", nil, "teacher")
	if w.Code != http.StatusOK {
		t.Fatalf("teacher status = %d", w.Code)
	}
}

func startAttempt(t *testing.T, f *apiFixture) attemptView {
	t.Helper()
	w := f.do(t, "POST", "/agent/course-quiz/initiate?courseId=course-1", nil, "student")
	if w.Code != http.StatusOK {
		t.Fatalf("initiate status = %d: %s", w.Code, w.Body)
	}
	var view attemptView
	decodeBody(t, w, &view)
	return view
}

func TestInitiateStartsAttempt(t *testing.T) {
	f := newFixture(t)
	view := startAttempt(t, f)

	if view.Attempt.Status != quiz.StatusInProgress {
		t.Fatalf("attempt status = %q", view.Attempt.Status)
	}
	if view.Remaining != "45:00" {
		t.Fatalf("remaining = %q; want 45:00", view.Remaining)
	}
	if len(view.Questions) != 2 {
		t.Fatalf("questions = %d", len(view.Questions))
	}
	if view.Questions[0].Key != "q0" || view.Questions[1].Key != "q1" {
		t.Fatalf("keys = %q, %q", view.Questions[0].Key, view.Questions[1].Key)
	}
	if got := f.events.byType(audit.EventAttemptStarted); len(got) != 1 {
		t.Fatalf("AttemptStarted events = %d", len(got))
	}
}

func TestInitiateBlocksAfterDailyLimit(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 3; i++ {
		startAttempt(t, f)
	}
	w := f.do(t, "POST", "/agent/course-quiz/initiate?courseId=course-1", nil, "student")
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d; want 403 past the daily limit", w.Code)
	}
	var rec eligibility.Record
	decodeBody(t, w, &rec)
	if rec.Eligible || rec.AttemptsToday != 3 {
		t.Fatalf("record = %+v", rec)
	}
}

func TestInitiateNoQuizForCourse(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, "POST", "/agent/course-quiz/initiate?courseId=empty-course", nil, "student")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d; want 404", w.Code)
	}
}

func TestSaveAndSubmitFlow(t *testing.T) {
	f := newFixture(t)
	view := startAttempt(t, f)
	id := view.Attempt.ID

	w := f.do(t, "POST", "/agent/course-quiz/save/"+id, quiz.Ledger{"q0": "b"}, "student")
	if w.Code != http.StatusOK {
		t.Fatalf("save status = %d: %s", w.Code, w.Body)
	}

	// submitting with one of two answered needs confirmation
	w = f.do(t, "POST", "/agent/course-quiz/submit/"+id, quiz.Ledger{}, "student")
	if w.Code != http.StatusConflict {
		t.Fatalf("incomplete submit status = %d; want 409", w.Code)
	}
	var conflict struct {
		ConfirmRequired bool `json:"confirm_required"`
		Answered        int  `json:"answered"`
		Total           int  `json:"total"`
	}
	decodeBody(t, w, &conflict)
	if !conflict.ConfirmRequired || conflict.Answered != 1 || conflict.Total != 2 {
		t.Fatalf("conflict payload = %+v", conflict)
	}

	// the force flag overrides
	w = f.do(t, "POST", "/agent/course-quiz/submit/"+id+"?force=1", quiz.Ledger{"q1": "true"}, "student")
	if w.Code != http.StatusOK {
		t.Fatalf("forced submit status = %d: %s", w.Code, w.Body)
	}
	var att quiz.Attempt
	decodeBody(t, w, &att)
	if att.Status != quiz.StatusSubmitted {
		t.Fatalf("status = %q", att.Status)
	}
	if att.Score != 2 {
		t.Fatalf("score = %v; want 2", att.Score)
	}
	if got := f.events.byType(audit.EventAttemptSubmitted); len(got) != 1 {
		t.Fatalf("AttemptSubmitted events = %d", len(got))
	}
}

func TestDoubleSubmitConflicts(t *testing.T) {
	f := newFixture(t)
	view := startAttempt(t, f)
	id := view.Attempt.ID

	w := f.do(t, "POST", "/agent/course-quiz/submit/"+id+"?force=1", quiz.Ledger{"q0": "b", "q1": "true"}, "student")
	if w.Code != http.StatusOK {
		t.Fatalf("first submit = %d: %s", w.Code, w.Body)
	}
	// the session is gone; the store-level guard must refuse the retry
	w = f.do(t, "POST", "/agent/course-quiz/submit/"+id+"?force=1", quiz.Ledger{}, "student")
	if w.Code != http.StatusConflict {
		t.Fatalf("second submit = %d; want 409", w.Code)
	}
}

func TestSubmitWithoutLiveSession(t *testing.T) {
	f := newFixture(t)
	view := startAttempt(t, f)
	id := view.Attempt.ID

	// simulate a restart: the session registry loses the attempt but
	// the store still has it
	f.api.Sessions.Abandon(id)

	w := f.do(t, "POST", "/agent/course-quiz/submit/"+id, quiz.Ledger{"q0": "b", "q1": "false"}, "student")
	if w.Code != http.StatusOK {
		t.Fatalf("store-path submit = %d: %s", w.Code, w.Body)
	}
	var att quiz.Attempt
	decodeBody(t, w, &att)
	if att.Status != quiz.StatusSubmitted || att.Score != 1 {
		t.Fatalf("attempt = %+v", att)
	}
}

func TestGetAttemptResume(t *testing.T) {
	f := newFixture(t)
	view := startAttempt(t, f)
	id := view.Attempt.ID

	if w := f.do(t, "POST", "/agent/course-quiz/save/"+id, quiz.Ledger{"q0": "a"}, "student"); w.Code != http.StatusOK {
		t.Fatalf("save = %d", w.Code)
	}
	w := f.do(t, "GET", "/agent/course-quiz/attempt/"+id, nil, "student")
	if w.Code != http.StatusOK {
		t.Fatalf("get attempt = %d", w.Code)
	}
	var out struct {
		Attempt   quiz.Attempt `json:"attempt"`
		Remaining string       `json:"remaining"`
	}
	decodeBody(t, w, &out)
	if got, _ := out.Attempt.Responses.String("q0"); got != "a" {
		t.Fatalf("resumed ledger q0 = %q", got)
	}
	if out.Remaining == "00:00" {
		t.Fatalf("remaining = %q for a fresh attempt", out.Remaining)
	}
}

func TestStatsEndpoint(t *testing.T) {
	f := newFixture(t)
	view := startAttempt(t, f)
	w := f.do(t, "POST", "/agent/course-quiz/submit/"+view.Attempt.ID+"?force=1",
		quiz.Ledger{"q0": "b", "q1": "true"}, "student")
	if w.Code != http.StatusOK {
		t.Fatalf("submit = %d", w.Code)
	}

	w = f.do(t, "GET", "/agent/course-quiz/stats?courseId=course-1", nil, "student")
	if w.Code != http.StatusOK {
		t.Fatalf("stats = %d", w.Code)
	}
	var st quiz.Stats
	decodeBody(t, w, &st)
	if st.Attempts != 1 || st.BestScore != 2 {
		t.Fatalf("stats = %+v", st)
	}
}
