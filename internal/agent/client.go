// Package agent is the HTTP client for the remote AI quiz-generation
// service. Generation can legitimately take minutes, so the client
// carries two timeouts: a short one for bookkeeping calls and a long
// one for generation. A generation timeout is not surfaced as an
// error; the caller gets the fixed placeholder quiz instead, marked so
// downstream code can tell it apart from real adaptive content.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/smarthub-edu/smarthub/internal/quiz"
)

// Generation strategies accepted by the agent service.
const (
	StrategyDiagnostic    = "DIAGNOSTIC"
	StrategyRemediation   = "REMEDIATION"
	StrategyChallenge     = "CHALLENGE"
	StrategyReinforcement = "REINFORCEMENT"
)

// ValidStrategy reports whether s is a known generation strategy.
func ValidStrategy(s string) bool {
	switch s {
	case StrategyDiagnostic, StrategyRemediation, StrategyChallenge, StrategyReinforcement:
		return true
	}
	return false
}

var ErrEmptyQuiz = errors.New("agent returned no questions")

type Config struct {
	BaseURL         string
	Token           string        // bearer token for the agent service
	RequestTimeout  time.Duration // simple calls; default 20s
	GenerateTimeout time.Duration // quiz generation; default 600s
}

type Client struct {
	base    *url.URL
	token   string
	http    *http.Client
	reqTime time.Duration
	genTime time.Duration
	log     zerolog.Logger
}

func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("agent base url required")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("agent base url: %w", err)
	}
	reqTO := cfg.RequestTimeout
	if reqTO <= 0 {
		reqTO = 20 * time.Second
	}
	genTO := cfg.GenerateTimeout
	if genTO <= 0 {
		genTO = 600 * time.Second
	}
	// timeouts are applied per call; generation is allowed to run far
	// longer than bookkeeping requests
	return &Client{
		base:    u,
		token:   cfg.Token,
		http:    &http.Client{},
		reqTime: reqTO,
		genTime: genTO,
		log:     zerolog.New(os.Stderr).With().Str("component", "agent").Timestamp().Logger(),
	}, nil
}

// generateReq is the wire shape of the generation request.
type generateReq struct {
	UserID   string `json:"user_id"`
	CourseID string `json:"course_id"`
	Strategy string `json:"strategy"`
	Count    int    `json:"count,omitempty"`
}

type generateResp struct {
	Title        string          `json:"title"`
	TimeLimitSec int             `json:"time_limit_sec"`
	Questions    []quiz.Question `json:"questions"`
}

// Generate asks the agent service for an adaptive quiz. On timeout (of
// either the generation deadline or the caller's ctx) it returns the
// placeholder quiz rather than an error. Other failures (bad status,
// malformed or empty payloads) are returned to the caller.
func (c *Client) Generate(ctx context.Context, userID, courseID, strategy string) (quiz.Quiz, error) {
	if !ValidStrategy(strategy) {
		return quiz.Quiz{}, fmt.Errorf("unknown strategy %q", strategy)
	}

	ctx, cancel := context.WithTimeout(ctx, c.genTime)
	defer cancel()

	body, _ := json.Marshal(generateReq{UserID: userID, CourseID: courseID, Strategy: strategy})
	u := c.base.JoinPath("/adaptive-quiz/generate")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return quiz.Quiz{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		if isTimeout(err) {
			c.log.Warn().Str("course_id", courseID).Str("strategy", strategy).
				Msg("generation timed out, serving placeholder quiz")
			return FallbackQuiz(courseID, strategy), nil
		}
		return quiz.Quiz{}, fmt.Errorf("agent generate: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode/100 != 2 {
		return quiz.Quiz{}, fmt.Errorf("agent generate: %s", res.Status)
	}

	var out generateResp
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return quiz.Quiz{}, fmt.Errorf("agent generate: decode: %w", err)
	}
	if len(out.Questions) == 0 {
		return quiz.Quiz{}, ErrEmptyQuiz
	}

	q := quiz.Quiz{
		ID:           "aq-" + uuid.NewString(),
		CourseID:     courseID,
		Title:        out.Title,
		TimeLimitSec: out.TimeLimitSec,
		Questions:    out.Questions,
		Source:       strategy,
	}
	if q.Title == "" {
		q.Title = "Adaptive quiz (" + strategy + ")"
	}
	if q.TimeLimitSec <= 0 {
		q.TimeLimitSec = 15 * 60
	}
	return q, nil
}

// Healthy pings the agent service with the short request timeout.
func (c *Client) Healthy(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.reqTime)
	defer cancel()
	u := c.base.JoinPath("/healthz")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode/100 != 2 {
		return fmt.Errorf("agent health: %s", res.Status)
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		return ue.Timeout() || errors.Is(ue.Err, context.DeadlineExceeded)
	}
	return false
}
