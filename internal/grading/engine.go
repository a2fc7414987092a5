package grading

import (
	"context"
	"errors"
)

// Q is a minimal view of a question needed for grading.
type Q struct {
	Kind      string
	Points    float64
	AnswerKey []string
	MatchKey  map[string]string
}

// Result is the outcome of grading a single question response.
type Result struct {
	Points    float64  // points awarded
	MaxPoints float64  // the question's max points
	Feedback  []string // optional notes
}

// Strategy grades a single question.
type Strategy interface {
	Grade(ctx context.Context, q Q, response interface{}) (Result, error)
}

// Grader routes by question kind to the correct Strategy.
type Grader interface {
	Grade(ctx context.Context, q Q, response interface{}) (Result, error)
}

type defaultGrader struct {
	strategies map[string]Strategy
}

func (g *defaultGrader) Grade(ctx context.Context, q Q, response interface{}) (Result, error) {
	s, ok := g.strategies[q.Kind]
	if !ok {
		return Result{MaxPoints: q.Points, Feedback: []string{"no strategy for kind " + q.Kind}}, nil
	}
	return s.Grade(ctx, q, response)
}

type Option func(*config)

type config struct {
	MaxEditDistance   int  // for short-answer fuzzy match
	AllowPartialMulti bool // partial credit for multiple_choice without false positives
	AllowPartialMatch bool // partial credit per correct pairing in matching
}

func WithMaxEditDistance(n int) Option { return func(c *config) { c.MaxEditDistance = n } }
func WithPartialMulti(b bool) Option   { return func(c *config) { c.AllowPartialMulti = b } }
func WithPartialMatch(b bool) Option   { return func(c *config) { c.AllowPartialMatch = b } }

// NewDefaultGrader installs built-in strategies for the five question kinds.
func NewDefaultGrader(opts ...Option) Grader {
	cfg := &config{
		MaxEditDistance:   1,
		AllowPartialMulti: true,
		AllowPartialMatch: true,
	}
	for _, o := range opts {
		o(cfg)
	}
	return &defaultGrader{
		strategies: map[string]Strategy{
			"single_choice":   singleChoiceStrategy{},
			"true_false":      singleChoiceStrategy{},
			"multiple_choice": multiChoiceStrategy{allowPartial: cfg.AllowPartialMulti},
			"short_answer":    shortAnswerStrategy{maxEdit: cfg.MaxEditDistance},
			"matching":        matchingStrategy{allowPartial: cfg.AllowPartialMatch},
		},
	}
}

// --- Strategies ---

type singleChoiceStrategy struct{}

func (singleChoiceStrategy) Grade(_ context.Context, q Q, response interface{}) (Result, error) {
	res := Result{MaxPoints: q.Points}
	resp, ok := response.(string)
	if !ok {
		return res, errors.New("response must be string")
	}
	for _, k := range q.AnswerKey {
		if resp == k {
			res.Points = q.Points
			return res, nil
		}
	}
	return res, nil
}

type multiChoiceStrategy struct{ allowPartial bool }

func (s multiChoiceStrategy) Grade(_ context.Context, q Q, response interface{}) (Result, error) {
	res := Result{MaxPoints: q.Points}
	respSlice, ok := toStringSlice(response)
	if !ok {
		return res, errors.New("response must be []string")
	}
	correct := toSet(q.AnswerKey)
	resp := toSet(respSlice)

	if setEqual(correct, resp) {
		res.Points = q.Points
		return res, nil
	}
	hasFalsePositive := false
	for r := range resp {
		if _, ok := correct[r]; !ok {
			hasFalsePositive = true
			break
		}
	}
	if s.allowPartial && !hasFalsePositive && len(correct) > 0 {
		inter := 0
		for k := range resp {
			if _, ok := correct[k]; ok {
				inter++
			}
		}
		res.Points = q.Points * (float64(inter) / float64(len(correct)))
	}
	return res, nil
}

type shortAnswerStrategy struct{ maxEdit int }

func (s shortAnswerStrategy) Grade(_ context.Context, q Q, response interface{}) (Result, error) {
	res := Result{MaxPoints: q.Points}
	resp, ok := response.(string)
	if !ok {
		return res, errors.New("response must be string")
	}
	normResp := normalize(resp)

	fuzzy := false
	for _, k := range q.AnswerKey {
		nk := normalize(k)
		if nk == normResp {
			res.Points = q.Points
			return res, nil
		}
		if s.maxEdit > 0 && levenshtein(nk, normResp) <= s.maxEdit {
			fuzzy = true
		}
	}
	if fuzzy {
		res.Points = q.Points * 0.5
		res.Feedback = append(res.Feedback, "close match (fuzzy)")
	}
	return res, nil
}

// matchingStrategy compares the learner's left→right map against the
// question's MatchKey. Full credit requires every pairing correct and
// no stray pairings; partial credit is per correct pairing.
type matchingStrategy struct{ allowPartial bool }

func (s matchingStrategy) Grade(_ context.Context, q Q, response interface{}) (Result, error) {
	res := Result{MaxPoints: q.Points}
	resp, ok := toStringMap(response)
	if !ok {
		return res, errors.New("response must be map[string]string")
	}
	if len(q.MatchKey) == 0 {
		return res, nil
	}
	correct := 0
	wrong := 0
	for left, right := range resp {
		if want, ok := q.MatchKey[left]; ok && want == right {
			correct++
		} else {
			wrong++
		}
	}
	if correct == len(q.MatchKey) && wrong == 0 {
		res.Points = q.Points
		return res, nil
	}
	if s.allowPartial {
		res.Points = q.Points * (float64(correct) / float64(len(q.MatchKey)))
	}
	return res, nil
}

// helpers

func toStringSlice(v interface{}) ([]string, bool) {
	switch t := v.(type) {
	case []string:
		return t, true
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out, true
	default:
		return nil, false
	}
}

func toStringMap(v interface{}) (map[string]string, bool) {
	switch t := v.(type) {
	case map[string]string:
		return t, true
	case map[string]interface{}:
		out := make(map[string]string, len(t))
		for k, e := range t {
			if s, ok := e.(string); ok {
				out[k] = s
			}
		}
		return out, true
	default:
		return nil, false
	}
}

func toSet(arr []string) map[string]struct{} {
	m := make(map[string]struct{}, len(arr))
	for _, s := range arr {
		m[s] = struct{}{}
	}
	return m
}

func setEqual(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
