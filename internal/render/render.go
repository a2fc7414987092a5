// Package render turns stored questions into the view payloads served
// to learners. Rendering is a pure function of (question, current
// ledger entry); answer keys never reach a view.
package render

import (
	"fmt"
	"sort"

	"github.com/smarthub-edu/smarthub/internal/quiz"
)

// View is the client-facing shape of one question plus the learner's
// current answer state.
type View struct {
	Key      string            `json:"key"` // synthetic ledger key, q<index>
	Kind     string            `json:"kind"`
	Prompt   string            `json:"prompt"`
	Options  []quiz.Option     `json:"options,omitempty"`
	Left     []string          `json:"left,omitempty"`  // matching: fixed column
	Right    []string          `json:"right,omitempty"` // matching: selectable column, sorted
	Selected []string          `json:"selected,omitempty"`
	Text     string            `json:"text,omitempty"`
	Pairings map[string]string `json:"pairings,omitempty"`
}

// Renderer produces the view for one question kind.
type Renderer interface {
	Render(key string, q quiz.Question, entry interface{}) (View, error)
}

var renderers = map[string]Renderer{}

// Register associates a question kind with a Renderer. Called from
// init(); later registrations win so callers can override a kind.
func Register(kind string, r Renderer) {
	if kind == "" || r == nil {
		return
	}
	renderers[kind] = r
}

func init() {
	Register(quiz.KindSingleChoice, choiceRenderer{single: true})
	Register(quiz.KindTrueFalse, trueFalseRenderer{})
	Register(quiz.KindMultipleChoice, choiceRenderer{})
	Register(quiz.KindShortAnswer, textRenderer{})
	Register(quiz.KindMatching, matchingRenderer{})
}

// Question renders one question with its ledger entry.
func Question(key string, q quiz.Question, entry interface{}) (View, error) {
	r, ok := renderers[q.Kind]
	if !ok {
		return View{}, fmt.Errorf("no renderer for question kind %q", q.Kind)
	}
	return r.Render(key, q, entry)
}

// Quiz renders every question of a quiz against the ledger, assigning
// the synthetic q<index> keys.
func Quiz(q quiz.Quiz, ledger quiz.Ledger) ([]View, error) {
	out := make([]View, 0, len(q.Questions))
	for i, qu := range q.Questions {
		key := quiz.QuestionKey(i)
		var entry interface{}
		if ledger != nil {
			entry = ledger[key]
		}
		v, err := Question(key, qu, entry)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

type choiceRenderer struct{ single bool }

func (r choiceRenderer) Render(key string, q quiz.Question, entry interface{}) (View, error) {
	v := View{Key: key, Kind: q.Kind, Prompt: q.Prompt, Options: q.Options}
	switch e := entry.(type) {
	case nil:
	case string:
		v.Selected = []string{e}
	case []string:
		v.Selected = append([]string{}, e...)
	case []interface{}:
		for _, x := range e {
			if s, ok := x.(string); ok {
				v.Selected = append(v.Selected, s)
			}
		}
	default:
		return View{}, fmt.Errorf("bad ledger entry for %s", key)
	}
	if r.single && len(v.Selected) > 1 {
		v.Selected = v.Selected[:1]
	}
	return v, nil
}

type trueFalseRenderer struct{}

func (trueFalseRenderer) Render(key string, q quiz.Question, entry interface{}) (View, error) {
	opts := q.Options
	if len(opts) == 0 {
		opts = []quiz.Option{{ID: "true", Label: "True"}, {ID: "false", Label: "False"}}
	}
	v := View{Key: key, Kind: q.Kind, Prompt: q.Prompt, Options: opts}
	if s, ok := entry.(string); ok {
		v.Selected = []string{s}
	}
	return v, nil
}

type textRenderer struct{}

func (textRenderer) Render(key string, q quiz.Question, entry interface{}) (View, error) {
	v := View{Key: key, Kind: q.Kind, Prompt: q.Prompt}
	if s, ok := entry.(string); ok {
		v.Text = s
	}
	return v, nil
}

type matchingRenderer struct{}

func (matchingRenderer) Render(key string, q quiz.Question, entry interface{}) (View, error) {
	v := View{Key: key, Kind: q.Kind, Prompt: q.Prompt}
	for _, p := range q.Pairs {
		v.Left = append(v.Left, p.Left)
		v.Right = append(v.Right, p.Right)
	}
	// sorted right column so the pairing is not given away by order
	sort.Strings(v.Right)
	switch e := entry.(type) {
	case nil:
	case map[string]string:
		v.Pairings = map[string]string{}
		for k, val := range e {
			v.Pairings[k] = val
		}
	case map[string]interface{}:
		v.Pairings = map[string]string{}
		for k, val := range e {
			if s, ok := val.(string); ok {
				v.Pairings[k] = s
			}
		}
	default:
		return View{}, fmt.Errorf("bad ledger entry for %s", key)
	}
	return v, nil
}
