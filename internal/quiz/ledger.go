package quiz

import "encoding/json"

// Ledger maps question keys (q0, q1, ...) to the learner's current
// answer. Value shape depends on the question kind: a single string,
// a []string for multiple choice, or a map[string]string for matching.
// Entries are created lazily by learner input; a question the learner
// never touched has no entry.
type Ledger map[string]interface{}

func NewLedger() Ledger { return Ledger{} }

// SetChoice replaces the entry for key with a single selection.
// Used for single_choice, true_false and short_answer.
func (l Ledger) SetChoice(key, value string) {
	l[key] = value
}

// ToggleOption adds the option to the multi-select entry for key, or
// removes it when already present. An emptied entry stays in the ledger
// as an empty slice; the question was still touched by the learner.
func (l Ledger) ToggleOption(key, option string) {
	cur, _ := l.StringSlice(key)
	for i, v := range cur {
		if v == option {
			l[key] = append(append([]string{}, cur[:i]...), cur[i+1:]...)
			return
		}
	}
	l[key] = append(append([]string{}, cur...), option)
}

// SetMatch updates one left-item pairing inside the per-question map,
// preserving the other pairings.
func (l Ledger) SetMatch(key, left, right string) {
	m, ok := l.StringMap(key)
	if !ok {
		m = map[string]string{}
	}
	m[left] = right
	l[key] = m
}

// String returns the entry for key as a plain string.
func (l Ledger) String(key string) (string, bool) {
	s, ok := l[key].(string)
	return s, ok
}

// StringSlice returns the entry for key as a string slice, tolerating
// the []interface{} shape produced by JSON decoding.
func (l Ledger) StringSlice(key string) ([]string, bool) {
	switch v := l[key].(type) {
	case []string:
		return v, true
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out, true
	default:
		return nil, false
	}
}

// StringMap returns the entry for key as a string map, tolerating the
// map[string]interface{} shape produced by JSON decoding.
func (l Ledger) StringMap(key string) (map[string]string, bool) {
	switch v := l[key].(type) {
	case map[string]string:
		return v, true
	case map[string]interface{}:
		out := make(map[string]string, len(v))
		for k, e := range v {
			if s, ok := e.(string); ok {
				out[k] = s
			}
		}
		return out, true
	default:
		return nil, false
	}
}

// Answered reports how many questions have a ledger entry.
func (l Ledger) Answered() int { return len(l) }

// Clone deep-copies the ledger so callers can snapshot it without
// racing later mutation.
func (l Ledger) Clone() Ledger {
	out := make(Ledger, len(l))
	for k, v := range l {
		switch t := v.(type) {
		case []string:
			out[k] = append([]string{}, t...)
		case map[string]string:
			m := make(map[string]string, len(t))
			for mk, mv := range t {
				m[mk] = mv
			}
			out[k] = m
		default:
			out[k] = v
		}
	}
	return out
}

func (l Ledger) MarshalString() (string, error) {
	b, err := json.Marshal(l)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
