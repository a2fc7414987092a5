package quiz

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestLedgerSetChoiceReplaces(t *testing.T) {
	l := NewLedger()
	l.SetChoice("q0", "a")
	l.SetChoice("q0", "c")

	got, ok := l.String("q0")
	if !ok || got != "c" {
		t.Fatalf("String(q0) = %q, %v; want c, true", got, ok)
	}
	if l.Answered() != 1 {
		t.Fatalf("Answered() = %d; want 1", l.Answered())
	}
}

func TestLedgerToggleOption(t *testing.T) {
	l := NewLedger()
	l.ToggleOption("q1", "a")
	l.ToggleOption("q1", "c")
	l.ToggleOption("q1", "a") // second toggle removes

	got, ok := l.StringSlice("q1")
	if !ok {
		t.Fatal("StringSlice(q1) missing")
	}
	if !reflect.DeepEqual(got, []string{"c"}) {
		t.Fatalf("StringSlice(q1) = %v; want [c]", got)
	}

	// toggling the last option off leaves an empty entry, the question
	// still counts as touched
	l.ToggleOption("q1", "c")
	if got, _ := l.StringSlice("q1"); len(got) != 0 {
		t.Fatalf("StringSlice(q1) = %v; want empty", got)
	}
	if l.Answered() != 1 {
		t.Fatalf("Answered() = %d; want 1", l.Answered())
	}
}

func TestLedgerSetMatchPreservesOtherPairings(t *testing.T) {
	l := NewLedger()
	l.SetMatch("q2", "H2O", "water")
	l.SetMatch("q2", "NaCl", "salt")
	l.SetMatch("q2", "H2O", "ice") // re-pair one left item

	m, ok := l.StringMap("q2")
	if !ok {
		t.Fatal("StringMap(q2) missing")
	}
	want := map[string]string{"H2O": "ice", "NaCl": "salt"}
	if !reflect.DeepEqual(m, want) {
		t.Fatalf("StringMap(q2) = %v; want %v", m, want)
	}
}

func TestLedgerUntouchedQuestionHasNoEntry(t *testing.T) {
	l := NewLedger()
	l.SetChoice("q0", "b")
	if _, ok := l["q5"]; ok {
		t.Fatal("q5 should have no entry")
	}
	if l.Answered() != 1 {
		t.Fatalf("Answered() = %d; want 1", l.Answered())
	}
}

func TestLedgerCloneIsIndependent(t *testing.T) {
	l := NewLedger()
	l.SetChoice("q0", "a")
	l.ToggleOption("q1", "x")
	l.SetMatch("q2", "l", "r")

	c := l.Clone()
	l.SetChoice("q0", "b")
	l.ToggleOption("q1", "y")
	l.SetMatch("q2", "l", "zzz")

	if got, _ := c.String("q0"); got != "a" {
		t.Fatalf("clone q0 = %q; want a", got)
	}
	if got, _ := c.StringSlice("q1"); !reflect.DeepEqual(got, []string{"x"}) {
		t.Fatalf("clone q1 = %v; want [x]", got)
	}
	if m, _ := c.StringMap("q2"); m["l"] != "r" {
		t.Fatalf("clone q2[l] = %q; want r", m["l"])
	}
}

func TestLedgerSurvivesJSONRoundTrip(t *testing.T) {
	l := NewLedger()
	l.SetChoice("q0", "a")
	l.ToggleOption("q1", "b")
	l.SetMatch("q2", "left", "right")

	s, err := l.MarshalString()
	if err != nil {
		t.Fatal(err)
	}
	var back Ledger
	if err := json.Unmarshal([]byte(s), &back); err != nil {
		t.Fatal(err)
	}

	// decoded entries come back as []interface{} / map[string]interface{};
	// the accessors must still read them
	if got, _ := back.String("q0"); got != "a" {
		t.Fatalf("q0 = %q; want a", got)
	}
	if got, ok := back.StringSlice("q1"); !ok || !reflect.DeepEqual(got, []string{"b"}) {
		t.Fatalf("q1 = %v, %v; want [b], true", got, ok)
	}
	if m, ok := back.StringMap("q2"); !ok || m["left"] != "right" {
		t.Fatalf("q2 = %v, %v", m, ok)
	}
}
