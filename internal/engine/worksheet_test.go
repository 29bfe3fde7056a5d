package engine

import (
	"reflect"
	"testing"
)

func TestWorkSheetAnswerOverwrite(t *testing.T) {
	ws := NewWorkSheet()

	ws.SetAnswer("q1", "A")
	ws.SetAnswer("q1", "C")

	answers := ws.Answers()
	if got := answers["q1"]; got != "C" {
		t.Errorf("answers[q1] = %q, want %q (second write wins)", got, "C")
	}
	if ws.AnswerCount() != 1 {
		t.Errorf("AnswerCount() = %d, want 1", ws.AnswerCount())
	}
}

func TestWorkSheetAnswerCountBounded(t *testing.T) {
	ws := NewWorkSheet()
	// Re-answering the same questions repeatedly must never grow the map
	// past the distinct question count.
	for i := 0; i < 10; i++ {
		ws.SetAnswer("q1", "A")
		ws.SetAnswer("q2", "B")
	}
	if ws.AnswerCount() != 2 {
		t.Errorf("AnswerCount() = %d, want 2", ws.AnswerCount())
	}
}

func TestWorkSheetToggleFlag(t *testing.T) {
	ws := NewWorkSheet()

	if flagged := ws.ToggleFlag("q3"); !flagged {
		t.Error("first toggle should flag")
	}
	if flagged := ws.ToggleFlag("q3"); flagged {
		t.Error("second toggle should unflag")
	}
	if got := ws.Flagged(); len(got) != 0 {
		t.Errorf("Flagged() = %v, want empty", got)
	}

	ws.ToggleFlag("q9")
	ws.ToggleFlag("q2")
	if got := ws.Flagged(); !reflect.DeepEqual(got, []string{"q2", "q9"}) {
		t.Errorf("Flagged() = %v, want sorted [q2 q9]", got)
	}
}

func TestWorkSheetAnswersReturnsCopy(t *testing.T) {
	ws := NewWorkSheet()
	ws.SetAnswer("q1", "A")

	snap := ws.Answers()
	snap["q1"] = "Z"
	snap["q2"] = "B"

	if got := ws.Answers()["q1"]; got != "A" {
		t.Errorf("mutating the returned map leaked into the worksheet: %q", got)
	}
	if ws.AnswerCount() != 1 {
		t.Errorf("AnswerCount() = %d, want 1", ws.AnswerCount())
	}
}

func TestWorkSheetRestore(t *testing.T) {
	ws := NewWorkSheet()
	ws.SetAnswer("stale", "X")

	ws.Restore(map[string]string{"q1": "B", "q2": "D"}, []string{"q2"})

	if !reflect.DeepEqual(ws.Answers(), map[string]string{"q1": "B", "q2": "D"}) {
		t.Errorf("Answers() = %v after restore", ws.Answers())
	}
	if !reflect.DeepEqual(ws.Flagged(), []string{"q2"}) {
		t.Errorf("Flagged() = %v after restore", ws.Flagged())
	}
}
