package transcript

import "testing"

func TestAppendKeepsOrder(t *testing.T) {
	log := NewLog()

	if err := log.Append(RoleAssistant, "hello"); err != nil {
		t.Fatalf("append assistant: %v", err)
	}
	if err := log.Append(RoleUser, "hi there"); err != nil {
		t.Fatalf("append user: %v", err)
	}
	if err := log.Append(RoleAssistant, "how did it go?"); err != nil {
		t.Fatalf("append assistant: %v", err)
	}

	turns := log.Turns()
	if len(turns) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(turns))
	}
	if turns[0].Role != RoleAssistant {
		t.Fatalf("expected first turn assistant, got %s", turns[0].Role)
	}
	if turns[1] != (Turn{Role: RoleUser, Text: "hi there"}) {
		t.Fatalf("unexpected second turn %+v", turns[1])
	}
}

func TestAppendRejectsBlankText(t *testing.T) {
	log := NewLog()

	if err := log.Append(RoleUser, "   "); err != ErrEmptyTurn {
		t.Fatalf("expected ErrEmptyTurn, got %v", err)
	}
	if log.Len() != 0 {
		t.Fatalf("blank append must not grow the log, len=%d", log.Len())
	}
}

func TestAppendTrimsText(t *testing.T) {
	log := NewLog()

	if err := log.Append(RoleUser, "  I finished the migration early  "); err != nil {
		t.Fatalf("append: %v", err)
	}
	if got := log.Turns()[0].Text; got != "I finished the migration early" {
		t.Fatalf("expected trimmed text, got %q", got)
	}
}

func TestTurnsReturnsCopy(t *testing.T) {
	log := NewLog()
	if err := log.Append(RoleAssistant, "hello"); err != nil {
		t.Fatalf("append: %v", err)
	}

	snapshot := log.Turns()
	snapshot[0].Text = "mutated"

	if got := log.Turns()[0].Text; got != "hello" {
		t.Fatalf("snapshot mutation leaked into log: %q", got)
	}
}

func TestLast(t *testing.T) {
	log := NewLog()
	if _, ok := log.Last(RoleAssistant); ok {
		t.Fatal("expected no assistant turn in empty log")
	}

	_ = log.Append(RoleAssistant, "first")
	_ = log.Append(RoleUser, "user text")
	_ = log.Append(RoleAssistant, "second")

	turn, ok := log.Last(RoleAssistant)
	if !ok || turn.Text != "second" {
		t.Fatalf("expected latest assistant turn, got %+v ok=%v", turn, ok)
	}
}
