package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"talkcoach/internal/session"
	"talkcoach/internal/transcript"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "talkcoach.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testParams() session.Parameters {
	return session.Parameters{
		Conversation: "appraisal",
		Feeling:      "nervous",
		Focus:        []string{"Key achievements and contributions", "Goals"},
	}
}

func TestSessionLifecycle(t *testing.T) {
	store := newTestStore(t)
	started := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)

	if err := store.CreateSession("s1", started, testParams()); err != nil {
		t.Fatalf("create: %v", err)
	}

	sess, err := store.GetSession("s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if sess.Status != "active" {
		t.Fatalf("expected active, got %q", sess.Status)
	}
	if sess.Conversation != "appraisal" || sess.Feeling != "nervous" {
		t.Fatalf("parameters not persisted: %+v", sess)
	}
	if len(sess.Focus) != 2 {
		t.Fatalf("focus not persisted: %v", sess.Focus)
	}
	if !sess.StartedAt.Equal(started) {
		t.Fatalf("started_at mismatch: %v", sess.StartedAt)
	}

	report := json.RawMessage(`{"summary":"good session"}`)
	ended := started.Add(10 * time.Minute)
	if err := store.EndSession("s1", ended, session.StatusCompleted, report); err != nil {
		t.Fatalf("end: %v", err)
	}

	sess, err = store.GetSession("s1")
	if err != nil {
		t.Fatalf("get after end: %v", err)
	}
	if sess.Status != session.StatusCompleted {
		t.Fatalf("expected completed, got %q", sess.Status)
	}
	if sess.EndedAt == nil || !sess.EndedAt.Equal(ended) {
		t.Fatalf("ended_at mismatch: %v", sess.EndedAt)
	}
	if string(sess.Report) != string(report) {
		t.Fatalf("report mismatch: %s", sess.Report)
	}
}

func TestEndUnknownSession(t *testing.T) {
	store := newTestStore(t)

	err := store.EndSession("missing", time.Now().UTC(), session.StatusCompleted, json.RawMessage("{}"))
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestCreateRequiresID(t *testing.T) {
	store := newTestStore(t)

	if err := store.CreateSession("  ", time.Now().UTC(), testParams()); err == nil {
		t.Fatal("expected error for blank session id")
	}
}

func TestTurnsKeepInsertionOrder(t *testing.T) {
	store := newTestStore(t)
	if err := store.CreateSession("s1", time.Now().UTC(), testParams()); err != nil {
		t.Fatalf("create: %v", err)
	}

	seq := []transcript.Turn{
		{Role: transcript.RoleAssistant, Text: "hello"},
		{Role: transcript.RoleUser, Text: "hi"},
		{Role: transcript.RoleAssistant, Text: "tell me more"},
	}
	for _, turn := range seq {
		if err := store.AppendTurn("s1", turn); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	turns, err := store.GetTurns("s1")
	if err != nil {
		t.Fatalf("get turns: %v", err)
	}
	if len(turns) != len(seq) {
		t.Fatalf("expected %d turns, got %d", len(seq), len(turns))
	}
	for i := range seq {
		if turns[i] != seq[i] {
			t.Fatalf("turn %d mismatch: got %+v want %+v", i, turns[i], seq[i])
		}
	}
}

func TestSessionsByDateAndDates(t *testing.T) {
	store := newTestStore(t)

	day1 := time.Date(2026, 8, 27, 9, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)
	if err := store.CreateSession("a", day1, testParams()); err != nil {
		t.Fatalf("create a: %v", err)
	}
	if err := store.CreateSession("b", day2, testParams()); err != nil {
		t.Fatalf("create b: %v", err)
	}

	sessions, err := store.GetSessionsByDate("2026-08-28")
	if err != nil {
		t.Fatalf("by date: %v", err)
	}
	if len(sessions) != 1 || sessions[0].ID != "b" {
		t.Fatalf("unexpected sessions for date: %+v", sessions)
	}

	dates, err := store.GetDates()
	if err != nil {
		t.Fatalf("dates: %v", err)
	}
	if len(dates) != 2 || dates[0] != "2026-08-28" {
		t.Fatalf("unexpected dates: %v", dates)
	}
}
