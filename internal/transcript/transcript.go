package transcript

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

type Role string

const (
	RoleAssistant Role = "assistant"
	RoleUser      Role = "user"
)

// ErrEmptyTurn is returned by Append when the turn text is blank.
var ErrEmptyTurn = errors.New("turn text is empty")

// Turn is one committed utterance. Immutable after creation.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Log is the ordered dialogue history of a single session. It only grows;
// turns are never edited or removed.
type Log struct {
	mu    sync.Mutex
	turns []Turn
}

func NewLog() *Log {
	return &Log{}
}

func (l *Log) Append(role Role, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyTurn
	}

	l.mu.Lock()
	l.turns = append(l.turns, Turn{Role: role, Text: text})
	l.mu.Unlock()
	return nil
}

// Turns returns a copy of the history; callers may hold it across session end.
func (l *Log) Turns() []Turn {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Turn(nil), l.turns...)
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.turns)
}

// Last returns the most recent turn with the given role, if any.
func (l *Log) Last(role Role) (Turn, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := len(l.turns) - 1; i >= 0; i-- {
		if l.turns[i].Role == role {
			return l.turns[i], true
		}
	}
	return Turn{}, false
}

func (t Turn) Format() string {
	return fmt.Sprintf("%s> %s", t.Role, strings.TrimSpace(t.Text))
}
