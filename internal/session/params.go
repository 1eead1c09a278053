package session

import (
	"encoding/json"
	"fmt"
	"strings"

	"talkcoach/internal/coach"
)

// Parameters is the immutable questionnaire outcome handed over when a
// session starts: what kind of conversation is being rehearsed, how the user
// feels about it, and which focus points they picked.
type Parameters struct {
	Conversation string   `json:"conversation"`
	Feeling      string   `json:"feeling"`
	Focus        []string `json:"focus"`
}

func (p Parameters) CoachContext() coach.SessionContext {
	return coach.SessionContext{
		Conversation: p.Conversation,
		Feeling:      p.Feeling,
		Focus:        p.Focus,
	}
}

// DecodeFocus parses a focus selection that upstream screens hand over as a
// JSON-encoded list of labels. Any decode failure yields an empty selection;
// a bad payload must never surface as a user-visible error.
func DecodeFocus(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	var labels []string
	if err := json.Unmarshal([]byte(raw), &labels); err != nil {
		return nil
	}

	out := make([]string, 0, len(labels))
	for _, label := range labels {
		if label = strings.TrimSpace(label); label != "" {
			out = append(out, label)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Greeting is the assistant turn that opens every session.
func Greeting(p Parameters) string {
	return fmt.Sprintf(
		"Hey, good to see you! So you have a %s meeting, and you’re feeling %s about it. "+
			"Tell me what you have in mind to tell your manager, and we’ll try to structure it better.",
		p.Conversation, p.Feeling,
	)
}
