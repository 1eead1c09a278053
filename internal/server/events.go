package server

import (
	"encoding/json"
	"time"
)

const EventVersion = 1

type Event struct {
	Type      string `json:"type"`
	Version   int    `json:"version"`
	Timestamp string `json:"timestamp"`
}

type SessionStartedEvent struct {
	Event
	SessionID    string   `json:"session_id"`
	Conversation string   `json:"conversation"`
	Feeling      string   `json:"feeling"`
	Focus        []string `json:"focus"`
}

type StateChangedEvent struct {
	Event
	State string `json:"state"`
}

type TurnAddedEvent struct {
	Event
	Role string `json:"role"`
	Text string `json:"text"`
}

type PendingUtteranceEvent struct {
	Event
	Text string `json:"text"`
}

type SpeakingChangedEvent struct {
	Event
	Speaking bool `json:"speaking"`
}

type NoticeEvent struct {
	Event
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type ReportReadyEvent struct {
	Event
	SessionID string          `json:"session_id"`
	Report    json.RawMessage `json:"report"`
}

type ConnectionEvent struct {
	Event
	Connected bool `json:"connected"`
}

func newEvent(eventType string, now time.Time) Event {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	return Event{
		Type:      eventType,
		Version:   EventVersion,
		Timestamp: now.UTC().Format(time.RFC3339Nano),
	}
}
