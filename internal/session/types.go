package session

import (
	"context"
	"encoding/json"
	"time"

	"talkcoach/internal/coach"
	"talkcoach/internal/transcript"
)

// Recorder is the audio capture controller: one exclusive recording at a
// time, producing a local artifact path on stop.
type Recorder interface {
	Start() error
	Stop() (string, error)
}

// Dialogue is the remote coaching service surface the controller drives.
type Dialogue interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
	Reply(ctx context.Context, userText string, sc coach.SessionContext) (string, error)
	Analyze(ctx context.Context, sc coach.SessionContext, turns []transcript.Turn) (json.RawMessage, error)
}

// Speaker is the playback controller for synthesized assistant speech.
type Speaker interface {
	Speak(ctx context.Context, text string) error
	Speaking() bool
	Stop()
}

// Store persists sessions as they run. Optional; the controller works
// without one.
type Store interface {
	CreateSession(id string, startedAt time.Time, params Parameters) error
	AppendTurn(sessionID string, turn transcript.Turn) error
	EndSession(id string, endedAt time.Time, status string, report json.RawMessage) error
}

// Events receives everything the UI needs to follow a session live.
// Optional; all methods must be safe to call from controller goroutines.
type Events interface {
	SessionStarted(id string, params Parameters)
	StateChanged(state State)
	TurnAdded(turn transcript.Turn)
	PendingUtterance(text string)
	Notice(kind, message string)
	ReportReady(sessionID string, report json.RawMessage)
}
