package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"talkcoach/internal/transcript"
)

// State of the practice session as the user sees it. Sending and Ending are
// transient: the controller holds them only while a remote call is in
// flight, and every path out of them lands in Idle or Completed.
type State string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
	StateSending   State = "sending"
	StateEnding    State = "ending"
	StateCompleted State = "completed"
)

const (
	StatusCompleted     = "completed"
	StatusAnalyzeFailed = "analyze_failed"
)

// emptyReport is the fallback handed off when analysis fails; ending a
// session must never strand the user without a report value.
var emptyReport = json.RawMessage("{}")

// Controller runs one practice session. It owns the transcript and the
// pending utterance, and it is the only component that moves the session
// between states. Every error is recovered here and surfaced as a notice;
// nothing propagates past the controller uncaught.
type Controller struct {
	id       string
	params   Parameters
	dialogue Dialogue
	recorder Recorder
	speaker  Speaker
	store    Store
	events   Events

	mu      sync.Mutex
	state   State
	pending string

	history *transcript.Log
	started time.Time
}

func NewController(params Parameters, dialogue Dialogue, recorder Recorder, speaker Speaker, store Store, events Events) *Controller {
	now := time.Now().UTC()
	c := &Controller{
		id:       now.Format("20060102150405"),
		params:   params,
		dialogue: dialogue,
		recorder: recorder,
		speaker:  speaker,
		store:    store,
		events:   events,
		state:    StateIdle,
		history:  transcript.NewLog(),
		started:  now,
	}

	if c.store != nil {
		if err := c.store.CreateSession(c.id, c.started, params); err != nil {
			log.Printf("warning: persist session start: %v", err)
		}
	}
	if c.events != nil {
		c.events.SessionStarted(c.id, params)
	}

	// the transcript always opens with the assistant greeting
	c.appendTurn(transcript.RoleAssistant, Greeting(params))

	return c
}

func (c *Controller) ID() string { return c.id }

func (c *Controller) Params() Parameters { return c.params }

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) PendingUtterance() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

func (c *Controller) Turns() []transcript.Turn {
	return c.history.Turns()
}

// ToggleRecord is the single mic control point: it starts a capture from
// Idle and stops/transcribes from Recording. In any other state it is
// rejected without a state change.
func (c *Controller) ToggleRecord(ctx context.Context) error {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()

	switch state {
	case StateIdle:
		return c.startRecording()
	case StateRecording:
		return c.stopRecording(ctx)
	case StateCompleted:
		return ErrCompleted
	default:
		return c.reject("record", state)
	}
}

func (c *Controller) startRecording() error {
	if err := c.recorder.Start(); err != nil {
		// no handle was created; the session stays where it was
		c.notice("record", err.Error())
		return err
	}

	c.setState(StateRecording)
	return nil
}

func (c *Controller) stopRecording(ctx context.Context) error {
	artifact, err := c.recorder.Stop()

	// the mic is released on success and failure alike
	c.setState(StateIdle)

	if err != nil {
		c.notice("record", err.Error())
		return err
	}

	text, err := c.dialogue.Transcribe(ctx, artifact)
	if err != nil {
		c.notice("transcribe", err.Error())
		return err
	}
	if text == "" {
		// nothing understood; valid, and the transcript is untouched
		return nil
	}

	c.mu.Lock()
	c.pending = text
	c.mu.Unlock()

	c.appendTurn(transcript.RoleUser, text)
	if c.events != nil {
		c.events.PendingUtterance(text)
	}

	return nil
}

// Send submits the pending utterance for a coaching reply. The reply is
// appended and spoken; playback never gates further input. On failure the
// pending utterance is preserved so the user can retry without re-recording.
func (c *Controller) Send(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateCompleted {
		c.mu.Unlock()
		return ErrCompleted
	}
	if c.state != StateIdle {
		state := c.state
		c.mu.Unlock()
		return c.reject("send", state)
	}
	if strings.TrimSpace(c.pending) == "" {
		c.mu.Unlock()
		c.notice("send", "Say something first: tap the mic, speak, then send.")
		return ErrNothingToSend
	}
	userText := c.pending
	c.state = StateSending
	c.mu.Unlock()
	c.stateChanged(StateSending)

	reply, err := c.dialogue.Reply(ctx, userText, c.params.CoachContext())
	if err != nil {
		c.setState(StateIdle)
		c.notice("chat", err.Error())
		return err
	}

	if reply == "" {
		// the service had nothing to say; treat as a no-op
		c.setState(StateIdle)
		return nil
	}

	c.appendTurn(transcript.RoleAssistant, reply)

	c.mu.Lock()
	c.pending = ""
	c.state = StateIdle
	c.mu.Unlock()
	if c.events != nil {
		c.events.PendingUtterance("")
	}
	c.stateChanged(StateIdle)

	go func() {
		if err := c.speaker.Speak(context.Background(), reply); err != nil {
			c.notice("tts", err.Error())
		}
	}()

	return nil
}

// End requests the analysis report over the full transcript and completes
// the session. Analysis failure substitutes an empty report; ending is never
// blocked by it.
func (c *Controller) End(ctx context.Context) (json.RawMessage, error) {
	c.mu.Lock()
	if c.state == StateCompleted {
		c.mu.Unlock()
		return nil, ErrCompleted
	}
	if c.state != StateIdle {
		state := c.state
		c.mu.Unlock()
		return nil, c.reject("end", state)
	}
	c.state = StateEnding
	c.mu.Unlock()
	c.stateChanged(StateEnding)

	report, err := c.dialogue.Analyze(ctx, c.params.CoachContext(), c.history.Turns())
	status := StatusCompleted
	if err != nil {
		c.notice("analyze", err.Error())
		report = emptyReport
		status = StatusAnalyzeFailed
	}

	c.setState(StateCompleted)

	if c.store != nil {
		if err := c.store.EndSession(c.id, time.Now().UTC(), status, report); err != nil {
			log.Printf("warning: persist session end: %v", err)
		}
	}
	if c.events != nil {
		c.events.ReportReady(c.id, report)
	}

	return report, nil
}

// SpeakLast replays the most recent assistant turn.
func (c *Controller) SpeakLast(ctx context.Context) error {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()

	if state == StateRecording {
		return c.reject("speak", state)
	}

	turn, ok := c.history.Last(transcript.RoleAssistant)
	if !ok {
		return nil
	}

	if err := c.speaker.Speak(ctx, turn.Text); err != nil {
		c.notice("tts", err.Error())
		return err
	}
	return nil
}

func (c *Controller) Speaking() bool {
	return c.speaker.Speaking()
}

func (c *Controller) appendTurn(role transcript.Role, text string) {
	if err := c.history.Append(role, text); err != nil {
		return
	}

	turn := transcript.Turn{Role: role, Text: strings.TrimSpace(text)}
	if c.store != nil {
		if err := c.store.AppendTurn(c.id, turn); err != nil {
			log.Printf("warning: persist turn: %v", err)
		}
	}
	if c.events != nil {
		c.events.TurnAdded(turn)
	}
}

func (c *Controller) setState(state State) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
	c.stateChanged(state)
}

func (c *Controller) stateChanged(state State) {
	if c.events != nil {
		c.events.StateChanged(state)
	}
}

func (c *Controller) reject(action string, state State) error {
	err := fmt.Errorf("%w: cannot %s while %s", ErrUnavailable, action, state)
	c.notice(action, err.Error())
	return err
}

func (c *Controller) notice(kind, message string) {
	log.Printf("session %s: %s: %s", c.id, kind, message)
	if c.events != nil {
		c.events.Notice(kind, message)
	}
}
