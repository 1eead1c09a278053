package server

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"talkcoach/internal/session"
	"talkcoach/internal/transcript"
)

// Hub fans session events out to every connected websocket client. Slow
// clients are skipped rather than blocking a broadcast.
type Hub struct {
	mu      sync.RWMutex
	clients map[chan []byte]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[chan []byte]struct{})}
}

func (h *Hub) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(ch chan []byte) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
	close(ch)
}

func (h *Hub) Broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

// Hub implements session.Events.

func (h *Hub) SessionStarted(id string, params session.Parameters) {
	h.broadcastEvent(SessionStartedEvent{
		Event:        newEvent("session_started", time.Now().UTC()),
		SessionID:    id,
		Conversation: params.Conversation,
		Feeling:      params.Feeling,
		Focus:        params.Focus,
	})
}

func (h *Hub) StateChanged(state session.State) {
	h.broadcastEvent(StateChangedEvent{
		Event: newEvent("state_changed", time.Now().UTC()),
		State: string(state),
	})
}

func (h *Hub) TurnAdded(turn transcript.Turn) {
	h.broadcastEvent(TurnAddedEvent{
		Event: newEvent("turn_added", time.Now().UTC()),
		Role:  string(turn.Role),
		Text:  turn.Text,
	})
}

func (h *Hub) PendingUtterance(text string) {
	h.broadcastEvent(PendingUtteranceEvent{
		Event: newEvent("pending_utterance", time.Now().UTC()),
		Text:  text,
	})
}

func (h *Hub) SpeakingChanged(speaking bool) {
	h.broadcastEvent(SpeakingChangedEvent{
		Event:    newEvent("speaking_changed", time.Now().UTC()),
		Speaking: speaking,
	})
}

func (h *Hub) Notice(kind, message string) {
	h.broadcastEvent(NoticeEvent{
		Event:   newEvent("notice", time.Now().UTC()),
		Kind:    kind,
		Message: message,
	})
}

func (h *Hub) ReportReady(sessionID string, report json.RawMessage) {
	h.broadcastEvent(ReportReadyEvent{
		Event:     newEvent("report_ready", time.Now().UTC()),
		SessionID: sessionID,
		Report:    report,
	})
}

func (h *Hub) broadcastEvent(event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("event marshal error: %v", err)
		return
	}
	h.Broadcast(payload)
}
