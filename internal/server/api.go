package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"talkcoach/internal/coach"
	"talkcoach/internal/session"
	"talkcoach/internal/storage"
	"talkcoach/internal/transcript"
)

var sessionIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

type SessionStore interface {
	GetSessionsByDate(date string) ([]storage.Session, error)
	GetSession(id string) (storage.Session, error)
	GetTurns(sessionID string) ([]transcript.Turn, error)
	GetDates() ([]string, error)
}

// Controls are the hooks the API uses to drive the active session; the
// wiring lives in the cmd entrypoint.
type Controls struct {
	Start        func(params session.Parameters) error
	ToggleRecord func(ctx context.Context) error
	Send         func(ctx context.Context) error
	End          func(ctx context.Context) (json.RawMessage, error)
	Speak        func(ctx context.Context) error
	State        func() session.State
	Pending      func() string
	Speaking     func() bool
	Warnings     func() []string
}

// startRequest carries the questionnaire outcome. Focus arrives either as a
// proper list or as a JSON-encoded string, depending on the screen that
// produced it; both decode to the same selection.
type startRequest struct {
	Conversation string          `json:"conversation"`
	Feeling      string          `json:"feeling"`
	Focus        json.RawMessage `json:"focus"`
}

func (r startRequest) params() session.Parameters {
	p := session.Parameters{Conversation: r.Conversation, Feeling: r.Feeling}

	if len(r.Focus) > 0 {
		var labels []string
		if err := json.Unmarshal(r.Focus, &labels); err == nil {
			p.Focus = labels
		} else {
			var encoded string
			if err := json.Unmarshal(r.Focus, &encoded); err == nil {
				p.Focus = session.DecodeFocus(encoded)
			}
		}
	}

	return p
}

func registerAPIRoutes(mux *http.ServeMux, store SessionStore, controls Controls) {
	mux.HandleFunc("POST /api/session", func(w http.ResponseWriter, r *http.Request) {
		var req startRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("decode session request: %v", err))
			return
		}

		if controls.Start == nil {
			writeJSONError(w, http.StatusServiceUnavailable, "session start not available")
			return
		}
		if err := controls.Start(req.params()); err != nil {
			writeJSONError(w, http.StatusConflict, err.Error())
			return
		}

		writeJSON(w, http.StatusCreated, stateResponse(controls))
	})

	mux.HandleFunc("POST /api/record", actionHandler(controls, func(ctx context.Context) error {
		if controls.ToggleRecord == nil {
			return errors.New("record not available")
		}
		return controls.ToggleRecord(ctx)
	}))

	mux.HandleFunc("POST /api/send", actionHandler(controls, func(ctx context.Context) error {
		if controls.Send == nil {
			return errors.New("send not available")
		}
		return controls.Send(ctx)
	}))

	mux.HandleFunc("POST /api/speak", actionHandler(controls, func(ctx context.Context) error {
		if controls.Speak == nil {
			return errors.New("speak not available")
		}
		return controls.Speak(ctx)
	}))

	mux.HandleFunc("POST /api/end", func(w http.ResponseWriter, r *http.Request) {
		if controls.End == nil {
			writeJSONError(w, http.StatusServiceUnavailable, "end not available")
			return
		}

		report, err := controls.End(r.Context())
		if err != nil {
			writeJSONError(w, errorStatus(err), err.Error())
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"report": report})
	})

	mux.HandleFunc("GET /api/state", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, stateResponse(controls))
	})

	mux.HandleFunc("GET /api/sessions", func(w http.ResponseWriter, r *http.Request) {
		date := r.URL.Query().Get("date")
		if date == "" {
			date = time.Now().UTC().Format("2006-01-02")
		}

		sessions, err := store.GetSessionsByDate(date)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("list sessions: %v", err))
			return
		}

		writeJSON(w, http.StatusOK, sessions)
	})

	mux.HandleFunc("GET /api/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.PathValue("id")
		if !validSessionID(sessionID) {
			writeJSONError(w, http.StatusForbidden, "invalid session id")
			return
		}

		sessionData, err := store.GetSession(sessionID)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, sql.ErrNoRows) {
				status = http.StatusNotFound
			}
			writeJSONError(w, status, fmt.Sprintf("get session: %v", err))
			return
		}

		turns, err := store.GetTurns(sessionID)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("get session turns: %v", err))
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"session": sessionData,
			"turns":   turns,
		})
	})

	mux.HandleFunc("GET /api/dates", func(w http.ResponseWriter, r *http.Request) {
		dates, err := store.GetDates()
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("get dates: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, dates)
	})
}

func actionHandler(controls Controls, action func(ctx context.Context) error) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := action(r.Context()); err != nil {
			writeJSONError(w, errorStatus(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, stateResponse(controls))
	}
}

func stateResponse(controls Controls) map[string]any {
	resp := map[string]any{"state": "", "pending_utterance": "", "speaking": false}
	if controls.State != nil {
		resp["state"] = string(controls.State())
	}
	if controls.Pending != nil {
		resp["pending_utterance"] = controls.Pending()
	}
	if controls.Speaking != nil {
		resp["speaking"] = controls.Speaking()
	}
	if controls.Warnings != nil {
		if warnings := controls.Warnings(); len(warnings) > 0 {
			resp["warnings"] = warnings
		}
	}
	return resp
}

// errorStatus maps controller errors onto HTTP statuses: guard rejections
// are conflicts, remote failures are gateway errors, the rest is internal.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, session.ErrNothingToSend),
		errors.Is(err, session.ErrUnavailable),
		errors.Is(err, session.ErrCompleted):
		return http.StatusConflict
	}

	var remoteErr *coach.RemoteError
	var transportErr *coach.TransportError
	if errors.As(err, &remoteErr) || errors.As(err, &transportErr) || errors.Is(err, coach.ErrMalformedResponse) {
		return http.StatusBadGateway
	}

	return http.StatusInternalServerError
}

func validSessionID(id string) bool {
	return sessionIDPattern.MatchString(id)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
