package main

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gordonklaus/portaudio"

	"talkcoach/internal/audio"
	"talkcoach/internal/coach"
	"talkcoach/internal/config"
	"talkcoach/internal/gdrive"
	"talkcoach/internal/playback"
	"talkcoach/internal/server"
	"talkcoach/internal/session"
	"talkcoach/internal/storage"
	"talkcoach/internal/transcript"
)

//go:embed static/*
var staticFiles embed.FS

// sessionSink fans persistence out to sqlite and the daily markdown
// transcript. Markdown failures are logged and never block a session.
type sessionSink struct {
	db     *storage.SQLiteStore
	writer *storage.Writer
}

func (s sessionSink) CreateSession(id string, startedAt time.Time, params session.Parameters) error {
	return s.db.CreateSession(id, startedAt, params)
}

func (s sessionSink) AppendTurn(sessionID string, turn transcript.Turn) error {
	if err := s.writer.Append(sessionID, turn); err != nil {
		log.Printf("warning: markdown transcript write: %v", err)
	}
	return s.db.AppendTurn(sessionID, turn)
}

func (s sessionSink) EndSession(id string, endedAt time.Time, status string, report json.RawMessage) error {
	return s.db.EndSession(id, endedAt, status, report)
}

// appState tracks the controller for the session in progress. A new session
// may start only when there is none, or the previous one has completed.
type appState struct {
	mu      sync.Mutex
	current *session.Controller

	dialogue session.Dialogue
	recorder session.Recorder
	speaker  session.Speaker
	store    session.Store
	events   session.Events
}

func (a *appState) Start(params session.Parameters) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.current != nil && a.current.State() != session.StateCompleted {
		return fmt.Errorf("%w: a session is already in progress", session.ErrUnavailable)
	}

	a.current = session.NewController(params, a.dialogue, a.recorder, a.speaker, a.store, a.events)
	return nil
}

func (a *appState) active() (*session.Controller, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current == nil {
		return nil, fmt.Errorf("%w: no active session", session.ErrUnavailable)
	}
	return a.current, nil
}

func (a *appState) ToggleRecord(ctx context.Context) error {
	c, err := a.active()
	if err != nil {
		return err
	}
	return c.ToggleRecord(ctx)
}

func (a *appState) Send(ctx context.Context) error {
	c, err := a.active()
	if err != nil {
		return err
	}
	return c.Send(ctx)
}

func (a *appState) End(ctx context.Context) (json.RawMessage, error) {
	c, err := a.active()
	if err != nil {
		return nil, err
	}
	return c.End(ctx)
}

func (a *appState) Speak(ctx context.Context) error {
	c, err := a.active()
	if err != nil {
		return err
	}
	return c.SpeakLast(ctx)
}

func (a *appState) State() session.State {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current == nil {
		return ""
	}
	return a.current.State()
}

func (a *appState) Pending() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current == nil {
		return ""
	}
	return a.current.PendingUtterance()
}

func main() {
	log.Println("talkcoach: starting")

	cfg, warnings, err := config.Load(os.Getenv(config.EnvPrefix + "CONFIG"))
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	for _, w := range warnings {
		log.Printf("config warning: %s", w)
	}

	db, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("storage init failed: %v", err)
	}
	defer func() { _ = db.Close() }()

	writer := storage.NewWriter(cfg.TranscriptDir)

	assets, err := fs.Sub(staticFiles, "static")
	if err != nil {
		log.Fatalf("static assets init failed: %v", err)
	}

	if err := portaudio.Initialize(); err != nil {
		log.Fatalf("portaudio init failed: %v", err)
	}
	defer func() { _ = portaudio.Terminate() }()

	hub := server.NewHub()
	client := coach.New(cfg.CoachBaseURL, cfg.ParsedRequestTimeout())
	capture := audio.NewCapture(cfg.AudioDir, cfg.MicSampleRate)

	speaker := playback.NewController(client, playback.NewWAVPlayer(cfg.ParsedRequestTimeout()))
	speaker.SetOnSpeakingChange(hub.SpeakingChanged)

	app := &appState{
		dialogue: client,
		recorder: capture,
		speaker:  speaker,
		store:    sessionSink{db: db, writer: writer},
		events:   hub,
	}

	handler, err := server.Handler(assets, hub, db, server.Controls{
		Start:        app.Start,
		ToggleRecord: app.ToggleRecord,
		Send:         app.Send,
		End:          app.End,
		Speak:        app.Speak,
		State:        app.State,
		Pending:      app.Pending,
		Speaking:     speaker.Speaking,
		Warnings:     func() []string { return warnings },
	})
	if err != nil {
		log.Fatalf("build http handler failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.GDriveFolderID != "" {
		syncer, syncErr := gdrive.NewSyncer(ctx, cfg.GoogleCredentialsFile, cfg.GDriveFolderID)
		if syncErr != nil {
			log.Printf("warning: gdrive sync disabled: %v", syncErr)
		} else {
			go func() {
				ticker := time.NewTicker(5 * time.Minute)
				defer ticker.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case <-ticker.C:
						date := time.Now().UTC().Format("2006-01-02")
						if err := syncer.Sync(writer.CurrentPath(), date); err != nil {
							log.Printf("gdrive sync error: %v", err)
						}
					}
				}
			}()
		}
	}

	httpServer := &http.Server{Addr: cfg.ListenAddr, Handler: handler}
	go func() {
		log.Printf("web UI at http://localhost%s", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("http server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Println("talkcoach: shutting down")

	speaker.Stop()
	if capture.Active() {
		if _, err := capture.Stop(); err != nil {
			log.Printf("capture stop error: %v", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown error: %v", err)
	}
}
