package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"talkcoach/internal/transcript"
)

// Writer appends turns to a plain-text daily transcript file, a greppable
// companion to the sqlite store.
type Writer struct {
	dir string
	mu  sync.Mutex
}

func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

func (w *Writer) Append(sessionID string, turn transcript.Turn) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", w.dir, err)
	}

	date := time.Now().UTC().Format("2006-01-02")
	path := filepath.Join(w.dir, date+".md")

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	if _, err := fmt.Fprintf(f, "**[%s] %s**\n", sessionID, turn.Format()); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	return nil
}

func (w *Writer) CurrentPath() string {
	date := time.Now().UTC().Format("2006-01-02")
	return filepath.Join(w.dir, date+".md")
}
