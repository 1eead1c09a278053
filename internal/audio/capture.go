package audio

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	defaultSampleRate = 16000
	pcmChannels       = 1
	pcmBitDepth       = 16
)

// Source is a started-on-demand stream of PCM16 sample buffers. Read blocks
// until the next buffer and fails once the source is stopped.
type Source interface {
	Start() error
	Stop() error
	Close() error
	Read() ([]int16, error)
}

// Capture owns the single microphone recording. Start refuses a second
// capture while one is active; Stop finalizes the PCM stream into a WAV
// artifact and always releases the device.
type Capture struct {
	dir        string
	sampleRate int
	open       func(sampleRate int) (Source, error)

	mu  sync.Mutex
	seq int
	rec *recording
}

type recording struct {
	src     Source
	rawPath string
	rawFile *os.File
	done    chan struct{}
}

func NewCapture(dir string, sampleRate int) *Capture {
	if dir == "" {
		dir = filepath.Join("data", "audio")
	}
	if sampleRate <= 0 {
		sampleRate = defaultSampleRate
	}

	return &Capture{dir: dir, sampleRate: sampleRate, open: openMic}
}

func (c *Capture) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.rec != nil {
		return ErrAlreadyRecording
	}

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return &StorageError{Err: fmt.Errorf("create audio directory: %w", err)}
	}

	src, err := c.open(c.sampleRate)
	if err != nil {
		return classifyOpenError(err)
	}

	c.seq++
	rawPath := filepath.Join(c.dir, fmt.Sprintf("%s-%03d.pcm", time.Now().UTC().Format("20060102150405"), c.seq))
	rawFile, err := os.OpenFile(rawPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		_ = src.Close()
		return &StorageError{Err: fmt.Errorf("open raw pcm file: %w", err)}
	}

	if err := src.Start(); err != nil {
		_ = src.Close()
		_ = rawFile.Close()
		_ = os.Remove(rawPath)
		return &DeviceError{Err: fmt.Errorf("start capture stream: %w", err)}
	}

	rec := &recording{src: src, rawPath: rawPath, rawFile: rawFile, done: make(chan struct{})}
	c.rec = rec
	go rec.pump()

	return nil
}

// Stop finalizes the active capture and returns the WAV artifact path. The
// device and the raw file are released on every exit path.
func (c *Capture) Stop() (string, error) {
	c.mu.Lock()
	rec := c.rec
	c.rec = nil
	sampleRate := c.sampleRate
	c.mu.Unlock()

	if rec == nil {
		return "", ErrNoActiveRecording
	}

	_ = rec.src.Stop()
	<-rec.done
	_ = rec.src.Close()

	if err := rec.rawFile.Close(); err != nil {
		_ = os.Remove(rec.rawPath)
		return "", &StorageError{Err: fmt.Errorf("close raw pcm file: %w", err)}
	}

	wavPath := strings.TrimSuffix(rec.rawPath, ".pcm") + ".wav"
	if err := pcmToWAV(rec.rawPath, wavPath, sampleRate); err != nil {
		_ = os.Remove(rec.rawPath)
		return "", &StorageError{Err: err}
	}

	_ = os.Remove(rec.rawPath)
	return wavPath, nil
}

func (c *Capture) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rec != nil
}

func (r *recording) pump() {
	defer close(r.done)

	for {
		samples, err := r.src.Read()
		if err != nil {
			return
		}
		if err := binary.Write(r.rawFile, binary.LittleEndian, samples); err != nil {
			return
		}
	}
}

// PortAudio reports an OS mic-permission refusal as a host error; the message
// text is the only signal that separates it from a missing device.
func classifyOpenError(err error) error {
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"permission", "access denied", "not authorized"} {
		if strings.Contains(msg, marker) {
			return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
		}
	}
	return &DeviceError{Err: err}
}
