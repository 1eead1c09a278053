package audio

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyRecording is returned by Start while a capture is active.
	// Concurrent captures fail fast; they are never queued.
	ErrAlreadyRecording = errors.New("a recording is already in progress")

	// ErrNoActiveRecording is returned by Stop without a prior Start.
	ErrNoActiveRecording = errors.New("no active recording")

	// ErrPermissionDenied means the OS refused microphone access.
	ErrPermissionDenied = errors.New("microphone permission denied")
)

// DeviceError is a failure of the underlying capture device.
type DeviceError struct {
	Err error
}

func (e *DeviceError) Error() string { return fmt.Sprintf("audio device: %v", e.Err) }

func (e *DeviceError) Unwrap() error { return e.Err }

// StorageError is a failure writing or finalizing the recorded artifact.
type StorageError struct {
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("audio storage: %v", e.Err) }

func (e *StorageError) Unwrap() error { return e.Err }
