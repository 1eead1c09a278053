package session

import "errors"

var (
	// ErrNothingToSend is returned by Send when no transcribed utterance is
	// waiting; the user is told to record first instead.
	ErrNothingToSend = errors.New("nothing to send")

	// ErrUnavailable is returned when an action does not apply in the
	// current state, e.g. send or end while recording.
	ErrUnavailable = errors.New("action unavailable in current state")

	// ErrCompleted is returned for any action after the session ended.
	ErrCompleted = errors.New("session already completed")
)
