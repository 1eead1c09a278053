package coach

import (
	"errors"
	"fmt"
)

// maxErrorBody bounds how much of a failed response body is kept for diagnostics.
const maxErrorBody = 200

// ErrMalformedResponse marks a success status whose body could not be used.
var ErrMalformedResponse = errors.New("malformed response")

// RemoteError is a non-success response from the coaching service.
type RemoteError struct {
	Status int
	Body   string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("coach service status %d: %s", e.Status, e.Body)
}

// TransportError is a network-level failure: no connectivity, DNS, timeout.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("coach %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func truncateBody(body []byte) string {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return string(body)
}
