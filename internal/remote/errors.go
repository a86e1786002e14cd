package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// RemoteIOError reports a failed exchange with the remote coordinator
type RemoteIOError struct {
	Op         string
	URL        string
	StatusCode int // zero when no response was received
	Err        error
}

func (e *RemoteIOError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("remote %s %s: status %d: %v", e.Op, e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("remote %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *RemoteIOError) Unwrap() error {
	return e.Err
}

// Temporary reports whether retrying the request may succeed
func (e *RemoteIOError) Temporary() bool {
	if errors.Is(e.Err, context.Canceled) || errors.Is(e.Err, context.DeadlineExceeded) {
		return false
	}
	switch {
	case e.StatusCode == 0:
		return true
	case e.StatusCode == http.StatusTooManyRequests:
		return true
	case e.StatusCode >= 500:
		return true
	}
	return false
}
