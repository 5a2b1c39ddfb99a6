package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Deleter is the slice of the API client the worker pool needs.
type Deleter interface {
	DeleteNote(ctx context.Context, noteID string) (status int, err error)
}

// Outcome is the concluded result of one note delete attempt, after all
// retries. Success is exactly HTTP 200; a 404 on an already-deleted note
// is a benign non-success, recorded as failed but never escalated.
type Outcome struct {
	NoteID     string
	StatusCode int
	Err        error
	Success    bool
}

// Reason renders the outcome for log lines: "HTTP 404", "timeout",
// "error: ...".
func (o Outcome) Reason() string {
	switch {
	case isTimeout(o.Err):
		return "timeout"
	case o.Err != nil:
		return fmt.Sprintf("error: %v", o.Err)
	default:
		return fmt.Sprintf("HTTP %d", o.StatusCode)
	}
}

// isTimeout matches net-style timeout errors through any wrapping.
func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

func successStatus(status int) bool {
	return status == http.StatusOK
}
