package progression

import (
	"errors"
	"fmt"
)

var (
	// ErrLocked is returned when an action targets an item that is not unlockable.
	// It is decided locally and never reaches the server.
	ErrLocked = errors.New("item is locked")

	// ErrUnknownItem is returned when a module, video or assessment is missing from the snapshot.
	ErrUnknownItem = errors.New("item not found in snapshot")

	// ErrNoSnapshot is returned by operations that need a loaded snapshot.
	ErrNoSnapshot = errors.New("course snapshot not loaded")

	ErrAssessmentUnavailable = errors.New("assessment is not available")
	ErrAttemptNotAllowed     = errors.New("assessment attempt not allowed by server")
	ErrAttemptNotConfirmed   = errors.New("assessment attempt not confirmed by server")
	ErrInvalidState          = errors.New("invalid assessment session state")
	ErrInvalidAnswer         = errors.New("invalid answer")
)

// RejectedError is an authoritative refusal from the server. It always wins
// over local belief: callers refresh instead of retrying.
type RejectedError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s rejected by server (%d): %s", e.Op, e.StatusCode, e.Message)
}

// IsRejected reports whether err carries an authoritative server rejection.
func IsRejected(err error) bool {
	var rejected *RejectedError
	return errors.As(err, &rejected)
}
