package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrSessionNotFound is returned when a quiz session does not exist (or was discarded).
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrAlreadySubmitted is returned by the losing side of a submit race.
	ErrAlreadySubmitted = errors.New("quiz session already submitted")
	// ErrSessionClosed is returned for answer or navigation input after the session left IN_PROGRESS.
	ErrSessionClosed = errors.New("quiz session is not in progress")
	// ErrNothingToRetry is returned when a completed attempt has already been persisted.
	ErrNothingToRetry = errors.New("attempt already persisted")
	// ErrUnknownStatus is returned for a catalog status filter other than completed or pending.
	ErrUnknownStatus = errors.New("unknown quiz status filter")
)

// PersistenceError reports a failed write to the attempt or badge store.
// The computed result stays valid; the write may be retried.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// ValidationError reports a caller passing an out-of-range position or option.
type ValidationError struct {
	Field string
	Value int
	Limit int
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %d: must be in [0,%d)", e.Field, e.Value, e.Limit)
}
