package tracker

import (
	"errors"
	"fmt"
	"time"
)

// Domain errors for the tracker package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, tracker.ErrFetchFailed) {
//	    // the refresh cycle failed; the next tick retries
//	}
var (
	// ErrFetchFailed marks a refresh cycle that did not produce a snapshot.
	// Every *UpdateFailedError matches it.
	ErrFetchFailed = errors.New("tracker: update failed")

	// ErrFetchTimeout is returned when the fetcher exceeds the hard ceiling.
	ErrFetchTimeout = errors.New("tracker: fetch timed out")

	// ErrInvalidSnapshot is returned when a fetch result breaks the uuid invariant.
	ErrInvalidSnapshot = errors.New("tracker: invalid snapshot")

	// ErrDeviceMissing describes a tracked uuid absent from a snapshot.
	// It is logged, never returned from a refresh.
	ErrDeviceMissing = errors.New("tracker: device missing from snapshot")

	// ErrCoordinateParse is returned when latitude or longitude is not a number.
	ErrCoordinateParse = errors.New("tracker: invalid coordinate")

	// ErrAlreadyRegistered is returned when a uuid is registered twice.
	ErrAlreadyRegistered = errors.New("tracker: device already registered")

	// ErrAlreadyStarted is returned when Start is called on a running coordinator.
	ErrAlreadyStarted = errors.New("tracker: coordinator already started")

	// ErrStopped is returned when Start is called after Stop.
	ErrStopped = errors.New("tracker: coordinator stopped")
)

// UpdateFailedError is the signal delivered to subscribers when a refresh
// cycle fails. It wraps the underlying fetch error.
type UpdateFailedError struct {
	Cycle    uint64
	At       time.Time
	Duration time.Duration
	Err      error
}

// Error implements error.
func (e *UpdateFailedError) Error() string {
	return fmt.Sprintf("tracker: update failed (cycle %d): %v", e.Cycle, e.Err)
}

// Unwrap returns the underlying fetch error.
func (e *UpdateFailedError) Unwrap() error {
	return e.Err
}

// Is reports ErrFetchFailed as a match.
func (e *UpdateFailedError) Is(target error) bool {
	return target == ErrFetchFailed
}
