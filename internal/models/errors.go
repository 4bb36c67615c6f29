package models

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by every coordinator component. Callers match with
// errors.Is; wrapped errors keep the original cause.
var (
	// ErrAuthRequired is returned when a mutation is attempted without a credential.
	ErrAuthRequired = errors.New("login required")
	// ErrPreconditionFailed is returned when a session cannot start (no zones,
	// no credential, no video, no stream). A missing credential also matches
	// ErrAuthRequired.
	ErrPreconditionFailed = errors.New("precondition failed")
	// ErrNetwork wraps transport failures on any backend call.
	ErrNetwork = errors.New("network error")
	// ErrBackendRejected is matched by *BackendError and by malformed responses.
	ErrBackendRejected = errors.New("backend rejected request")
	// ErrSessionFinished is the end reason of a run whose source reported
	// completion. It is not a failure.
	ErrSessionFinished = errors.New("analysis finished")
	// ErrCapacityExceeded is returned when a point is added to a full draft.
	ErrCapacityExceeded = fmt.Errorf("zone already has %d points", ZonePoints)
	// ErrIncompleteZone is returned when saving a draft without 4 points or a name.
	ErrIncompleteZone = errors.New("zone is incomplete")
	// ErrAlreadyRunning is returned by Start on a session that is already running.
	ErrAlreadyRunning = errors.New("analysis already running")
)

// BackendError is a non-success response from the vision backend. Message is
// the backend's own text and is shown to the operator verbatim.
type BackendError struct {
	StatusCode int
	Message    string
}

func (e *BackendError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned status %d", e.StatusCode)
	}
	return e.Message
}

// Unwrap lets errors.Is(err, ErrBackendRejected) match.
func (e *BackendError) Unwrap() error {
	return ErrBackendRejected
}
