package command

import (
	"errors"
	"fmt"
)

var (
	// ErrContextUnavailable means the store could not supply a snapshot.
	// The whole command aborts; no partial context is ever used.
	ErrContextUnavailable = errors.New("context unavailable")

	// ErrProtocolViolation means the completion service replied outside
	// the declared contract (unknown tool, undecodable arguments).
	ErrProtocolViolation = errors.New("protocol violation")

	// ErrEnvelopeNotFound means a confirm/cancel referenced an envelope
	// that was never issued or has already expired.
	ErrEnvelopeNotFound = errors.New("envelope not found")
)

// ValidationError reports that a single action's preconditions no longer
// hold at execution time. It is surfaced per action, never fatally.
type ValidationError struct {
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", e.Reason)
}
