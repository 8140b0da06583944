package room

import (
	"errors"
	"fmt"
)

var (
	// ErrAdmissionRejected ends a guest session: the host declined the
	// join request. No retry.
	ErrAdmissionRejected = errors.New("join request rejected by host")

	// ErrSessionClosed reports an action against a session that already
	// tore down.
	ErrSessionClosed = errors.New("session closed")

	// ErrNotHost reports a host-only action from a guest session.
	ErrNotHost = errors.New("not the room host")

	// ErrUnknownParticipant reports an action naming a participant the
	// session has never seen.
	ErrUnknownParticipant = errors.New("unknown participant")
)

type SessionError struct {
	Op          string
	Participant string
	Err         error
	Details     string
}

func (e *SessionError) Error() string {
	if e.Participant != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Participant, e.Err)
	}
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

func NewError(op string, err error) *SessionError {
	return &SessionError{Op: op, Err: err}
}

func NewParticipantError(op, participant string, err error) *SessionError {
	return &SessionError{Op: op, Participant: participant, Err: err}
}
