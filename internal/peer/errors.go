package peer

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownPeer       = errors.New("unknown peer")
	ErrMediaNotReady     = errors.New("local media not ready")
	ErrConnectionFailed  = errors.New("connection failed")
	ErrChannelNotOpen    = errors.New("channel not open")
	ErrLinkClosed        = errors.New("link closed")
	ErrNoVideoSender     = errors.New("no video sender")
	ErrUnexpectedSignal  = errors.New("unexpected signal type")
	ErrNegotiationFailed = errors.New("negotiation failed")
)

type PeerError struct {
	Op          string
	Participant string
	Err         error
	Details     string
}

func (e *PeerError) Error() string {
	if e.Participant != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Participant, e.Err)
	}
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PeerError) Unwrap() error {
	return e.Err
}

func NewError(op string, err error) *PeerError {
	return &PeerError{Op: op, Err: err}
}

func NewPeerError(op, participant string, err error) *PeerError {
	return &PeerError{Op: op, Participant: participant, Err: err}
}

func WrapError(op string, err error, details string) *PeerError {
	return &PeerError{Op: op, Err: err, Details: details}
}
