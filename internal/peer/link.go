package peer

import (
	"log/slog"
	"sync/atomic"
	"time"

	pion "github.com/pion/webrtc/v4"
)

// LinkState tracks where a peer link is in its negotiation lifecycle.
type LinkState int

const (
	LinkNew LinkState = iota
	LinkOffering
	LinkAnswering
	LinkConnected
	LinkReconnecting
	LinkFailed
	LinkClosed
)

func (s LinkState) String() string {
	switch s {
	case LinkNew:
		return "new"
	case LinkOffering:
		return "offering"
	case LinkAnswering:
		return "answering"
	case LinkConnected:
		return "connected"
	case LinkReconnecting:
		return "reconnecting"
	case LinkFailed:
		return "failed"
	case LinkClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Link is the session-side record of one remote participant's transport.
// All fields except lastActivity are owned by the session loop.
type Link struct {
	participantID string
	conn          Connection
	state         LinkState
	initiator     bool

	// Candidates that arrived before the remote description. Applied in
	// arrival order exactly once, then the buffer stays retired.
	pendingCandidates []pion.ICECandidateInit
	remoteDescribed   bool

	remoteAudio bool
	remoteVideo bool
	displayName string

	// Unix nanoseconds of the last observed inbound RTP packet. Written
	// from the transport read loop, read by the health monitor.
	lastActivity atomic.Int64
}

func newLink(participantID string, conn Connection, initiator bool) *Link {
	return &Link{
		participantID: participantID,
		conn:          conn,
		state:         LinkNew,
		initiator:     initiator,
	}
}

// ParticipantID returns the remote participant this link serves.
func (l *Link) ParticipantID() string { return l.participantID }

// State returns the current lifecycle state.
func (l *Link) State() LinkState { return l.state }

// DisplayName returns the name announced on the control channel, or ""
// before the hello arrives.
func (l *Link) DisplayName() string { return l.displayName }

// RemoteHasVideo reports whether a remote video track has been observed.
func (l *Link) RemoteHasVideo() bool { return l.remoteVideo }

// RemoteHasAudio reports whether a remote audio track has been observed.
func (l *Link) RemoteHasAudio() bool { return l.remoteAudio }

// LastActivity returns the time of the most recent inbound packet and
// whether any packet has been seen at all.
func (l *Link) LastActivity() (time.Time, bool) {
	nanos := l.lastActivity.Load()
	if nanos == 0 {
		return time.Time{}, false
	}
	return time.Unix(0, nanos), true
}

func (l *Link) noteActivity(at time.Time) {
	l.lastActivity.Store(at.UnixNano())
}

// addCandidate buffers the candidate until the remote description is
// set, then applies it directly. Application failures are tolerated; a
// single bad candidate must not kill the link.
func (l *Link) addCandidate(candidate pion.ICECandidateInit) {
	if l.state == LinkClosed || l.state == LinkFailed {
		return
	}
	if !l.remoteDescribed {
		l.pendingCandidates = append(l.pendingCandidates, candidate)
		return
	}
	if err := l.conn.AddICECandidate(candidate); err != nil {
		slog.Warn("Discarding ICE candidate", "peer", l.participantID, "error", err)
	}
}

// markRemoteDescribed records that the remote description is in place
// and flushes buffered candidates in their arrival order.
func (l *Link) markRemoteDescribed() {
	l.remoteDescribed = true
	for _, candidate := range l.pendingCandidates {
		if err := l.conn.AddICECandidate(candidate); err != nil {
			slog.Warn("Discarding buffered ICE candidate", "peer", l.participantID, "error", err)
		}
	}
	l.pendingCandidates = nil
}

func (l *Link) close() {
	if l.state == LinkClosed {
		return
	}
	l.state = LinkClosed
	l.pendingCandidates = nil
	if err := l.conn.Close(); err != nil {
		slog.Debug("Error closing peer connection", "peer", l.participantID, "error", err)
	}
}
