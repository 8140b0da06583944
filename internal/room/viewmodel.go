package room

import (
	"time"

	"github.com/huddlemesh/huddle/internal/admission"
	"github.com/huddlemesh/huddle/internal/effects"
	"github.com/huddlemesh/huddle/internal/health"
	"github.com/huddlemesh/huddle/internal/peer"
)

// Role distinguishes the room creator from admitted guests.
type Role int

const (
	RoleGuest Role = iota
	RoleHost
)

func (r Role) String() string {
	if r == RoleHost {
		return "host"
	}
	return "guest"
}

// ParticipantView is one roster row of the snapshot.
type ParticipantView struct {
	ID          string
	DisplayName string
	RaisedHand  bool
	Speaking    bool
	Quality     health.Quality
	AudioLevel  float64
	HasVideo    bool
	LinkState   peer.LinkState
}

// ChatMessage is one entry of the room transcript.
type ChatMessage struct {
	From        string
	DisplayName string
	Text        string
	At          time.Time
}

// Panels carries the presentation layer's visibility toggles. The
// engine only stores them; rendering is the consumer's concern.
type Panels struct {
	Chat         bool
	Participants bool
	Info         bool
	Effects      bool
}

// Panel identifies one toggleable panel.
type Panel int

const (
	PanelChat Panel = iota
	PanelParticipants
	PanelInfo
	PanelEffects
)

// Snapshot is the read-only room view published after every processed
// event. Streams are referenced by participant id; the local stream
// uses the self id.
type Snapshot struct {
	RoomID string
	Self   ParticipantView
	Role   Role

	// Admission is the local participant's own admission state. Hosts
	// are approved implicitly.
	Admission admission.State

	// Participants lists remote participants in join order.
	Participants []ParticipantView

	// PendingRequests is the host's waiting room, FIFO.
	PendingRequests []admission.Request

	MainStream  string
	GridStreams []string
	PinnedID    string
	Spotlight   bool

	ScreenSharing bool
	AudioEnabled  bool
	VideoEnabled  bool

	Effects effects.Descriptor
	Chat    []ChatMessage
	Panels  Panels
}
