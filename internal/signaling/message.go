package signaling

import pion "github.com/pion/webrtc/v4"

// Type discriminates all messages exchanged over the signaling relay.
type Type string

const (
	// Client to relay.
	TypeJoinRoom      Type = "join-room"
	TypeRequestToJoin Type = "request-to-join"
	TypeAcceptJoin    Type = "accept-join"
	TypeRejectJoin    Type = "reject-join"
	TypeRaiseHand     Type = "raise-hand"
	TypeSendMessage   Type = "send-message"

	// Relay to client.
	TypeWelcome        Type = "welcome"
	TypeUserJoined     Type = "user-joined"
	TypeUserLeft       Type = "user-left"
	TypeReceiveMessage Type = "receive-message"
	TypeError          Type = "error"

	// Peer to peer, relayed by recipient id.
	TypeOffer        Type = "offer"
	TypeAnswer       Type = "answer"
	TypeICECandidate Type = "ice-candidate"
)

// Message is the discriminated union carried over the relay. Directed
// messages set To on send; the relay fills From on delivery. Welcome
// is sent once per connection and tells the client its assigned id.
type Message struct {
	Type   Type   `json:"type"`
	RoomID string `json:"room_id,omitempty"`
	From   string `json:"from,omitempty"`
	To     string `json:"to,omitempty"`

	// UserID carries the subject id of welcome, user-joined and
	// user-left messages.
	UserID string `json:"user_id,omitempty"`

	// Name is the display name on request-to-join.
	Name string `json:"name,omitempty"`

	// SDP carries offer/answer session descriptions.
	SDP string `json:"sdp,omitempty"`

	// Candidate carries ICE candidates.
	Candidate *pion.ICECandidateInit `json:"candidate,omitempty"`

	// Raised carries raise-hand state.
	Raised bool `json:"raised,omitempty"`

	// Text and Timestamp carry chat messages (unix millis).
	Text      string `json:"text,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`

	// Error carries relay-side failures (room not found, not a host).
	Error string `json:"error,omitempty"`
}
