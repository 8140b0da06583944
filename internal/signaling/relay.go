package signaling

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Relay is the room-scoped signaling switchboard. It is the single
// place holding room state: who hosts, who has joined, who is still
// waiting for admission. The production deployment serves it over
// websockets (see Server); tests attach in-process Endpoints directly,
// so an orchestrator can be exercised against the exact same routing
// logic that runs in the dev relay.
type Relay struct {
	mu    sync.Mutex
	rooms map[string]*relayRoom
}

type relayRoom struct {
	id      string
	host    *Endpoint
	members map[string]*Endpoint // joined the call (sent join-room)
	waiting map[string]*Endpoint // requested to join, undecided
}

// NewRelay creates an empty relay.
func NewRelay() *Relay {
	return &Relay{rooms: make(map[string]*relayRoom)}
}

// CreateRoom mints a new room id and registers the room.
func (r *Relay) CreateRoom() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := uuid.NewString()
	r.rooms[id] = &relayRoom{
		id:      id,
		members: make(map[string]*Endpoint),
		waiting: make(map[string]*Endpoint),
	}
	return id
}

// RoomExists reports whether a room id is known.
func (r *Relay) RoomExists(roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.rooms[roomID]
	return ok
}

// Endpoint attaches a new client to a room and returns its Channel.
// The first endpoint attached with asHost set becomes the room's host.
func (r *Relay) Endpoint(roomID string, asHost bool) *Endpoint {
	return &Endpoint{
		relay:    r,
		roomID:   roomID,
		id:       uuid.NewString(),
		asHost:   asHost,
		incoming: make(chan *Message, 64),
	}
}

// Endpoint is one attached client. It implements Channel.
type Endpoint struct {
	relay    *Relay
	roomID   string
	id       string
	asHost   bool
	incoming chan *Message
	joined   bool
	closed   bool
}

var _ Channel = (*Endpoint)(nil)

// ID returns the relay-assigned participant id. Also delivered via the
// welcome message on Connect.
func (e *Endpoint) ID() string { return e.id }

// Connect registers the endpoint with its room and delivers welcome.
func (e *Endpoint) Connect() error {
	r := e.relay
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[e.roomID]
	if !ok {
		return ErrDisconnected
	}
	if e.asHost && room.host == nil {
		room.host = e
	}
	e.deliver(&Message{Type: TypeWelcome, RoomID: e.roomID, UserID: e.id})
	return nil
}

// Incoming returns the channel for receiving messages.
func (e *Endpoint) Incoming() <-chan *Message { return e.incoming }

// Send routes a message through the relay. Routing mirrors the
// production relay contract: directed messages go to To with From
// filled in, announcements fan out to every other joined member.
func (e *Endpoint) Send(msg *Message) {
	r := e.relay
	r.mu.Lock()
	defer r.mu.Unlock()

	if e.closed {
		return
	}
	room, ok := r.rooms[e.roomID]
	if !ok {
		e.deliver(&Message{Type: TypeError, Error: "room not found"})
		return
	}

	switch msg.Type {
	case TypeJoinRoom:
		delete(room.waiting, e.id)
		e.joined = true
		room.members[e.id] = e
		for id, other := range room.members {
			if id != e.id {
				other.deliver(&Message{Type: TypeUserJoined, RoomID: room.id, UserID: e.id})
			}
		}

	case TypeRequestToJoin:
		room.waiting[e.id] = e
		if room.host != nil {
			room.host.deliver(&Message{
				Type:   TypeRequestToJoin,
				RoomID: room.id,
				From:   e.id,
				UserID: e.id,
				Name:   msg.Name,
			})
		}

	case TypeAcceptJoin, TypeRejectJoin:
		if e != room.host {
			e.deliver(&Message{Type: TypeError, Error: "only the host decides admission"})
			return
		}
		if guest, ok := room.waiting[msg.To]; ok {
			guest.deliver(&Message{Type: msg.Type, RoomID: room.id, From: e.id})
			if msg.Type == TypeRejectJoin {
				delete(room.waiting, msg.To)
			}
		}

	case TypeOffer, TypeAnswer, TypeICECandidate:
		if target, ok := room.members[msg.To]; ok {
			out := *msg
			out.From = e.id
			out.To = ""
			target.deliver(&out)
		}

	case TypeRaiseHand:
		for id, other := range room.members {
			if id != e.id {
				other.deliver(&Message{Type: TypeRaiseHand, RoomID: room.id, From: e.id, Raised: msg.Raised})
			}
		}

	case TypeSendMessage:
		ts := msg.Timestamp
		if ts == 0 {
			ts = time.Now().UnixMilli()
		}
		for id, other := range room.members {
			if id != e.id {
				other.deliver(&Message{
					Type:      TypeReceiveMessage,
					RoomID:    room.id,
					From:      e.id,
					Text:      msg.Text,
					Timestamp: ts,
				})
			}
		}

	default:
		slog.Debug("relay dropped message", "type", msg.Type, "from", e.id)
	}
}

// Close detaches the endpoint. Joined members are announced as left;
// an empty room is deleted. Idempotent.
func (e *Endpoint) Close() {
	r := e.relay
	r.mu.Lock()
	defer r.mu.Unlock()

	if e.closed {
		return
	}
	e.closed = true
	close(e.incoming)

	room, ok := r.rooms[e.roomID]
	if !ok {
		return
	}
	delete(room.waiting, e.id)
	if e.joined {
		delete(room.members, e.id)
		for _, other := range room.members {
			other.deliver(&Message{Type: TypeUserLeft, RoomID: room.id, UserID: e.id})
		}
	}
	if room.host == e {
		room.host = nil
	}
	if len(room.members) == 0 && len(room.waiting) == 0 && room.host == nil {
		delete(r.rooms, room.id)
	}
}

// deliver queues a message on the endpoint, dropping when the consumer
// is too far behind. Caller holds the relay lock.
func (e *Endpoint) deliver(msg *Message) {
	if e.closed {
		return
	}
	select {
	case e.incoming <- msg:
	default:
		slog.Warn("relay endpoint backlogged, dropping", "type", msg.Type, "endpoint", e.id)
	}
}
