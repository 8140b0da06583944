package peer

import (
	"log/slog"
	"sync"
	"time"

	"github.com/huddlemesh/huddle/internal/media"
	"github.com/huddlemesh/huddle/internal/signaling"
	pion "github.com/pion/webrtc/v4"
)

// Event is a transport notification handed to the session loop. The
// loop drains events one at a time and calls back into the Manager, so
// link state only ever changes on that goroutine.
type Event any

// ConnectionStateEvent reports a peer connection state change.
type ConnectionStateEvent struct {
	ParticipantID string
	State         pion.PeerConnectionState
}

// ICEStateEvent reports an ICE connection state change.
type ICEStateEvent struct {
	ParticipantID string
	State         pion.ICEConnectionState
}

// TrackEvent reports the first packet-bearing sight of a remote track.
type TrackEvent struct {
	ParticipantID string
	Kind          pion.RTPCodecType
}

// HelloEvent reports the remote participant's control channel greeting.
type HelloEvent struct {
	ParticipantID string
	Name          string
	Version       string
}

// LinkInfo is a read-only snapshot of one link for the view model.
type LinkInfo struct {
	ParticipantID string
	State         LinkState
	DisplayName   string
	HasAudio      bool
	HasVideo      bool
}

// Manager keeps one Link per admitted remote participant and drives
// offer/answer exchange over the signaling channel. All exported
// methods except LastActivity must be called from the session loop.
type Manager struct {
	factory Factory
	local   *media.Controller
	send    func(*signaling.Message)
	emit    func(Event)

	roomID string
	selfID string
	hello  HelloPayload

	// Guards the links map for the transport-goroutine readers
	// (activity notes). Link internals stay loop-owned.
	mu    sync.RWMutex
	links map[string]*Link
}

func NewManager(factory Factory, local *media.Controller, send func(*signaling.Message), emit func(Event)) *Manager {
	return &Manager{
		factory: factory,
		local:   local,
		send:    send,
		emit:    emit,
		links:   make(map[string]*Link),
	}
}

// SetSession fixes the room and self identifiers before any link is
// created.
func (m *Manager) SetSession(roomID, selfID string) {
	m.roomID = roomID
	m.selfID = selfID
}

// SetHello sets the greeting announced to every new peer.
func (m *Manager) SetHello(name, version string) {
	m.hello = HelloPayload{Name: name, Version: version}
}

// HandleUserJoined opens an initiator link toward a newly announced
// participant and sends the offer. Duplicate announcements are ignored.
func (m *Manager) HandleUserJoined(participantID string) error {
	if m.hasLink(participantID) {
		slog.Debug("Link already exists", "peer", participantID)
		return nil
	}

	link, err := m.openLink(participantID, true)
	if err != nil {
		return err
	}

	link.state = LinkOffering
	sdp, err := link.conn.CreateOffer(false)
	if err != nil {
		m.failLink(link)
		return NewPeerError("offer", participantID, err)
	}

	m.send(&signaling.Message{
		Type:   signaling.TypeOffer,
		RoomID: m.roomID,
		To:     participantID,
		SDP:    sdp,
	})
	return nil
}

// HandleOffer answers an incoming offer. When both sides offered at
// once, the side with the lexicographically smaller identifier wins the
// glare and the loser discards its own attempt and answers instead.
func (m *Manager) HandleOffer(from, sdp string) error {
	if link, ok := m.getLink(from); ok {
		switch link.state {
		case LinkOffering:
			if from < m.selfID {
				slog.Debug("Offer glare, remote wins", "peer", from)
				m.removeLink(link)
			} else {
				slog.Debug("Offer glare, local wins", "peer", from)
				return nil
			}
		case LinkConnected, LinkReconnecting:
			// Renegotiation on the live transport, typically a remote
			// ICE restart.
			answer, err := link.conn.AcceptOffer(sdp)
			if err != nil {
				m.failLink(link)
				return NewPeerError("renegotiate", from, err)
			}
			m.sendAnswer(from, answer)
			return nil
		default:
			slog.Warn("Unexpected offer", "peer", from, "state", link.state.String())
			return nil
		}
	}

	link, err := m.openLink(from, false)
	if err != nil {
		return err
	}

	link.state = LinkAnswering
	answer, err := link.conn.AcceptOffer(sdp)
	if err != nil {
		m.failLink(link)
		return NewPeerError("answer", from, err)
	}
	link.markRemoteDescribed()

	m.sendAnswer(from, answer)
	return nil
}

// HandleAnswer completes a negotiation this side initiated.
func (m *Manager) HandleAnswer(from, sdp string) error {
	link, ok := m.getLink(from)
	if !ok {
		return NewPeerError("answer", from, ErrUnknownPeer)
	}
	if link.state != LinkOffering && link.state != LinkReconnecting {
		slog.Warn("Unexpected answer", "peer", from, "state", link.state.String())
		return nil
	}

	if err := link.conn.AcceptAnswer(sdp); err != nil {
		m.failLink(link)
		return NewPeerError("accept answer", from, err)
	}
	link.markRemoteDescribed()
	return nil
}

// HandleCandidate routes a remote ICE candidate to its link. Candidates
// for unknown peers are dropped; a malformed candidate never tears the
// link down.
func (m *Manager) HandleCandidate(from string, candidate pion.ICECandidateInit) {
	link, ok := m.getLink(from)
	if !ok {
		slog.Debug("Candidate for unknown peer", "peer", from)
		return
	}
	link.addCandidate(candidate)
}

// HandleUserLeft tears down the departed participant's link.
func (m *Manager) HandleUserLeft(participantID string) {
	link, ok := m.getLink(participantID)
	if !ok {
		return
	}
	m.removeLink(link)
}

// NoteConnectionState applies a drained ConnectionStateEvent to the
// link lifecycle.
func (m *Manager) NoteConnectionState(participantID string, state pion.PeerConnectionState) {
	link, ok := m.getLink(participantID)
	if !ok || link.state == LinkClosed {
		return
	}

	switch state {
	case pion.PeerConnectionStateConnected:
		link.state = LinkConnected
	case pion.PeerConnectionStateDisconnected:
		link.state = LinkReconnecting
	case pion.PeerConnectionStateFailed:
		link.state = LinkFailed
	case pion.PeerConnectionStateClosed:
		link.state = LinkClosed
	}
}

// NoteRemoteTrack records that a remote media track was observed.
func (m *Manager) NoteRemoteTrack(participantID string, kind pion.RTPCodecType) {
	link, ok := m.getLink(participantID)
	if !ok {
		return
	}
	switch kind {
	case pion.RTPCodecTypeAudio:
		link.remoteAudio = true
	case pion.RTPCodecTypeVideo:
		link.remoteVideo = true
	}
}

// NoteHello records the display name announced over the control channel.
func (m *Manager) NoteHello(participantID, name string) {
	link, ok := m.getLink(participantID)
	if !ok {
		return
	}
	link.displayName = name
}

// RestartICE renegotiates the link with fresh ICE credentials. The
// remote side answers through the normal signaling path.
func (m *Manager) RestartICE(participantID string) error {
	link, ok := m.getLink(participantID)
	if !ok {
		return NewPeerError("restart ICE", participantID, ErrUnknownPeer)
	}
	if link.state == LinkClosed || link.state == LinkFailed {
		return NewPeerError("restart ICE", participantID, ErrLinkClosed)
	}

	link.state = LinkReconnecting
	sdp, err := link.conn.CreateOffer(true)
	if err != nil {
		m.failLink(link)
		return NewPeerError("restart ICE", participantID, err)
	}

	m.send(&signaling.Message{
		Type:   signaling.TypeOffer,
		RoomID: m.roomID,
		To:     participantID,
		SDP:    sdp,
	})
	return nil
}

// ReplaceVideoTrack swaps the outgoing video track on every live link,
// without renegotiation. Per-link failures are logged and skipped.
func (m *Manager) ReplaceVideoTrack(track pion.TrackLocal) {
	for _, link := range m.loopLinks() {
		if link.state == LinkClosed || link.state == LinkFailed {
			continue
		}
		if err := link.conn.ReplaceVideoTrack(track); err != nil {
			slog.Warn("Failed to replace video track", "peer", link.participantID, "error", err)
		}
	}
}

// Info returns the snapshot for one participant.
func (m *Manager) Info(participantID string) (LinkInfo, bool) {
	link, ok := m.getLink(participantID)
	if !ok {
		return LinkInfo{}, false
	}
	return LinkInfo{
		ParticipantID: link.participantID,
		State:         link.state,
		DisplayName:   link.displayName,
		HasAudio:      link.remoteAudio,
		HasVideo:      link.remoteVideo,
	}, true
}

// LastActivity reports the most recent inbound packet time for the
// participant. Safe to call from the health monitor goroutine.
func (m *Manager) LastActivity(participantID string) (time.Time, bool) {
	m.mu.RLock()
	link, ok := m.links[participantID]
	m.mu.RUnlock()
	if !ok {
		return time.Time{}, false
	}
	return link.LastActivity()
}

// CloseAll tears down every link. Used on leave and on fatal session
// errors.
func (m *Manager) CloseAll() {
	for _, link := range m.loopLinks() {
		link.close()
	}
	m.mu.Lock()
	m.links = make(map[string]*Link)
	m.mu.Unlock()
}

func (m *Manager) openLink(participantID string, initiator bool) (*Link, error) {
	tracks := m.local.Tracks()
	if len(tracks) == 0 {
		return nil, NewPeerError("open link", participantID, ErrMediaNotReady)
	}

	conn, err := m.newConnection(participantID, initiator)
	if err != nil {
		return nil, NewPeerError("open link", participantID, err)
	}

	link := newLink(participantID, conn, initiator)
	m.mu.Lock()
	m.links[participantID] = link
	m.mu.Unlock()

	if err := conn.AddLocalTracks(tracks); err != nil {
		m.removeLink(link)
		return nil, NewPeerError("open link", participantID, err)
	}
	if err := conn.SendHello(m.hello); err != nil {
		slog.Warn("Failed to queue hello", "peer", participantID, "error", err)
	}

	return link, nil
}

func (m *Manager) newConnection(participantID string, initiator bool) (Connection, error) {
	hooks := Hooks{
		OnICECandidate: func(candidate pion.ICECandidateInit) {
			c := candidate
			m.send(&signaling.Message{
				Type:      signaling.TypeICECandidate,
				RoomID:    m.roomID,
				To:        participantID,
				Candidate: &c,
			})
		},
		OnConnectionState: func(state pion.PeerConnectionState) {
			m.emit(ConnectionStateEvent{ParticipantID: participantID, State: state})
		},
		OnICEState: func(state pion.ICEConnectionState) {
			m.emit(ICEStateEvent{ParticipantID: participantID, State: state})
		},
		OnRemoteTrack: func(kind pion.RTPCodecType) {
			m.emit(TrackEvent{ParticipantID: participantID, Kind: kind})
		},
		OnHello: func(hello HelloPayload) {
			m.emit(HelloEvent{ParticipantID: participantID, Name: hello.Name, Version: hello.Version})
		},
		OnActivity: func(at time.Time) {
			m.mu.RLock()
			link, ok := m.links[participantID]
			m.mu.RUnlock()
			if ok {
				link.noteActivity(at)
			}
		},
	}
	return m.factory(initiator, hooks)
}

func (m *Manager) sendAnswer(to, sdp string) {
	m.send(&signaling.Message{
		Type:   signaling.TypeAnswer,
		RoomID: m.roomID,
		To:     to,
		SDP:    sdp,
	})
}

func (m *Manager) failLink(link *Link) {
	link.close()
	link.state = LinkFailed
}

func (m *Manager) removeLink(link *Link) {
	link.close()
	m.mu.Lock()
	delete(m.links, link.participantID)
	m.mu.Unlock()
}

func (m *Manager) hasLink(participantID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.links[participantID]
	return ok
}

func (m *Manager) getLink(participantID string) (*Link, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	link, ok := m.links[participantID]
	return link, ok
}

func (m *Manager) loopLinks() []*Link {
	m.mu.RLock()
	defer m.mu.RUnlock()
	links := make([]*Link, 0, len(m.links))
	for _, link := range m.links {
		links = append(links, link)
	}
	return links
}
