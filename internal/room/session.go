// Package room is the top-level session orchestrator: it composes the
// signaling channel, local media, peer links, admission, health and
// speaker monitors, and publishes a read-only view snapshot after every
// processed event.
//
// Concurrency model: one event loop goroutine. Signaling messages,
// transport events, timer ticks, and action hooks all serialize through
// that loop; each handler runs to completion before the next dequeues.
package room

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/huddlemesh/huddle/internal/admission"
	"github.com/huddlemesh/huddle/internal/clock"
	"github.com/huddlemesh/huddle/internal/effects"
	"github.com/huddlemesh/huddle/internal/health"
	"github.com/huddlemesh/huddle/internal/media"
	"github.com/huddlemesh/huddle/internal/peer"
	"github.com/huddlemesh/huddle/internal/signaling"
	"github.com/huddlemesh/huddle/internal/speaker"
)

const (
	actionQueueSize   = 64
	chatTranscriptCap = 200
)

// Options wires a Session. Channel, Media and Factory are injected so
// the whole engine runs against the in-memory relay and scripted
// transports in tests.
type Options struct {
	RoomID      string
	DisplayName string
	Role        Role
	Version     string

	Channel signaling.Channel
	Media   *media.Controller
	Factory peer.Factory
	Clock   clock.Clock
}

// Session is one participant's presence in a room.
type Session struct {
	roomID  string
	name    string
	role    Role
	version string

	channel  signaling.Channel
	local    *media.Controller
	manager  *peer.Manager
	adm      *admission.Controller
	monitor  *health.Monitor
	speaker  *speaker.Monitor
	pipeline *effects.Pipeline
	clk      clock.Clock

	// Loop-owned state.
	selfID        string
	selfAdmission admission.State
	order         []string
	names         map[string]string
	raised        map[string]bool
	selfRaised    bool
	speaking      bool
	level         float64
	pinned        string
	spotlight     bool
	panels        Panels
	chat          []ChatMessage
	incoming      <-chan *signaling.Message

	actions  chan func()
	updates  chan Snapshot
	done     chan struct{}
	finished chan struct{}
	leave    sync.Once

	errMu sync.Mutex
	err   error
}

func NewSession(opts Options) *Session {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}

	s := &Session{
		roomID:        opts.RoomID,
		name:          opts.DisplayName,
		role:          opts.Role,
		version:       opts.Version,
		channel:       opts.Channel,
		local:         opts.Media,
		adm:           admission.NewController(),
		speaker:       speaker.NewMonitor(nil),
		pipeline:      effects.NewPipeline(),
		clk:           opts.Clock,
		selfAdmission: admission.NotRequested,
		names:         make(map[string]string),
		raised:        make(map[string]bool),
		actions:       make(chan func(), actionQueueSize),
		updates:       make(chan Snapshot, 1),
		done:          make(chan struct{}),
		finished:      make(chan struct{}),
	}

	s.manager = peer.NewManager(opts.Factory, opts.Media, s.channel.Send, s.postPeerEvent)
	s.monitor = health.NewMonitor(s.manager, s.manager.RestartICE)
	return s
}

// Start acquires local media, connects the signaling channel, and runs
// the event loop. Media comes first: no peer link ever exists without
// local tracks behind it.
func (s *Session) Start(ctx context.Context) error {
	if err := s.local.Acquire(ctx, media.Constraints{Audio: true, Video: true}); err != nil {
		return NewError("acquire media", err)
	}
	s.speaker.SetSampler(s.local.AudioSampler())

	if err := s.channel.Connect(); err != nil {
		s.local.Close()
		return NewError("connect signaling", err)
	}
	s.incoming = s.channel.Incoming()

	go s.run(ctx)
	return nil
}

// Updates delivers view snapshots, latest wins. Slow consumers only
// ever miss intermediate states, never the newest one.
func (s *Session) Updates() <-chan Snapshot { return s.updates }

// Done closes when the session has fully torn down.
func (s *Session) Done() <-chan struct{} { return s.finished }

// Err returns the terminal error, if any, once Done is closed.
func (s *Session) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// Leave tears the session down: all local tracks stopped, every peer
// link closed, channel closed. Safe to call repeatedly and
// mid-negotiation.
func (s *Session) Leave() {
	s.leave.Do(func() { close(s.done) })
}

func (s *Session) run(ctx context.Context) {
	ticker := s.clk.NewTicker(health.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-s.incoming:
			if !ok {
				// Relay gap. Reconnection is the channel's concern; peer
				// links stay intact and keep flowing over ICE.
				slog.Warn("Signaling channel lost")
				s.incoming = nil
				continue
			}
			s.handleMessage(msg)
		case fn := <-s.actions:
			fn()
		case <-ticker.C:
			s.handleTick()
		case <-ctx.Done():
			s.teardown(ctx.Err())
			return
		case <-s.done:
			s.teardown(nil)
			return
		}

		select {
		case <-s.finished:
			return
		default:
		}
		s.publish()
	}
}

func (s *Session) teardown(err error) {
	s.local.Close()
	s.manager.CloseAll()
	s.channel.Close()

	s.errMu.Lock()
	s.err = err
	s.errMu.Unlock()
	close(s.finished)
}

func (s *Session) handleMessage(msg *signaling.Message) {
	switch msg.Type {
	case signaling.TypeWelcome:
		s.handleWelcome(msg.UserID)
	case signaling.TypeAcceptJoin:
		s.handleAccepted()
	case signaling.TypeRejectJoin:
		s.handleRejected()
	case signaling.TypeUserJoined:
		s.handleUserJoined(msg.UserID)
	case signaling.TypeUserLeft:
		s.handleUserLeft(msg.UserID)
	case signaling.TypeRequestToJoin:
		s.handleJoinRequest(msg.From, msg.Name)
	case signaling.TypeOffer:
		s.handleOffer(msg.From, msg.SDP)
	case signaling.TypeAnswer:
		if err := s.manager.HandleAnswer(msg.From, msg.SDP); err != nil {
			slog.Error("Answer handling failed", "peer", msg.From, "error", err)
		}
	case signaling.TypeICECandidate:
		if msg.Candidate != nil {
			s.manager.HandleCandidate(msg.From, *msg.Candidate)
		}
	case signaling.TypeRaiseHand:
		if _, ok := s.names[msg.From]; ok || s.knownParticipant(msg.From) {
			s.raised[msg.From] = msg.Raised
		}
	case signaling.TypeReceiveMessage:
		s.appendChat(ChatMessage{
			From:        msg.From,
			DisplayName: s.displayName(msg.From),
			Text:        msg.Text,
			At:          time.UnixMilli(msg.Timestamp),
		})
	case signaling.TypeError:
		slog.Warn("Relay error", "error", msg.Error)
	default:
		slog.Debug("Ignoring signaling message", "type", string(msg.Type))
	}
}

// handleWelcome fixes the self id and starts the admission flow: hosts
// self-admit and announce, guests knock.
func (s *Session) handleWelcome(userID string) {
	s.selfID = userID
	s.manager.SetSession(s.roomID, s.selfID)
	s.manager.SetHello(s.name, s.version)

	if s.role == RoleHost {
		s.adm.MarkApproved(s.selfID)
		s.selfAdmission = admission.Approved
		s.channel.Send(&signaling.Message{Type: signaling.TypeJoinRoom, RoomID: s.roomID})
		return
	}

	s.selfAdmission = admission.PendingApproval
	s.channel.Send(&signaling.Message{
		Type:   signaling.TypeRequestToJoin,
		RoomID: s.roomID,
		Name:   s.name,
	})
}

func (s *Session) handleAccepted() {
	if s.selfAdmission != admission.PendingApproval {
		return
	}
	s.selfAdmission = admission.Approved
	s.adm.MarkApproved(s.selfID)
	s.channel.Send(&signaling.Message{Type: signaling.TypeJoinRoom, RoomID: s.roomID})
}

func (s *Session) handleRejected() {
	if s.selfAdmission != admission.PendingApproval {
		return
	}
	s.selfAdmission = admission.Rejected
	s.teardown(ErrAdmissionRejected)
}

func (s *Session) handleUserJoined(userID string) {
	if userID == "" || userID == s.selfID {
		return
	}
	if s.selfAdmission != admission.Approved {
		return
	}

	s.addParticipant(userID)
	if err := s.manager.HandleUserJoined(userID); err != nil {
		slog.Error("Failed to open peer link", "peer", userID, "error", err)
		return
	}
	s.monitor.Track(userID)
}

func (s *Session) handleUserLeft(userID string) {
	s.manager.HandleUserLeft(userID)
	s.monitor.Forget(userID)
	s.adm.Forget(userID)
	s.removeParticipant(userID)
	delete(s.raised, userID)
	delete(s.names, userID)
	if s.pinned == userID {
		s.pinned = ""
	}
}

func (s *Session) handleJoinRequest(from, name string) {
	if s.role != RoleHost {
		slog.Warn("Join request delivered to non-host", "from", from)
		return
	}
	if s.adm.Enqueue(from, name) {
		s.names[from] = name
	}
}

// handleOffer also learns about existing room members: the relay only
// announces joins to members already present, so a newcomer first sees
// its elders through their offers.
func (s *Session) handleOffer(from, sdp string) {
	if s.selfAdmission != admission.Approved {
		slog.Warn("Offer before admission, ignoring", "peer", from)
		return
	}

	s.addParticipant(from)
	if err := s.manager.HandleOffer(from, sdp); err != nil {
		slog.Error("Offer handling failed", "peer", from, "error", err)
		return
	}
	s.monitor.Track(from)
}

func (s *Session) handlePeerEvent(ev peer.Event) {
	switch ev := ev.(type) {
	case peer.ConnectionStateEvent:
		s.manager.NoteConnectionState(ev.ParticipantID, ev.State)
	case peer.ICEStateEvent:
		s.monitor.NoteICEState(ev.ParticipantID, ev.State.String())
	case peer.TrackEvent:
		s.manager.NoteRemoteTrack(ev.ParticipantID, ev.Kind)
	case peer.HelloEvent:
		s.manager.NoteHello(ev.ParticipantID, ev.Name)
		s.names[ev.ParticipantID] = ev.Name
	}
}

func (s *Session) handleTick() {
	s.monitor.Sweep(s.clk.Now())
	s.level, s.speaking = s.speaker.Poll()
}

// Action hooks. Each posts onto the event loop; mutating hooks wait for
// the loop to run them so callers observe the result.

// Pin toggles the explicit main-stream pin. Pinning the pinned stream
// unpins it.
func (s *Session) Pin(participantID string) error {
	return s.do(func() error {
		if participantID != s.selfID && !s.knownParticipant(participantID) {
			return NewParticipantError("pin", participantID, ErrUnknownParticipant)
		}
		if s.pinned == participantID {
			s.pinned = ""
		} else {
			s.pinned = participantID
		}
		return nil
	})
}

// ToggleScreenShare switches the outgoing video between camera and
// screen and propagates the replacement track to every peer link. The
// whole swap runs as one loop action, so no handler ever observes a
// half-switched track set.
func (s *Session) ToggleScreenShare(ctx context.Context) error {
	return s.do(func() error {
		target := media.SourceScreen
		if s.local.Source() == media.SourceScreen {
			target = media.SourceCamera
		}

		track, err := s.local.SwitchVideoSource(ctx, target)
		if err != nil {
			return NewError("switch video source", err)
		}
		s.manager.ReplaceVideoTrack(track.TrackLocal())
		return nil
	})
}

// ToggleAudio flips the local microphone mute.
func (s *Session) ToggleAudio() error {
	return s.do(func() error {
		if _, err := s.local.ToggleAudio(); err != nil {
			return NewError("toggle audio", err)
		}
		return nil
	})
}

// ToggleVideo flips the local camera mute.
func (s *Session) ToggleVideo() error {
	return s.do(func() error {
		if _, err := s.local.ToggleVideo(); err != nil {
			return NewError("toggle video", err)
		}
		return nil
	})
}

// Approve admits a waiting guest. Host only.
func (s *Session) Approve(participantID string) error {
	return s.do(func() error {
		if s.role != RoleHost {
			return NewError("approve", ErrNotHost)
		}
		if !s.adm.Approve(participantID) {
			return NewParticipantError("approve", participantID, ErrUnknownParticipant)
		}
		s.channel.Send(&signaling.Message{
			Type:   signaling.TypeAcceptJoin,
			RoomID: s.roomID,
			To:     participantID,
		})
		return nil
	})
}

// Reject turns a waiting guest away. Host only.
func (s *Session) Reject(participantID string) error {
	return s.do(func() error {
		if s.role != RoleHost {
			return NewError("reject", ErrNotHost)
		}
		if !s.adm.Reject(participantID) {
			return NewParticipantError("reject", participantID, ErrUnknownParticipant)
		}
		delete(s.names, participantID)
		s.channel.Send(&signaling.Message{
			Type:   signaling.TypeRejectJoin,
			RoomID: s.roomID,
			To:     participantID,
		})
		return nil
	})
}

// RaiseHand sets the local raised-hand flag and broadcasts it.
func (s *Session) RaiseHand(raised bool) error {
	return s.do(func() error {
		s.selfRaised = raised
		s.channel.Send(&signaling.Message{
			Type:   signaling.TypeRaiseHand,
			RoomID: s.roomID,
			Raised: raised,
		})
		return nil
	})
}

// SendChat broadcasts a chat message and records it locally; the relay
// only fans messages out to the other members.
func (s *Session) SendChat(text string) error {
	return s.do(func() error {
		s.channel.Send(&signaling.Message{
			Type:   signaling.TypeSendMessage,
			RoomID: s.roomID,
			Text:   text,
		})
		s.appendChat(ChatMessage{
			From:        s.selfID,
			DisplayName: s.name,
			Text:        text,
			At:          s.clk.Now(),
		})
		return nil
	})
}

// SetBackground selects the local background effect.
func (s *Session) SetBackground(bg effects.Background) error {
	return s.do(func() error { return s.pipeline.SetBackground(bg) })
}

// SetFilter selects the local style filter.
func (s *Session) SetFilter(f effects.Filter) error {
	return s.do(func() error { return s.pipeline.SetFilter(f) })
}

// SetBrightness adjusts the local brightness percentage.
func (s *Session) SetBrightness(percent int) error {
	return s.do(func() error { return s.pipeline.SetBrightness(percent) })
}

// SetContrast adjusts the local contrast percentage.
func (s *Session) SetContrast(percent int) error {
	return s.do(func() error { return s.pipeline.SetContrast(percent) })
}

// ResetEffects restores both effect categories to none.
func (s *Session) ResetEffects() error {
	return s.do(func() error { s.pipeline.Reset(); return nil })
}

// ToggleSpotlight flips speaker-follows-main mode.
func (s *Session) ToggleSpotlight() error {
	return s.do(func() error { s.spotlight = !s.spotlight; return nil })
}

// TogglePanel flips one presentation panel's visibility flag.
func (s *Session) TogglePanel(p Panel) error {
	return s.do(func() error {
		switch p {
		case PanelChat:
			s.panels.Chat = !s.panels.Chat
		case PanelParticipants:
			s.panels.Participants = !s.panels.Participants
		case PanelInfo:
			s.panels.Info = !s.panels.Info
		case PanelEffects:
			s.panels.Effects = !s.panels.Effects
		}
		return nil
	})
}

func (s *Session) postPeerEvent(ev peer.Event) {
	s.post(func() { s.handlePeerEvent(ev) })
}

func (s *Session) post(fn func()) bool {
	select {
	case s.actions <- fn:
		return true
	case <-s.finished:
		return false
	}
}

func (s *Session) do(fn func() error) error {
	errc := make(chan error, 1)
	if !s.post(func() { errc <- fn() }) {
		return ErrSessionClosed
	}
	select {
	case err := <-errc:
		return err
	case <-s.finished:
		return ErrSessionClosed
	}
}

func (s *Session) addParticipant(id string) {
	if id == s.selfID || s.knownParticipant(id) {
		return
	}
	s.order = append(s.order, id)
}

func (s *Session) removeParticipant(id string) {
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

func (s *Session) knownParticipant(id string) bool {
	for _, existing := range s.order {
		if existing == id {
			return true
		}
	}
	return false
}

func (s *Session) displayName(id string) string {
	if id == s.selfID {
		return s.name
	}
	if name, ok := s.names[id]; ok && name != "" {
		return name
	}
	if info, ok := s.manager.Info(id); ok && info.DisplayName != "" {
		return info.DisplayName
	}
	return id
}

func (s *Session) appendChat(msg ChatMessage) {
	s.chat = append(s.chat, msg)
	if len(s.chat) > chatTranscriptCap {
		s.chat = s.chat[len(s.chat)-chatTranscriptCap:]
	}
}

// mainStream applies the selection policy: explicit pin first, then
// the spotlit speaker, then the first remote stream, then local.
func (s *Session) mainStream() string {
	if s.pinned != "" {
		return s.pinned
	}
	if s.spotlight && s.speaking {
		return s.selfID
	}
	if len(s.order) > 0 {
		return s.order[0]
	}
	return s.selfID
}

func (s *Session) snapshot() Snapshot {
	main := s.mainStream()

	var grid []string
	if s.selfID != main {
		grid = append(grid, s.selfID)
	}
	participants := make([]ParticipantView, 0, len(s.order))
	for _, id := range s.order {
		if id != main {
			grid = append(grid, id)
		}
		info, _ := s.manager.Info(id)
		participants = append(participants, ParticipantView{
			ID:          id,
			DisplayName: s.displayName(id),
			RaisedHand:  s.raised[id],
			Quality:     s.monitor.Quality(id),
			HasVideo:    info.HasVideo,
			LinkState:   info.State,
		})
	}

	return Snapshot{
		RoomID: s.roomID,
		Self: ParticipantView{
			ID:          s.selfID,
			DisplayName: s.name,
			RaisedHand:  s.selfRaised,
			Speaking:    s.speaking,
			AudioLevel:  s.level,
			HasVideo:    s.local.HasVideo() && s.local.VideoEnabled(),
		},
		Role:            s.role,
		Admission:       s.selfAdmission,
		Participants:    participants,
		PendingRequests: s.adm.Pending(),
		MainStream:      main,
		GridStreams:     grid,
		PinnedID:        s.pinned,
		Spotlight:       s.spotlight,
		ScreenSharing:   s.local.Source() == media.SourceScreen,
		AudioEnabled:    s.local.AudioEnabled(),
		VideoEnabled:    s.local.VideoEnabled(),
		Effects:         s.pipeline.Descriptor(),
		Chat:            append([]ChatMessage(nil), s.chat...),
		Panels:          s.panels,
	}
}

// publish replaces any unconsumed snapshot with the current one.
func (s *Session) publish() {
	snap := s.snapshot()
	for {
		select {
		case s.updates <- snap:
			return
		default:
		}
		select {
		case <-s.updates:
		default:
		}
	}
}
