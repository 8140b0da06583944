package peer

import (
	"context"
	"errors"
	"testing"

	"github.com/huddlemesh/huddle/internal/media"
	"github.com/huddlemesh/huddle/internal/signaling"
	pion "github.com/pion/webrtc/v4"
)

type stubTrack struct {
	kind    pion.RTPCodecType
	enabled bool
}

func (t *stubTrack) TrackLocal() pion.TrackLocal { return nil }
func (t *stubTrack) Kind() pion.RTPCodecType     { return t.kind }
func (t *stubTrack) SetEnabled(enabled bool)     { t.enabled = enabled }
func (t *stubTrack) Enabled() bool               { return t.enabled }
func (t *stubTrack) Stop()                       {}

type stubProvider struct{}

func (p *stubProvider) Microphone(ctx context.Context) (media.CapturedTrack, error) {
	return &stubTrack{kind: pion.RTPCodecTypeAudio, enabled: true}, nil
}

func (p *stubProvider) Camera(ctx context.Context) (media.CapturedTrack, error) {
	return &stubTrack{kind: pion.RTPCodecTypeVideo, enabled: true}, nil
}

func (p *stubProvider) Screen(ctx context.Context) (media.CapturedTrack, error) {
	return &stubTrack{kind: pion.RTPCodecTypeVideo, enabled: true}, nil
}

// fakeConn scripts a Connection so negotiation order can be asserted
// without a live transport.
type fakeConn struct {
	initiator bool
	hooks     Hooks

	tracksAdded int
	offers      []bool
	answeredSDP []string
	acceptedSDP []string
	candidates  []string
	replaced    []pion.TrackLocal
	hellos      []HelloPayload
	closed      bool

	offerErr     error
	candidateErr error
}

var _ Connection = (*fakeConn)(nil)

func (c *fakeConn) AddLocalTracks(tracks []pion.TrackLocal) error {
	c.tracksAdded += len(tracks)
	return nil
}

func (c *fakeConn) CreateOffer(iceRestart bool) (string, error) {
	if c.offerErr != nil {
		return "", c.offerErr
	}
	c.offers = append(c.offers, iceRestart)
	return "offer-sdp", nil
}

func (c *fakeConn) AcceptOffer(sdp string) (string, error) {
	c.answeredSDP = append(c.answeredSDP, sdp)
	return "answer-sdp", nil
}

func (c *fakeConn) AcceptAnswer(sdp string) error {
	c.acceptedSDP = append(c.acceptedSDP, sdp)
	return nil
}

func (c *fakeConn) AddICECandidate(candidate pion.ICECandidateInit) error {
	if c.candidateErr != nil {
		return c.candidateErr
	}
	c.candidates = append(c.candidates, candidate.Candidate)
	return nil
}

func (c *fakeConn) ReplaceVideoTrack(track pion.TrackLocal) error {
	c.replaced = append(c.replaced, track)
	return nil
}

func (c *fakeConn) SendHello(hello HelloPayload) error {
	c.hellos = append(c.hellos, hello)
	return nil
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

type managerFixture struct {
	manager *Manager
	conns   []*fakeConn
	sent    []*signaling.Message
	events  []Event
}

func newManagerFixture(t *testing.T, selfID string) *managerFixture {
	t.Helper()

	local := media.NewController(&stubProvider{})
	if err := local.Acquire(context.Background(), media.Constraints{Audio: true, Video: true}); err != nil {
		t.Fatalf("acquire media: %v", err)
	}

	f := &managerFixture{}
	factory := func(initiator bool, hooks Hooks) (Connection, error) {
		conn := &fakeConn{initiator: initiator, hooks: hooks}
		f.conns = append(f.conns, conn)
		return conn, nil
	}
	send := func(msg *signaling.Message) { f.sent = append(f.sent, msg) }
	emit := func(ev Event) { f.events = append(f.events, ev) }

	f.manager = NewManager(factory, local, send, emit)
	f.manager.SetSession("room-1", selfID)
	f.manager.SetHello("Riya", "1.0.0")
	return f
}

func candidate(s string) pion.ICECandidateInit {
	return pion.ICECandidateInit{Candidate: s}
}

func TestUserJoinedSendsOffer(t *testing.T) {
	f := newManagerFixture(t, "bbb")

	if err := f.manager.HandleUserJoined("zzz"); err != nil {
		t.Fatalf("HandleUserJoined: %v", err)
	}

	if got, want := len(f.conns), 1; got != want {
		t.Fatalf("connections = %d, want %d", got, want)
	}
	conn := f.conns[0]
	if !conn.initiator {
		t.Error("connection should be initiator")
	}
	if got, want := conn.tracksAdded, 2; got != want {
		t.Errorf("tracks added = %d, want %d", got, want)
	}
	if got, want := len(conn.hellos), 1; got != want {
		t.Fatalf("hellos = %d, want %d", got, want)
	}
	if got, want := conn.hellos[0].Name, "Riya"; got != want {
		t.Errorf("hello name = %q, want %q", got, want)
	}

	if got, want := len(f.sent), 1; got != want {
		t.Fatalf("sent messages = %d, want %d", got, want)
	}
	msg := f.sent[0]
	if msg.Type != signaling.TypeOffer {
		t.Errorf("message type = %q, want %q", msg.Type, signaling.TypeOffer)
	}
	if got, want := msg.To, "zzz"; got != want {
		t.Errorf("message to = %q, want %q", got, want)
	}
	if got, want := msg.SDP, "offer-sdp"; got != want {
		t.Errorf("message sdp = %q, want %q", got, want)
	}

	info, ok := f.manager.Info("zzz")
	if !ok {
		t.Fatal("link not found")
	}
	if info.State != LinkOffering {
		t.Errorf("state = %s, want offering", info.State)
	}
}

func TestDuplicateUserJoinedIgnored(t *testing.T) {
	f := newManagerFixture(t, "bbb")

	if err := f.manager.HandleUserJoined("zzz"); err != nil {
		t.Fatalf("HandleUserJoined: %v", err)
	}
	if err := f.manager.HandleUserJoined("zzz"); err != nil {
		t.Fatalf("duplicate HandleUserJoined: %v", err)
	}

	if got, want := len(f.conns), 1; got != want {
		t.Errorf("connections = %d, want %d", got, want)
	}
	if got, want := len(f.sent), 1; got != want {
		t.Errorf("sent messages = %d, want %d", got, want)
	}
}

func TestUserJoinedWithoutMedia(t *testing.T) {
	local := media.NewController(&stubProvider{})

	var sent []*signaling.Message
	manager := NewManager(
		func(initiator bool, hooks Hooks) (Connection, error) {
			t.Fatal("factory should not be called")
			return nil, nil
		},
		local,
		func(msg *signaling.Message) { sent = append(sent, msg) },
		func(Event) {},
	)
	manager.SetSession("room-1", "bbb")

	err := manager.HandleUserJoined("zzz")
	if !errors.Is(err, ErrMediaNotReady) {
		t.Fatalf("error = %v, want ErrMediaNotReady", err)
	}
	if len(sent) != 0 {
		t.Errorf("sent %d messages, want 0", len(sent))
	}
}

func TestCandidatesBufferedUntilAnswer(t *testing.T) {
	f := newManagerFixture(t, "bbb")

	if err := f.manager.HandleUserJoined("zzz"); err != nil {
		t.Fatalf("HandleUserJoined: %v", err)
	}
	conn := f.conns[0]

	f.manager.HandleCandidate("zzz", candidate("cand-1"))
	f.manager.HandleCandidate("zzz", candidate("cand-2"))
	if len(conn.candidates) != 0 {
		t.Fatalf("candidates applied before answer: %v", conn.candidates)
	}

	if err := f.manager.HandleAnswer("zzz", "remote-answer"); err != nil {
		t.Fatalf("HandleAnswer: %v", err)
	}
	if got, want := len(conn.acceptedSDP), 1; got != want {
		t.Fatalf("accepted answers = %d, want %d", got, want)
	}

	if got, want := len(conn.candidates), 2; got != want {
		t.Fatalf("candidates applied = %d, want %d", got, want)
	}
	if conn.candidates[0] != "cand-1" || conn.candidates[1] != "cand-2" {
		t.Errorf("candidates applied out of order: %v", conn.candidates)
	}

	// Later candidates skip the buffer.
	f.manager.HandleCandidate("zzz", candidate("cand-3"))
	if got, want := len(conn.candidates), 3; got != want {
		t.Fatalf("candidates applied = %d, want %d", got, want)
	}
	if got, want := conn.candidates[2], "cand-3"; got != want {
		t.Errorf("late candidate = %q, want %q", got, want)
	}
}

func TestBadCandidateDoesNotKillLink(t *testing.T) {
	f := newManagerFixture(t, "bbb")

	if err := f.manager.HandleUserJoined("zzz"); err != nil {
		t.Fatalf("HandleUserJoined: %v", err)
	}
	conn := f.conns[0]
	conn.candidateErr = errors.New("malformed")

	if err := f.manager.HandleAnswer("zzz", "remote-answer"); err != nil {
		t.Fatalf("HandleAnswer: %v", err)
	}
	f.manager.HandleCandidate("zzz", candidate("bad"))

	info, ok := f.manager.Info("zzz")
	if !ok {
		t.Fatal("link dropped after bad candidate")
	}
	if info.State == LinkFailed || info.State == LinkClosed {
		t.Errorf("state = %s after bad candidate", info.State)
	}
}

func TestOfferCreatesAnsweringLink(t *testing.T) {
	f := newManagerFixture(t, "bbb")

	if err := f.manager.HandleOffer("aaa", "remote-offer"); err != nil {
		t.Fatalf("HandleOffer: %v", err)
	}

	if got, want := len(f.conns), 1; got != want {
		t.Fatalf("connections = %d, want %d", got, want)
	}
	conn := f.conns[0]
	if conn.initiator {
		t.Error("answering connection should not be initiator")
	}
	if got, want := len(conn.answeredSDP), 1; got != want {
		t.Fatalf("answered offers = %d, want %d", got, want)
	}

	if got, want := len(f.sent), 1; got != want {
		t.Fatalf("sent messages = %d, want %d", got, want)
	}
	msg := f.sent[0]
	if msg.Type != signaling.TypeAnswer {
		t.Errorf("message type = %q, want %q", msg.Type, signaling.TypeAnswer)
	}
	if got, want := msg.To, "aaa"; got != want {
		t.Errorf("message to = %q, want %q", got, want)
	}
}

func TestGlareRemoteWins(t *testing.T) {
	// Self "zzz" offered to "aaa"; aaa's id sorts lower, so its
	// concurrent offer wins and zzz answers on a fresh connection.
	f := newManagerFixture(t, "zzz")

	if err := f.manager.HandleUserJoined("aaa"); err != nil {
		t.Fatalf("HandleUserJoined: %v", err)
	}
	first := f.conns[0]

	if err := f.manager.HandleOffer("aaa", "remote-offer"); err != nil {
		t.Fatalf("HandleOffer: %v", err)
	}

	if !first.closed {
		t.Error("losing connection not closed")
	}
	if got, want := len(f.conns), 2; got != want {
		t.Fatalf("connections = %d, want %d", got, want)
	}
	second := f.conns[1]
	if got, want := len(second.answeredSDP), 1; got != want {
		t.Fatalf("answered offers = %d, want %d", got, want)
	}

	info, ok := f.manager.Info("aaa")
	if !ok {
		t.Fatal("link not found after glare")
	}
	if info.State != LinkAnswering {
		t.Errorf("state = %s, want answering", info.State)
	}
}

func TestGlareLocalWins(t *testing.T) {
	// Self "aaa" sorts lower than "zzz": the remote offer is dropped
	// and the local offer stands.
	f := newManagerFixture(t, "aaa")

	if err := f.manager.HandleUserJoined("zzz"); err != nil {
		t.Fatalf("HandleUserJoined: %v", err)
	}
	first := f.conns[0]

	if err := f.manager.HandleOffer("zzz", "remote-offer"); err != nil {
		t.Fatalf("HandleOffer: %v", err)
	}

	if first.closed {
		t.Error("winning connection was closed")
	}
	if got, want := len(f.conns), 1; got != want {
		t.Fatalf("connections = %d, want %d", got, want)
	}
	if got, want := len(first.answeredSDP), 0; got != want {
		t.Errorf("answered offers = %d, want %d", got, want)
	}
}

func TestAnswerForUnknownPeer(t *testing.T) {
	f := newManagerFixture(t, "bbb")

	err := f.manager.HandleAnswer("ghost", "sdp")
	if !errors.Is(err, ErrUnknownPeer) {
		t.Fatalf("error = %v, want ErrUnknownPeer", err)
	}
}

func TestConnectionStateTransitions(t *testing.T) {
	f := newManagerFixture(t, "bbb")

	if err := f.manager.HandleUserJoined("zzz"); err != nil {
		t.Fatalf("HandleUserJoined: %v", err)
	}

	f.manager.NoteConnectionState("zzz", pion.PeerConnectionStateConnected)
	if info, _ := f.manager.Info("zzz"); info.State != LinkConnected {
		t.Errorf("state = %s, want connected", info.State)
	}

	f.manager.NoteConnectionState("zzz", pion.PeerConnectionStateDisconnected)
	if info, _ := f.manager.Info("zzz"); info.State != LinkReconnecting {
		t.Errorf("state = %s, want reconnecting", info.State)
	}

	f.manager.NoteConnectionState("zzz", pion.PeerConnectionStateFailed)
	if info, _ := f.manager.Info("zzz"); info.State != LinkFailed {
		t.Errorf("state = %s, want failed", info.State)
	}
}

func TestRestartICESendsRestartOffer(t *testing.T) {
	f := newManagerFixture(t, "bbb")

	if err := f.manager.HandleUserJoined("zzz"); err != nil {
		t.Fatalf("HandleUserJoined: %v", err)
	}
	f.manager.NoteConnectionState("zzz", pion.PeerConnectionStateConnected)
	f.sent = nil

	if err := f.manager.RestartICE("zzz"); err != nil {
		t.Fatalf("RestartICE: %v", err)
	}

	conn := f.conns[0]
	if got, want := len(conn.offers), 2; got != want {
		t.Fatalf("offers = %d, want %d", got, want)
	}
	if !conn.offers[1] {
		t.Error("restart offer missing ICE restart flag")
	}
	if got, want := len(f.sent), 1; got != want {
		t.Fatalf("sent messages = %d, want %d", got, want)
	}
	if f.sent[0].Type != signaling.TypeOffer {
		t.Errorf("message type = %q, want %q", f.sent[0].Type, signaling.TypeOffer)
	}

	if info, _ := f.manager.Info("zzz"); info.State != LinkReconnecting {
		t.Errorf("state = %s, want reconnecting", info.State)
	}
}

func TestRenegotiationOfferOnLiveLink(t *testing.T) {
	f := newManagerFixture(t, "bbb")

	if err := f.manager.HandleUserJoined("zzz"); err != nil {
		t.Fatalf("HandleUserJoined: %v", err)
	}
	f.manager.NoteConnectionState("zzz", pion.PeerConnectionStateConnected)
	f.sent = nil

	if err := f.manager.HandleOffer("zzz", "restart-offer"); err != nil {
		t.Fatalf("HandleOffer: %v", err)
	}

	conn := f.conns[0]
	if got, want := len(conn.answeredSDP), 1; got != want {
		t.Fatalf("answered offers = %d, want %d", got, want)
	}
	if got, want := len(f.conns), 1; got != want {
		t.Errorf("connections = %d, want %d", got, want)
	}
	if got, want := len(f.sent), 1; got != want {
		t.Fatalf("sent messages = %d, want %d", got, want)
	}
	if f.sent[0].Type != signaling.TypeAnswer {
		t.Errorf("message type = %q, want %q", f.sent[0].Type, signaling.TypeAnswer)
	}
}

func TestUserLeftClosesLink(t *testing.T) {
	f := newManagerFixture(t, "bbb")

	if err := f.manager.HandleUserJoined("zzz"); err != nil {
		t.Fatalf("HandleUserJoined: %v", err)
	}
	conn := f.conns[0]

	f.manager.HandleUserLeft("zzz")
	if !conn.closed {
		t.Error("connection not closed on user-left")
	}
	if _, ok := f.manager.Info("zzz"); ok {
		t.Error("link still registered after user-left")
	}

	// Departure of an unknown peer is a no-op.
	f.manager.HandleUserLeft("ghost")
}

func TestReplaceVideoTrackFansOut(t *testing.T) {
	f := newManagerFixture(t, "bbb")

	if err := f.manager.HandleUserJoined("yyy"); err != nil {
		t.Fatalf("HandleUserJoined: %v", err)
	}
	if err := f.manager.HandleUserJoined("zzz"); err != nil {
		t.Fatalf("HandleUserJoined: %v", err)
	}

	f.manager.ReplaceVideoTrack(nil)
	for i, conn := range f.conns {
		if got, want := len(conn.replaced), 1; got != want {
			t.Errorf("conn %d replacements = %d, want %d", i, got, want)
		}
	}
}

func TestCloseAllTearsDownEverything(t *testing.T) {
	f := newManagerFixture(t, "bbb")

	if err := f.manager.HandleUserJoined("yyy"); err != nil {
		t.Fatalf("HandleUserJoined: %v", err)
	}
	if err := f.manager.HandleUserJoined("zzz"); err != nil {
		t.Fatalf("HandleUserJoined: %v", err)
	}

	f.manager.CloseAll()
	for i, conn := range f.conns {
		if !conn.closed {
			t.Errorf("conn %d not closed", i)
		}
	}
	if _, ok := f.manager.Info("yyy"); ok {
		t.Error("link yyy still registered")
	}
	if _, ok := f.manager.Info("zzz"); ok {
		t.Error("link zzz still registered")
	}
}

func TestHelloAndTrackNotes(t *testing.T) {
	f := newManagerFixture(t, "bbb")

	if err := f.manager.HandleUserJoined("zzz"); err != nil {
		t.Fatalf("HandleUserJoined: %v", err)
	}

	f.manager.NoteHello("zzz", "Ana")
	f.manager.NoteRemoteTrack("zzz", pion.RTPCodecTypeAudio)
	f.manager.NoteRemoteTrack("zzz", pion.RTPCodecTypeVideo)

	info, ok := f.manager.Info("zzz")
	if !ok {
		t.Fatal("link not found")
	}
	if got, want := info.DisplayName, "Ana"; got != want {
		t.Errorf("display name = %q, want %q", got, want)
	}
	if !info.HasAudio || !info.HasVideo {
		t.Errorf("tracks = audio %v video %v, want both", info.HasAudio, info.HasVideo)
	}
}
