package peer

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/huddlemesh/huddle/internal/config"
	"github.com/pion/rtp"
	pion "github.com/pion/webrtc/v4"
)

// Hooks carries the callbacks a Connection fires as the transport makes
// progress. They are invoked from pion goroutines; implementations hand
// the payload off to the session loop rather than mutating state inline.
type Hooks struct {
	OnICECandidate    func(pion.ICECandidateInit)
	OnConnectionState func(pion.PeerConnectionState)
	OnICEState        func(pion.ICEConnectionState)
	OnRemoteTrack     func(kind pion.RTPCodecType)
	OnHello           func(HelloPayload)
	OnActivity        func(at time.Time)
}

// Connection is the negotiation surface of a single peer transport.
// The production implementation wraps a pion PeerConnection; tests
// substitute a scripted fake.
type Connection interface {
	AddLocalTracks(tracks []pion.TrackLocal) error
	CreateOffer(iceRestart bool) (string, error)
	AcceptOffer(sdp string) (string, error)
	AcceptAnswer(sdp string) error
	AddICECandidate(candidate pion.ICECandidateInit) error
	ReplaceVideoTrack(track pion.TrackLocal) error
	SendHello(hello HelloPayload) error
	Close() error
}

// Factory builds a Connection for one remote participant. The initiator
// side owns the control data channel.
type Factory func(initiator bool, hooks Hooks) (Connection, error)

// NewPionFactory returns a Factory producing real WebRTC transports
// configured from cfg (STUN always, TURN and relay policy when set).
func NewPionFactory(cfg *config.Config) Factory {
	return func(initiator bool, hooks Hooks) (Connection, error) {
		return newPionConnection(cfg, initiator, hooks)
	}
}

type pionConnection struct {
	pc    *pion.PeerConnection
	hooks Hooks

	mu      sync.Mutex
	control *pion.DataChannel
	open    bool
	pending []ControlMessage
	closed  bool
}

var _ Connection = (*pionConnection)(nil)

func newPionConnection(cfg *config.Config, initiator bool, hooks Hooks) (*pionConnection, error) {
	iceServers := []pion.ICEServer{{URLs: cfg.GetSTUNServers()}}

	turnServers := cfg.GetTURNServers()
	if turnServers != nil {
		username, password := cfg.GetTURNCredentials()
		iceServers = append(iceServers, pion.ICEServer{
			URLs:       turnServers,
			Username:   username,
			Credential: password,
		})
	}

	policy := pion.ICETransportPolicyAll
	if turnServers != nil && cfg.ForceRelay {
		policy = pion.ICETransportPolicyRelay
	}

	pc, err := pion.NewPeerConnection(pion.Configuration{
		ICEServers:         iceServers,
		ICETransportPolicy: policy,
	})
	if err != nil {
		return nil, NewError("create peer connection", err)
	}

	c := &pionConnection{pc: pc, hooks: hooks}

	pc.OnICECandidate(func(cand *pion.ICECandidate) {
		if cand == nil {
			return
		}
		if c.hooks.OnICECandidate != nil {
			c.hooks.OnICECandidate(cand.ToJSON())
		}
	})

	pc.OnConnectionStateChange(func(state pion.PeerConnectionState) {
		if c.hooks.OnConnectionState != nil {
			c.hooks.OnConnectionState(state)
		}
	})

	pc.OnICEConnectionStateChange(func(state pion.ICEConnectionState) {
		if c.hooks.OnICEState != nil {
			c.hooks.OnICEState(state)
		}
	})

	pc.OnTrack(func(track *pion.TrackRemote, _ *pion.RTPReceiver) {
		if c.hooks.OnRemoteTrack != nil {
			c.hooks.OnRemoteTrack(track.Kind())
		}
		go c.pumpTrack(track)
	})

	if initiator {
		dc, err := createControlChannel(pc)
		if err != nil {
			pc.Close()
			return nil, err
		}
		c.attachControl(dc)
	} else {
		pc.OnDataChannel(func(dc *pion.DataChannel) {
			if dc.Label() != controlChannelLabel {
				return
			}
			c.attachControl(dc)
		})
	}

	return c, nil
}

func createControlChannel(pc *pion.PeerConnection) (*pion.DataChannel, error) {
	ordered := true
	dc, err := pc.CreateDataChannel(controlChannelLabel, &pion.DataChannelInit{
		Ordered: &ordered,
	})
	if err != nil {
		return nil, NewError("create control channel", err)
	}
	return dc, nil
}

func (c *pionConnection) attachControl(dc *pion.DataChannel) {
	c.mu.Lock()
	c.control = dc
	c.mu.Unlock()

	dc.OnOpen(func() {
		c.mu.Lock()
		c.open = true
		pending := c.pending
		c.pending = nil
		c.mu.Unlock()

		for _, msg := range pending {
			if err := c.writeControl(msg); err != nil {
				slog.Warn("Failed to flush control message", "type", msg.Type, "error", err)
			}
		}
	})

	dc.OnMessage(func(msg pion.DataChannelMessage) {
		var cm ControlMessage
		if err := decodeControl(msg.Data, &cm); err != nil {
			slog.Warn("Invalid control message", "error", err)
			return
		}
		c.dispatchControl(cm)
	})
}

func (c *pionConnection) dispatchControl(cm ControlMessage) {
	switch cm.Type {
	case ControlTypeHello:
		var hello HelloPayload
		if err := cm.DecodePayload(&hello); err != nil {
			slog.Warn("Invalid hello payload", "error", err)
			return
		}
		if c.hooks.OnHello != nil {
			c.hooks.OnHello(hello)
		}
	default:
		slog.Debug("Ignoring control message", "type", cm.Type)
	}
}

// pumpTrack drains inbound RTP so packet arrival doubles as the liveness
// signal for stream health.
func (c *pionConnection) pumpTrack(track *pion.TrackRemote) {
	var pkt *rtp.Packet
	var err error
	for {
		if pkt, _, err = track.ReadRTP(); err != nil {
			if err != io.EOF {
				slog.Debug("Remote track read ended", "kind", track.Kind().String(), "error", err)
			}
			return
		}
		if pkt != nil && c.hooks.OnActivity != nil {
			c.hooks.OnActivity(time.Now())
		}
	}
}

func (c *pionConnection) AddLocalTracks(tracks []pion.TrackLocal) error {
	for _, track := range tracks {
		sender, err := c.pc.AddTrack(track)
		if err != nil {
			return NewError("add local track", err)
		}
		go drainRTCP(sender)
	}
	return nil
}

// drainRTCP keeps the sender's interceptor pipeline flowing. The reports
// themselves are not consumed.
func drainRTCP(sender *pion.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}

func (c *pionConnection) CreateOffer(iceRestart bool) (string, error) {
	var opts *pion.OfferOptions
	if iceRestart {
		opts = &pion.OfferOptions{ICERestart: true}
	}

	offer, err := c.pc.CreateOffer(opts)
	if err != nil {
		return "", NewError("create offer", err)
	}

	if err = c.pc.SetLocalDescription(offer); err != nil {
		return "", NewError("set local description", err)
	}

	return c.pc.LocalDescription().SDP, nil
}

func (c *pionConnection) AcceptOffer(sdp string) (string, error) {
	offer := pion.SessionDescription{Type: pion.SDPTypeOffer, SDP: sdp}
	if err := c.pc.SetRemoteDescription(offer); err != nil {
		return "", NewError("set remote description", err)
	}

	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return "", NewError("create answer", err)
	}

	if err = c.pc.SetLocalDescription(answer); err != nil {
		return "", NewError("set local description", err)
	}

	return c.pc.LocalDescription().SDP, nil
}

func (c *pionConnection) AcceptAnswer(sdp string) error {
	answer := pion.SessionDescription{Type: pion.SDPTypeAnswer, SDP: sdp}
	if err := c.pc.SetRemoteDescription(answer); err != nil {
		return NewError("set remote description", err)
	}
	return nil
}

func (c *pionConnection) AddICECandidate(candidate pion.ICECandidateInit) error {
	if err := c.pc.AddICECandidate(candidate); err != nil {
		return NewError("add ICE candidate", err)
	}
	return nil
}

func (c *pionConnection) ReplaceVideoTrack(track pion.TrackLocal) error {
	for _, sender := range c.pc.GetSenders() {
		current := sender.Track()
		if current == nil || current.Kind() != pion.RTPCodecTypeVideo {
			continue
		}
		if err := sender.ReplaceTrack(track); err != nil {
			return NewError("replace video track", err)
		}
		return nil
	}
	return NewError("replace video track", ErrNoVideoSender)
}

func (c *pionConnection) SendHello(hello HelloPayload) error {
	msg, err := NewControlMessage(ControlTypeHello, hello)
	if err != nil {
		return NewError("encode hello", err)
	}

	c.mu.Lock()
	if !c.open {
		c.pending = append(c.pending, msg)
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	return c.writeControl(msg)
}

func (c *pionConnection) writeControl(msg ControlMessage) error {
	c.mu.Lock()
	dc := c.control
	c.mu.Unlock()

	if dc == nil {
		return NewError("send control", ErrChannelNotOpen)
	}

	b, err := encodeControl(msg)
	if err != nil {
		return NewError("encode control", err)
	}
	if err := dc.Send(b); err != nil {
		return NewError("send control", err)
	}
	return nil
}

func (c *pionConnection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	return c.pc.Close()
}
