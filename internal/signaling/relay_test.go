package signaling

import (
	"testing"
)

func recvType(t *testing.T, ch <-chan *Message, want Type) *Message {
	t.Helper()
	select {
	case msg, ok := <-ch:
		if !ok {
			t.Fatalf("channel closed waiting for %s", want)
		}
		if msg.Type != want {
			t.Fatalf("message type = %s, want %s", msg.Type, want)
		}
		return msg
	default:
		t.Fatalf("no message queued, want %s", want)
	}
	return nil
}

func TestRelayWelcomeAssignsID(t *testing.T) {
	relay := NewRelay()
	roomID := relay.CreateRoom()

	host := relay.Endpoint(roomID, true)
	if err := host.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	welcome := recvType(t, host.Incoming(), TypeWelcome)
	if welcome.UserID != host.ID() {
		t.Errorf("welcome UserID = %q, want %q", welcome.UserID, host.ID())
	}
}

func TestRelayConnectUnknownRoom(t *testing.T) {
	relay := NewRelay()
	endpoint := relay.Endpoint("no-such-room", false)
	if err := endpoint.Connect(); err == nil {
		t.Fatal("Connect to unknown room succeeded, want error")
	}
}

func TestRelayAdmissionFlow(t *testing.T) {
	relay := NewRelay()
	roomID := relay.CreateRoom()

	host := relay.Endpoint(roomID, true)
	guest := relay.Endpoint(roomID, false)
	host.Connect()
	guest.Connect()
	recvType(t, host.Incoming(), TypeWelcome)
	recvType(t, guest.Incoming(), TypeWelcome)

	host.Send(&Message{Type: TypeJoinRoom, RoomID: roomID})
	guest.Send(&Message{Type: TypeRequestToJoin, RoomID: roomID, Name: "Ana"})

	req := recvType(t, host.Incoming(), TypeRequestToJoin)
	if req.From != guest.ID() || req.Name != "Ana" {
		t.Fatalf("request = from %q name %q, want from %q name Ana", req.From, req.Name, guest.ID())
	}

	host.Send(&Message{Type: TypeAcceptJoin, To: guest.ID()})
	recvType(t, guest.Incoming(), TypeAcceptJoin)

	guest.Send(&Message{Type: TypeJoinRoom, RoomID: roomID})
	joined := recvType(t, host.Incoming(), TypeUserJoined)
	if joined.UserID != guest.ID() {
		t.Errorf("user-joined UserID = %q, want %q", joined.UserID, guest.ID())
	}

	// The joiner itself receives no user-joined for its own arrival.
	select {
	case msg := <-guest.Incoming():
		t.Fatalf("guest received unexpected %s", msg.Type)
	default:
	}
}

func TestRelayRejectRemovesWaiting(t *testing.T) {
	relay := NewRelay()
	roomID := relay.CreateRoom()

	host := relay.Endpoint(roomID, true)
	guest := relay.Endpoint(roomID, false)
	host.Connect()
	guest.Connect()
	recvType(t, host.Incoming(), TypeWelcome)
	recvType(t, guest.Incoming(), TypeWelcome)

	host.Send(&Message{Type: TypeJoinRoom, RoomID: roomID})
	guest.Send(&Message{Type: TypeRequestToJoin, RoomID: roomID, Name: "Ana"})
	recvType(t, host.Incoming(), TypeRequestToJoin)

	host.Send(&Message{Type: TypeRejectJoin, To: guest.ID()})
	recvType(t, guest.Incoming(), TypeRejectJoin)

	// A second accept for the rejected guest goes nowhere.
	host.Send(&Message{Type: TypeAcceptJoin, To: guest.ID()})
	select {
	case msg := <-guest.Incoming():
		t.Fatalf("rejected guest received %s", msg.Type)
	default:
	}
}

func TestRelayDirectedSignalRouting(t *testing.T) {
	relay := NewRelay()
	roomID := relay.CreateRoom()

	a := relay.Endpoint(roomID, true)
	b := relay.Endpoint(roomID, false)
	c := relay.Endpoint(roomID, false)
	for _, e := range []*Endpoint{a, b, c} {
		e.Connect()
		recvType(t, e.Incoming(), TypeWelcome)
		e.Send(&Message{Type: TypeJoinRoom, RoomID: roomID})
	}
	// Drain the join announcements.
	for len(a.Incoming()) > 0 {
		<-a.Incoming()
	}
	for len(b.Incoming()) > 0 {
		<-b.Incoming()
	}

	a.Send(&Message{Type: TypeOffer, RoomID: roomID, To: b.ID(), SDP: "offer-sdp"})

	offer := recvType(t, b.Incoming(), TypeOffer)
	if offer.From != a.ID() || offer.SDP != "offer-sdp" {
		t.Fatalf("offer = from %q sdp %q, want from %q", offer.From, offer.SDP, a.ID())
	}
	select {
	case msg := <-c.Incoming():
		t.Fatalf("bystander received directed %s", msg.Type)
	default:
	}
}

func TestRelayUserLeftOnClose(t *testing.T) {
	relay := NewRelay()
	roomID := relay.CreateRoom()

	a := relay.Endpoint(roomID, true)
	b := relay.Endpoint(roomID, false)
	a.Connect()
	b.Connect()
	recvType(t, a.Incoming(), TypeWelcome)
	recvType(t, b.Incoming(), TypeWelcome)
	a.Send(&Message{Type: TypeJoinRoom, RoomID: roomID})
	b.Send(&Message{Type: TypeJoinRoom, RoomID: roomID})
	recvType(t, a.Incoming(), TypeUserJoined)

	b.Close()
	left := recvType(t, a.Incoming(), TypeUserLeft)
	if left.UserID != b.ID() {
		t.Errorf("user-left UserID = %q, want %q", left.UserID, b.ID())
	}

	// Close is idempotent.
	b.Close()
}
