package directory

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/huddlemesh/huddle/internal/signaling"
)

func newTestServer(t *testing.T) (*Client, *signaling.Relay) {
	t.Helper()
	relay := signaling.NewRelay()
	server := httptest.NewServer(signaling.NewServer(relay).Handler())
	t.Cleanup(server.Close)
	return NewClient(server.URL), relay
}

func TestCreateMeetingReturnsRoomID(t *testing.T) {
	client, relay := newTestServer(t)

	roomID, err := client.CreateMeeting(context.Background())
	if err != nil {
		t.Fatalf("CreateMeeting: %v", err)
	}
	if !relay.RoomExists(roomID) {
		t.Errorf("room %q not registered with relay", roomID)
	}
}

func TestJoinMeetingValidates(t *testing.T) {
	client, _ := newTestServer(t)

	roomID, err := client.CreateMeeting(context.Background())
	if err != nil {
		t.Fatalf("CreateMeeting: %v", err)
	}
	if err := client.JoinMeeting(context.Background(), roomID, "Ana"); err != nil {
		t.Errorf("JoinMeeting(%q) = %v, want nil", roomID, err)
	}
}

func TestJoinMeetingUnknownRoom(t *testing.T) {
	client, _ := newTestServer(t)

	err := client.JoinMeeting(context.Background(), "bogus", "Ana")
	if !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("JoinMeeting(bogus) = %v, want ErrRoomNotFound", err)
	}
}
