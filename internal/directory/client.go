// Package directory is the client for the meeting-directory REST API,
// which allocates room ids and validates them before room entry.
package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/huddlemesh/huddle/internal/dns"
)

// ErrRoomNotFound reports that the requested meeting id is unknown.
var ErrRoomNotFound = errors.New("meeting not found")

// Client talks to the meeting directory.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a directory client for the given base URL. The
// transport resolves through the fallback-capable lookup, same as the
// signaling dialer.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				Proxy:       http.ProxyFromEnvironment,
				DialContext: dns.DialContext,
			},
		},
	}
}

// CreateMeeting allocates a new room and returns its id.
func (c *Client) CreateMeeting(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/create-meeting", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("create meeting: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("create meeting: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		RoomID string `json:"roomId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("create meeting: decode response: %w", err)
	}
	if body.RoomID == "" {
		return "", fmt.Errorf("create meeting: empty room id")
	}
	return body.RoomID, nil
}

// JoinMeeting validates a room id before entry. A non-success response
// surfaces as ErrRoomNotFound carrying the server's message.
func (c *Client) JoinMeeting(ctx context.Context, roomID, name string) error {
	payload, err := json.Marshal(map[string]string{"roomId": roomID, "name": name})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/join-meeting", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("join meeting: %w", err)
	}
	defer resp.Body.Close()

	var body struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("join meeting: decode response: %w", err)
	}
	if !body.Success {
		if body.Message != "" {
			return fmt.Errorf("%w: %s", ErrRoomNotFound, body.Message)
		}
		return ErrRoomNotFound
	}
	return nil
}
