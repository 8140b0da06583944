package signaling

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Server exposes a Relay over HTTP: the meeting directory REST
// endpoints plus the /ws signaling socket. It exists for local
// development and integration tests; production deployments run the
// hosted relay.
type Server struct {
	relay *Relay
}

// NewServer wraps a relay with HTTP handlers.
func NewServer(relay *Relay) *Server {
	return &Server{relay: relay}
}

// Handler returns the route mux for the relay server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/create-meeting", s.handleCreateMeeting)
	mux.HandleFunc("/api/join-meeting", s.handleJoinMeeting)
	mux.HandleFunc("/ws", s.handleWS)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Signaling relay is healthy."))
}

func (s *Server) handleCreateMeeting(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	roomID := s.relay.CreateRoom()
	writeJSON(w, http.StatusOK, map[string]any{"roomId": roomID})
}

func (s *Server) handleJoinMeeting(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		RoomID string `json:"roomId"`
		Name   string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "invalid request body"})
		return
	}
	if !s.relay.RoomExists(req.RoomID) {
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "message": "Meeting not found. Please check the meeting ID."})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// Configure the websocket upgrader
var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,

	// Dev relay: accept any origin. A hosted relay checks this against
	// the webapp domain.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWS upgrades the connection and bridges it onto a relay
// endpoint. Query params pick the room and role: /ws?room=<id>&host=1.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("room")
	if !s.relay.RoomExists(roomID) {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("failed to upgrade connection", "error", err)
		return
	}

	endpoint := s.relay.Endpoint(roomID, r.URL.Query().Get("host") == "1")
	if err := endpoint.Connect(); err != nil {
		conn.Close()
		return
	}

	go wsWritePump(conn, endpoint)
	go wsReadPump(conn, endpoint)
}

// wsReadPump pumps websocket frames into the relay endpoint.
func wsReadPump(conn *websocket.Conn, endpoint *Endpoint) {
	defer func() {
		endpoint.Close()
		conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Debug("websocket read error", "error", err)
			}
			return
		}
		endpoint.Send(&msg)
	}
}

// wsWritePump pumps relay deliveries out to the websocket, with pings.
func wsWritePump(conn *websocket.Conn, endpoint *Endpoint) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case msg, ok := <-endpoint.Incoming():
			if !ok {
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
