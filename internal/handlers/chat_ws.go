package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/SmakGames/Companion/internal/middleware"
	"github.com/SmakGames/Companion/internal/services"
)

var talkUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// CORS for WebSocket is handled at the HTTP layer already.
		return true
	},
}

// TalkClientMessage is what the frontend sends over the talk socket.
type TalkClientMessage struct {
	Type string `json:"type"` // "message", "ping"
	Text string `json:"text,omitempty"`
}

// TalkServerMessage is what the server sends back.
type TalkServerMessage struct {
	Type  string `json:"type"` // "reply", "error"
	Reply string `json:"reply,omitempty"`
	Error string `json:"error,omitempty"`
}

// TalkWebSocket runs the talk flow over a WebSocket for interactive clients.
// Authentication uses the session token from the Authorization header or the
// `token` query parameter.
func TalkWebSocket(w http.ResponseWriter, r *http.Request) {
	token := middleware.BearerToken(r)
	if token == "" {
		http.Error(w, "missing session token", http.StatusUnauthorized)
		return
	}

	userID, ok, err := services.ValidateSession(r.Context(), token)
	if err != nil || !ok {
		http.Error(w, "invalid session token", http.StatusUnauthorized)
		return
	}

	user, err := identities.FindByID(r.Context(), userID)
	if err != nil {
		http.Error(w, "invalid session token", http.StatusUnauthorized)
		return
	}

	conn, err := talkUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	conn.SetReadLimit(64 * 1024)
	_ = conn.SetReadDeadline(time.Now().Add(90 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(90 * time.Second))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(90 * time.Second))

		var msg TalkClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case "message":
			// The account is re-read per turn so a subscription that expired
			// mid-session is observed before the next reply.
			acct, err := accounts.Get(r.Context(), userID)
			if err != nil {
				_ = conn.WriteJSON(TalkServerMessage{Type: "error", Error: "account unavailable"})
				continue
			}
			reply, err := conversation.Talk(r.Context(), user, acct, msg.Text)
			if err != nil && reply == "" {
				_ = conn.WriteJSON(TalkServerMessage{Type: "error", Error: "failed to process message"})
				continue
			}
			_ = conn.WriteJSON(TalkServerMessage{Type: "reply", Reply: reply})
		case "ping":
			// Deadline already refreshed above.
		default:
			// Ignore unknown types.
		}
	}
}
