package chat

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	chatservice "github.com/savelyev/translit/backend/internal/service/chat"
)

// WebSocketHandler runs the persistent chat channel: one receive/process/
// send cycle per connection, one reply in flight at a time.
type WebSocketHandler struct {
	chatSvc  *chatservice.Service
	upgrader websocket.Upgrader
}

// NewWebSocketHandler creates the channel handler.
func NewWebSocketHandler(chatSvc *chatservice.Service) *WebSocketHandler {
	return &WebSocketHandler{
		chatSvc: chatSvc,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes mounts the chat channel endpoint.
func (h *WebSocketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/chat", h.handleChat)
}

type clientMessage struct {
	Type      string         `json:"type"`
	SessionID string         `json:"session_id,omitempty"`
	Text      string         `json:"text,omitempty"`
	Context   map[string]any `json:"context,omitempty"`
}

type sessionMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

type assistantMessage struct {
	Type      string `json:"type"`
	Text      string `json:"text"`
	Partial   bool   `json:"partial"`
	SessionID string `json:"session_id"`
}

type errorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (h *WebSocketHandler) handleChat(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[websocket] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			// orderly disconnects end the loop silently
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("[websocket] read error: %v", err)
			}
			return
		}

		switch msg.Type {
		case "init":
			sess := h.chatSvc.CreateSession(ctx, msg.Context)
			if err := conn.WriteJSON(sessionMessage{Type: "session", SessionID: sess.ID}); err != nil {
				return
			}

		case "user", "message":
			sessionID := msg.SessionID
			if sessionID == "" {
				// auto-create an ephemeral session and tell the client first
				sess := h.chatSvc.CreateSession(ctx, nil)
				sessionID = sess.ID
				if err := conn.WriteJSON(sessionMessage{Type: "session", SessionID: sessionID}); err != nil {
					return
				}
			}
			if err := h.streamReply(ctx, conn, sessionID, msg.Text); err != nil {
				log.Printf("[websocket] reply failed for session=%s: %v", sessionID, err)
				// best-effort error report, then close the channel
				_ = conn.WriteJSON(errorMessage{Type: "error", Message: err.Error()})
				return
			}

		default:
			if err := conn.WriteJSON(errorMessage{Type: "error", Message: "Unknown message type"}); err != nil {
				return
			}
		}
	}
}

// streamReply forwards every fragment of one reply followed by the explicit
// end-of-reply marker. Fragments already written are never retracted; a
// failing backend terminates the channel via the returned error.
func (h *WebSocketHandler) streamReply(ctx context.Context, conn *websocket.Conn, sessionID, text string) error {
	stream, err := h.chatSvc.GenerateReply(ctx, sessionID, text)
	if err != nil {
		return err
	}
	defer stream.Close()

	for {
		fragment, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			return recvErr
		}
		if err := conn.WriteJSON(assistantMessage{Type: "assistant", Text: fragment, Partial: true, SessionID: sessionID}); err != nil {
			// client went away mid-reply; Close cancels the producer
			return err
		}
	}

	return conn.WriteJSON(assistantMessage{Type: "assistant", Text: "", Partial: false, SessionID: sessionID})
}
