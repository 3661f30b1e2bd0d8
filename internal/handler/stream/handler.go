package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	chatservice "github.com/savelyev/translit/backend/internal/service/chat"
	"github.com/savelyev/translit/backend/pkg/utils"
)

// Handler streams assistant replies over Server-Sent Events for clients
// that cannot use the websocket channel.
type Handler struct {
	chatSvc *chatservice.Service
}

// New creates the SSE handler.
func New(chatSvc *chatservice.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// StreamResponse is one SSE payload.
type StreamResponse struct {
	Event     string `json:"event"`
	Content   string `json:"content,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Finished  bool   `json:"finished,omitempty"`
	Error     string `json:"error,omitempty"`
}

// HandleStreamRequest runs one reply and forwards its fragments as SSE
// delta events, closing with an end event.
func (h *Handler) HandleStreamRequest(ctx context.Context, w http.ResponseWriter, sessionID, userMessage string) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("streaming unsupported")
	}

	utils.SetupSSEHeaders(w)

	utils.SendSSEChunk(w, flusher, StreamResponse{
		Event:     "start",
		SessionID: sessionID,
	})

	stream, err := h.chatSvc.GenerateReply(ctx, sessionID, userMessage)
	if err != nil {
		h.sendError(w, flusher, sessionID, err)
		return err
	}
	defer stream.Close()

	for {
		fragment, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			h.sendError(w, flusher, sessionID, recvErr)
			return recvErr
		}
		utils.SendSSEChunk(w, flusher, StreamResponse{
			Event:     "delta",
			SessionID: sessionID,
			Content:   fragment,
		})
	}

	utils.SendSSEChunk(w, flusher, StreamResponse{
		Event:     "end",
		SessionID: sessionID,
		Finished:  true,
	})

	log.Printf("[stream] completed reply for session=%s", sessionID)
	return nil
}

func (h *Handler) sendError(w http.ResponseWriter, flusher http.Flusher, sessionID string, err error) {
	utils.SendSSEChunk(w, flusher, StreamResponse{
		Event:     "error",
		SessionID: sessionID,
		Error:     err.Error(),
	})
}
