package chat

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	chatservice "github.com/savelyev/translit/backend/internal/service/chat"
	"github.com/savelyev/translit/backend/pkg/utils"
)

// Handler exposes the session-oriented REST surface next to the websocket
// channel: clients that cannot hold a socket open can still create
// sessions, post messages and read transcripts.
type Handler struct {
	chatSvc *chatservice.Service
}

// New creates the chat REST handler.
func New(chatSvc *chatservice.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// RegisterRoutes mounts the chat endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session", h.handleCreateSession)
	r.Get("/session/{sessionID}/messages", h.handleTranscript)
	r.Post("/chat", h.handleChat)
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Context map[string]any `json:"context"`
	}
	// an empty body means a bare session
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	session := h.chatSvc.CreateSession(r.Context(), payload.Context)
	utils.RespondJSON(w, http.StatusCreated, session)
}

func (h *Handler) handleTranscript(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	messages, err := h.chatSvc.Transcript(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, chatservice.ErrSessionNotFound) {
			utils.RespondError(w, http.StatusNotFound, "Session not found")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "Could not load transcript")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"session_id": sessionID,
		"messages":   messages,
	})
}

// handleChat is the synchronous variant of the websocket flow: it runs one
// full reply and returns it assembled instead of fragment by fragment.
func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		SessionID string `json:"session_id"`
		Text      string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if payload.Text == "" {
		utils.RespondError(w, http.StatusBadRequest, "text is required")
		return
	}

	sessionID := payload.SessionID
	if sessionID == "" {
		sessionID = h.chatSvc.CreateSession(r.Context(), nil).ID
	}

	stream, err := h.chatSvc.GenerateReply(r.Context(), sessionID, payload.Text)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "Reply generation failed")
		return
	}
	defer stream.Close()

	// fragments concatenate directly back into the full reply
	var b strings.Builder
	for {
		fragment, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			utils.RespondError(w, http.StatusBadGateway, "Reply generation failed mid-stream")
			return
		}
		b.WriteString(fragment)
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{
		"session_id": sessionID,
		"reply":      b.String(),
	})
}
