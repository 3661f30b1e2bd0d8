package scripts

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/savelyev/translit/backend/internal/script"
	"github.com/savelyev/translit/backend/pkg/utils"
)

// Handler serves the supported-script catalog.
type Handler struct{}

// New creates the scripts handler.
func New() *Handler {
	return &Handler{}
}

// RegisterRoutes mounts the catalog endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/scripts", h.handleList)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"scripts": script.Supported(),
	})
}
