package handler

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/savelyev/translit/backend/internal/handler/chat"
	"github.com/savelyev/translit/backend/internal/handler/scripts"
	"github.com/savelyev/translit/backend/internal/handler/stream"
	"github.com/savelyev/translit/backend/internal/handler/translit"
	middlewarePkg "github.com/savelyev/translit/backend/internal/middleware"
	"github.com/savelyev/translit/backend/internal/ocr"
	chatService "github.com/savelyev/translit/backend/internal/service/chat"
	translitService "github.com/savelyev/translit/backend/internal/service/translit"
	"github.com/savelyev/translit/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services. extractor may be nil when
// OCR is disabled.
func NewRouter(chatSvc *chatService.Service, translitSvc *translitService.Service, extractor *ocr.Extractor) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	chatHandler := chat.New(chatSvc)
	wsHandler := chat.NewWebSocketHandler(chatSvc)
	translitHandler := translit.NewHandler(translitSvc, chatSvc, extractor)
	scriptsHandler := scripts.New()
	streamHandler := stream.New(chatSvc)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"status":      "ok",
			"llm_backend": translitSvc.Enabled(),
			"ocr":         extractor != nil,
		})
	})

	r.Route("/api", func(api chi.Router) {
		chatHandler.RegisterRoutes(api)
		wsHandler.RegisterRoutes(api)
		translitHandler.RegisterRoutes(api)
		scriptsHandler.RegisterRoutes(api)

		api.Get("/stream/{sessionID}", func(w http.ResponseWriter, r *http.Request) {
			sessionID := chi.URLParam(r, "sessionID")
			userMessage := r.URL.Query().Get("message")

			if userMessage == "" {
				utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
				return
			}

			if err := streamHandler.HandleStreamRequest(r.Context(), w, sessionID, userMessage); err != nil {
				log.Printf("[stream] error handling request: %v", err)
			}
		})
	})

	return r
}
