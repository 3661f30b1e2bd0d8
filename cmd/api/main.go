package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/savelyev/translit/backend/internal/config"
	"github.com/savelyev/translit/backend/internal/handler"
	"github.com/savelyev/translit/backend/internal/llm"
	"github.com/savelyev/translit/backend/internal/ocr"
	chatservice "github.com/savelyev/translit/backend/internal/service/chat"
	translitservice "github.com/savelyev/translit/backend/internal/service/translit"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	client, generator := selectBackend(ctx, cfg.LLM)

	var extractor *ocr.Extractor
	if cfg.OCR.Enabled {
		extractor, err = ocr.New(ocr.Config{
			DefaultLanguage: cfg.OCR.DefaultLanguage,
			Timeout:         cfg.OCR.Timeout,
		})
		if err != nil {
			log.Printf("warning: failed to initialize OCR: %v", err)
			log.Println("continuing without image input support")
			extractor = nil
		} else {
			log.Println("OCR extractor initialized successfully")
		}
	} else {
		log.Println("OCR disabled by configuration")
	}

	chatSvc := chatservice.NewService(client, chatservice.Options{
		ChunkWords: cfg.LLM.ChunkWords,
		ChunkDelay: cfg.LLM.ChunkDelay,
		SessionTTL: cfg.Session.TTL,
	})
	chatSvc.StartEvictor(ctx, cfg.Session.SweepInterval)

	translitSvc := translitservice.NewService(generator)

	router := handler.NewRouter(chatSvc, translitSvc, extractor)

	startServer(ctx, cfg.Server, router)
}

// selectBackend resolves the generation backend per LLM_BACKEND. "auto"
// prefers a local ollama binary, then Ark credentials, then none; with no
// backend the chat service degrades to canned replies and transliteration
// reports unavailable.
func selectBackend(ctx context.Context, cfg config.LLMConfig) (llm.Client, llm.Generator) {
	tryOllama := func() (llm.Client, llm.Generator) {
		client, err := llm.NewOllamaClient(cfg.OllamaBinary, cfg.OllamaModel, cfg.Timeout)
		if err != nil {
			log.Printf("warning: ollama backend unavailable: %v", err)
			return nil, nil
		}
		log.Printf("using ollama backend: %s run %s", cfg.OllamaBinary, cfg.OllamaModel)
		return client, client
	}

	tryArk := func() (llm.Client, llm.Generator) {
		if !cfg.Ark.Enabled() {
			log.Println("ark credentials not configured")
			return nil, nil
		}
		chatModel, err := cfg.Ark.NewChatModel(ctx)
		if err != nil {
			log.Printf("warning: failed to initialize ark chat model: %v", err)
			return nil, nil
		}
		client, err := llm.NewArkClient(ctx, chatModel)
		if err != nil {
			log.Printf("warning: failed to initialize ark backend: %v", err)
			return nil, nil
		}
		log.Printf("using ark backend: model=%s", cfg.Ark.Model)
		return client, client
	}

	switch cfg.Backend {
	case "ollama":
		if c, g := tryOllama(); c != nil {
			return c, g
		}
	case "ark":
		if c, g := tryArk(); c != nil {
			return c, g
		}
	case "none":
	default: // auto
		if c, g := tryOllama(); c != nil {
			return c, g
		}
		if c, g := tryArk(); c != nil {
			return c, g
		}
	}

	log.Println("no generation backend configured, chat falls back to canned replies")
	return nil, nil
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("transliteration backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
