// Package config loads all service configuration from environment
// variables.
package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config aggregates every section of the service configuration.
type Config struct {
	Server  ServerConfig
	LLM     LLMConfig
	OCR     OCRConfig
	Session SessionConfig
}

// Load reads the full configuration from the environment.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}
	llm, err := loadLLMConfig()
	if err != nil {
		return nil, err
	}
	ocr, err := loadOCRConfig()
	if err != nil {
		return nil, err
	}
	session, err := loadSessionConfig()
	if err != nil {
		return nil, err
	}
	return &Config{Server: server, LLM: llm, OCR: ocr, Session: session}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8000"
	}

	// allow ":8000" or "127.0.0.1:8000" directly
	if strings.Contains(port, ":") {
		return ServerConfig{Addr: port}, nil
	}
	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}
	return ServerConfig{Addr: ":" + port}, nil
}

// LLMConfig selects and tunes the generation backend.
type LLMConfig struct {
	// Backend picks the generation variant: "ollama", "ark", "none" or
	// "auto" (try ollama, then ark, then none).
	Backend string

	OllamaBinary string
	OllamaModel  string

	ChunkWords int
	ChunkDelay time.Duration
	Timeout    time.Duration

	Ark ArkConfig
}

// ArkConfig carries the remote chat-model credentials.
type ArkConfig struct {
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// Enabled reports whether the required Ark credentials are present.
func (c ArkConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel builds a chat model from the credentials.
func (c ArkConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("ark credentials missing: provide ARK_API_KEY + ARK_MODEL or an AK/SK pair")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}
	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	}
	return ark.NewChatModel(ctx, cfg)
}

func loadLLMConfig() (LLMConfig, error) {
	chunkWords := 6
	if override, err := parseOptionalIntEnv("LLM_CHUNK_WORDS"); err != nil {
		return LLMConfig{}, err
	} else if override != nil && *override > 0 {
		chunkWords = *override
	}

	chunkDelay, err := parseDurationEnv("LLM_CHUNK_DELAY", 30*time.Millisecond)
	if err != nil {
		return LLMConfig{}, err
	}
	timeout, err := parseDurationEnv("LLM_TIMEOUT", 2*time.Minute)
	if err != nil {
		return LLMConfig{}, err
	}

	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return LLMConfig{}, err
	}
	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return LLMConfig{}, err
	}
	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return LLMConfig{}, err
	}

	return LLMConfig{
		Backend:      strings.ToLower(getEnvOrDefault("LLM_BACKEND", "auto")),
		OllamaBinary: getEnvOrDefault("OLLAMA_BIN", "ollama"),
		OllamaModel:  getEnvOrDefault("OLLAMA_MODEL", "mistral"),
		ChunkWords:   chunkWords,
		ChunkDelay:   chunkDelay,
		Timeout:      timeout,
		Ark: ArkConfig{
			APIKey:      strings.TrimSpace(os.Getenv("ARK_API_KEY")),
			AccessKey:   strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
			SecretKey:   strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
			Model:       strings.TrimSpace(os.Getenv("ARK_MODEL")),
			BaseURL:     getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
			Region:      getEnvOrDefault("ARK_REGION", "cn-beijing"),
			Temperature: temperature,
			TopP:        topP,
			MaxTokens:   maxTokens,
		},
	}, nil
}

// OCRConfig tunes the text extraction pipeline.
type OCRConfig struct {
	Enabled         bool
	DefaultLanguage string
	Timeout         time.Duration
}

func loadOCRConfig() (OCRConfig, error) {
	enabled, err := parseBoolEnv("OCR_ENABLED", true)
	if err != nil {
		return OCRConfig{}, err
	}
	timeout, err := parseDurationEnv("OCR_TIMEOUT", 30*time.Second)
	if err != nil {
		return OCRConfig{}, err
	}
	return OCRConfig{
		Enabled:         enabled,
		DefaultLanguage: getEnvOrDefault("OCR_DEFAULT_LANGUAGE", "eng"),
		Timeout:         timeout,
	}, nil
}

// SessionConfig bounds the in-memory session store.
type SessionConfig struct {
	TTL           time.Duration
	SweepInterval time.Duration
}

func loadSessionConfig() (SessionConfig, error) {
	ttl, err := parseDurationEnv("SESSION_TTL", 30*time.Minute)
	if err != nil {
		return SessionConfig{}, err
	}
	sweep, err := parseDurationEnv("SESSION_SWEEP_INTERVAL", 5*time.Minute)
	if err != nil {
		return SessionConfig{}, err
	}
	return SessionConfig{TTL: ttl, SweepInterval: sweep}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}
	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}
	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}
	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}
	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
