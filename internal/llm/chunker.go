package llm

import (
	"context"
	"strings"
	"time"
)

// Defaults for the simulated-streaming cadence.
const (
	DefaultChunkWords = 6
	DefaultChunkDelay = 30 * time.Millisecond
)

// NoBackendReply is the single fragment emitted when no generator is wired.
const NoBackendReply = "Assistant: I don't have a language model configured."

// ChunkingClient adapts a synchronous Generator to the streaming Client
// contract by splitting the full response into fixed-size word groups and
// pausing briefly between them.
type ChunkingClient struct {
	gen   Generator
	words int
	delay time.Duration
}

// NewChunkingClient wraps gen; zero words or delay select the defaults.
// A nil gen is allowed and produces a fixed placeholder reply.
func NewChunkingClient(gen Generator, words int, delay time.Duration) *ChunkingClient {
	if words <= 0 {
		words = DefaultChunkWords
	}
	if delay <= 0 {
		delay = DefaultChunkDelay
	}
	return &ChunkingClient{gen: gen, words: words, delay: delay}
}

// StreamGenerate runs the wrapped generator once and replays its response in
// word-group fragments.
func (c *ChunkingClient) StreamGenerate(ctx context.Context, prompt string) (*Stream, error) {
	stream, w := Pipe(ctx)
	go func() {
		if c.gen == nil {
			w.Emit(NoBackendReply)
			w.Finish(nil)
			return
		}
		response, err := c.gen.Generate(w.Context(), prompt)
		if err != nil {
			w.Finish(err)
			return
		}
		EmitChunked(w, response, c.words, c.delay)
		w.Finish(nil)
	}()
	return stream, nil
}

// EmitChunked writes text to w in word groups of the given size with a pause
// between groups. Exposed so callers emulating a backend (the coordinator's
// canned fallback) produce the exact same cadence as ChunkingClient.
func EmitChunked(w *Writer, text string, words int, delay time.Duration) {
	if words <= 0 {
		words = DefaultChunkWords
	}
	fields := strings.Fields(text)
	for i := 0; i < len(fields); i += words {
		end := min(i+words, len(fields))
		group := strings.Join(fields[i:end], " ")
		if end < len(fields) {
			// fragments concatenate directly, matching byte-stream backends
			group += " "
		}
		if !w.Emit(group) {
			return
		}
		if end < len(fields) && delay > 0 {
			select {
			case <-time.After(delay):
			case <-w.Context().Done():
				return
			}
		}
	}
}
