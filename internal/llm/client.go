package llm

import "context"

// Client produces a reply to a prompt as an incremental fragment stream.
// Fragment boundaries are backend-specific: the subprocess client chunks by
// bytes and may split mid-word, so callers must not assume word boundaries.
type Client interface {
	StreamGenerate(ctx context.Context, prompt string) (*Stream, error)
}

// Generator is the synchronous single-shot contract for backends without
// native streaming. ChunkingClient adapts a Generator into a Client.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
