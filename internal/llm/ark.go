package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
)

// ArkClient drives a remote Ark chat model through an eino chain. It
// implements both Client (native streaming) and Generator (single-shot).
type ArkClient struct {
	chain compose.Runnable[map[string]any, *schema.Message]
}

// NewArkClient compiles the prompt chain around the supplied chat model.
func NewArkClient(ctx context.Context, chatModel model.ChatModel) (*ArkClient, error) {
	template := prompt.FromMessages(
		schema.FString,
		schema.UserMessage("{prompt}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(template)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile chat chain: %w", err)
	}
	return &ArkClient{chain: runnable}, nil
}

// StreamGenerate adapts the chain's StreamReader into a fragment stream.
func (c *ArkClient) StreamGenerate(ctx context.Context, promptText string) (*Stream, error) {
	reader, err := c.chain.Stream(ctx, map[string]any{"prompt": promptText})
	if err != nil {
		return nil, fmt.Errorf("stream chain output: %w", err)
	}

	stream, w := Pipe(ctx)
	go func() {
		defer reader.Close()
		for {
			msg, recvErr := reader.Recv()
			if errors.Is(recvErr, io.EOF) {
				w.Finish(nil)
				return
			}
			if recvErr != nil {
				w.Finish(recvErr)
				return
			}
			if msg == nil || msg.Content == "" {
				continue
			}
			if !w.Emit(msg.Content) {
				return
			}
		}
	}()
	return stream, nil
}

// Generate invokes the chain once and returns the full reply.
func (c *ArkClient) Generate(ctx context.Context, promptText string) (string, error) {
	msg, err := c.chain.Invoke(ctx, map[string]any{"prompt": promptText})
	if err != nil {
		return "", fmt.Errorf("invoke chat chain: %w", err)
	}
	return strings.TrimSpace(msg.Content), nil
}
