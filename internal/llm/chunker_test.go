package llm_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/savelyev/translit/backend/internal/llm"
)

type staticGenerator string

func (g staticGenerator) Generate(_ context.Context, _ string) (string, error) {
	return string(g), nil
}

type failingGenerator struct{}

func (failingGenerator) Generate(_ context.Context, _ string) (string, error) {
	return "", errors.New("backend exploded")
}

func collect(t *testing.T, s *llm.Stream) []string {
	t.Helper()
	defer s.Close()
	var fragments []string
	for {
		fragment, err := s.Recv()
		if errors.Is(err, io.EOF) {
			return fragments
		}
		if err != nil {
			t.Fatalf("Recv err: %v", err)
		}
		fragments = append(fragments, fragment)
	}
}

func TestChunkingClientRoundTrip(t *testing.T) {
	response := "one two three four five six seven eight nine ten eleven twelve thirteen"
	client := llm.NewChunkingClient(staticGenerator(response), 6, time.Millisecond)

	stream, err := client.StreamGenerate(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("StreamGenerate err: %v", err)
	}
	fragments := collect(t, stream)

	if len(fragments) != 3 {
		t.Fatalf("got %d fragments, want 3: %v", len(fragments), fragments)
	}
	if joined := strings.Join(fragments, ""); joined != response {
		t.Fatalf("concatenated fragments = %q, want %q", joined, response)
	}
}

func TestChunkingClientWordGroupSize(t *testing.T) {
	client := llm.NewChunkingClient(staticGenerator("a b c d e"), 2, time.Millisecond)
	stream, _ := client.StreamGenerate(context.Background(), "")
	fragments := collect(t, stream)

	want := []string{"a b ", "c d ", "e"}
	if len(fragments) != len(want) {
		t.Fatalf("fragments = %v, want %v", fragments, want)
	}
	for i := range want {
		if fragments[i] != want[i] {
			t.Fatalf("fragment %d = %q, want %q", i, fragments[i], want[i])
		}
	}
}

func TestChunkingClientNoGenerator(t *testing.T) {
	client := llm.NewChunkingClient(nil, 0, 0)
	stream, _ := client.StreamGenerate(context.Background(), "anything")
	fragments := collect(t, stream)

	if len(fragments) != 1 || fragments[0] != llm.NoBackendReply {
		t.Fatalf("fragments = %v, want single placeholder", fragments)
	}
}

func TestChunkingClientGeneratorError(t *testing.T) {
	client := llm.NewChunkingClient(failingGenerator{}, 0, 0)
	stream, _ := client.StreamGenerate(context.Background(), "")
	defer stream.Close()

	_, err := stream.Recv()
	if err == nil || errors.Is(err, io.EOF) {
		t.Fatalf("expected generator error, got %v", err)
	}
	// the stream ends after a terminal error
	if _, err := stream.Recv(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF after terminal error, got %v", err)
	}
}

func TestStreamCloseStopsProducer(t *testing.T) {
	response := strings.Repeat("word ", 500)
	client := llm.NewChunkingClient(staticGenerator(response), 1, 10*time.Millisecond)
	stream, _ := client.StreamGenerate(context.Background(), "")

	if _, err := stream.Recv(); err != nil {
		t.Fatalf("first Recv err: %v", err)
	}
	stream.Close()

	// the producer must wind down instead of blocking forever
	deadline := time.After(2 * time.Second)
	for {
		done := make(chan error, 1)
		go func() {
			_, err := stream.Recv()
			done <- err
		}()
		select {
		case err := <-done:
			if errors.Is(err, io.EOF) {
				return
			}
		case <-deadline:
			t.Fatal("stream did not terminate after Close")
		}
	}
}
