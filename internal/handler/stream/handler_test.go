package stream

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/savelyev/translit/backend/internal/llm"
	chatservice "github.com/savelyev/translit/backend/internal/service/chat"
)

type staticGenerator string

func (g staticGenerator) Generate(_ context.Context, _ string) (string, error) {
	return string(g), nil
}

func parseEvents(t *testing.T, body string) []StreamResponse {
	t.Helper()
	var events []StreamResponse
	for _, line := range strings.Split(body, "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev StreamResponse
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			t.Fatalf("parse SSE line %q: %v", line, err)
		}
		events = append(events, ev)
	}
	return events
}

func TestHandleStreamRequest(t *testing.T) {
	client := llm.NewChunkingClient(staticGenerator("alpha beta gamma delta"), 2, time.Millisecond)
	chatSvc := chatservice.NewService(client, chatservice.Options{
		ChunkWords: 2,
		ChunkDelay: time.Millisecond,
	})
	handler := New(chatSvc)

	sess := chatSvc.CreateSession(context.Background(), nil)
	rec := httptest.NewRecorder()

	if err := handler.HandleStreamRequest(context.Background(), rec, sess.ID, "hello"); err != nil {
		t.Fatalf("HandleStreamRequest err: %v", err)
	}

	if got := rec.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("Content-Type = %q, want text/event-stream", got)
	}

	events := parseEvents(t, rec.Body.String())
	if len(events) < 3 {
		t.Fatalf("expected start, deltas and end, got %v", events)
	}
	if events[0].Event != "start" {
		t.Fatalf("first event = %q, want start", events[0].Event)
	}
	last := events[len(events)-1]
	if last.Event != "end" || !last.Finished {
		t.Fatalf("last event = %+v, want finished end", last)
	}

	var content strings.Builder
	for _, ev := range events {
		if ev.Event == "delta" {
			content.WriteString(ev.Content)
		}
	}
	if content.String() != "alpha beta gamma delta" {
		t.Fatalf("deltas reassemble to %q", content.String())
	}
}

func TestHandleStreamRequestBackendError(t *testing.T) {
	chatSvc := chatservice.NewService(failingClient{}, chatservice.Options{})
	handler := New(chatSvc)

	sess := chatSvc.CreateSession(context.Background(), nil)
	rec := httptest.NewRecorder()

	if err := handler.HandleStreamRequest(context.Background(), rec, sess.ID, "hello"); err == nil {
		t.Fatalf("expected an error from a failing backend")
	}

	events := parseEvents(t, rec.Body.String())
	last := events[len(events)-1]
	if last.Event != "error" || last.Error == "" {
		t.Fatalf("last event = %+v, want error", last)
	}
}

type failingClient struct{}

func (failingClient) StreamGenerate(ctx context.Context, _ string) (*llm.Stream, error) {
	stream, w := llm.Pipe(ctx)
	w.Finish(context.DeadlineExceeded)
	return stream, nil
}
