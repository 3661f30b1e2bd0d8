// Package chat owns all conversation state and drives reply generation
// against the configured generation backend.
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/savelyev/translit/backend/internal/llm"
	"github.com/savelyev/translit/backend/internal/model/chat"
)

var ErrSessionNotFound = errors.New("session not found")

// promptPreamble opens every model prompt.
const promptPreamble = "You are a helpful linguistics assistant.\n"

// explanationCues trigger the context fast path, matched case-insensitively
// inside the user text.
var explanationCues = []string{"explain", "why", "how"}

// contextKeys the fast path consults, in priority order.
var contextKeys = []string{"transliteration", "translation"}

// Options tune the coordinator's streaming cadence and session lifecycle.
// Zero values select the defaults.
type Options struct {
	// ChunkWords and ChunkDelay shape the canned fallback so it is
	// indistinguishable from a chunking-adapter backend.
	ChunkWords int
	ChunkDelay time.Duration
	// SessionTTL bounds how long an idle session survives; zero disables
	// eviction.
	SessionTTL time.Duration
}

// Service is the chat coordinator: the exclusive owner of the session store.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]*session

	client llm.Client // nil means no generation backend is configured
	opts   Options
}

// session is internal store state. Its own mutex serializes message appends
// and context mutation so two channels sharing an id cannot interleave
// unsafely.
type session struct {
	mu         sync.Mutex
	id         string
	createdAt  time.Time
	lastActive time.Time
	messages   []chat.Message
	context    map[string]any
}

// NewService builds an empty coordinator. client may be nil; replies then
// fall back to a deterministic canned acknowledgment.
func NewService(client llm.Client, opts Options) *Service {
	if opts.ChunkWords <= 0 {
		opts.ChunkWords = llm.DefaultChunkWords
	}
	if opts.ChunkDelay <= 0 {
		opts.ChunkDelay = llm.DefaultChunkDelay
	}
	return &Service{
		sessions: make(map[string]*session),
		client:   client,
		opts:     opts,
	}
}

// CreateSession provisions a session, optionally seeded with context.
func (s *Service) CreateSession(_ context.Context, initialContext map[string]any) chat.Session {
	now := time.Now().UTC()
	sess := &session{
		id:         uuid.NewString(),
		createdAt:  now,
		lastActive: now,
		messages:   make([]chat.Message, 0, 16),
		context:    make(map[string]any, len(initialContext)),
	}
	for k, v := range initialContext {
		sess.context[k] = v
	}

	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()

	return chat.Session{ID: sess.id, CreatedAt: sess.createdAt}
}

// GetSession retrieves a session handle by identifier.
func (s *Service) GetSession(_ context.Context, sessionID string) (chat.Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return chat.Session{}, ErrSessionNotFound
	}
	return chat.Session{ID: sess.id, CreatedAt: sess.createdAt}, nil
}

// AddContext stores a contextual value on an existing session. Unknown ids
// are a hard error, unlike GenerateReply's auto-create path.
func (s *Service) AddContext(_ context.Context, sessionID, key string, value any) error {
	s.mu.RLock()
	sess, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return ErrSessionNotFound
	}

	sess.mu.Lock()
	sess.context[key] = value
	sess.lastActive = time.Now().UTC()
	sess.mu.Unlock()
	return nil
}

// Transcript returns a copy of the session's message log.
func (s *Service) Transcript(_ context.Context, sessionID string) ([]chat.Message, error) {
	s.mu.RLock()
	sess, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	copied := make([]chat.Message, len(sess.messages))
	copy(copied, sess.messages)
	return copied, nil
}

// GenerateReply appends the user text and returns a stream of assistant
// fragments. An unknown session id is recovered by creating a session bound
// to that id rather than reporting not-found.
func (s *Service) GenerateReply(ctx context.Context, sessionID, text string) (*llm.Stream, error) {
	sess := s.resolveOrCreate(sessionID)
	sess.append(chat.RoleUser, text)

	// Fast path: reuse an already-computed explanation instead of
	// re-invoking the model for "why"/"how" follow-ups.
	if explanation := sess.storedExplanation(text); explanation != "" {
		sess.append(chat.RoleAssistant, explanation)
		stream, w := llm.Pipe(ctx)
		go func() {
			w.Emit(explanation)
			w.Finish(nil)
		}()
		return stream, nil
	}

	prompt := sess.buildPrompt(text)

	upstream := s.openUpstream(ctx, prompt, text)
	stream, w := llm.Pipe(ctx)
	go s.pump(upstream, w, sess)
	return stream, nil
}

// openUpstream selects the configured backend or the canned fallback. The
// fallback reuses the chunking client so its cadence matches a real
// non-streaming backend exactly.
func (s *Service) openUpstream(ctx context.Context, prompt, userText string) *llm.Stream {
	client := s.client
	if client == nil {
		reply := fmt.Sprintf("Assistant: I received your message: '%s'. How can I help further?", userText)
		client = llm.NewChunkingClient(cannedGenerator(reply), s.opts.ChunkWords, s.opts.ChunkDelay)
	}

	upstream, err := client.StreamGenerate(ctx, prompt)
	if err != nil {
		// surfaced through the stream so callers have one error path
		failed, w := llm.Pipe(ctx)
		w.Finish(err)
		return failed
	}
	return upstream
}

// pump forwards backend fragments to the caller, recording each one on the
// session as an assistant message addition. Fragments already forwarded are
// never retracted when the backend fails mid-reply.
func (s *Service) pump(upstream *llm.Stream, w *llm.Writer, sess *session) {
	defer upstream.Close()
	for {
		fragment, err := upstream.Recv()
		if errors.Is(err, io.EOF) {
			w.Finish(nil)
			return
		}
		if err != nil {
			log.Printf("[chat] generation failed for session=%s: %v", sess.id, err)
			w.Finish(err)
			return
		}
		sess.append(chat.RoleAssistant, fragment)
		if !w.Emit(fragment) {
			// a late Recv after Close must still reach EOF
			w.Finish(nil)
			return
		}
	}
}

func (s *Service) resolveOrCreate(sessionID string) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[sessionID]; ok {
		return sess
	}

	now := time.Now().UTC()
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	sess := &session{
		id:         sessionID,
		createdAt:  now,
		lastActive: now,
		messages:   make([]chat.Message, 0, 16),
		context:    make(map[string]any),
	}
	s.sessions[sessionID] = sess
	return sess
}

// EvictIdle removes sessions whose last activity predates cutoff and
// returns how many were dropped.
func (s *Service) EvictIdle(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := 0
	for id, sess := range s.sessions {
		sess.mu.Lock()
		idle := sess.lastActive.Before(cutoff)
		sess.mu.Unlock()
		if idle {
			delete(s.sessions, id)
			evicted++
		}
	}
	return evicted
}

// StartEvictor sweeps idle sessions on the given interval until ctx ends.
// No-op when the TTL is zero.
func (s *Service) StartEvictor(ctx context.Context, interval time.Duration) {
	if s.opts.SessionTTL <= 0 || interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.EvictIdle(time.Now().UTC().Add(-s.opts.SessionTTL)); n > 0 {
					log.Printf("[chat] evicted %d idle sessions", n)
				}
			}
		}
	}()
}

func (sess *session) append(role, text string) chat.Message {
	msg := chat.Message{
		ID:        uuid.NewString(),
		SessionID: sess.id,
		Role:      role,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}

	sess.mu.Lock()
	sess.messages = append(sess.messages, msg)
	sess.lastActive = msg.CreatedAt
	sess.mu.Unlock()
	return msg
}

// storedExplanation returns a prior explanation when the user text carries
// an explanation-seeking cue and the session context holds one.
func (sess *session) storedExplanation(text string) string {
	lower := strings.ToLower(text)
	cued := false
	for _, cue := range explanationCues {
		if strings.Contains(lower, cue) {
			cued = true
			break
		}
	}
	if !cued {
		return ""
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	for _, key := range contextKeys {
		if explanation := explanationOf(sess.context[key]); explanation != "" {
			return explanation
		}
	}
	return ""
}

func explanationOf(value any) string {
	payload, ok := value.(map[string]any)
	if !ok {
		return ""
	}
	explanation, _ := payload["explanation"].(string)
	return explanation
}

// buildPrompt concatenates the system preamble, whichever contextual results
// the session holds, and the new user text.
func (sess *session) buildPrompt(userText string) string {
	var b strings.Builder
	b.WriteString(promptPreamble)

	sess.mu.Lock()
	var parts []string
	if tl, ok := sess.context["transliteration"].(map[string]any); ok {
		parts = append(parts, fmt.Sprintf("Transliteration: %v Explanation: %v", tl["transliteration"], tl["explanation"]))
	}
	if tr, ok := sess.context["translation"].(map[string]any); ok {
		parts = append(parts, fmt.Sprintf("Translation: %v Explanation: %v", tr["translation"], tr["explanation"]))
	}
	sess.mu.Unlock()

	if len(parts) > 0 {
		fmt.Fprintf(&b, "Context:\n%s\n\n", strings.Join(parts, "\n"))
	}
	fmt.Fprintf(&b, "User: %s\nAssistant:", userText)
	return b.String()
}

// cannedGenerator replays a fixed reply through the chunking client so the
// no-backend path streams exactly like a configured one.
type cannedGenerator string

func (g cannedGenerator) Generate(_ context.Context, _ string) (string, error) {
	return string(g), nil
}
