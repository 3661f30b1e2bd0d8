// Package llm abstracts reply generation behind a streaming fragment
// interface with interchangeable backends.
package llm

import (
	"context"
	"errors"
	"io"
	"sync"
)

// streamBuffer bounds the fragment channel so a fast producer suspends until
// the consumer catches up.
const streamBuffer = 8

type chunk struct {
	text string
	err  error
}

// Stream delivers reply fragments in generation order. Recv returns io.EOF
// after the final fragment; Close cancels the producer and releases any
// resources it holds (including a running subprocess).
type Stream struct {
	ch     chan chunk
	cancel context.CancelFunc
	once   sync.Once
}

// Recv blocks until the next fragment is available. A non-nil error is
// terminal: io.EOF for orderly completion, anything else for a failed
// generation. Fragments already received stay delivered.
func (s *Stream) Recv() (string, error) {
	c, ok := <-s.ch
	if !ok {
		return "", io.EOF
	}
	if c.err != nil {
		return "", c.err
	}
	return c.text, nil
}

// Close stops the producer. Safe to call multiple times and after Recv
// returned io.EOF.
func (s *Stream) Close() {
	s.once.Do(s.cancel)
}

// Writer is the producer half of a stream pipe.
type Writer struct {
	ctx context.Context
	ch  chan chunk
}

// Pipe returns a connected Stream and Writer. The producer goroutine emits
// fragments through the Writer and must call Finish exactly once; closing
// the Stream cancels the Writer's context.
func Pipe(parent context.Context) (*Stream, *Writer) {
	ctx, cancel := context.WithCancel(parent)
	ch := make(chan chunk, streamBuffer)
	return &Stream{ch: ch, cancel: cancel}, &Writer{ctx: ctx, ch: ch}
}

// Context carries the consumer's cancellation signal into the producer.
func (w *Writer) Context() context.Context {
	return w.ctx
}

// Emit forwards one fragment. It reports false when the consumer is gone,
// in which case the producer should stop.
func (w *Writer) Emit(text string) bool {
	select {
	case w.ch <- chunk{text: text}:
		return true
	case <-w.ctx.Done():
		return false
	}
}

// Finish terminates the stream. A nil error (or a cancellation the consumer
// itself triggered) ends it orderly; any other error is surfaced to the next
// Recv before the stream ends.
func (w *Writer) Finish(err error) {
	if err != nil && !errors.Is(err, context.Canceled) {
		select {
		case w.ch <- chunk{err: err}:
		case <-w.ctx.Done():
		}
	}
	close(w.ch)
}
