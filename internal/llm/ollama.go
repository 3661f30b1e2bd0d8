package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"
)

// readChunkSize is the stdout read granularity. Fragments are byte-chunked,
// not token- or line-delimited.
const readChunkSize = 1024

// OllamaClient streams replies from a locally installed `ollama run <model>`
// subprocess. The prompt goes to stdin; stdout is forwarded incrementally.
type OllamaClient struct {
	path    string
	model   string
	timeout time.Duration
}

// NewOllamaClient resolves the model-runner executable up front so a missing
// installation surfaces as a configuration error, not a per-request one.
func NewOllamaClient(binary, model string, timeout time.Duration) (*OllamaClient, error) {
	if binary == "" {
		binary = "ollama"
	}
	path, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("%q executable not found on PATH: %w", binary, err)
	}
	return &OllamaClient{path: path, model: model, timeout: timeout}, nil
}

// StreamGenerate launches the subprocess and yields decoded stdout chunks as
// they arrive. Closing the returned stream kills the child process.
func (c *OllamaClient) StreamGenerate(ctx context.Context, prompt string) (*Stream, error) {
	stream, w := Pipe(ctx)
	go c.run(w, prompt)
	return stream, nil
}

func (c *OllamaClient) run(w *Writer, prompt string) {
	ctx := w.Context()
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, c.path, "run", c.model)
	cmd.Stdin = strings.NewReader(prompt)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		w.Finish(fmt.Errorf("open stdout pipe: %w", err))
		return
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		w.Finish(fmt.Errorf("start %s: %w", c.path, err))
		return
	}

	buf := make([]byte, readChunkSize)
	for {
		n, readErr := stdout.Read(buf)
		if n > 0 {
			if !w.Emit(string(buf[:n])) {
				// consumer disconnected; ctx cancellation kills the child
				_ = cmd.Wait()
				w.Finish(nil)
				return
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			_ = cmd.Wait()
			w.Finish(fmt.Errorf("read model output: %w", readErr))
			return
		}
	}

	if err := cmd.Wait(); err != nil {
		w.Finish(fmt.Errorf("model runner failed: %w: %s", err, strings.TrimSpace(stderr.String())))
		return
	}
	w.Finish(nil)
}

// Generate runs the subprocess to completion and returns the full trimmed
// output, for callers that need a single-shot reply.
func (c *OllamaClient) Generate(ctx context.Context, prompt string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, c.path, "run", c.model)
	cmd.Stdin = strings.NewReader(prompt)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("model runner failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}
