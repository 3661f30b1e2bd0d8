// Package translit performs context-aware transliteration and translation
// through a synchronous generation backend.
package translit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/savelyev/translit/backend/internal/llm"
	"github.com/savelyev/translit/backend/internal/script"
)

var ErrNoBackend = errors.New("no generation backend configured")

// defaultExplanation fills in when the model omits the pipe-separated
// explanation part.
const defaultExplanation = "No explanation provided."

// Result is a completed transliteration, also used as session context for
// chat follow-ups.
type Result struct {
	OriginalText    string `json:"original_text"`
	SourceScript    string `json:"source_script"`
	TargetScript    string `json:"target_script"`
	Transliteration string `json:"transliteration"`
	Explanation     string `json:"explanation"`
}

// ContextValue shapes the result for session context storage.
func (r Result) ContextValue() map[string]any {
	return map[string]any{
		"transliteration": r.Transliteration,
		"explanation":     r.Explanation,
		"source_script":   r.SourceScript,
		"target_script":   r.TargetScript,
	}
}

// TranslationResult is a completed translation.
type TranslationResult struct {
	OriginalText string `json:"original_text"`
	SourceLang   string `json:"source_lang"`
	TargetLang   string `json:"target_lang"`
	Translation  string `json:"translation"`
	Explanation  string `json:"explanation"`
}

// ContextValue shapes the result for session context storage.
func (r TranslationResult) ContextValue() map[string]any {
	return map[string]any{
		"translation": r.Translation,
		"explanation": r.Explanation,
		"source_lang": r.SourceLang,
		"target_lang": r.TargetLang,
	}
}

// Service builds prompts, runs the generator and parses its pipe-format
// answers.
type Service struct {
	gen llm.Generator
}

// NewService wraps gen, which may be nil when no backend is configured;
// operations then fail with ErrNoBackend.
func NewService(gen llm.Generator) *Service {
	return &Service{gen: gen}
}

// Enabled reports whether a generation backend is wired.
func (s *Service) Enabled() bool {
	return s.gen != nil
}

// Transliterate converts text between scripts. Script identifiers accept
// ISO 15924 codes or known aliases.
func (s *Service) Transliterate(ctx context.Context, text, sourceScript, targetScript, extraContext string) (Result, error) {
	src, err := script.NormalizeCode(sourceScript)
	if err != nil {
		return Result{}, err
	}
	tgt, err := script.NormalizeCode(targetScript)
	if err != nil {
		return Result{}, err
	}
	if s.gen == nil {
		return Result{}, ErrNoBackend
	}

	response, err := s.gen.Generate(ctx, transliterationPrompt(text, src, tgt, extraContext))
	if err != nil {
		return Result{}, fmt.Errorf("transliterate: %w", err)
	}

	answer, explanation := splitPipe(response)
	return Result{
		OriginalText:    text,
		SourceScript:    src,
		TargetScript:    tgt,
		Transliteration: answer,
		Explanation:     explanation,
	}, nil
}

// Translate renders text into another language, keeping the same
// pipe-delimited answer format as transliteration.
func (s *Service) Translate(ctx context.Context, text, sourceLang, targetLang, extraContext string) (TranslationResult, error) {
	if s.gen == nil {
		return TranslationResult{}, ErrNoBackend
	}

	response, err := s.gen.Generate(ctx, translationPrompt(text, sourceLang, targetLang, extraContext))
	if err != nil {
		return TranslationResult{}, fmt.Errorf("translate: %w", err)
	}

	answer, explanation := splitPipe(response)
	return TranslationResult{
		OriginalText: text,
		SourceLang:   sourceLang,
		TargetLang:   targetLang,
		Translation:  answer,
		Explanation:  explanation,
	}, nil
}

// splitPipe parses "answer|explanation" model output.
func splitPipe(response string) (string, string) {
	parts := strings.SplitN(response, "|", 2)
	answer := strings.TrimSpace(parts[0])
	if len(parts) < 2 {
		return answer, defaultExplanation
	}
	return answer, strings.TrimSpace(parts[1])
}

func transliterationPrompt(text, src, tgt, extraContext string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Transliterate the following text from %s to %s.\nText: %q\n", src, tgt, text)
	if extraContext != "" {
		fmt.Fprintf(&b, "Context: %s\n", extraContext)
	}
	b.WriteString("Provide the transliteration followed by a brief explanation of your choices, separated by a pipe (|).\nFormat: [transliteration]|[explanation]\n\nAnswer:")
	return b.String()
}

func translationPrompt(text, sourceLang, targetLang, extraContext string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Translate the following text from %s to %s accurately.\nText: %q\n", sourceLang, targetLang, text)
	if extraContext != "" {
		fmt.Fprintf(&b, "Context: %s\n", extraContext)
	}
	b.WriteString("Provide the translated text followed by a brief explanation of your translation choices, separated by a pipe (|).\nFormat: [translation]|[explanation]\n\nAnswer:")
	return b.String()
}
