// Package ocr extracts text from scanned images with a script-aware
// two-pass Tesseract pipeline.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/otiai10/gosseract/v2"

	"github.com/savelyev/translit/backend/internal/script"
)

// Config tunes the extraction pipeline.
type Config struct {
	// DefaultLanguage is the neutral hint for the first OCR pass, before
	// the script is known.
	DefaultLanguage string
	// Timeout bounds each OCR pass; zero means no limit.
	Timeout time.Duration
}

// Extraction pairs the recognized text with the script detection that chose
// the second-pass language.
type Extraction struct {
	Text       string  `json:"text"`
	Script     string  `json:"detected_script"`
	Code       string  `json:"iso_code"`
	Confidence float64 `json:"confidence"`
}

// engine performs a single OCR pass over an encoded image. Narrowed to an
// interface so the two-pass policy is testable without Tesseract installed.
type engine interface {
	recognize(ctx context.Context, image []byte, languages []string) (string, error)
}

// Extractor runs the two-pass policy: a rough pass with the default
// language bootstraps script detection, which picks the language hint for
// the pass whose output is returned.
type Extractor struct {
	engine      engine
	openPDF     func(data []byte) (pdfDocument, error)
	defaultLang string
	timeout     time.Duration
}

// New verifies the Tesseract installation up front and returns a ready
// extractor. A missing engine or empty language data is a configuration
// error, reported here rather than per request.
func New(cfg Config) (*Extractor, error) {
	langs, err := gosseract.GetAvailableLanguages()
	if err != nil {
		return nil, fmt.Errorf("tesseract unavailable: %w", err)
	}
	if len(langs) == 0 {
		return nil, errors.New("tesseract has no language data installed")
	}
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = "eng"
	}
	return &Extractor{
		engine:      &tesseractEngine{clientFactory: gosseract.NewClient},
		openPDF:     openFitz,
		defaultLang: cfg.DefaultLanguage,
		timeout:     cfg.Timeout,
	}, nil
}

// Extract runs preprocessing and both OCR passes over an encoded image.
func (x *Extractor) Extract(ctx context.Context, image []byte) (Extraction, error) {
	processed, err := Preprocess(image)
	if err != nil {
		return Extraction{}, fmt.Errorf("preprocess image: %w", err)
	}

	rough, err := x.pass(ctx, processed, []string{x.defaultLang})
	if err != nil {
		return Extraction{}, fmt.Errorf("ocr first pass: %w", err)
	}

	det := script.Detect(rough)
	languages := strings.Split(det.OCRLanguage, "+")

	text, err := x.pass(ctx, processed, languages)
	if err != nil {
		return Extraction{}, fmt.Errorf("ocr second pass (%s): %w", det.OCRLanguage, err)
	}

	log.Printf("[ocr] extracted %d bytes, script=%s confidence=%.2f", len(text), det.Script, det.Confidence)
	return Extraction{
		Text:       strings.TrimSpace(text),
		Script:     det.Script,
		Code:       det.Code,
		Confidence: det.Confidence,
	}, nil
}

// pass applies the per-pass timeout around one engine invocation.
func (x *Extractor) pass(ctx context.Context, image []byte, languages []string) (string, error) {
	if x.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, x.timeout)
		defer cancel()
	}

	type passResult struct {
		text string
		err  error
	}
	done := make(chan passResult, 1)
	go func() {
		text, err := x.engine.recognize(ctx, image, languages)
		done <- passResult{text: text, err: err}
	}()

	select {
	case r := <-done:
		return r.text, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// tesseractEngine is the production engine backed by gosseract. A fresh
// client per pass keeps passes independent.
type tesseractEngine struct {
	clientFactory func() *gosseract.Client
}

func (e *tesseractEngine) recognize(_ context.Context, image []byte, languages []string) (string, error) {
	c := e.clientFactory()
	defer c.Close()

	if err := c.SetImageFromBytes(image); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	if len(languages) > 0 {
		if err := c.SetLanguage(languages...); err != nil {
			return "", fmt.Errorf("set languages: %w", err)
		}
	}
	text, err := c.Text()
	if err != nil {
		return "", fmt.Errorf("recognize text: %w", err)
	}
	return strings.TrimSpace(text), nil
}
