package ocr

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"time"
)

// fakeEngine scripts per-language OCR output so the two-pass policy can be
// exercised without Tesseract.
type fakeEngine struct {
	byLanguage map[string]string
	calls      [][]string
	delay      time.Duration
}

func (e *fakeEngine) recognize(ctx context.Context, _ []byte, languages []string) (string, error) {
	e.calls = append(e.calls, languages)
	if e.delay > 0 {
		select {
		case <-time.After(e.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if text, ok := e.byLanguage[strings.Join(languages, "+")]; ok {
		return text, nil
	}
	return "", errors.New("no scripted output for languages " + strings.Join(languages, "+"))
}

func testImagePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 40; x++ {
			c := color.RGBA{255, 255, 255, 255}
			if x%7 == 0 {
				c = color.RGBA{10, 10, 10, 255}
			}
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test image: %v", err)
	}
	return buf.Bytes()
}

func TestExtractTwoPassUsesDetectedLanguage(t *testing.T) {
	engine := &fakeEngine{byLanguage: map[string]string{
		"eng": "Привет",     // rough transcript, good enough for detection
		"rus": "Привет мир", // second pass with the detected hint
	}}

	x := &Extractor{engine: engine, defaultLang: "eng"}
	got, err := x.Extract(context.Background(), testImagePNG(t))
	if err != nil {
		t.Fatalf("Extract err: %v", err)
	}

	if got.Text != "Привет мир" {
		t.Fatalf("text = %q, want second-pass output", got.Text)
	}
	if got.Code != "Cyrl" || got.Script != "Cyrillic" {
		t.Fatalf("detection = %q/%q, want Cyrillic/Cyrl", got.Script, got.Code)
	}
	if len(engine.calls) != 2 {
		t.Fatalf("engine called %d times, want 2", len(engine.calls))
	}
	if engine.calls[0][0] != "eng" {
		t.Fatalf("first pass languages = %v, want [eng]", engine.calls[0])
	}
	if engine.calls[1][0] != "rus" {
		t.Fatalf("second pass languages = %v, want [rus]", engine.calls[1])
	}
}

func TestExtractUnknownScriptUsesMultiLanguageFallback(t *testing.T) {
	engine := &fakeEngine{byLanguage: map[string]string{
		"eng": "1234 5678",
		"eng+rus+ara+hin+jpn+kor+chi_sim+chi_tra+tha+tam+tel+kan+mal": "1234 5678",
	}}

	x := &Extractor{engine: engine, defaultLang: "eng"}
	got, err := x.Extract(context.Background(), testImagePNG(t))
	if err != nil {
		t.Fatalf("Extract err: %v", err)
	}
	if got.Script != "Unknown" || got.Confidence != 0 {
		t.Fatalf("detection = %+v, want Unknown with zero confidence", got)
	}
	if len(engine.calls[1]) < 2 {
		t.Fatalf("second pass should carry the multi-language list, got %v", engine.calls[1])
	}
}

func TestExtractTimeout(t *testing.T) {
	engine := &fakeEngine{
		byLanguage: map[string]string{"eng": "text"},
		delay:      200 * time.Millisecond,
	}

	x := &Extractor{engine: engine, defaultLang: "eng", timeout: 10 * time.Millisecond}
	if _, err := x.Extract(context.Background(), testImagePNG(t)); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestExtractBadImage(t *testing.T) {
	x := &Extractor{engine: &fakeEngine{}, defaultLang: "eng"}
	if _, err := x.Extract(context.Background(), []byte("not an image")); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestPreprocessProducesBinaryGrayscalePNG(t *testing.T) {
	processed, err := Preprocess(testImagePNG(t))
	if err != nil {
		t.Fatalf("Preprocess err: %v", err)
	}

	img, err := png.Decode(bytes.NewReader(processed))
	if err != nil {
		t.Fatalf("decode processed image: %v", err)
	}

	gray, ok := img.(*image.Gray)
	if !ok {
		t.Fatalf("processed image is %T, want *image.Gray", img)
	}
	if gray.Bounds().Dx() < minOCRWidth {
		t.Fatalf("width = %d, want >= %d (upscaled)", gray.Bounds().Dx(), minOCRWidth)
	}
	for _, p := range gray.Pix {
		if p != 0 && p != 0xff {
			t.Fatalf("pixel %d not binarized", p)
		}
	}
}
