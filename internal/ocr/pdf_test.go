package ocr

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakePage struct {
	text    string
	render  []byte
	textErr error
}

// fakePDF scripts per-page content so the PDF policy runs without MuPDF.
type fakePDF struct {
	pages  []fakePage
	closed bool
}

func (d *fakePDF) pageCount() int { return len(d.pages) }

func (d *fakePDF) pageText(n int) (string, error) {
	return d.pages[n].text, d.pages[n].textErr
}

func (d *fakePDF) renderPage(n int) ([]byte, error) {
	if d.pages[n].render == nil {
		return nil, errors.New("no render scripted for page")
	}
	return d.pages[n].render, nil
}

func (d *fakePDF) close() error {
	d.closed = true
	return nil
}

func pdfExtractor(doc *fakePDF, engine engine) *Extractor {
	return &Extractor{
		engine:      engine,
		openPDF:     func([]byte) (pdfDocument, error) { return doc, nil },
		defaultLang: "eng",
	}
}

func TestExtractPDFEmbeddedTextSkipsOCR(t *testing.T) {
	engine := &fakeEngine{byLanguage: map[string]string{}}
	doc := &fakePDF{pages: []fakePage{
		{text: "Привет мир"},
		{text: "Добрый день"},
	}}

	x := pdfExtractor(doc, engine)
	got, err := x.ExtractPDF(context.Background(), []byte("%PDF-1.7"))
	if err != nil {
		t.Fatalf("ExtractPDF err: %v", err)
	}

	if got.Text != "Привет мир\nДобрый день" {
		t.Fatalf("text = %q, want page texts joined with newline", got.Text)
	}
	if got.Code != "Cyrl" {
		t.Fatalf("detection = %q, want Cyrl", got.Code)
	}
	if len(engine.calls) != 0 {
		t.Fatalf("engine invoked %d times for embedded text, want 0", len(engine.calls))
	}
	if !doc.closed {
		t.Fatal("document was not closed")
	}
}

func TestExtractPDFScannedPagesUseTwoPasses(t *testing.T) {
	engine := &fakeEngine{byLanguage: map[string]string{
		"eng": "Привет",
		"rus": "Привет снова",
	}}
	doc := &fakePDF{pages: []fakePage{
		{text: "Привет мир"},
		{render: testImagePNG(t)}, // scanned page, no embedded text
	}}

	x := pdfExtractor(doc, engine)
	got, err := x.ExtractPDF(context.Background(), []byte("%PDF-1.7"))
	if err != nil {
		t.Fatalf("ExtractPDF err: %v", err)
	}

	if got.Text != "Привет мир\nПривет снова" {
		t.Fatalf("text = %q, want embedded page then second-pass output", got.Text)
	}
	if got.Code != "Cyrl" {
		t.Fatalf("detection = %q, want Cyrl", got.Code)
	}
	if len(engine.calls) != 2 {
		t.Fatalf("engine called %d times, want rough + targeted pass", len(engine.calls))
	}
	if engine.calls[0][0] != "eng" {
		t.Fatalf("first pass languages = %v, want [eng]", engine.calls[0])
	}
	if strings.Join(engine.calls[1], "+") != "rus" {
		t.Fatalf("second pass languages = %v, want [rus]", engine.calls[1])
	}
}

func TestExtractPDFPageTextError(t *testing.T) {
	doc := &fakePDF{pages: []fakePage{
		{textErr: errors.New("damaged page tree")},
	}}

	x := pdfExtractor(doc, &fakeEngine{})
	if _, err := x.ExtractPDF(context.Background(), []byte("%PDF-1.7")); err == nil {
		t.Fatal("expected an error for an unreadable page")
	}
	if !doc.closed {
		t.Fatal("document was not closed on error")
	}
}

func TestExtractPDFOpenError(t *testing.T) {
	x := &Extractor{
		engine:      &fakeEngine{},
		openPDF:     func([]byte) (pdfDocument, error) { return nil, errors.New("not a pdf") },
		defaultLang: "eng",
	}
	if _, err := x.ExtractPDF(context.Background(), []byte("junk")); err == nil {
		t.Fatal("expected an open error to surface")
	}
}

func TestIsPDF(t *testing.T) {
	if !IsPDF([]byte("%PDF-1.4 rest of file")) {
		t.Fatal("expected the PDF magic header to be recognized")
	}
	if IsPDF(testImagePNG(t)) {
		t.Fatal("a PNG must not be classified as PDF")
	}
}
