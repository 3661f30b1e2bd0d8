package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"log"
	"strings"

	"github.com/gen2brain/go-fitz"

	"github.com/savelyev/translit/backend/internal/script"
)

// pdfRenderDPI is the rasterization resolution for scanned pages. Tesseract
// wants at least ~300 DPI on book scans.
const pdfRenderDPI = 300

// IsPDF reports whether data starts with the PDF magic header.
func IsPDF(data []byte) bool {
	return bytes.HasPrefix(data, []byte("%PDF-"))
}

// pdfDocument narrows the page operations ExtractPDF needs. Narrowed to an
// interface so the per-page policy is testable without MuPDF installed.
type pdfDocument interface {
	pageCount() int
	pageText(n int) (string, error)
	renderPage(n int) ([]byte, error)
	close() error
}

// ExtractPDF pulls text out of a PDF page by page: pages with embedded text
// contribute it directly, scanned pages are rasterized and recognized with
// the same two-pass policy as standalone images. Page texts are joined with
// newlines in page order.
func (x *Extractor) ExtractPDF(ctx context.Context, data []byte) (Extraction, error) {
	doc, err := x.openPDF(data)
	if err != nil {
		return Extraction{}, fmt.Errorf("open pdf: %w", err)
	}
	defer doc.close()

	type page struct {
		text  string
		image []byte
	}
	pages := make([]page, 0, doc.pageCount())
	scanned := 0
	for n := 0; n < doc.pageCount(); n++ {
		text, err := doc.pageText(n)
		if err != nil {
			return Extraction{}, fmt.Errorf("read page %d text: %w", n, err)
		}
		if strings.TrimSpace(text) != "" {
			pages = append(pages, page{text: strings.TrimSpace(text)})
			continue
		}

		rendered, err := doc.renderPage(n)
		if err != nil {
			return Extraction{}, fmt.Errorf("render page %d: %w", n, err)
		}
		processed, err := Preprocess(rendered)
		if err != nil {
			return Extraction{}, fmt.Errorf("preprocess page %d: %w", n, err)
		}
		pages = append(pages, page{image: processed})
		scanned++
	}

	assemble := func(recognized map[int]string) string {
		parts := make([]string, 0, len(pages))
		for i, p := range pages {
			if p.image == nil {
				parts = append(parts, p.text)
			} else if text := strings.TrimSpace(recognized[i]); text != "" {
				parts = append(parts, text)
			}
		}
		return strings.Join(parts, "\n")
	}

	if scanned == 0 {
		text := assemble(nil)
		det := script.Detect(text)
		log.Printf("[ocr] pdf carried embedded text on all %d pages, script=%s", len(pages), det.Script)
		return Extraction{
			Text:       text,
			Script:     det.Script,
			Code:       det.Code,
			Confidence: det.Confidence,
		}, nil
	}

	// rough pass over the scanned pages bootstraps script detection
	rough := make(map[int]string, scanned)
	for i, p := range pages {
		if p.image == nil {
			continue
		}
		text, err := x.pass(ctx, p.image, []string{x.defaultLang})
		if err != nil {
			return Extraction{}, fmt.Errorf("ocr first pass (page %d): %w", i, err)
		}
		rough[i] = text
	}

	det := script.Detect(assemble(rough))
	languages := strings.Split(det.OCRLanguage, "+")

	final := make(map[int]string, scanned)
	for i, p := range pages {
		if p.image == nil {
			continue
		}
		text, err := x.pass(ctx, p.image, languages)
		if err != nil {
			return Extraction{}, fmt.Errorf("ocr second pass (page %d, %s): %w", i, det.OCRLanguage, err)
		}
		final[i] = text
	}

	text := assemble(final)
	log.Printf("[ocr] extracted %d bytes from %d pdf pages (%d scanned), script=%s confidence=%.2f",
		len(text), len(pages), scanned, det.Script, det.Confidence)
	return Extraction{
		Text:       text,
		Script:     det.Script,
		Code:       det.Code,
		Confidence: det.Confidence,
	}, nil
}

// fitzDocument is the production pdfDocument backed by MuPDF.
type fitzDocument struct {
	doc *fitz.Document
}

func openFitz(data []byte) (pdfDocument, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, err
	}
	return &fitzDocument{doc: doc}, nil
}

func (d *fitzDocument) pageCount() int {
	return d.doc.NumPage()
}

func (d *fitzDocument) pageText(n int) (string, error) {
	return d.doc.Text(n)
}

func (d *fitzDocument) renderPage(n int) ([]byte, error) {
	img, err := d.doc.ImageDPI(n, pdfRenderDPI)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode page render: %w", err)
	}
	return buf.Bytes(), nil
}

func (d *fitzDocument) close() error {
	return d.doc.Close()
}
