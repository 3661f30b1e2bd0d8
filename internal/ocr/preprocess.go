package ocr

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"golang.org/x/image/draw"

	// register decoders for common upload formats
	_ "image/gif"
	_ "image/jpeg"
)

// minOCRWidth is the width small scans are upscaled to before recognition;
// Tesseract degrades sharply on low-resolution input.
const minOCRWidth = 1000

// Preprocess prepares a scanned image for OCR: decode, upscale small
// images, convert to grayscale and binarize around the mean luminance.
// The result is PNG-encoded.
func Preprocess(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	if img.Bounds().Dx() < minOCRWidth {
		img = upscale(img, minOCRWidth)
	}

	gray := toGray(img)
	binarize(gray)

	var buf bytes.Buffer
	if err := png.Encode(&buf, gray); err != nil {
		return nil, fmt.Errorf("encode processed image: %w", err)
	}
	return buf.Bytes(), nil
}

func upscale(img image.Image, width int) image.Image {
	bounds := img.Bounds()
	scale := float64(width) / float64(bounds.Dx())
	height := int(float64(bounds.Dy()) * scale)

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

func toGray(img image.Image) *image.Gray {
	bounds := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(gray, gray.Bounds(), img, bounds.Min, draw.Src)
	return gray
}

// binarize applies a global threshold at the mean intensity, which copes
// well enough with evenly lit scans of both Latin and CJK text.
func binarize(gray *image.Gray) {
	var sum uint64
	for _, p := range gray.Pix {
		sum += uint64(p)
	}
	if len(gray.Pix) == 0 {
		return
	}
	threshold := uint8(sum / uint64(len(gray.Pix)))

	for i, p := range gray.Pix {
		if p > threshold {
			gray.Pix[i] = 0xff
		} else {
			gray.Pix[i] = 0
		}
	}
}
