package report

import (
	"bytes"
	"fmt"
	"image/png"

	"github.com/gen2brain/go-fitz"
)

const DefaultPreviewDPI = 72

// Preview renders one page of a generated PDF to PNG.
func Preview(pdf []byte, page int, dpi float64) ([]byte, error) {
	if dpi <= 0 {
		dpi = DefaultPreviewDPI
	}

	doc, err := fitz.NewFromMemory(pdf)
	if err != nil {
		return nil, fmt.Errorf("error opening pdf: %w", err)
	}
	defer doc.Close()

	if page < 0 || page >= doc.NumPage() {
		return nil, fmt.Errorf("page %d out of range, report has %d pages", page, doc.NumPage())
	}

	img, err := doc.ImageDPI(page, dpi)
	if err != nil {
		return nil, fmt.Errorf("error rendering page %d: %w", page, err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("error encoding page %d: %w", page, err)
	}
	return buf.Bytes(), nil
}

func PageCount(pdf []byte) (int, error) {
	doc, err := fitz.NewFromMemory(pdf)
	if err != nil {
		return 0, fmt.Errorf("error opening pdf: %w", err)
	}
	defer doc.Close()
	return doc.NumPage(), nil
}
