package loaders

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"strings"

	fitz "github.com/gen2brain/go-fitz"
	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"
	"github.com/otiai10/gosseract/v2"

	"danesh/internal/rag/schema"
)

// ocrDPI is the rasterization resolution for scanned pages.
const ocrDPI = 300

// loadPDF extracts machine text page by page. Pages with no machine text
// (scanned pages) are rasterized and run through OCR instead. OCR failure
// leaves that page empty rather than failing the document; this is the only
// loader path that may legitimately produce no text at all.
func (r *Registry) loadPDF(ctx context.Context, path string) (*schema.Document, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}
	defer f.Close()

	// The rasterizer is opened lazily: most PDFs never need it.
	var raster *fitz.Document
	defer func() {
		if raster != nil {
			raster.Close()
		}
	}()

	var pages []string
	total := reader.NumPage()
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text := ""
		if t, err := page.GetPlainText(nil); err == nil {
			text = strings.TrimSpace(t)
		}

		if text == "" {
			if raster == nil {
				raster, err = fitz.New(path)
				if err != nil {
					r.log.WithError(err).WithField("path", path).Warn("cannot rasterize scanned pdf, skipping OCR")
					continue
				}
			}
			ocr, err := r.ocrPage(raster, i-1)
			if err != nil {
				r.log.WithError(err).WithField("page", i).Warn("ocr failed for scanned page")
				continue
			}
			text = ocr
		}

		if text != "" {
			pages = append(pages, text)
		}
	}

	return &schema.Document{
		ID:   uuid.New().String(),
		Text: strings.Join(pages, "\n"),
	}, nil
}

// ocrPage rasterizes one page (0-based for go-fitz) and runs tesseract on it.
func (r *Registry) ocrPage(raster *fitz.Document, pageIdx int) (string, error) {
	img, err := raster.ImageDPI(pageIdx, ocrDPI)
	if err != nil {
		return "", fmt.Errorf("failed to render page: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("failed to encode page image: %w", err)
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", fmt.Errorf("failed to hand image to tesseract: %w", err)
	}
	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("tesseract failed: %w", err)
	}
	return strings.TrimSpace(text), nil
}
