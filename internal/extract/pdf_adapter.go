package extract

import (
	"context"

	"github.com/joseph-ayodele/aaib-collector/internal/pdftext"
)

// PDFAdapter exposes a pdftext.Extractor as a TextExtractor.
type PDFAdapter struct {
	e *pdftext.Extractor
}

func NewPDFAdapter(e *pdftext.Extractor) *PDFAdapter {
	return &PDFAdapter{e: e}
}

func (a *PDFAdapter) Extract(ctx context.Context, path string) (TextExtractionResult, error) {
	r, err := a.e.Extract(ctx, path)
	return TextExtractionResult{
		Text:     r.Text,
		Pages:    r.Pages,
		Method:   r.Method,
		Duration: r.Duration,
	}, err
}
