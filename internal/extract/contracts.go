package extract

import (
	"context"
	"time"

	"github.com/joseph-ayodele/aaib-collector/internal/entity"
)

// TextExtractor is Stage 1: file -> text.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (TextExtractionResult, error)
}

type TextExtractionResult struct {
	Text     string
	Pages    int
	Method   string // "native" | "pdftotext"
	Duration time.Duration
}

// FieldExtractor is Stage 2: text -> field record. Implementations never fail;
// problems are reported in FieldRecord.Error.
type FieldExtractor interface {
	Extract(ctx context.Context, text string) entity.FieldRecord
	// Name identifies the strategy in logs and the run ledger.
	Name() string
}
