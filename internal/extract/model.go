package extract

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/aaib-collector/internal/common"
	"github.com/joseph-ayodele/aaib-collector/internal/entity"
	"github.com/joseph-ayodele/aaib-collector/internal/llm"
)

// Model delegates to an external text-generation provider.
type Model struct {
	provider      llm.FieldExtractor
	maxInputChars int
	logger        *slog.Logger
}

func NewModel(provider llm.FieldExtractor, maxInputChars int, logger *slog.Logger) *Model {
	if logger == nil {
		logger = slog.Default()
	}
	if maxInputChars <= 0 {
		maxInputChars = 20000
	}
	return &Model{provider: provider, maxInputChars: maxInputChars, logger: logger}
}

func (m *Model) Name() string { return m.provider.Model() }

// Extract sends the text prefix to the provider. Any failure yields a record
// with null domain fields and the failure in Error.
func (m *Model) Extract(ctx context.Context, text string) entity.FieldRecord {
	logger := common.LoggerFromContext(ctx, m.logger)
	truncated := llm.TruncateText(text, m.maxInputChars)
	if len(truncated) < len(text) {
		logger.Debug("extract.model.truncated", "from_bytes", len(text), "to_chars", m.maxInputChars)
	}

	f, _, err := m.provider.ExtractFields(ctx, llm.ExtractRequest{Text: truncated})
	if err != nil {
		logger.Error("extract.model.failed", "model", m.provider.Model(), "error", err)
		return entity.FieldRecord{Error: err.Error()}
	}
	return entity.FieldRecord{
		Title:        f.Title,
		Date:         f.Date,
		AircraftType: f.AircraftType,
		Registration: f.Registration,
		Location:     f.Location,
		Summary:      f.Summary,
		Cause:        f.Cause,
	}
}
