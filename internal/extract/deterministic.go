package extract

import (
	"context"
	"strings"

	"github.com/joseph-ayodele/aaib-collector/internal/entity"
)

const maxTitleChars = 100

// Deterministic fills a record from the text alone, with no external calls.
// The title comes from the first line; the other fields are fixed placeholders.
type Deterministic struct{}

func (Deterministic) Name() string { return "deterministic" }

func (Deterministic) Extract(_ context.Context, text string) entity.FieldRecord {
	return entity.FieldRecord{
		Title:        entity.Str(firstLineTitle(text)),
		Date:         entity.Str("2024-01-15"),
		AircraftType: entity.Str("Example Aircraft Type"),
		Registration: entity.Str("G-ABCD"),
		Location:     entity.Str("Example Location, UK"),
		Summary:      entity.Str("This is a dummy extraction. Real data would come from LLM analysis."),
		Cause:        entity.Str("Dummy cause - replace with actual LLM when API key is configured"),
	}
}

func firstLineTitle(text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "Unknown Report"
	}
	line, _, _ := strings.Cut(trimmed, "\n")
	line = strings.TrimSpace(line)
	if r := []rune(line); len(r) > maxTitleChars {
		line = string(r[:maxTitleChars])
	}
	return line
}
