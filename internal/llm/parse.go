package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ParseReportFields validates a model reply strictly, falls back to NormalizeReportJSON once,
// and decodes the result. The returned bytes are the document that passed validation.
func ParseReportFields(schema *jsonschema.Schema, content string, logger *slog.Logger) (ReportFields, []byte, error) {
	if logger == nil {
		logger = slog.Default()
	}
	raw := []byte(stripCodeFence(content))

	if err := ValidateJSONAgainstSchema(schema, raw); err != nil {
		cleaned, changed, sErr := NormalizeReportJSON(raw, logger)
		if sErr != nil {
			return ReportFields{}, raw, fmt.Errorf("sanitize failed: %w", sErr)
		}
		if vErr := ValidateJSONAgainstSchema(schema, cleaned); vErr != nil {
			return ReportFields{}, cleaned, fmt.Errorf("schema validation failed: %w", vErr)
		}
		logger.Warn("llm.extract.lenient_sanitize_applied", "changed", changed, "strict_error", err)
		raw = cleaned
	}

	var out ReportFields
	if err := json.Unmarshal(raw, &out); err != nil {
		return ReportFields{}, raw, fmt.Errorf("unmarshal fields: %w", err)
	}
	return out, raw, nil
}

// stripCodeFence removes a ```json fence some models wrap around JSON output.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
