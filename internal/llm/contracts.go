package llm

import "context"

// ReportFields is the normalized shape we want from the LLM. Unknown values are null.
type ReportFields struct {
	Title        *string `json:"title"`
	Date         *string `json:"date"` // YYYY-MM-DD
	AircraftType *string `json:"aircraft_type"`
	Registration *string `json:"registration"`
	Location     *string `json:"location"`
	Summary      *string `json:"summary"` // 1-2 sentences
	Cause        *string `json:"cause"`
}

type ExtractRequest struct {
	Text string // report text, already truncated by the caller
}

// FieldExtractor is the interface our pipeline depends on.
type FieldExtractor interface {
	ExtractFields(ctx context.Context, req ExtractRequest) (ReportFields, []byte /*rawJSON*/, error)
	// Model identifies the provider and model, e.g. "openai/gpt-4o".
	Model() string
}
