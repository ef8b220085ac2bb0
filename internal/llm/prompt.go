package llm

import "unicode/utf8"

// SystemPrompt frames the model as a report extractor.
const SystemPrompt = "You are an expert at extracting structured data from aviation accident reports."

// ExtractionPrompt precedes the report text in the user message.
const ExtractionPrompt = `You are an expert aviation safety analyst. Extract the following information from this AAIB (Air Accidents Investigation Branch) report.

Return ONLY valid JSON with these exact fields:
{
  "title": "Report title",
  "date": "Date of the accident in YYYY-MM-DD format",
  "aircraft_type": "Type/model of aircraft",
  "registration": "Aircraft registration (e.g. G-ABCD)",
  "location": "Location of the accident",
  "summary": "Brief 1-2 sentence summary of what happened",
  "cause": "Primary cause or contributing factors"
}

If any field cannot be determined from the report, use null.

Report text:
`

// BuildUserPrompt appends the report text to the extraction instructions.
func BuildUserPrompt(text string) string {
	return ExtractionPrompt + text
}

// TruncateText keeps at most maxChars characters of text, preserving the prefix.
func TruncateText(text string, maxChars int) string {
	if maxChars <= 0 || utf8.RuneCountInString(text) <= maxChars {
		return text
	}
	n := 0
	for i := range text {
		if n == maxChars {
			return text[:i]
		}
		n++
	}
	return text
}
