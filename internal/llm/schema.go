package llm

// FieldNames lists the keys the model must return, in output order.
var FieldNames = []string{"title", "date", "aircraft_type", "registration", "location", "summary", "cause"}

// BuildReportJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a generic map.
// Every field is required but may be null, so the model cannot silently drop one.
func BuildReportJSONSchema() map[string]any {
	props := make(map[string]any, len(FieldNames))
	for _, k := range FieldNames {
		props[k] = map[string]any{"type": []string{"string", "null"}}
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             FieldNames,
	}
}
