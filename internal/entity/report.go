package entity

// ReportReference is a catalogue path for one report detail page, e.g. "/aaib-reports/piper-pa-28-g-abcd".
type ReportReference string

// AttachmentURL is an absolute URL of a PDF attached to a report.
type AttachmentURL string

// TextSidecar is the persisted result of text extraction for one document.
type TextSidecar struct {
	PDFName    string `json:"pdf_name"`
	PDFPath    string `json:"pdf_path"`
	TextLength int    `json:"text_length"`
	Text       string `json:"text"`
}

// FieldRecord is the persisted structured summary of one report.
// Absent domain values are written as null.
type FieldRecord struct {
	Title        *string `json:"title"`
	Date         *string `json:"date"`
	AircraftType *string `json:"aircraft_type"`
	Registration *string `json:"registration"`
	Location     *string `json:"location"`
	Summary      *string `json:"summary"`
	Cause        *string `json:"cause"`
	SourcePDF    string  `json:"source_pdf"`
	TextLength   int     `json:"text_length"`
	Error        string  `json:"error,omitempty"`
}

// DomainFields lists the seven report fields in output order.
var DomainFields = []string{"title", "date", "aircraft_type", "registration", "location", "summary", "cause"}

// Columns is the canonical aggregate column order.
var Columns = append(append([]string{}, DomainFields...), "source_pdf", "text_length")

// Str returns a pointer to s.
func Str(s string) *string { return &s }
