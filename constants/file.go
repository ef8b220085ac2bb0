package constants

// Suffixes of the per-document artifacts each stage persists.
const (
	PDFExt          = ".pdf"
	TextSuffix      = "_text.json"
	ExtractedSuffix = "_extracted.json"
)

// PDFContentType is the attachment content type the resolver keeps.
const PDFContentType = "application/pdf"

// DefaultAttachmentExclude drops glossary attachments published alongside reports.
const DefaultAttachmentExclude = "abbreviations"
