package domain

// ContentType classifies fetched page content.
type ContentType string

const (
	ContentTypeHTML    ContentType = "html"
	ContentTypePDF     ContentType = "pdf"
	ContentTypeUnknown ContentType = "unknown"
)

// FetchResult is the outcome of a successful page fetch.
// Body holds raw bytes: UTF-8 text for HTML/unknown, binary for PDF.
type FetchResult struct {
	ContentType ContentType
	Body        []byte
	// Title is sniffed from the raw HTML before full extraction runs,
	// so downstream stages have a title even when extraction fails.
	Title string
}

// DomSnapshot is caller-captured rendered markup, used when the live
// fetch fails or returns too little content.
type DomSnapshot struct {
	HTML  string `json:"html"`
	Title string `json:"title,omitempty"`
}

// Extraction is an ordered, deduplicated paragraph list with an optional title.
type Extraction struct {
	Title      string
	Paragraphs []string
}
