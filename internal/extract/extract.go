// Package extract converts raw fetched page bytes into an ordered list of
// main-content paragraphs plus a title, using format-specific heuristics.
//
// Extraction never fails for input it cannot parse meaningfully: it returns
// an empty paragraph list, which callers treat as a recoverable "no content"
// condition and retry against a fallback source.
package extract

import (
	"unicode/utf8"

	"github.com/precis-labs/precis/internal/domain"
	"github.com/precis-labs/precis/internal/text"
)

// MainText dispatches on content type and extracts paragraphs.
func MainText(contentType domain.ContentType, raw []byte) domain.Extraction {
	switch contentType {
	case domain.ContentTypeHTML:
		return FromHTML(string(raw))
	case domain.ContentTypePDF:
		return FromPDF(raw)
	default:
		if !utf8.Valid(raw) {
			return domain.Extraction{}
		}
		return domain.Extraction{
			Paragraphs: text.Dedup(text.SplitParagraphs(string(raw))),
		}
	}
}
