package extract

import (
	"bytes"
	"math"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/precis-labs/precis/internal/domain"
	"github.com/precis-labs/precis/internal/text"
)

const (
	// lineTolerance groups text items into lines by vertical position.
	lineTolerance = 5.0
	// repeatedLineRatio: a line appearing on at least this share of pages
	// is a header/footer/watermark and gets dropped.
	repeatedLineRatio = 0.6
	// longLineChars exempts unusually long lines from the repeated-line
	// rule; they are likely real content.
	longLineChars = 120
)

// textItem is one positioned fragment of PDF page text.
type textItem struct {
	value string
	y     float64
}

// FromPDF extracts paragraphs from raw PDF bytes. Malformed input yields
// an empty extraction; the underlying parser's panics are contained here.
func FromPDF(data []byte) (result domain.Extraction) {
	defer func() {
		if r := recover(); r != nil {
			result = domain.Extraction{}
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return domain.Extraction{}
	}

	var pages [][]string
	for pageIndex := 1; pageIndex <= reader.NumPage(); pageIndex++ {
		page := reader.Page(pageIndex)
		if page.V.IsNull() {
			continue
		}
		items := make([]textItem, 0, len(page.Content().Text))
		for _, t := range page.Content().Text {
			items = append(items, textItem{value: t.S, y: t.Y})
		}
		if lines := groupLines(items); len(lines) > 0 {
			pages = append(pages, lines)
		}
	}

	return domain.Extraction{Paragraphs: pagesToParagraphs(pages)}
}

// groupLines merges items whose vertical positions fall within the
// tolerance into single lines and orders lines top to bottom.
func groupLines(items []textItem) []string {
	type line struct {
		y    float64
		text string
	}
	var lines []line

	for _, item := range items {
		value := text.NormalizeWhitespace(item.value)
		if value == "" {
			continue
		}
		merged := false
		for i := range lines {
			if math.Abs(lines[i].y-item.y) < lineTolerance {
				lines[i].text = strings.TrimSpace(lines[i].text + " " + value)
				merged = true
				break
			}
		}
		if !merged {
			lines = append(lines, line{y: item.y, text: value})
		}
	}

	// PDF origin is bottom-left: higher y comes first on the page.
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].y > lines[j].y })

	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if l.text != "" {
			out = append(out, l.text)
		}
	}
	return out
}

// pagesToParagraphs drops lines repeated across most pages (headers,
// footers, watermarks), joins what remains with page breaks as blank
// lines, and re-splits into deduplicated paragraphs.
func pagesToParagraphs(pages [][]string) []string {
	if len(pages) == 0 {
		return nil
	}

	occurrences := make(map[string]int)
	for _, lines := range pages {
		unique := make(map[string]struct{}, len(lines))
		for _, l := range lines {
			unique[strings.ToLower(l)] = struct{}{}
		}
		for l := range unique {
			occurrences[l]++
		}
	}

	threshold := int(math.Floor(float64(len(pages)) * repeatedLineRatio))
	if threshold < 2 {
		threshold = 2
	}

	blocks := make([]string, 0, len(pages))
	for _, lines := range pages {
		kept := make([]string, 0, len(lines))
		for _, l := range lines {
			if occurrences[strings.ToLower(l)] >= threshold && len(l) <= longLineChars {
				continue
			}
			kept = append(kept, l)
		}
		if len(kept) > 0 {
			blocks = append(blocks, strings.Join(kept, "\n"))
		}
	}

	return text.Dedup(text.SplitParagraphs(strings.Join(blocks, "\n\n")))
}
