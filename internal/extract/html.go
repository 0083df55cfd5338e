package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/precis-labs/precis/internal/domain"
	"github.com/precis-labs/precis/internal/text"
)

// removalSelectors name nodes that contribute no readable content.
var removalSelectors = []string{
	"script", "style", "noscript", "template",
	"iframe", "svg", "canvas", "form",
	"nav", "footer", "header", "aside",
	"figure", "figcaption", "video", "audio", "button",
}

// contentSelectors are tried in order; the first candidate with enough
// text wins as the content root.
var contentSelectors = []string{
	"main",
	"article",
	"[role=\"main\"]",
	"section[role=\"main\"]",
	"div[role=\"main\"]",
	"div#content",
	"div.content",
	"div[id*=\"content\"]",
	"div[class*=\"content\"]",
}

const (
	// semanticMinChars qualifies a semantic-selector candidate.
	semanticMinChars = 400
	// candidateMinChars qualifies a block in the longest-text scan.
	candidateMinChars = 200
)

// FromHTML extracts the main content of an HTML document as paragraphs.
func FromHTML(rawHTML string) domain.Extraction {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return domain.Extraction{}
	}

	title := text.NormalizeWhitespace(doc.Find("title").First().Text())

	doc.Find(strings.Join(removalSelectors, ",")).Remove()

	root := selectContentRoot(doc)
	paragraphs := collectParagraphs(root)

	return domain.Extraction{
		Title:      title,
		Paragraphs: paragraphs,
	}
}

// selectContentRoot picks the densest content container: first a ranked
// list of semantic selectors, then the block element with the longest
// text, then <body>.
func selectContentRoot(doc *goquery.Document) *goquery.Selection {
	for _, sel := range contentSelectors {
		candidate := doc.Find(sel).First()
		if candidate.Length() == 0 {
			continue
		}
		if len(strings.TrimSpace(candidate.Text())) > semanticMinChars {
			return candidate
		}
	}

	var best *goquery.Selection
	bestScore := 0
	doc.Find("p, article, section, div").Each(func(_ int, s *goquery.Selection) {
		length := len(strings.TrimSpace(s.Text()))
		if length < candidateMinChars {
			return
		}
		if length > bestScore {
			bestScore = length
			best = s
		}
	})
	if best != nil {
		return best
	}

	return doc.Find("body").First()
}

// collectParagraphs walks text nodes under root, accumulating a buffer
// that is flushed at block boundaries (p, br, li, headings).
func collectParagraphs(root *goquery.Selection) []string {
	if root == nil || root.Length() == 0 {
		return nil
	}

	var paragraphs []string
	var current string

	flush := func() {
		if trimmed := strings.TrimSpace(current); trimmed != "" {
			paragraphs = append(paragraphs, trimmed)
		}
		current = ""
	}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			normalized := text.NormalizeWhitespace(n.Data)
			if normalized != "" {
				if current != "" {
					current += " "
				}
				current += normalized
			}
			if n.Parent != nil && isBlockBoundary(n.Parent.Data) {
				flush()
			}
			return
		}
		if n.Type == html.ElementNode && n.Data == "br" {
			flush()
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	for _, n := range root.Nodes {
		walk(n)
	}
	flush()

	return text.Dedup(paragraphs)
}

func isBlockBoundary(tag string) bool {
	switch tag {
	case "p", "li", "h1", "h2", "h3", "h4", "h5", "h6":
		return true
	default:
		return false
	}
}
