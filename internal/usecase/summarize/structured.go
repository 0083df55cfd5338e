package summarize

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/precis-labs/precis/internal/domain"
)

type summaryPayload struct {
	TLDR    []string `json:"tldr"`
	Summary string   `json:"summary"`
}

// parseSummaryPayload decodes the model's structured response.
// Code-fence markers are stripped first; if the remainder still fails
// to decode, one repair attempt slices the outermost JSON object out
// of the surrounding prose. Anything beyond that is malformed output.
func parseSummaryPayload(raw string) (summaryPayload, error) {
	cleaned := strings.NewReplacer("```json", "", "```", "").Replace(raw)
	cleaned = strings.TrimSpace(cleaned)

	var payload summaryPayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		repaired, ok := sliceJSONObject(cleaned)
		if !ok {
			return summaryPayload{}, fmt.Errorf("parse summary payload: %w: %v", domain.ErrMalformedModelOutput, err)
		}
		if err := json.Unmarshal([]byte(repaired), &payload); err != nil {
			return summaryPayload{}, fmt.Errorf("parse summary payload: %w: %v", domain.ErrMalformedModelOutput, err)
		}
	}

	tldr := make([]string, 0, len(payload.TLDR))
	for _, entry := range payload.TLDR {
		if trimmed := strings.TrimSpace(entry); trimmed != "" {
			tldr = append(tldr, trimmed)
		}
	}
	if len(tldr) > domain.MaxTLDREntries {
		tldr = tldr[:domain.MaxTLDREntries]
	}
	if len(tldr) < domain.MinTLDREntries {
		return summaryPayload{}, fmt.Errorf("parse summary payload: %w: %d usable tldr entries",
			domain.ErrMalformedModelOutput, len(tldr))
	}

	summary := strings.TrimSpace(payload.Summary)
	if summary == "" {
		return summaryPayload{}, fmt.Errorf("parse summary payload: %w: empty summary",
			domain.ErrMalformedModelOutput)
	}

	return summaryPayload{TLDR: tldr, Summary: summary}, nil
}

// sliceJSONObject extracts the substring from the first '{' to the
// last '}' so that prose wrapped around a valid object still parses.
func sliceJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start == -1 || end == -1 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}
