package domain

import (
	"fmt"
	"strings"
)

// TLDR bounds for a valid summary.
const (
	MinTLDREntries = 3
	MaxTLDREntries = 5
)

// Summary is the structured result of a summarization request.
// UsedSources[0] is always the normalized request URL.
type Summary struct {
	URL         string   `json:"url"`
	Title       string   `json:"title"`
	TLDR        []string `json:"tldr"`
	Summary     string   `json:"summary"`
	UsedSources []string `json:"usedSources"`
}

// Validate checks the summary contract: 3..5 non-empty TLDR entries, a
// non-empty summary body, and the request URL as the first source.
func (s Summary) Validate() error {
	if len(s.TLDR) < MinTLDREntries || len(s.TLDR) > MaxTLDREntries {
		return fmt.Errorf("%w: tldr has %d entries, want %d..%d",
			ErrMalformedModelOutput, len(s.TLDR), MinTLDREntries, MaxTLDREntries)
	}
	for i, entry := range s.TLDR {
		if strings.TrimSpace(entry) == "" {
			return fmt.Errorf("%w: tldr entry %d is empty", ErrMalformedModelOutput, i)
		}
	}
	if strings.TrimSpace(s.Summary) == "" {
		return fmt.Errorf("%w: summary is empty", ErrMalformedModelOutput)
	}
	if len(s.UsedSources) == 0 || s.UsedSources[0] != s.URL {
		return fmt.Errorf("%w: usedSources must start with the request URL", ErrMalformedModelOutput)
	}
	return nil
}
