package summarize

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/precis-labs/precis/internal/domain"
	"github.com/precis-labs/precis/internal/text"
)

// Service turns extracted page text into summaries and answers.
//
// The structured path requests a strict JSON payload and validates it.
// When the combined input exceeds directLimit and no retrieval index
// narrowed it down, the input is map-reduced: each large chunk gets a
// short intermediate summary and the synthesis pass runs over those.
// The streaming paths forward raw model text without validation.
type Service struct {
	completer    Completer
	streamer     StreamCompleter
	directLimit  int
	mapChunkSize int
	logger       *zap.Logger
}

func New(completer Completer, streamer StreamCompleter, directLimit, mapChunkSize int, logger *zap.Logger) *Service {
	if directLimit <= 0 {
		directLimit = 12000
	}
	if mapChunkSize <= 0 {
		mapChunkSize = 4000
	}
	return &Service{
		completer:    completer,
		streamer:     streamer,
		directLimit:  directLimit,
		mapChunkSize: mapChunkSize,
		logger:       logger,
	}
}

// Summarize produces a validated structured summary of the full page
// text, map-reducing first when the input exceeds the direct limit.
func (s *Service) Summarize(ctx context.Context, paragraphs []string, language, url, title string) (domain.Summary, error) {
	combined := strings.Join(paragraphs, "\n\n")
	source := combined

	if len(combined) > s.directLimit {
		chunks := text.PackChunks(paragraphs, s.mapChunkSize)
		s.logger.Info("Map-reduce summarization",
			zap.Int("combined_len", len(combined)), zap.Int("chunks", len(chunks)))

		minis := make([]string, 0, len(chunks))
		for i, chunk := range chunks {
			mini, err := s.completer.Complete(ctx, chunkPrompt(chunk, language))
			if err != nil {
				return domain.Summary{}, fmt.Errorf("summarize chunk %d/%d: %w", i+1, len(chunks), err)
			}
			minis = append(minis, mini)
		}
		source = strings.Join(minis, "\n\n")
	}

	return s.synthesize(ctx, source, language, url, title)
}

// SummarizeExcerpts produces a validated structured summary from
// retrieval-selected excerpts in a single pass.
func (s *Service) SummarizeExcerpts(ctx context.Context, excerpts []string, language, url, title string) (domain.Summary, error) {
	return s.synthesize(ctx, strings.Join(excerpts, "\n\n"), language, url, title)
}

func (s *Service) synthesize(ctx context.Context, source, language, url, title string) (domain.Summary, error) {
	raw, err := s.completer.Complete(ctx, structuredPrompt(source, language, url))
	if err != nil {
		return domain.Summary{}, fmt.Errorf("final summary: %w", err)
	}

	payload, err := parseSummaryPayload(raw)
	if err != nil {
		return domain.Summary{}, err
	}

	summary := domain.Summary{
		URL:         url,
		Title:       title,
		TLDR:        payload.TLDR,
		Summary:     payload.Summary,
		UsedSources: []string{url},
	}
	if err := summary.Validate(); err != nil {
		return domain.Summary{}, err
	}
	return summary, nil
}

// StreamSummary streams a Markdown summary built from the excerpts,
// forwarding each fragment to onDelta, and returns the full text.
func (s *Service) StreamSummary(ctx context.Context, excerpts []string, language, url string, onDelta func(string) error) (string, error) {
	full, err := s.streamer.CompleteStream(ctx, streamSummaryPrompt(excerpts, language, url), onDelta)
	if err != nil {
		return "", fmt.Errorf("stream summary: %w", err)
	}
	return full, nil
}

// StreamAnswer streams an answer to a question about the page,
// grounded in the excerpts, and returns the full text.
func (s *Service) StreamAnswer(ctx context.Context, excerpts []string, language, url, question string, onDelta func(string) error) (string, error) {
	full, err := s.streamer.CompleteStream(ctx, answerPrompt(excerpts, language, url, question), onDelta)
	if err != nil {
		return "", fmt.Errorf("stream answer: %w", err)
	}
	return full, nil
}
