package pipeline

import (
	"context"

	"github.com/precis-labs/precis/internal/domain"
)

// Fetcher retrieves remote page content.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (domain.FetchResult, error)
}

// Extractor turns raw page bytes into main-content paragraphs.
type Extractor interface {
	MainText(contentType domain.ContentType, raw []byte) domain.Extraction
}

// Indexer maintains the per-URL embedded chunk set.
type Indexer interface {
	Ensure(ctx context.Context, url, title string, texts []string) ([]domain.Chunk, error)
}

// Retriever selects the chunks most relevant to a query.
type Retriever interface {
	Select(ctx context.Context, query string, chunks []domain.Chunk) ([]domain.ScoredChunk, error)
}

// Summarizer produces summaries and answers from page text.
type Summarizer interface {
	Summarize(ctx context.Context, paragraphs []string, language, url, title string) (domain.Summary, error)
	SummarizeExcerpts(ctx context.Context, excerpts []string, language, url, title string) (domain.Summary, error)
	StreamSummary(ctx context.Context, excerpts []string, language, url string, onDelta func(string) error) (string, error)
	StreamAnswer(ctx context.Context, excerpts []string, language, url, question string, onDelta func(string) error) (string, error)
}

// LanguageDetector identifies the dominant language of a text.
type LanguageDetector interface {
	Detect(text string) string
}

// Emitter delivers stream events to the caller. Emit returning an
// error aborts the run (the caller is gone).
type Emitter interface {
	Emit(event domain.Event) error
}
