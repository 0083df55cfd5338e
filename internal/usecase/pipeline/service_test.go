package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/precis-labs/precis/internal/domain"
)

type mockFetcher struct {
	fetchFn func(ctx context.Context, url string) (domain.FetchResult, error)
	calls   int
	lastURL string
}

func (m *mockFetcher) Fetch(ctx context.Context, url string) (domain.FetchResult, error) {
	m.calls++
	m.lastURL = url
	return m.fetchFn(ctx, url)
}

type mockExtractor struct {
	extractFn func(contentType domain.ContentType, raw []byte) domain.Extraction
	calls     int
}

func (m *mockExtractor) MainText(contentType domain.ContentType, raw []byte) domain.Extraction {
	m.calls++
	return m.extractFn(contentType, raw)
}

type mockIndexer struct {
	ensureFn func(ctx context.Context, url, title string, texts []string) ([]domain.Chunk, error)
	calls    int
}

func (m *mockIndexer) Ensure(ctx context.Context, url, title string, texts []string) ([]domain.Chunk, error) {
	m.calls++
	return m.ensureFn(ctx, url, title, texts)
}

type mockRetriever struct {
	selectFn func(ctx context.Context, query string, chunks []domain.Chunk) ([]domain.ScoredChunk, error)
	calls    int
}

func (m *mockRetriever) Select(ctx context.Context, query string, chunks []domain.Chunk) ([]domain.ScoredChunk, error) {
	m.calls++
	return m.selectFn(ctx, query, chunks)
}

type mockSummarizer struct {
	summarizeFn         func(ctx context.Context, paragraphs []string, language, url, title string) (domain.Summary, error)
	summarizeExcerptsFn func(ctx context.Context, excerpts []string, language, url, title string) (domain.Summary, error)
	streamSummaryFn     func(ctx context.Context, excerpts []string, language, url string, onDelta func(string) error) (string, error)
	streamAnswerFn      func(ctx context.Context, excerpts []string, language, url, question string, onDelta func(string) error) (string, error)
	calls               int
}

func (m *mockSummarizer) Summarize(ctx context.Context, paragraphs []string, language, url, title string) (domain.Summary, error) {
	m.calls++
	return m.summarizeFn(ctx, paragraphs, language, url, title)
}

func (m *mockSummarizer) SummarizeExcerpts(ctx context.Context, excerpts []string, language, url, title string) (domain.Summary, error) {
	m.calls++
	return m.summarizeExcerptsFn(ctx, excerpts, language, url, title)
}

func (m *mockSummarizer) StreamSummary(ctx context.Context, excerpts []string, language, url string, onDelta func(string) error) (string, error) {
	m.calls++
	return m.streamSummaryFn(ctx, excerpts, language, url, onDelta)
}

func (m *mockSummarizer) StreamAnswer(ctx context.Context, excerpts []string, language, url, question string, onDelta func(string) error) (string, error) {
	m.calls++
	return m.streamAnswerFn(ctx, excerpts, language, url, question, onDelta)
}

type staticDetector struct{}

func (staticDetector) Detect(string) string { return "en" }

// recordingEmitter captures the full event sequence of a run.
type recordingEmitter struct {
	events []domain.Event
	emitFn func(event domain.Event) error // optional failure injection
}

func (r *recordingEmitter) Emit(event domain.Event) error {
	if r.emitFn != nil {
		if err := r.emitFn(event); err != nil {
			return err
		}
	}
	r.events = append(r.events, event)
	return nil
}

func (r *recordingEmitter) kinds() []domain.EventKind {
	kinds := make([]domain.EventKind, 0, len(r.events))
	for _, e := range r.events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

func htmlFetcher(t *testing.T, body string) *mockFetcher {
	t.Helper()
	return &mockFetcher{
		fetchFn: func(_ context.Context, _ string) (domain.FetchResult, error) {
			return domain.FetchResult{ContentType: domain.ContentTypeHTML, Body: []byte(body), Title: "Fetched Title"}, nil
		},
	}
}

func paragraphExtractor(t *testing.T, paragraphs ...string) *mockExtractor {
	t.Helper()
	return &mockExtractor{
		extractFn: func(_ domain.ContentType, _ []byte) domain.Extraction {
			return domain.Extraction{Paragraphs: paragraphs}
		},
	}
}

func validSummary(url, title string) domain.Summary {
	return domain.Summary{
		URL:         url,
		Title:       title,
		TLDR:        []string{"one", "two", "three"},
		Summary:     "Text.",
		UsedSources: []string{url},
	}
}

// page returns a fetched HTML body long enough to bypass the snapshot swap.
func page() string {
	return "<html>" + strings.Repeat("x", minHTMLBytes) + "</html>"
}

func newService(t *testing.T, fetcher Fetcher, extractor Extractor, indexer Indexer, retriever Retriever, summarizer Summarizer) *Service {
	t.Helper()
	return New(fetcher, extractor, indexer, retriever, summarizer, staticDetector{}, Config{}, zap.NewNop())
}

func TestSummarize_NoIndex(t *testing.T) {
	fetcher := htmlFetcher(t, page())
	extractor := paragraphExtractor(t, "First paragraph.", "Second paragraph.")
	summarizer := &mockSummarizer{
		summarizeFn: func(_ context.Context, paragraphs []string, language, url, title string) (domain.Summary, error) {
			if len(paragraphs) != 2 {
				t.Errorf("paragraphs = %v", paragraphs)
			}
			if language != "en" {
				t.Errorf("language = %q", language)
			}
			return validSummary(url, title), nil
		},
	}
	service := newService(t, fetcher, extractor, nil, nil, summarizer)

	got, err := service.Summarize(context.Background(), Request{URL: "https://Example.com/Page"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.URL != "https://example.com/Page" {
		t.Errorf("url must be normalized, got %q", got.URL)
	}
	if got.Title != "Fetched Title" {
		t.Errorf("title = %q", got.Title)
	}
	if fetcher.lastURL != "https://example.com/Page" {
		t.Errorf("fetch url = %q", fetcher.lastURL)
	}
}

func TestSummarize_WithIndex(t *testing.T) {
	fetcher := htmlFetcher(t, page())
	extractor := paragraphExtractor(t, "First paragraph.", "Second paragraph.")
	indexer := &mockIndexer{
		ensureFn: func(_ context.Context, _, _ string, texts []string) ([]domain.Chunk, error) {
			chunks := make([]domain.Chunk, len(texts))
			for i, text := range texts {
				chunks[i] = domain.Chunk{Index: i, Content: text, Embedding: []float32{1}, Dim: 1}
			}
			return chunks, nil
		},
	}
	retriever := &mockRetriever{
		selectFn: func(_ context.Context, query string, chunks []domain.Chunk) ([]domain.ScoredChunk, error) {
			if query != "RESUME" {
				t.Errorf("query = %q", query)
			}
			scored := make([]domain.ScoredChunk, len(chunks))
			for i, c := range chunks {
				scored[i] = domain.ScoredChunk{Index: c.Index, Content: c.Content, Score: 1}
			}
			return scored, nil
		},
	}
	summarizer := &mockSummarizer{
		summarizeExcerptsFn: func(_ context.Context, excerpts []string, _, url, title string) (domain.Summary, error) {
			if len(excerpts) == 0 {
				t.Error("expected retrieval excerpts")
			}
			return validSummary(url, title), nil
		},
	}
	service := newService(t, fetcher, extractor, indexer, retriever, summarizer)

	_, err := service.Summarize(context.Background(), Request{URL: "https://example.com"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if indexer.calls != 1 || retriever.calls != 1 {
		t.Errorf("indexer calls = %d, retriever calls = %d", indexer.calls, retriever.calls)
	}
}

func TestSummarize_InvalidURL(t *testing.T) {
	fetcher := &mockFetcher{fetchFn: func(_ context.Context, _ string) (domain.FetchResult, error) {
		return domain.FetchResult{}, nil
	}}
	summarizer := &mockSummarizer{}
	service := newService(t, fetcher, paragraphExtractor(t), nil, nil, summarizer)

	for _, url := range []string{"", "ftp://example.com", "javascript:alert(1)", "/relative"} {
		_, err := service.Summarize(context.Background(), Request{URL: url})
		if !errors.Is(err, domain.ErrInvalidRequest) {
			t.Errorf("url %q: expected ErrInvalidRequest, got %v", url, err)
		}
	}
	if fetcher.calls != 0 {
		t.Errorf("fetcher must not run for invalid urls, got %d calls", fetcher.calls)
	}
	if summarizer.calls != 0 {
		t.Errorf("summarizer must not run for invalid urls, got %d calls", summarizer.calls)
	}
}

func TestStreamSummary_EventOrdering(t *testing.T) {
	fetcher := htmlFetcher(t, page())
	extractor := paragraphExtractor(t, "First paragraph.", "Second paragraph.")
	summarizer := &mockSummarizer{
		streamSummaryFn: func(_ context.Context, _ []string, _, _ string, onDelta func(string) error) (string, error) {
			for _, part := range []string{"## TL;DR\n", "- a point\n"} {
				if err := onDelta(part); err != nil {
					return "", err
				}
			}
			return "## TL;DR\n- a point\n", nil
		},
	}
	emitter := &recordingEmitter{}
	service := newService(t, fetcher, extractor, nil, nil, summarizer)

	if err := service.StreamSummary(context.Background(), Request{URL: "https://example.com"}, emitter); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	kinds := emitter.kinds()
	if len(kinds) == 0 || kinds[len(kinds)-1] != domain.EventFinal {
		t.Fatalf("stream must end with final, got %v", kinds)
	}

	// Phases are strictly ordered: progress, then deltas, then the terminal.
	phase := 0
	var deltas, final string
	for _, e := range emitter.events {
		switch e.Kind {
		case domain.EventProgress:
			if phase > 0 {
				t.Fatalf("progress after deltas: %v", kinds)
			}
		case domain.EventDelta:
			phase = 1
			deltas += e.Text
		case domain.EventFinal:
			phase = 2
			final = e.Text
		default:
			t.Fatalf("unexpected event kind %q", e.Kind)
		}
	}
	if deltas != final {
		t.Errorf("concatenated deltas %q != final text %q", deltas, final)
	}
}

func TestStreamSummary_FetchFailedNoSnapshot(t *testing.T) {
	fetcher := &mockFetcher{fetchFn: func(_ context.Context, _ string) (domain.FetchResult, error) {
		return domain.FetchResult{}, domain.ErrFetchFailed
	}}
	summarizer := &mockSummarizer{}
	emitter := &recordingEmitter{}
	service := newService(t, fetcher, paragraphExtractor(t), nil, nil, summarizer)

	err := service.StreamSummary(context.Background(), Request{URL: "https://example.com"}, emitter)
	if !errors.Is(err, domain.ErrFetchFailed) {
		t.Fatalf("expected ErrFetchFailed, got %v", err)
	}

	terminals := 0
	for _, e := range emitter.events {
		if e.Terminal() {
			terminals++
			if e.Kind != domain.EventError {
				t.Errorf("terminal kind = %q", e.Kind)
			}
		}
	}
	if terminals != 1 {
		t.Errorf("expected exactly one terminal event, got %d: %v", terminals, emitter.kinds())
	}
	if summarizer.calls != 0 {
		t.Errorf("summarizer must not run after fetch failure, got %d calls", summarizer.calls)
	}
}

func TestStreamSummary_FetchFailedWithSnapshot(t *testing.T) {
	fetcher := &mockFetcher{fetchFn: func(_ context.Context, _ string) (domain.FetchResult, error) {
		return domain.FetchResult{}, domain.ErrFetchFailed
	}}
	extractor := &mockExtractor{
		extractFn: func(contentType domain.ContentType, raw []byte) domain.Extraction {
			if contentType != domain.ContentTypeHTML {
				t.Errorf("content type = %q", contentType)
			}
			if !strings.Contains(string(raw), "snapshot body") {
				t.Errorf("extraction must run over the snapshot, got %q", raw)
			}
			return domain.Extraction{Paragraphs: []string{"snapshot body"}}
		},
	}
	summarizer := &mockSummarizer{
		streamSummaryFn: func(_ context.Context, _ []string, _, _ string, _ func(string) error) (string, error) {
			return "summary", nil
		},
	}
	emitter := &recordingEmitter{}
	service := newService(t, fetcher, extractor, nil, nil, summarizer)

	req := Request{
		URL:         "https://example.com",
		DomSnapshot: &domain.DomSnapshot{HTML: "<p>snapshot body</p>", Title: "Snapshot Title"},
	}
	if err := service.StreamSummary(context.Background(), req, emitter); err != nil {
		t.Fatalf("expected snapshot fallback to succeed, got %v", err)
	}
	kinds := emitter.kinds()
	if kinds[len(kinds)-1] != domain.EventFinal {
		t.Errorf("stream must end with final, got %v", kinds)
	}
}

func TestPrepare_ShortHTMLUsesSnapshot(t *testing.T) {
	// A fetched body under the short-HTML floor is replaced by the snapshot.
	fetcher := htmlFetcher(t, "<html><body>tiny</body></html>")
	extractor := &mockExtractor{
		extractFn: func(_ domain.ContentType, raw []byte) domain.Extraction {
			if !strings.Contains(string(raw), "rendered content") {
				t.Errorf("expected snapshot bytes, got %q", raw)
			}
			return domain.Extraction{Paragraphs: []string{"rendered content"}}
		},
	}
	summarizer := &mockSummarizer{
		summarizeFn: func(_ context.Context, _ []string, _, url, _ string) (domain.Summary, error) {
			return validSummary(url, "t"), nil
		},
	}
	service := newService(t, fetcher, extractor, nil, nil, summarizer)

	req := Request{
		URL:         "https://example.com",
		DomSnapshot: &domain.DomSnapshot{HTML: "<main>rendered content</main>"},
	}
	if _, err := service.Summarize(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if extractor.calls != 1 {
		t.Errorf("extractor calls = %d", extractor.calls)
	}
}

func TestPrepare_SnapshotRetryOnEmptyExtraction(t *testing.T) {
	fetcher := htmlFetcher(t, page())
	extractor := &mockExtractor{}
	extractor.extractFn = func(_ domain.ContentType, raw []byte) domain.Extraction {
		// The fetched body yields nothing; the snapshot retry succeeds.
		if strings.Contains(string(raw), "from snapshot") {
			return domain.Extraction{Title: "Retry Title", Paragraphs: []string{"from snapshot"}}
		}
		return domain.Extraction{}
	}
	summarizer := &mockSummarizer{
		summarizeFn: func(_ context.Context, paragraphs []string, _, url, title string) (domain.Summary, error) {
			if paragraphs[0] != "from snapshot" {
				t.Errorf("paragraphs = %v", paragraphs)
			}
			if title != "Retry Title" {
				t.Errorf("title = %q", title)
			}
			return validSummary(url, title), nil
		},
	}
	service := newService(t, fetcher, extractor, nil, nil, summarizer)

	req := Request{
		URL:         "https://example.com",
		DomSnapshot: &domain.DomSnapshot{HTML: "<p>from snapshot</p>"},
	}
	if _, err := service.Summarize(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if extractor.calls != 2 {
		t.Errorf("expected one retry extraction, got %d calls", extractor.calls)
	}
}

func TestPrepare_ExtractionEmpty(t *testing.T) {
	fetcher := htmlFetcher(t, page())
	service := newService(t, fetcher, paragraphExtractor(t), nil, nil, &mockSummarizer{})

	_, err := service.Summarize(context.Background(), Request{URL: "https://example.com"})
	if !errors.Is(err, domain.ErrExtractionEmpty) {
		t.Fatalf("expected ErrExtractionEmpty, got %v", err)
	}
}

func TestStreamAnswer_DoneTerminal(t *testing.T) {
	fetcher := htmlFetcher(t, page())
	extractor := paragraphExtractor(t, "First paragraph.")
	summarizer := &mockSummarizer{
		streamAnswerFn: func(_ context.Context, _ []string, _, _, question string, onDelta func(string) error) (string, error) {
			if question != "What is this?" {
				t.Errorf("question = %q", question)
			}
			if err := onDelta("An answer."); err != nil {
				return "", err
			}
			return "An answer.", nil
		},
	}
	emitter := &recordingEmitter{}
	service := newService(t, fetcher, extractor, nil, nil, summarizer)

	req := Request{URL: "https://example.com", Question: "What is this?"}
	if err := service.StreamAnswer(context.Background(), req, emitter); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	kinds := emitter.kinds()
	last := emitter.events[len(emitter.events)-1]
	if last.Kind != domain.EventDone {
		t.Fatalf("answer stream must end with done, got %v", kinds)
	}
	if last.Text != "" {
		t.Errorf("done event must carry no text, got %q", last.Text)
	}
}

func TestStreamAnswer_MissingQuestion(t *testing.T) {
	fetcher := &mockFetcher{fetchFn: func(_ context.Context, _ string) (domain.FetchResult, error) {
		return domain.FetchResult{}, nil
	}}
	emitter := &recordingEmitter{}
	service := newService(t, fetcher, paragraphExtractor(t), nil, nil, &mockSummarizer{})

	err := service.StreamAnswer(context.Background(), Request{URL: "https://example.com", Question: "  "}, emitter)
	if !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	if fetcher.calls != 0 {
		t.Errorf("fetcher must not run without a question, got %d calls", fetcher.calls)
	}
	if len(emitter.events) != 1 || emitter.events[0].Kind != domain.EventError {
		t.Errorf("expected a single error event, got %v", emitter.kinds())
	}
}

func TestStream_EmitterFailureAborts(t *testing.T) {
	fetcher := htmlFetcher(t, page())
	extractor := paragraphExtractor(t, "First paragraph.")
	summarizer := &mockSummarizer{}
	emitter := &recordingEmitter{
		emitFn: func(domain.Event) error { return errors.New("client gone") },
	}
	service := newService(t, fetcher, extractor, nil, nil, summarizer)

	err := service.StreamSummary(context.Background(), Request{URL: "https://example.com"}, emitter)
	if err == nil {
		t.Fatal("expected emit failure to abort the run")
	}
	if summarizer.calls != 0 {
		t.Errorf("summarizer must not run after the client is gone, got %d calls", summarizer.calls)
	}
}

func TestSelectExcerpts_LocalFallbackCap(t *testing.T) {
	// Without an index, excerpts come from local chunking capped at the limit.
	paragraphs := make([]string, 0, 20)
	for range [20]struct{}{} {
		paragraphs = append(paragraphs, strings.Repeat("w", 1500))
	}
	fetcher := htmlFetcher(t, page())
	extractor := paragraphExtractor(t, paragraphs...)
	summarizer := &mockSummarizer{
		streamSummaryFn: func(_ context.Context, excerpts []string, _, _ string, _ func(string) error) (string, error) {
			if len(excerpts) != 6 {
				t.Errorf("excerpts = %d, want cap of 6", len(excerpts))
			}
			return "summary", nil
		},
	}
	emitter := &recordingEmitter{}
	service := newService(t, fetcher, extractor, nil, nil, summarizer)

	if err := service.StreamSummary(context.Background(), Request{URL: "https://example.com"}, emitter); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRetrieveExcerpts_IndexerError(t *testing.T) {
	fetcher := htmlFetcher(t, page())
	extractor := paragraphExtractor(t, "First paragraph.")
	indexer := &mockIndexer{
		ensureFn: func(_ context.Context, _, _ string, _ []string) ([]domain.Chunk, error) {
			return nil, domain.ErrProviderError
		},
	}
	retriever := &mockRetriever{
		selectFn: func(_ context.Context, _ string, _ []domain.Chunk) ([]domain.ScoredChunk, error) {
			return nil, nil
		},
	}
	emitter := &recordingEmitter{}
	service := newService(t, fetcher, extractor, indexer, retriever, &mockSummarizer{})

	err := service.StreamSummary(context.Background(), Request{URL: "https://example.com"}, emitter)
	if !errors.Is(err, domain.ErrProviderError) {
		t.Fatalf("expected ErrProviderError, got %v", err)
	}
	last := emitter.events[len(emitter.events)-1]
	if last.Kind != domain.EventError {
		t.Errorf("terminal kind = %q, events %v", last.Kind, emitter.kinds())
	}
	if retriever.calls != 0 {
		t.Errorf("retriever must not run after an index failure, got %d calls", retriever.calls)
	}
}
