package pipeline

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/precis-labs/precis/internal/domain"
	"github.com/precis-labs/precis/internal/metrics"
	"github.com/precis-labs/precis/internal/text"
)

// A fetched HTML body shorter than this is assumed truncated or
// script-rendered; the client DOM snapshot replaces it when present.
const minHTMLBytes = 800

// Service coordinates one request through fetch, extraction, optional
// retrieval, and summarization, emitting progress and delta events
// along the way. Every streamed run ends with exactly one terminal
// event, and the concatenated deltas equal the final text.
type Service struct {
	fetcher    Fetcher
	extractor  Extractor
	indexer    Indexer   // nil when no index backend is configured
	retriever  Retriever // nil when no index backend is configured
	summarizer Summarizer
	detector   LanguageDetector
	query      string
	chunkSize  int
	maxExcerpt int
	logger     *zap.Logger
}

// Config carries pipeline tuning knobs.
type Config struct {
	Query              string // retrieval query, default "RESUME"
	RetrievalChunkSize int    // default 1200
	MaxExcerpts        int    // excerpts passed to the model, default 6
}

// New creates a pipeline service. indexer and retriever may be nil,
// which disables retrieval in favor of local chunk selection.
func New(
	fetcher Fetcher,
	extractor Extractor,
	indexer Indexer,
	retriever Retriever,
	summarizer Summarizer,
	detector LanguageDetector,
	cfg Config,
	logger *zap.Logger,
) *Service {
	if cfg.Query == "" {
		cfg.Query = "RESUME"
	}
	if cfg.RetrievalChunkSize <= 0 {
		cfg.RetrievalChunkSize = 1200
	}
	if cfg.MaxExcerpts <= 0 {
		cfg.MaxExcerpts = 6
	}
	return &Service{
		fetcher:    fetcher,
		extractor:  extractor,
		indexer:    indexer,
		retriever:  retriever,
		summarizer: summarizer,
		detector:   detector,
		query:      cfg.Query,
		chunkSize:  cfg.RetrievalChunkSize,
		maxExcerpt: cfg.MaxExcerpts,
		logger:     logger,
	}
}

// Request is one summarization or answer request.
type Request struct {
	URL         string
	Title       string
	DomSnapshot *domain.DomSnapshot
	Question    string
}

// pageContent is the prepared input shared by all modes.
type pageContent struct {
	url        string
	title      string
	paragraphs []string
	language   string
}

// Summarize runs the strict structured mode and returns a validated
// summary. Retrieval narrows the input when an index is configured;
// otherwise the summarizer map-reduces the full text as needed.
func (s *Service) Summarize(ctx context.Context, req Request) (domain.Summary, error) {
	pc, err := s.prepare(ctx, req, nil)
	if err != nil {
		s.countOutcome("structured", err)
		return domain.Summary{}, err
	}

	var summary domain.Summary
	if s.hasIndex() {
		excerpts, err := s.retrieveExcerpts(ctx, pc)
		if err != nil {
			s.countOutcome("structured", err)
			return domain.Summary{}, err
		}
		summary, err = s.summarizer.SummarizeExcerpts(ctx, excerpts, pc.language, pc.url, pc.title)
		if err != nil {
			s.countOutcome("structured", err)
			return domain.Summary{}, err
		}
	} else {
		summary, err = s.summarizer.Summarize(ctx, pc.paragraphs, pc.language, pc.url, pc.title)
		if err != nil {
			s.countOutcome("structured", err)
			return domain.Summary{}, err
		}
	}

	s.countOutcome("structured", nil)
	return summary, nil
}

// StreamSummary runs the degraded text mode: progress events, then the
// model's raw text as delta events, then a final event carrying the
// accumulated text. On failure the terminal event is error instead.
func (s *Service) StreamSummary(ctx context.Context, req Request, emitter Emitter) error {
	err := s.streamSummary(ctx, req, emitter)
	s.countOutcome("stream_summary", err)
	return err
}

func (s *Service) streamSummary(ctx context.Context, req Request, emitter Emitter) error {
	pc, err := s.prepare(ctx, req, emitter)
	if err != nil {
		return s.emitError(emitter, err)
	}

	excerpts, err := s.selectExcerpts(ctx, pc, emitter)
	if err != nil {
		return s.emitError(emitter, err)
	}

	if err := s.progress(emitter, "Writing the summary"); err != nil {
		return err
	}
	full, err := s.summarizer.StreamSummary(ctx, excerpts, pc.language, pc.url, func(delta string) error {
		return emitter.Emit(domain.Event{Kind: domain.EventDelta, Text: delta})
	})
	if err != nil {
		return s.emitError(emitter, err)
	}

	return emitter.Emit(domain.Event{Kind: domain.EventFinal, Text: full})
}

// StreamAnswer answers a question about the page. The answer arrives
// entirely as delta events and the stream closes with a done marker.
func (s *Service) StreamAnswer(ctx context.Context, req Request, emitter Emitter) error {
	err := s.streamAnswer(ctx, req, emitter)
	s.countOutcome("stream_answer", err)
	return err
}

func (s *Service) streamAnswer(ctx context.Context, req Request, emitter Emitter) error {
	if strings.TrimSpace(req.Question) == "" {
		return s.emitError(emitter, fmt.Errorf("%w: missing question", domain.ErrInvalidRequest))
	}

	pc, err := s.prepare(ctx, req, emitter)
	if err != nil {
		return s.emitError(emitter, err)
	}

	excerpts, err := s.selectExcerpts(ctx, pc, emitter)
	if err != nil {
		return s.emitError(emitter, err)
	}

	if err := s.progress(emitter, "Writing the answer"); err != nil {
		return err
	}
	_, err = s.summarizer.StreamAnswer(ctx, excerpts, pc.language, pc.url, req.Question, func(delta string) error {
		return emitter.Emit(domain.Event{Kind: domain.EventDelta, Text: delta})
	})
	if err != nil {
		return s.emitError(emitter, err)
	}

	return emitter.Emit(domain.Event{Kind: domain.EventDone})
}

// prepare validates the request, obtains page content (remote or
// snapshot), extracts paragraphs and detects the language. emitter may
// be nil for the non-streaming mode.
func (s *Service) prepare(ctx context.Context, req Request, emitter Emitter) (pageContent, error) {
	if req.URL == "" || !text.IsHTTPProtocol(req.URL) {
		return pageContent{}, fmt.Errorf("%w: url must use http or https", domain.ErrInvalidRequest)
	}
	normalized := text.NormalizeURL(req.URL)
	derivedTitle := req.Title

	if err := s.progress(emitter, "Analyzing the page"); err != nil {
		return pageContent{}, err
	}

	contentType := domain.ContentTypeUnknown
	var raw []byte

	fetched, err := s.fetcher.Fetch(ctx, normalized)
	switch {
	case err == nil:
		contentType = fetched.ContentType
		raw = fetched.Body
		if fetched.Title != "" {
			derivedTitle = fetched.Title
		}
		if contentType == domain.ContentTypeHTML && len(raw) < minHTMLBytes && req.DomSnapshot != nil && req.DomSnapshot.HTML != "" {
			s.logger.Debug("Fetched HTML too short, using DOM snapshot",
				zap.String("url", normalized), zap.Int("bytes", len(raw)))
			raw = []byte(req.DomSnapshot.HTML)
			if req.DomSnapshot.Title != "" {
				derivedTitle = req.DomSnapshot.Title
			}
		}
	case req.DomSnapshot != nil && req.DomSnapshot.HTML != "":
		s.logger.Info("Fetch failed, using DOM snapshot",
			zap.String("url", normalized), zap.Error(err))
		contentType = domain.ContentTypeHTML
		raw = []byte(req.DomSnapshot.HTML)
		if req.DomSnapshot.Title != "" {
			derivedTitle = req.DomSnapshot.Title
		}
	default:
		return pageContent{}, err
	}

	if err := s.progress(emitter, "Extracting the main content"); err != nil {
		return pageContent{}, err
	}

	extraction := s.extractor.MainText(contentType, raw)
	paragraphs := extraction.Paragraphs

	// One retry against the snapshot when the primary source yielded nothing.
	if len(paragraphs) == 0 && req.DomSnapshot != nil && req.DomSnapshot.HTML != "" && req.DomSnapshot.HTML != string(raw) {
		retry := s.extractor.MainText(domain.ContentTypeHTML, []byte(req.DomSnapshot.HTML))
		if len(retry.Paragraphs) > 0 {
			paragraphs = retry.Paragraphs
			if retry.Title != "" {
				derivedTitle = retry.Title
			}
		}
	}
	if len(paragraphs) == 0 {
		return pageContent{}, fmt.Errorf("%w: %s", domain.ErrExtractionEmpty, normalized)
	}

	title := strings.TrimSpace(extraction.Title)
	if title == "" {
		title = derivedTitle
	}
	if title == "" {
		title = normalized
	}

	language := s.detector.Detect(strings.Join(paragraphs, "\n"))

	s.logger.Debug("Page prepared",
		zap.String("url", normalized),
		zap.Int("paragraphs", len(paragraphs)),
		zap.String("language", language),
	)
	return pageContent{
		url:        normalized,
		title:      title,
		paragraphs: paragraphs,
		language:   language,
	}, nil
}

func (s *Service) hasIndex() bool {
	return s.indexer != nil && s.retriever != nil
}

// selectExcerpts picks the excerpts handed to the model: retrieval
// over the index when configured, local chunking otherwise.
func (s *Service) selectExcerpts(ctx context.Context, pc pageContent, emitter Emitter) ([]string, error) {
	if !s.hasIndex() {
		chunks := text.PackChunks(pc.paragraphs, s.chunkSize)
		if len(chunks) > s.maxExcerpt {
			chunks = chunks[:s.maxExcerpt]
		}
		return chunks, nil
	}
	if err := s.progress(emitter, "Locating key passages"); err != nil {
		return nil, err
	}
	return s.retrieveExcerpts(ctx, pc)
}

func (s *Service) retrieveExcerpts(ctx context.Context, pc pageContent) ([]string, error) {
	chunks := text.PackChunks(pc.paragraphs, s.chunkSize)
	indexed, err := s.indexer.Ensure(ctx, pc.url, pc.title, chunks)
	if err != nil {
		return nil, err
	}
	scored, err := s.retriever.Select(ctx, s.query, indexed)
	if err != nil {
		return nil, err
	}
	excerpts := make([]string, 0, len(scored))
	for _, sc := range scored {
		excerpts = append(excerpts, sc.Content)
	}
	if len(excerpts) > s.maxExcerpt {
		excerpts = excerpts[:s.maxExcerpt]
	}
	return excerpts, nil
}

func (s *Service) progress(emitter Emitter, message string) error {
	if emitter == nil {
		return nil
	}
	return emitter.Emit(domain.Event{Kind: domain.EventProgress, Text: message})
}

// emitError sends the terminal error event and passes the cause through.
func (s *Service) emitError(emitter Emitter, err error) error {
	if emitter == nil {
		return err
	}
	if emitErr := emitter.Emit(domain.Event{Kind: domain.EventError, Text: err.Error()}); emitErr != nil {
		s.logger.Warn("Failed to emit error event", zap.Error(emitErr))
	}
	return err
}

func (s *Service) countOutcome(mode string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.PipelineRequestsTotal.WithLabelValues(mode, outcome).Inc()
}
