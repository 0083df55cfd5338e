// Package web fetches remote page content over HTTP(S) with a deadline
// and a byte-size ceiling.
package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/precis-labs/precis/internal/domain"
	"github.com/precis-labs/precis/internal/text"
)

const (
	defaultTimeout  = 12 * time.Second
	defaultMaxBytes = 15 * 1024 * 1024
	maxTitleChars   = 180

	userAgent    = "precis/1.0 (+https://github.com/precis-labs/precis)"
	acceptHeader = "text/html,application/xhtml+xml,application/pdf;q=0.9,*/*;q=0.8"
)

var titleRegex = regexp.MustCompile(`(?i)<title[^>]*>([^<]*)</title>`)

// Config holds fetcher limits.
type Config struct {
	Timeout  time.Duration
	MaxBytes int64
	Logger   *zap.Logger
}

// Fetcher retrieves page content with redirect-following and size limits.
type Fetcher struct {
	client   *http.Client
	timeout  time.Duration
	maxBytes int64
	logger   *zap.Logger
}

// NewFetcher creates a page fetcher. Zero config fields get defaults.
func NewFetcher(cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = defaultMaxBytes
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Fetcher{
		client:   &http.Client{},
		timeout:  cfg.Timeout,
		maxBytes: cfg.MaxBytes,
		logger:   cfg.Logger,
	}
}

// Fetch issues a GET for url and classifies the response. All failures
// wrap domain.ErrFetchFailed and are recoverable: callers fall back to a
// DOM snapshot when one is present.
func (f *Fetcher) Fetch(ctx context.Context, url string) (domain.FetchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.FetchResult{}, fmt.Errorf("%w: build request: %w", domain.ErrFetchFailed, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", acceptHeader)

	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return domain.FetchResult{}, fmt.Errorf("%w: %w after %s", domain.ErrFetchFailed, domain.ErrFetchTimeout, f.timeout)
		}
		return domain.FetchResult{}, fmt.Errorf("%w: %w", domain.ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.FetchResult{}, fmt.Errorf("%w: server responded %d", domain.ErrFetchFailed, resp.StatusCode)
	}

	if resp.ContentLength > f.maxBytes {
		return domain.FetchResult{}, fmt.Errorf("%w: %w: declared %d bytes, limit %d",
			domain.ErrFetchFailed, domain.ErrTooLarge, resp.ContentLength, f.maxBytes)
	}

	// Read one byte past the ceiling to detect oversized bodies without
	// a Content-Length header.
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return domain.FetchResult{}, fmt.Errorf("%w: %w after %s", domain.ErrFetchFailed, domain.ErrFetchTimeout, f.timeout)
		}
		return domain.FetchResult{}, fmt.Errorf("%w: read body: %w", domain.ErrFetchFailed, err)
	}
	if int64(len(body)) > f.maxBytes {
		return domain.FetchResult{}, fmt.Errorf("%w: %w: body exceeds %d bytes",
			domain.ErrFetchFailed, domain.ErrTooLarge, f.maxBytes)
	}

	contentType := classifyContentType(resp.Header.Get("Content-Type"))

	result := domain.FetchResult{
		ContentType: contentType,
		Body:        body,
	}
	if contentType == domain.ContentTypeHTML {
		result.Title = sniffTitle(body)
	}

	f.logger.Debug("page fetched",
		zap.String("url", url),
		zap.String("content_type", string(contentType)),
		zap.Int("bytes", len(body)),
	)

	return result, nil
}

// classifyContentType maps a Content-Type header to the pipeline's coarse
// html | pdf | unknown classification.
func classifyContentType(header string) domain.ContentType {
	mime, _, _ := strings.Cut(header, ";")
	switch strings.ToLower(strings.TrimSpace(mime)) {
	case "text/html", "application/xhtml+xml":
		return domain.ContentTypeHTML
	case "application/pdf":
		return domain.ContentTypePDF
	default:
		return domain.ContentTypeUnknown
	}
}

// sniffTitle extracts <title> via lightweight pattern matching so
// downstream stages have a title before full extraction runs.
func sniffTitle(body []byte) string {
	match := titleRegex.FindSubmatch(body)
	if match == nil {
		return ""
	}
	title := text.NormalizeWhitespace(string(match[1]))
	if runes := []rune(title); len(runes) > maxTitleChars {
		title = string(runes[:maxTitleChars])
	}
	return title
}
