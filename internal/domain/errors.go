package domain

import "errors"

var (
	// ErrInvalidRequest signals a malformed inbound request (bad URL, missing question).
	ErrInvalidRequest = errors.New("invalid request")
	// ErrFetchFailed signals that remote content could not be retrieved.
	// Recoverable: callers fall back to a DOM snapshot when one is present.
	ErrFetchFailed = errors.New("fetch failed")
	// ErrFetchTimeout signals that the fetch deadline elapsed.
	ErrFetchTimeout = errors.New("fetch timed out")
	// ErrTooLarge signals that the remote body exceeds the size ceiling.
	ErrTooLarge = errors.New("content too large")
	// ErrExtractionEmpty signals that no paragraphs could be extracted.
	ErrExtractionEmpty = errors.New("no extractable content")
	// ErrProviderError signals an embedding or completion provider failure.
	ErrProviderError = errors.New("provider error")
	// ErrMalformedModelOutput signals a structured summary that failed validation.
	ErrMalformedModelOutput = errors.New("malformed model output")
)
