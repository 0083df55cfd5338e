package chi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/precis-labs/precis/internal/domain"
)

// streamWriter emits pipeline events as Server-Sent Events. Each event
// is framed as an "event:" line naming the kind, one "data:" line per
// payload line, and a blank-line terminator, flushed immediately.
type streamWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// newStreamWriter sets the SSE response headers and returns a writer.
// Fails when the underlying ResponseWriter cannot flush.
func newStreamWriter(w http.ResponseWriter) (*streamWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support streaming")
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream; charset=utf-8")
	h.Set("Cache-Control", "no-cache, no-transform")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	return &streamWriter{w: w, flusher: flusher}, nil
}

// Emit writes one event frame. Multi-line payloads become one data
// line each so the client reassembles them with newlines intact.
func (s *streamWriter) Emit(event domain.Event) error {
	if _, err := fmt.Fprintf(s.w, "event: %s\n", event.Kind); err != nil {
		return fmt.Errorf("write sse event: %w", err)
	}
	for _, line := range strings.Split(event.Text, "\n") {
		if _, err := fmt.Fprintf(s.w, "data: %s\n", line); err != nil {
			return fmt.Errorf("write sse data: %w", err)
		}
	}
	if _, err := fmt.Fprint(s.w, "\n"); err != nil {
		return fmt.Errorf("write sse terminator: %w", err)
	}
	s.flusher.Flush()
	return nil
}
