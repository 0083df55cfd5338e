package summarize

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/precis-labs/precis/internal/domain"
)

type mockCompleter struct {
	completeFn func(ctx context.Context, messages []domain.Message) (string, error)
	prompts    [][]domain.Message
}

func (m *mockCompleter) Complete(ctx context.Context, messages []domain.Message) (string, error) {
	m.prompts = append(m.prompts, messages)
	return m.completeFn(ctx, messages)
}

type mockStreamer struct {
	streamFn func(ctx context.Context, messages []domain.Message, onDelta func(string) error) (string, error)
	prompts  [][]domain.Message
}

func (m *mockStreamer) CompleteStream(ctx context.Context, messages []domain.Message, onDelta func(string) error) (string, error) {
	m.prompts = append(m.prompts, messages)
	return m.streamFn(ctx, messages, onDelta)
}

const validPayload = `{"tldr": ["one", "two", "three"], "summary": "A faithful paragraph."}`

func TestSummarize_DirectPath(t *testing.T) {
	completer := &mockCompleter{
		completeFn: func(_ context.Context, _ []domain.Message) (string, error) {
			return validPayload, nil
		},
	}
	service := New(completer, nil, 12000, 4000, zap.NewNop())

	got, err := service.Summarize(context.Background(), []string{"Short page text."}, "en", "https://example.com/a", "A Page")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(completer.prompts) != 1 {
		t.Fatalf("expected a single synthesis call, got %d", len(completer.prompts))
	}
	if got.URL != "https://example.com/a" || got.Title != "A Page" {
		t.Errorf("summary metadata = %q / %q", got.URL, got.Title)
	}
	if len(got.TLDR) != 3 || got.Summary != "A faithful paragraph." {
		t.Errorf("unexpected payload: %+v", got)
	}
	if len(got.UsedSources) != 1 || got.UsedSources[0] != "https://example.com/a" {
		t.Errorf("used sources = %v", got.UsedSources)
	}
}

func TestSummarize_MapReducePath(t *testing.T) {
	// Three paragraphs well over the direct limit force the map phase.
	paragraphs := []string{
		strings.Repeat("a", 5000),
		strings.Repeat("b", 5000),
		strings.Repeat("c", 5000),
	}

	completer := &mockCompleter{}
	completer.completeFn = func(_ context.Context, _ []domain.Message) (string, error) {
		// The fourth call is the synthesis pass over the mini summaries.
		if len(completer.prompts) <= 3 {
			return "mini summary", nil
		}
		return validPayload, nil
	}
	service := New(completer, nil, 12000, 4000, zap.NewNop())

	got, err := service.Summarize(context.Background(), paragraphs, "en", "https://example.com/b", "Long Page")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(completer.prompts) != 4 {
		t.Fatalf("expected 3 chunk calls plus 1 synthesis call, got %d", len(completer.prompts))
	}

	synthesis := completer.prompts[3]
	if !strings.Contains(synthesis[1].Content, "mini summary") {
		t.Error("synthesis prompt must be built from the mini summaries")
	}
	if got.Summary != "A faithful paragraph." {
		t.Errorf("summary = %q", got.Summary)
	}
}

func TestSummarize_ChunkError(t *testing.T) {
	wantErr := errors.New("rate limited")
	completer := &mockCompleter{
		completeFn: func(_ context.Context, _ []domain.Message) (string, error) {
			return "", wantErr
		},
	}
	service := New(completer, nil, 100, 50, zap.NewNop())

	_, err := service.Summarize(context.Background(), []string{strings.Repeat("x", 200)}, "en", "https://example.com", "")
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected chunk error to propagate, got %v", err)
	}
}

func TestSummarize_MalformedPayload(t *testing.T) {
	completer := &mockCompleter{
		completeFn: func(_ context.Context, _ []domain.Message) (string, error) {
			return "not json at all", nil
		},
	}
	service := New(completer, nil, 12000, 4000, zap.NewNop())

	_, err := service.Summarize(context.Background(), []string{"text"}, "en", "https://example.com", "")
	if !errors.Is(err, domain.ErrMalformedModelOutput) {
		t.Fatalf("expected ErrMalformedModelOutput, got %v", err)
	}
}

func TestSummarizeExcerpts_SinglePass(t *testing.T) {
	// Excerpts far beyond the direct limit must still run as one call.
	excerpts := []string{strings.Repeat("x", 20000)}
	completer := &mockCompleter{
		completeFn: func(_ context.Context, _ []domain.Message) (string, error) {
			return validPayload, nil
		},
	}
	service := New(completer, nil, 12000, 4000, zap.NewNop())

	_, err := service.SummarizeExcerpts(context.Background(), excerpts, "en", "https://example.com", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(completer.prompts) != 1 {
		t.Fatalf("expected a single call, got %d", len(completer.prompts))
	}
}

func TestStreamSummary(t *testing.T) {
	streamer := &mockStreamer{
		streamFn: func(_ context.Context, _ []domain.Message, onDelta func(string) error) (string, error) {
			for _, part := range []string{"## TL;DR\n", "- point\n"} {
				if err := onDelta(part); err != nil {
					return "", err
				}
			}
			return "## TL;DR\n- point\n", nil
		},
	}
	service := New(nil, streamer, 12000, 4000, zap.NewNop())

	var deltas []string
	full, err := service.StreamSummary(context.Background(), []string{"excerpt"}, "en", "https://example.com",
		func(delta string) error {
			deltas = append(deltas, delta)
			return nil
		})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Join(deltas, "") != full {
		t.Errorf("deltas %q do not rebuild full text %q", deltas, full)
	}
	if !strings.Contains(streamer.prompts[0][1].Content, "excerpt") {
		t.Error("prompt must carry the excerpts")
	}
}

func TestStreamAnswer(t *testing.T) {
	streamer := &mockStreamer{
		streamFn: func(_ context.Context, _ []domain.Message, _ func(string) error) (string, error) {
			return "The page says so.", nil
		},
	}
	service := New(nil, streamer, 12000, 4000, zap.NewNop())

	full, err := service.StreamAnswer(context.Background(), []string{"excerpt"}, "en", "https://example.com", "What does it say?",
		func(string) error { return nil })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if full != "The page says so." {
		t.Errorf("full = %q", full)
	}
	if !strings.Contains(streamer.prompts[0][1].Content, "What does it say?") {
		t.Error("prompt must carry the question")
	}
}

func TestStreamAnswer_Error(t *testing.T) {
	wantErr := errors.New("stream cut")
	streamer := &mockStreamer{
		streamFn: func(_ context.Context, _ []domain.Message, _ func(string) error) (string, error) {
			return "", wantErr
		},
	}
	service := New(nil, streamer, 12000, 4000, zap.NewNop())

	_, err := service.StreamAnswer(context.Background(), nil, "en", "https://example.com", "q", func(string) error { return nil })
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected streamer error to propagate, got %v", err)
	}
}
