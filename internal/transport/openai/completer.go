package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/precis-labs/precis/internal/domain"
	"github.com/precis-labs/precis/internal/metrics"
)

// Completer is a chat-completion provider using the OpenAI-compatible API.
type Completer struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

// CompleterConfig holds the completion provider settings.
type CompleterConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewCompleter creates an OpenAI-compatible completion provider.
func NewCompleter(cfg *CompleterConfig) *Completer {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}

	return &Completer{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   cfg.Model,
		timeout: cfg.Timeout,
		logger:  cfg.Logger,
	}
}

// Complete implements domain.Completer with a single non-streamed request.
func (c *Completer) Complete(ctx context.Context, messages []domain.Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: toOpenAIMessages(messages),
	})
	if err != nil {
		metrics.CompletionRequestsTotal.WithLabelValues(c.model, "single", "error").Inc()
		return "", parseAPIError("completion", err)
	}

	metrics.CompletionRequestsTotal.WithLabelValues(c.model, "single", "success").Inc()
	metrics.CompletionRequestDuration.WithLabelValues(c.model, "single").Observe(time.Since(start).Seconds())

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("completion response has no choices: %w", domain.ErrProviderError)
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("completion response is empty: %w", domain.ErrProviderError)
	}
	return content, nil
}

// CompleteStream implements domain.StreamCompleter. Deltas are forwarded
// in provider emission order; a non-nil onDelta return aborts the stream.
func (c *Completer) CompleteStream(
	ctx context.Context, messages []domain.Message, onDelta func(delta string) error,
) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	stream, err := c.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: toOpenAIMessages(messages),
		Stream:   true,
	})
	if err != nil {
		metrics.CompletionRequestsTotal.WithLabelValues(c.model, "stream", "error").Inc()
		return "", parseAPIError("completion", err)
	}
	defer stream.Close()

	var acc strings.Builder
	for {
		resp, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			metrics.CompletionRequestsTotal.WithLabelValues(c.model, "stream", "error").Inc()
			return acc.String(), parseAPIError("completion", recvErr)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		acc.WriteString(delta)
		if onDelta != nil {
			if err := onDelta(delta); err != nil {
				return acc.String(), fmt.Errorf("delta consumer: %w", err)
			}
		}
	}

	metrics.CompletionRequestsTotal.WithLabelValues(c.model, "stream", "success").Inc()
	metrics.CompletionRequestDuration.WithLabelValues(c.model, "stream").Observe(time.Since(start).Seconds())

	c.logger.Debug("completion stream finished",
		zap.String("model", c.model),
		zap.Int("chars", acc.Len()),
	)

	return acc.String(), nil
}

func toOpenAIMessages(messages []domain.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		out[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	return out
}
