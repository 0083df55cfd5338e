package domain

import "context"

// Message roles for completion requests.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one role-tagged entry of a completion conversation.
type Message struct {
	Role    string
	Content string
}

// Completer requests a single non-streamed completion.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// StreamCompleter requests a streamed completion. onDelta is invoked once
// per incremental content fragment, in provider emission order; a non-nil
// return aborts the stream. The accumulated full text is returned.
type StreamCompleter interface {
	CompleteStream(ctx context.Context, messages []Message, onDelta func(delta string) error) (string, error)
}
