package retrieve

import (
	"context"

	"github.com/precis-labs/precis/internal/domain"
)

// Embedder vectorizes the retrieval query.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
