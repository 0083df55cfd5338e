package index

import (
	"context"

	"github.com/precis-labs/precis/internal/domain"
)

// Repository defines the storage contract for indexed documents.
type Repository interface {
	GetDocument(ctx context.Context, url string) (domain.Document, bool, error)
	UpsertDocument(ctx context.Context, doc domain.Document) error
	GetChunks(ctx context.Context, url string, count int) ([]domain.Chunk, error)
	UpsertChunks(ctx context.Context, url string, chunks []domain.Chunk) error
	DeleteChunksFrom(ctx context.Context, url string, from, until int) error
}
