package retrieve

import (
	"context"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/precis-labs/precis/internal/domain"
)

// Service scores indexed chunks against a query and selects the most
// relevant ones, returned in document order so the downstream prompt
// reads like the page does.
type Service struct {
	embedder Embedder
	topK     int
	logger   *zap.Logger
}

func New(embedder Embedder, topK int, logger *zap.Logger) *Service {
	if topK <= 0 {
		topK = 8
	}
	return &Service{embedder: embedder, topK: topK, logger: logger}
}

// Select embeds the query, ranks chunks by cosine similarity and
// returns up to topK of them sorted by their position in the document.
func (s *Service) Select(ctx context.Context, query string, chunks []domain.Chunk) ([]domain.ScoredChunk, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	res, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	scored := make([]domain.ScoredChunk, 0, len(chunks))
	for _, c := range chunks {
		score := Cosine(res.Embedding, c.Embedding)
		if math.IsInf(score, -1) {
			s.logger.Warn("Skipping chunk with mismatched vector dimension",
				zap.Int("index", c.Index), zap.Int("dim", len(c.Embedding)))
			continue
		}
		scored = append(scored, domain.ScoredChunk{
			Index:   c.Index,
			Content: c.Content,
			Score:   score,
		})
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > s.topK {
		scored = scored[:s.topK]
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].Index < scored[j].Index })

	return scored, nil
}
