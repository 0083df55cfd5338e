package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"go.uber.org/zap"

	"github.com/precis-labs/precis/internal/domain"
)

// Service keeps the per-URL chunk index up to date with the minimum
// number of embedding calls. Chunks are compared positionally by
// content hash: only new or changed positions are re-embedded, and
// trailing rows of a shrunken document are deleted.
type Service struct {
	repo      Repository
	embedder  domain.Embedder
	model     string
	batchSize int
	logger    *zap.Logger
}

// New creates an indexing service. model is the embedding model id and
// is part of the identity of stored vectors: changing it invalidates
// the whole index for a URL. Embedders that also implement
// domain.BatchEmbedder get one provider call per batch; others are
// driven one text at a time.
func New(repo Repository, embedder domain.Embedder, model string, batchSize int, logger *zap.Logger) *Service {
	if batchSize <= 0 {
		batchSize = 64
	}
	return &Service{
		repo:      repo,
		embedder:  embedder,
		model:     model,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Ensure brings the stored index for url in line with texts and returns
// the full, embedded chunk set in positional order. When nothing
// changed since the last visit no embedding call is made.
func (s *Service) Ensure(ctx context.Context, url, title string, texts []string) ([]domain.Chunk, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("ensure index: %w: no chunks", domain.ErrExtractionEmpty)
	}

	docHash := contentHash(texts, s.model)
	hashes := make([]string, len(texts))
	for i, t := range texts {
		hashes[i] = chunkHash(t)
	}

	doc, found, err := s.repo.GetDocument(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("ensure index: %w", err)
	}

	if found && doc.ContentHash == docHash && doc.EmbeddingModel == s.model && doc.ChunkCount == len(texts) {
		chunks, err := s.repo.GetChunks(ctx, url, doc.ChunkCount)
		if err != nil {
			return nil, fmt.Errorf("ensure index: %w", err)
		}
		s.logger.Debug("Index unchanged", zap.String("url", url), zap.Int("chunks", len(chunks)))
		return chunks, nil
	}

	// A model switch makes every stored vector unusable.
	var prior []domain.Chunk
	if found && doc.EmbeddingModel == s.model {
		prior, err = s.repo.GetChunks(ctx, url, doc.ChunkCount)
		if err != nil {
			return nil, fmt.Errorf("ensure index: %w", err)
		}
	}

	chunks := make([]domain.Chunk, len(texts))
	var changed []int
	for i, t := range texts {
		if i < len(prior) && prior[i].Hash == hashes[i] && len(prior[i].Embedding) > 0 {
			chunks[i] = prior[i]
			chunks[i].Index = i
			continue
		}
		chunks[i] = domain.Chunk{Index: i, Content: t, Hash: hashes[i]}
		changed = append(changed, i)
	}

	if err := s.embedChanged(ctx, chunks, changed); err != nil {
		return nil, err
	}

	if len(changed) > 0 {
		upserts := make([]domain.Chunk, len(changed))
		for j, i := range changed {
			upserts[j] = chunks[i]
		}
		if err := s.repo.UpsertChunks(ctx, url, upserts); err != nil {
			return nil, fmt.Errorf("ensure index: %w", err)
		}
	}

	if found && doc.ChunkCount > len(texts) {
		if err := s.repo.DeleteChunksFrom(ctx, url, len(texts), doc.ChunkCount); err != nil {
			return nil, fmt.Errorf("ensure index: %w", err)
		}
	}

	meta := domain.Document{
		URL:            url,
		Title:          title,
		ContentHash:    docHash,
		EmbeddingModel: s.model,
		ChunkCount:     len(texts),
	}
	if err := s.repo.UpsertDocument(ctx, meta); err != nil {
		return nil, fmt.Errorf("ensure index: %w", err)
	}

	s.logger.Info("Index updated",
		zap.String("url", url),
		zap.Int("chunks", len(texts)),
		zap.Int("embedded", len(changed)),
		zap.Int("reused", len(texts)-len(changed)),
	)
	return chunks, nil
}

// embedChanged vectorizes the changed positions in provider-sized batches.
func (s *Service) embedChanged(ctx context.Context, chunks []domain.Chunk, changed []int) error {
	for start := 0; start < len(changed); start += s.batchSize {
		end := min(start+s.batchSize, len(changed))
		batch := changed[start:end]

		texts := make([]string, len(batch))
		for j, i := range batch {
			texts[j] = chunks[i].Content
		}

		res, err := s.embedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed chunks: %w", err)
		}
		if len(res.Embeddings) != len(batch) {
			return fmt.Errorf("embed chunks: got %d vectors for %d texts: %w",
				len(res.Embeddings), len(batch), domain.ErrProviderError)
		}

		for j, i := range batch {
			chunks[i].Embedding = res.Embeddings[j]
			chunks[i].Dim = len(res.Embeddings[j])
		}
	}
	return nil
}

func (s *Service) embedBatch(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if be, ok := s.embedder.(domain.BatchEmbedder); ok {
		return be.BatchEmbed(ctx, texts)
	}
	return domain.BatchFallback(ctx, s.embedder, texts)
}

func contentHash(texts []string, model string) string {
	h := sha256.New()
	for _, t := range texts {
		h.Write([]byte(t))
		h.Write([]byte{0})
	}
	h.Write([]byte(model))
	return hex.EncodeToString(h.Sum(nil))
}

func chunkHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
