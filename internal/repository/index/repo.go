package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/precis-labs/precis/internal/db"
	"github.com/precis-labs/precis/internal/domain"
)

// Repo persists documents and their embedded chunks as hash rows.
//
// Key layout:
//
//	<prefix>doc:<urlDigest>            document metadata
//	<prefix>chunk:<urlDigest>:<index>  one row per chunk
type Repo struct {
	store  db.HashStore
	prefix string
}

func NewRepo(store db.HashStore, prefix string) *Repo {
	return &Repo{store: store, prefix: prefix}
}

func urlDigest(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}

func (r *Repo) docKey(url string) string {
	return r.prefix + "doc:" + urlDigest(url)
}

func (r *Repo) chunkKey(url string, index int) string {
	return fmt.Sprintf("%schunk:%s:%d", r.prefix, urlDigest(url), index)
}

// GetDocument loads the stored metadata for a URL. The second return is
// false when the document has never been indexed.
func (r *Repo) GetDocument(ctx context.Context, url string) (domain.Document, bool, error) {
	fields, err := r.store.HGetAll(ctx, r.docKey(url))
	if err != nil {
		return domain.Document{}, false, fmt.Errorf("get document: %w", err)
	}
	if len(fields) == 0 {
		return domain.Document{}, false, nil
	}
	return parseDocFields(fields), true, nil
}

// UpsertDocument writes the document metadata row.
func (r *Repo) UpsertDocument(ctx context.Context, doc domain.Document) error {
	if err := r.store.HSet(ctx, r.docKey(doc.URL), buildDocFields(doc)); err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	return nil
}

// GetChunks loads count chunk rows for a URL in positional order.
// Missing rows come back as zero-valued chunks at their index.
func (r *Repo) GetChunks(ctx context.Context, url string, count int) ([]domain.Chunk, error) {
	if count <= 0 {
		return nil, nil
	}
	keys := make([]string, count)
	for i := range keys {
		keys[i] = r.chunkKey(url, i)
	}
	rows, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("get chunks: %w", err)
	}
	chunks := make([]domain.Chunk, len(rows))
	for i, row := range rows {
		chunks[i] = parseChunkFields(i, row)
	}
	return chunks, nil
}

// UpsertChunks writes the given chunk rows in one pipelined call.
func (r *Repo) UpsertChunks(ctx context.Context, url string, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	items := make([]db.HashSetItem, len(chunks))
	for i, c := range chunks {
		items[i] = db.HashSetItem{
			Key:    r.chunkKey(url, c.Index),
			Fields: buildChunkFields(c),
		}
	}
	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("upsert chunks: %w", err)
	}
	return nil
}

// DeleteChunksFrom removes chunk rows in the half-open range [from, until).
// Used when a re-indexed document shrank.
func (r *Repo) DeleteChunksFrom(ctx context.Context, url string, from, until int) error {
	if from >= until {
		return nil
	}
	keys := make([]string, 0, until-from)
	for i := from; i < until; i++ {
		keys = append(keys, r.chunkKey(url, i))
	}
	if err := r.store.DelMulti(ctx, keys); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	return nil
}
