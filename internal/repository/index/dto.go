package index

import (
	"encoding/binary"
	"math"
	"strconv"

	"github.com/precis-labs/precis/internal/domain"
)

// Hash field names for Document and Chunk rows.
const (
	fieldURL            = "url"
	fieldTitle          = "title"
	fieldContentHash    = "content_hash"
	fieldEmbeddingModel = "embedding_model"
	fieldChunkCount     = "chunk_count"

	fieldContent   = "content"
	fieldVector    = "vector"
	fieldDim       = "dim"
	fieldChunkHash = "chunk_hash"
)

// buildDocFields converts a domain Document into a flat map for HSET.
func buildDocFields(doc domain.Document) map[string]string {
	return map[string]string{
		fieldURL:            doc.URL,
		fieldTitle:          doc.Title,
		fieldContentHash:    doc.ContentHash,
		fieldEmbeddingModel: doc.EmbeddingModel,
		fieldChunkCount:     strconv.Itoa(doc.ChunkCount),
	}
}

// parseDocFields converts a flat hash map back into a domain Document.
func parseDocFields(m map[string]string) domain.Document {
	count, _ := strconv.Atoi(m[fieldChunkCount])
	return domain.Document{
		URL:            m[fieldURL],
		Title:          m[fieldTitle],
		ContentHash:    m[fieldContentHash],
		EmbeddingModel: m[fieldEmbeddingModel],
		ChunkCount:     count,
	}
}

// buildChunkFields converts a domain Chunk into a flat map for HSET.
// The vector is stored as a fixed-width little-endian float32 blob.
func buildChunkFields(c domain.Chunk) map[string]string {
	return map[string]string{
		fieldContent:   c.Content,
		fieldVector:    vectorToBytes(c.Embedding),
		fieldDim:       strconv.Itoa(c.Dim),
		fieldChunkHash: c.Hash,
	}
}

// parseChunkFields converts a flat hash map back into a domain Chunk.
func parseChunkFields(index int, m map[string]string) domain.Chunk {
	dim, _ := strconv.Atoi(m[fieldDim])
	return domain.Chunk{
		Index:     index,
		Content:   m[fieldContent],
		Embedding: bytesToVector(m[fieldVector]),
		Dim:       dim,
		Hash:      m[fieldChunkHash],
	}
}

// vectorToBytes serializes []float32 to a binary string (4 bytes per float, little-endian).
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

// bytesToVector deserializes a binary string back to []float32.
func bytesToVector(s string) []float32 {
	b := []byte(s)
	if len(b) == 0 || len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
