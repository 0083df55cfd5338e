package domain

// Document is the persistent identity of an indexed page, keyed by
// normalized URL. Created on first index, updated on every re-index.
type Document struct {
	URL            string
	Title          string
	ContentHash    string
	EmbeddingModel string
	ChunkCount     int
}

// Chunk belongs to exactly one Document. Index is the stable 0-based
// ordering key, contiguous across the document's chunk set.
type Chunk struct {
	Index     int
	Content   string
	Embedding []float32
	Dim       int
	Hash      string
}

// ScoredChunk is an ephemeral per-request retrieval result.
type ScoredChunk struct {
	Index   int
	Content string
	Score   float64
}
