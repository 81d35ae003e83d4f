package model

import "fmt"

// ContextChunk is a bounded slice of ingested text scoped to a session: the
// unit of embedding and retrieval. Chunks are write-once and append-only.
type ContextChunk struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Seq       int       `json:"seq"`
	Text      string    `json:"text"`
	SourceURL string    `json:"source_url,omitempty"`
	Embedding []float32 `json:"-"`
}

// ChunkID derives the stable chunk identifier from session and sequence.
func ChunkID(sessionID string, seq int) string {
	return fmt.Sprintf("%s:%d", sessionID, seq)
}

// ScoredChunk pairs a chunk with its similarity score for retrieval results.
type ScoredChunk struct {
	Chunk ContextChunk `json:"chunk"`
	Score float64      `json:"score"`
}
