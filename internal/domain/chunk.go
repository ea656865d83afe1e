package domain

import "fmt"

// ChunkMetadata is the payload stored with each vector for retrieval-time
// display and metadata-filtered deletion. Text is duplicated here so search
// results carry the chunk content without a second lookup.
type ChunkMetadata struct {
	FileID      string `json:"file_id"`
	Filename    string `json:"filename"`
	ChunkIndex  int    `json:"chunk_index"`
	TotalChunks int    `json:"total_chunks"`
	ExpertID    string `json:"expert_id,omitempty"`
	WordCount   int    `json:"word_count"`
	Text        string `json:"text"`
	CreatedAt   string `json:"created_at"`
}

// Chunk is one embedded segment of a source document. Ephemeral: chunks
// exist in memory during a single document's processing and are persisted
// only as vectors in the index.
type Chunk struct {
	ID        string
	Text      string
	Embedding []float32
	Metadata  ChunkMetadata
}

// ChunkID builds the deterministic vector ID for a file's chunk.
func ChunkID(fileID string, index int) string {
	return fmt.Sprintf("%s_chunk_%d", fileID, index)
}
