// Package model defines the data structures shared across the service.
package model

import "fmt"

// ChunkRecord is the unit stored in and retrieved from the vector store.
// JSON tags match the Elasticsearch index mapping.
type ChunkRecord struct {
	ChunkID     string    `json:"chunk_id"`
	FileName    string    `json:"file_name"`
	Source      string    `json:"source"`
	Text        string    `json:"text"`
	PageStart   int       `json:"page_start"`
	PageEnd     int       `json:"page_end"`
	ChunkIndex  int       `json:"chunk_index"`
	SectionType string    `json:"section_type"`
	Vector      []float32 `json:"vector,omitempty"`

	// Attributes carries any future per-chunk metadata. Extensions go here,
	// not into new implicit fields.
	Attributes map[string]string `json:"attributes,omitempty"`
}

// NewChunkID derives the deterministic chunk identifier. Re-ingesting the
// same file with the same chunking parameters reproduces identical IDs.
func NewChunkID(fileName string, pageStart, chunkIndex int) string {
	return fmt.Sprintf("%s_%d_%d", fileName, pageStart, chunkIndex)
}

// Hit is a single ranked candidate returned by one retrieval channel.
type Hit struct {
	ChunkID string
	Score   float64
	Record  ChunkRecord
}

// Values for SearchResult.SearchMethod.
const (
	SearchMethodHybrid    = "hybrid"
	SearchMethodDenseOnly = "dense_only"
)

// SearchResult is one entry of the ordered retrieval response.
type SearchResult struct {
	ChunkID      string  `json:"chunk_id"`
	FileName     string  `json:"file_name"`
	PageStart    int     `json:"page_start"`
	PageEnd      int     `json:"page_end"`
	ChunkIndex   int     `json:"chunk_index"`
	SectionType  string  `json:"section_type"`
	Content      string  `json:"content"`
	Score        float64 `json:"score"`
	SearchMethod string  `json:"search_method"`
}

// QueryRequest is the retrieval request. Ephemeral, never persisted.
type QueryRequest struct {
	Query     string `json:"query" binding:"required"`
	TopK      int    `json:"top_k"`
	UseHybrid *bool  `json:"use_hybrid"`
	FileName  string `json:"file_name"`
}

// Hybrid reports whether the request asks for hybrid retrieval.
// Unset defaults to true.
func (r QueryRequest) Hybrid() bool {
	return r.UseHybrid == nil || *r.UseHybrid
}
