// Package tracker records which source files have already been ingested,
// making folder ingestion idempotent.
package tracker

import "time"

// Entry is the processed metadata kept per file.
type Entry struct {
	ProcessedAt time.Time `json:"processed_at"`
	ChunkCount  int       `json:"chunk_count"`
}

// Tracker is the durable set of already-ingested file names. Entries are
// created on successful full ingestion and removed only by explicit reset.
type Tracker interface {
	// IsProcessed reports whether fileName has been fully ingested.
	IsProcessed(fileName string) (bool, error)
	// MarkProcessed records a successful ingestion. Marking an already
	// marked file only refreshes its timestamp.
	MarkProcessed(fileName string, chunkCount int) error
	// Reset removes one entry so the file is re-ingested on the next run.
	Reset(fileName string) error
	// ResetAll removes every entry.
	ResetAll() error
}
