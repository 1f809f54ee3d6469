package model

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument marks malformed request parameters. Rejected before
// any I/O is issued.
var ErrInvalidArgument = errors.New("invalid argument")

// ExtractionError means a source file could not be read or parsed. The file
// is marked failed; the batch continues.
type ExtractionError struct {
	FileName string
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed for %s: %v", e.FileName, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// EmbeddingError means the embedding model call failed or timed out.
type EmbeddingError struct {
	Err error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding failed: %v", e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// StorageWriteError means the store rejected an insert. The tracker stays
// untouched so the file is retried on the next run.
type StorageWriteError struct {
	Err error
}

func (e *StorageWriteError) Error() string {
	return fmt.Sprintf("storage write failed: %v", e.Err)
}

func (e *StorageWriteError) Unwrap() error { return e.Err }

// StorageReadError means a search channel failed. The retrieval engine
// degrades to dense-only when the sparse channel raises it.
type StorageReadError struct {
	Op  string
	Err error
}

func (e *StorageReadError) Error() string {
	return fmt.Sprintf("storage read failed (%s): %v", e.Op, e.Err)
}

func (e *StorageReadError) Unwrap() error { return e.Err }
