// Package extract provides per-page text extraction from source documents.
package extract

import "io"

// Page is the text of one document page.
type Page struct {
	Number int
	Text   string
}

// Extractor pulls page text out of a source document. Implementations may
// fail on corrupt or unsupported files.
type Extractor interface {
	// ExtractFile extracts pages from a file on disk.
	ExtractFile(path string) ([]Page, error)
	// Extract extracts pages from an in-memory document.
	Extract(r io.ReaderAt, size int64, fileName string) ([]Page, error)
}
