// Package chunker splits extracted page text into bounded-size segments
// with page and position metadata.
package chunker

import (
	"strings"
	"unicode"

	"finrag-go/internal/model"
	"finrag-go/pkg/extract"
)

// DefaultChunkSize is the target segment length in characters.
const DefaultChunkSize = 1000

// Chunker produces chunk records from page text. Splitting is purely
// deterministic: identical input always yields identical boundaries and
// indices, which the chunk_id uniqueness invariant depends on.
type Chunker struct {
	chunkSize int
}

// New creates a Chunker with the given target segment length. Non-positive
// values fall back to DefaultChunkSize.
func New(chunkSize int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Chunker{chunkSize: chunkSize}
}

// Chunk splits the pages of one file into chunk records without vectors.
// chunk_index increases monotonically from 0 across the whole file; each
// chunk spans exactly the page it was cut from. Empty input yields an
// empty result, not an error.
func (c *Chunker) Chunk(fileName string, pages []extract.Page) []model.ChunkRecord {
	var records []model.ChunkRecord
	index := 0

	for _, page := range pages {
		for _, segment := range c.splitPage(page.Text) {
			records = append(records, model.ChunkRecord{
				ChunkID:     model.NewChunkID(fileName, page.Number, index),
				FileName:    fileName,
				Source:      fileName,
				Text:        segment,
				PageStart:   page.Number,
				PageEnd:     page.Number,
				ChunkIndex:  index,
				SectionType: "text",
			})
			index++
		}
	}
	return records
}

// splitPage cuts one page's text into segments of at most chunkSize runes,
// backing off to the last whitespace inside the window so words are not
// split when a boundary exists.
func (c *Chunker) splitPage(text string) []string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}

	var segments []string
	start := 0
	for start < len(runes) {
		end := start + c.chunkSize
		if end >= len(runes) {
			if seg := strings.TrimSpace(string(runes[start:])); seg != "" {
				segments = append(segments, seg)
			}
			break
		}

		// Back off to the last whitespace in the window; hard cut when the
		// window contains none.
		cut := end
		for i := end; i > start; i-- {
			if unicode.IsSpace(runes[i-1]) {
				cut = i
				break
			}
		}

		if seg := strings.TrimSpace(string(runes[start:cut])); seg != "" {
			segments = append(segments, seg)
		}
		start = cut
	}
	return segments
}
