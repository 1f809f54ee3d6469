package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finrag-go/pkg/extract"
)

func TestChunk_EmptyInput(t *testing.T) {
	c := New(1000)

	assert.Empty(t, c.Chunk("report.pdf", nil))
	assert.Empty(t, c.Chunk("report.pdf", []extract.Page{{Number: 1, Text: "   \n  "}}))
}

func TestChunk_SingleShortPage(t *testing.T) {
	c := New(1000)

	records := c.Chunk("report.pdf", []extract.Page{{Number: 3, Text: "Q4 revenue grew 12% year over year."}})
	require.Len(t, records, 1)

	r := records[0]
	assert.Equal(t, "report.pdf_3_0", r.ChunkID)
	assert.Equal(t, "report.pdf", r.FileName)
	assert.Equal(t, "report.pdf", r.Source)
	assert.Equal(t, 3, r.PageStart)
	assert.Equal(t, 3, r.PageEnd)
	assert.Equal(t, 0, r.ChunkIndex)
	assert.Equal(t, "text", r.SectionType)
}

func TestChunk_IndexMonotonicAcrossPages(t *testing.T) {
	c := New(50)
	long := strings.Repeat("earnings guidance ", 20) // ~360 chars, several chunks

	records := c.Chunk("10k.pdf", []extract.Page{
		{Number: 1, Text: long},
		{Number: 2, Text: long},
	})
	require.Greater(t, len(records), 2)

	for i, r := range records {
		assert.Equal(t, i, r.ChunkIndex, "chunk_index must increase from 0 across the whole file")
		assert.Equal(t, fmt.Sprintf("10k.pdf_%d_%d", r.PageStart, i), r.ChunkID)
	}
	assert.Equal(t, 1, records[0].PageStart)
	assert.Equal(t, 2, records[len(records)-1].PageStart)
}

func TestChunk_Deterministic(t *testing.T) {
	c := New(80)
	pages := []extract.Page{
		{Number: 1, Text: strings.Repeat("net income attributable to shareholders ", 12)},
		{Number: 2, Text: "Short closing note."},
	}

	first := c.Chunk("annual.pdf", pages)
	second := c.Chunk("annual.pdf", pages)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ChunkID, second[i].ChunkID)
		assert.Equal(t, first[i].Text, second[i].Text)
	}
}

func TestChunk_DoesNotSplitMidWord(t *testing.T) {
	c := New(30)
	text := "alpha bravo charlie delta echo foxtrot golf hotel india juliett kilo"

	records := c.Chunk("words.pdf", []extract.Page{{Number: 1, Text: text}})
	require.NotEmpty(t, records)

	var words []string
	for _, r := range records {
		assert.LessOrEqual(t, len([]rune(r.Text)), 30)
		words = append(words, strings.Fields(r.Text)...)
	}
	// Re-joining the chunk words must reproduce the original word sequence.
	assert.Equal(t, strings.Fields(text), words)
}

func TestChunk_HardCutWithoutWhitespace(t *testing.T) {
	c := New(10)
	text := strings.Repeat("x", 25)

	records := c.Chunk("blob.pdf", []extract.Page{{Number: 1, Text: text}})
	require.Len(t, records, 3)
	assert.Equal(t, 10, len(records[0].Text))
	assert.Equal(t, 10, len(records[1].Text))
	assert.Equal(t, 5, len(records[2].Text))
}

func TestNew_DefaultsChunkSize(t *testing.T) {
	c := New(0)
	assert.Equal(t, DefaultChunkSize, c.chunkSize)
}
