package extract

import (
	"strings"
	"testing"

	"github.com/poiesic/answerit/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunk_ShortText(t *testing.T) {
	c := NewChunker(0, 0)
	docID := core.IDFromContent([]byte("doc"))

	chunks, err := c.Chunk(docID, "a single short paragraph")
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	assert.Equal(t, docID, chunks[0].DocumentId)
	assert.Equal(t, 0, chunks[0].Ordinal)
	assert.Equal(t, "a single short paragraph", chunks[0].Text)
	assert.Empty(t, chunks[0].Vector)
}

func TestChunk_LongTextSplits(t *testing.T) {
	c := NewChunker(100, 20)
	docID := core.IDFromContent([]byte("doc"))

	paragraphs := make([]string, 12)
	for i := range paragraphs {
		paragraphs[i] = strings.Repeat("sentence words here. ", 4)
	}
	text := strings.Join(paragraphs, "\n\n")

	chunks, err := c.Chunk(docID, text)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Ordinal)
		assert.Equal(t, docID, chunk.DocumentId)
		assert.NotEmpty(t, chunk.Text)
	}
}

func TestChunk_OrdinalsAndIDsAreStable(t *testing.T) {
	c := NewChunker(100, 20)
	docID := core.IDFromContent([]byte("doc"))
	text := strings.Repeat("stable text for hashing. ", 30)

	first, err := c.Chunk(docID, text)
	require.NoError(t, err)
	second, err := c.Chunk(docID, text)
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Id, second[i].Id)
	}
}

func TestChunk_DifferentDocumentsDifferentIDs(t *testing.T) {
	c := NewChunker(0, 0)
	text := "identical chunk text"

	a, err := c.Chunk(core.IDFromContent([]byte("doc-a")), text)
	require.NoError(t, err)
	b, err := c.Chunk(core.IDFromContent([]byte("doc-b")), text)
	require.NoError(t, err)

	assert.NotEqual(t, a[0].Id, b[0].Id)
}

func TestChunk_EmptyText(t *testing.T) {
	c := NewChunker(0, 0)

	_, err := c.Chunk(core.IDFromContent([]byte("doc")), "")
	assert.ErrorIs(t, err, ErrNoText)
}

func TestNewChunker_BadParamsFallBack(t *testing.T) {
	// Overlap >= size would make the splitter loop; constructor must clamp.
	c := NewChunker(50, 50)

	chunks, err := c.Chunk(core.IDFromContent([]byte("doc")), strings.Repeat("words ", 100))
	require.NoError(t, err)
	assert.NotEmpty(t, chunks)
}
