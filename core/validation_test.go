package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateDocument(t *testing.T) {
	doc := &Document{State: DocumentPending}
	assert.NoError(t, ValidateDocument(doc))

	assert.ErrorIs(t, ValidateDocument(nil), ErrInvalidDocument)

	doc.State = DocumentState(99)
	assert.ErrorIs(t, ValidateDocument(doc), ErrInvalidDocumentState)

	doc.State = DocumentReady
	doc.ChunkCount = -1
	assert.ErrorIs(t, ValidateDocument(doc), ErrInvalidDocument)
}

func TestValidateChunk(t *testing.T) {
	chunk := &Chunk{Text: "some text", Ordinal: 0}
	assert.NoError(t, ValidateChunk(chunk))

	assert.ErrorIs(t, ValidateChunk(nil), ErrInvalidChunk)
	assert.ErrorIs(t, ValidateChunk(&Chunk{Ordinal: 0}), ErrEmptyContent)
	assert.ErrorIs(t, ValidateChunk(&Chunk{Text: "x", Ordinal: -1}), ErrNegativeOrdinal)
}
