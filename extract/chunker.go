package extract

import (
	"fmt"

	"github.com/poiesic/answerit/core"
	"github.com/tmc/langchaingo/textsplitter"
)

// Default chunking parameters. Overlap keeps sentences that straddle a chunk
// boundary retrievable from both sides.
const (
	DefaultChunkSize    = 800
	DefaultChunkOverlap = 200
)

// Chunker splits extracted text into overlapping chunks ready for embedding.
type Chunker struct {
	splitter textsplitter.RecursiveCharacter
}

// NewChunker creates a chunker with the given size and overlap in characters.
// A non-positive size falls back to the default; an overlap that is negative
// or not smaller than the size is clamped to a quarter of the size.
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 4
	}

	return &Chunker{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
		),
	}
}

// Chunk splits text into chunks for the given document. Ordinals follow the
// original text order; vectors are left empty for the embedding stage.
func (c *Chunker) Chunk(documentID core.ID, text string) ([]core.Chunk, error) {
	pieces, err := c.splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}

	chunks := make([]core.Chunk, 0, len(pieces))
	for _, piece := range pieces {
		if piece == "" {
			continue
		}
		ordinal := len(chunks)
		chunks = append(chunks, core.Chunk{
			Id:         core.ChunkID(documentID, ordinal, piece),
			DocumentId: documentID,
			Ordinal:    ordinal,
			Text:       piece,
		})
	}

	if len(chunks) == 0 {
		return nil, ErrNoText
	}
	return chunks, nil
}
