// Package local provides an offline embedding backend. It maps token hashes
// into a fixed-size vector, so related texts that share words land near each
// other. Useful for air-gapped deployments and demos where no embedding
// service is reachable; quality is far below a real model.
package local

import (
	"context"
	"hash/fnv"
	"strings"

	"github.com/poiesic/answerit/ai"
)

// Embedder implements ai.Embedder with deterministic token hashing.
// The same text always produces the same unit vector.
type Embedder struct {
	dimension int
}

// NewEmbedder creates a local hashing embedder producing vectors of the
// configured dimension.
//
// Returns ai.Embedder interface to enforce abstraction.
func NewEmbedder(config *ai.Config) (ai.Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Embedder{dimension: config.EmbeddingDimension}, nil
}

// EmbedTexts generates vector embeddings for multiple text strings.
// Never fails; the context is accepted for interface compatibility only.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = e.embed(text)
	}
	return vectors, nil
}

// Dimension returns the configured embedding vector length.
func (e *Embedder) Dimension() int {
	return e.dimension
}

// embed buckets each lowercased token into the vector by hash, weighting
// repeated tokens higher, then normalizes so dot products act as cosine
// similarity.
func (e *Embedder) embed(text string) []float32 {
	vector := make([]float32, e.dimension)
	for _, token := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(token))
		sum := h.Sum32()

		bucket := int(sum % uint32(e.dimension))
		// Sign bit from a different part of the hash spreads tokens across
		// both directions of each axis.
		if sum&0x80000000 != 0 {
			vector[bucket] -= 1
		} else {
			vector[bucket] += 1
		}
	}
	return ai.Normalize(vector)
}
