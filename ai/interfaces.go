package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
//
// A backend is selected once at configuration time and never switched at the
// per-call level; vectors from different backends must not share an index.
type Embedder interface {
	// EmbedTexts generates vector embeddings for multiple text strings in a
	// batch. The returned slice contains one embedding per input text, in the
	// same order. Backend outages surface as ErrEmbeddingUnavailable; the
	// caller's job-retry policy decides whether to try again.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the fixed length of vectors this backend produces.
	Dimension() int
}

// Generator synthesizes an answer to a question from retrieved evidence
// passages. Implementations must be thread-safe for concurrent use.
type Generator interface {
	// GenerateAnswer invokes the language model with the question and the
	// evidence texts and returns the answer. It performs no retries and no
	// rate limiting of its own; both are owned by the caller.
	GenerateAnswer(ctx context.Context, question string, evidence []string) (string, error)
}

// AIProvider aggregates AI services for convenient initialization and
// lifecycle management. A provider creates and manages Embedder and Generator
// instances, ensuring they share configuration and resources appropriately.
type AIProvider interface {
	// Embedder returns the text embedding service.
	// The returned Embedder is safe for concurrent use.
	Embedder() Embedder

	// Generator returns the answer generation service.
	// The returned Generator is safe for concurrent use.
	Generator() Generator

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
