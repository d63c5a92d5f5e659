package ai

import "errors"

var (
	// ErrEmbeddingUnavailable indicates the embedding backend is unreachable
	// or returned a failure. Retryable by the job queue's backoff policy;
	// never retried inside the embedder itself.
	ErrEmbeddingUnavailable = errors.New("embedding backend unavailable")

	// ErrGenerationFailed indicates the language model call failed.
	ErrGenerationFailed = errors.New("answer generation failed")

	// ErrEmptyAnswer indicates the language model returned no usable content.
	ErrEmptyAnswer = errors.New("language model returned an empty answer")
)
