package answer

import "errors"

var (
	// ErrEmptyQuestion indicates a blank question.
	ErrEmptyQuestion = errors.New("question must not be empty")

	// ErrAnswerTimeout indicates the caller's deadline expired before the
	// answer was ready. The computation keeps running and populates the
	// cache for the next asker.
	ErrAnswerTimeout = errors.New("answer deadline exceeded")

	// ErrChunkRepositoryRequired is returned when a chunk repository is not provided.
	ErrChunkRepositoryRequired = errors.New("chunk repository required")

	// ErrCacheRepositoryRequired is returned when a cache repository is not provided.
	ErrCacheRepositoryRequired = errors.New("cache repository required")

	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")

	// ErrLimiterRequired is returned when a rate limiter is not provided.
	ErrLimiterRequired = errors.New("rate limiter required")
)
