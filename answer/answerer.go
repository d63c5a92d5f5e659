// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package answer

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/answerit/ai"
	"github.com/poiesic/answerit/core"
	"github.com/poiesic/answerit/ratelimit"
	"github.com/poiesic/answerit/storage"
	"golang.org/x/sync/singleflight"
)

// Defaults for retrieval and caching.
const (
	// DefaultTopK bounds how many chunks back an answer.
	DefaultTopK = 10
	// DefaultSimilarityFloor drops matches too weak to be evidence.
	DefaultSimilarityFloor = 0.6
	// DefaultCacheTTL bounds how stale a cached answer may get.
	DefaultCacheTTL = 12 * time.Hour
	// DefaultAcquireTimeout bounds the wait for a generator token.
	DefaultAcquireTimeout = 30 * time.Second
)

// NoEvidenceAnswer is returned when no chunk clears the similarity floor.
// It consumes no generator token and is not cached, since newly ingested
// documents may supply evidence at any moment.
const NoEvidenceAnswer = "I could not find relevant information in the ingested documents to answer this question."

// Answerer resolves questions using retrieval, generation, and caching.
type Answerer struct {
	chunks    storage.ChunkRepository
	cache     storage.CacheRepository
	embedder  ai.Embedder
	generator ai.Generator
	limiter   *ratelimit.Limiter

	topK           int
	similarity     float32
	cacheTTL       time.Duration
	acquireTimeout time.Duration

	group  singleflight.Group
	logger *slog.Logger
}

// Option configures an Answerer.
type Option func(*Answerer) error

// WithTopK sets how many chunks are retrieved per question.
func WithTopK(k int) Option {
	return func(a *Answerer) error {
		if k > 0 {
			a.topK = k
		}
		return nil
	}
}

// WithSimilarityFloor sets the minimum similarity score for evidence.
func WithSimilarityFloor(floor float32) Option {
	return func(a *Answerer) error {
		a.similarity = floor
		return nil
	}
}

// WithCacheTTL sets how long answers stay cached.
func WithCacheTTL(ttl time.Duration) Option {
	return func(a *Answerer) error {
		if ttl > 0 {
			a.cacheTTL = ttl
		}
		return nil
	}
}

// WithAcquireTimeout bounds how long a question waits for a generator token.
func WithAcquireTimeout(timeout time.Duration) Option {
	return func(a *Answerer) error {
		if timeout > 0 {
			a.acquireTimeout = timeout
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(a *Answerer) error {
		if logger == nil {
			logger = slog.Default()
		}
		a.logger = logger
		return nil
	}
}

// NewAnswerer creates a new question answerer.
func NewAnswerer(
	chunks storage.ChunkRepository,
	cache storage.CacheRepository,
	provider ai.AIProvider,
	limiter *ratelimit.Limiter,
	opts ...Option,
) (*Answerer, error) {
	if chunks == nil {
		return nil, ErrChunkRepositoryRequired
	}
	if cache == nil {
		return nil, ErrCacheRepositoryRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}
	if limiter == nil {
		return nil, ErrLimiterRequired
	}

	a := &Answerer{
		chunks:         chunks,
		cache:          cache,
		embedder:       provider.Embedder(),
		generator:      provider.Generator(),
		limiter:        limiter,
		topK:           DefaultTopK,
		similarity:     DefaultSimilarityFloor,
		cacheTTL:       DefaultCacheTTL,
		acquireTimeout: DefaultAcquireTimeout,
		logger:         slog.Default().With("component", "answer"),
	}

	for _, opt := range opts {
		if optErr := opt(a); optErr != nil {
			return nil, optErr
		}
	}

	return a, nil
}

// Answer resolves a question. Cache hits return immediately; otherwise the
// question is computed once no matter how many callers ask it concurrently.
// If ctx expires first the caller gets ErrAnswerTimeout while the shared
// computation finishes and caches its result in the background.
func (a *Answerer) Answer(ctx context.Context, question string) (*core.AnswerResult, error) {
	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}

	fingerprint := core.Fingerprint(question)

	if entry, err := a.cache.GetEntry(ctx, fingerprint); err == nil {
		a.logger.Debug("cache hit", "fingerprint", fingerprint)
		return &core.AnswerResult{
			Answer:   entry.Answer,
			Evidence: entry.Evidence,
			Cached:   true,
		}, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	// Computation is detached from the caller's lifetime; a timed-out caller
	// must not cancel work that other askers share.
	resultCh := a.group.DoChan(fingerprint, func() (any, error) {
		return a.compute(context.WithoutCancel(ctx), question, fingerprint)
	})

	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrAnswerTimeout
		}
		return nil, ctx.Err()
	case res := <-resultCh:
		if res.Err != nil {
			return nil, res.Err
		}
		result := res.Val.(*core.AnswerResult)
		if res.Shared {
			a.logger.Debug("deduplicated concurrent question", "fingerprint", fingerprint)
		}
		return result, nil
	}
}

// compute runs the retrieval and generation path for a cache miss.
func (a *Answerer) compute(ctx context.Context, question, fingerprint string) (*core.AnswerResult, error) {
	// The embedding call is not metered; only the generator is the scarce
	// paid resource.
	vectors, err := a.embedder.EmbedTexts(ctx, []string{question})
	if err != nil {
		return nil, err
	}
	queryVector := ai.Normalize(vectors[0])

	matches, err := a.chunks.QuerySimilar(ctx, queryVector, a.topK)
	if err != nil {
		return nil, err
	}

	evidence := make([]core.ID, 0, len(matches))
	for _, match := range matches {
		if match.Score >= a.similarity {
			evidence = append(evidence, match.ChunkId)
		}
	}

	if len(evidence) == 0 {
		a.logger.Info("no evidence above similarity floor", "fingerprint", fingerprint, "candidates", len(matches))
		return &core.AnswerResult{Answer: NoEvidenceAnswer}, nil
	}

	chunks, err := a.chunks.GetChunks(ctx, evidence...)
	if err != nil {
		return nil, err
	}
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	if err := a.limiter.Acquire(ctx, a.acquireTimeout); err != nil {
		return nil, err
	}

	generated, err := a.generator.GenerateAnswer(ctx, question, texts)
	if err != nil {
		return nil, err
	}

	entry := &core.CacheEntry{
		Fingerprint: fingerprint,
		Answer:      generated,
		Evidence:    evidence,
	}
	if err := a.cache.PutEntry(ctx, entry, a.cacheTTL); err != nil {
		// The answer is still good; losing the cache write only costs a
		// recomputation later.
		a.logger.Error("error caching answer", "fingerprint", fingerprint, "err", err)
	}

	return &core.AnswerResult{Answer: generated, Evidence: evidence}, nil
}
