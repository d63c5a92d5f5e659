package answer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/answerit/ai"
	"github.com/poiesic/answerit/ai/mock"
	"github.com/poiesic/answerit/core"
	"github.com/poiesic/answerit/ratelimit"
	"github.com/poiesic/answerit/storage"
	"github.com/poiesic/answerit/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type answerFixture struct {
	answerer *Answerer
	chunks   storage.ChunkRepository
	cache    storage.CacheRepository
	provider *mock.MockProvider
	limiter  *ratelimit.Limiter
}

func newFixture(t *testing.T, opts ...Option) *answerFixture {
	t.Helper()

	docRepo, chunkRepo, cacheRepo, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() {
		cacheRepo.Close()
		chunkRepo.Close()
		docRepo.Close()
		backend.Close()
	})

	provider := mock.NewMockProvider().(*mock.MockProvider)
	limiter := ratelimit.NewLimiter(ratelimit.Config{RequestsPerSecond: 1000, BurstSize: 100})

	answerer, err := NewAnswerer(chunkRepo, cacheRepo, provider, limiter, opts...)
	require.NoError(t, err)

	return &answerFixture{
		answerer: answerer,
		chunks:   chunkRepo,
		cache:    cacheRepo,
		provider: provider,
		limiter:  limiter,
	}
}

// seedChunks indexes texts using the same mock embedder that will embed
// questions, so asking with an identical text scores 1.0.
func (f *answerFixture) seedChunks(t *testing.T, texts ...string) []core.ID {
	t.Helper()

	vectors, err := f.provider.GetMockEmbedder().EmbedTexts(context.Background(), texts)
	require.NoError(t, err)

	docID := core.IDFromContent([]byte("seed-doc"))
	ids := make([]core.ID, len(texts))
	chunks := make([]*core.Chunk, len(texts))
	for i, text := range texts {
		ids[i] = core.ChunkID(docID, i, text)
		chunks[i] = &core.Chunk{
			Id:         ids[i],
			DocumentId: docID,
			Ordinal:    i,
			Text:       text,
			Vector:     vectors[i],
		}
	}
	require.NoError(t, f.chunks.UpsertChunks(context.Background(), chunks...))
	return ids
}

func TestAnswer_EmptyQuestion(t *testing.T) {
	f := newFixture(t)

	_, err := f.answerer.Answer(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyQuestion)
}

func TestAnswer_WithEvidence(t *testing.T) {
	f := newFixture(t)
	ids := f.seedChunks(t, "the capital of France is Paris")

	result, err := f.answerer.Answer(context.Background(), "the capital of France is Paris")
	require.NoError(t, err)

	assert.False(t, result.Cached)
	assert.NotEmpty(t, result.Answer)
	assert.NotEqual(t, NoEvidenceAnswer, result.Answer)
	assert.Contains(t, result.Evidence, ids[0])
	assert.Equal(t, 1, f.provider.GetMockGenerator().CallCount())
}

func TestAnswer_CacheHitSkipsGenerator(t *testing.T) {
	f := newFixture(t)
	f.seedChunks(t, "the capital of France is Paris")

	first, err := f.answerer.Answer(context.Background(), "the capital of France is Paris")
	require.NoError(t, err)
	require.False(t, first.Cached)

	second, err := f.answerer.Answer(context.Background(), "the capital of France is Paris")
	require.NoError(t, err)

	assert.True(t, second.Cached)
	assert.Equal(t, first.Answer, second.Answer)
	assert.Equal(t, first.Evidence, second.Evidence)
	assert.Equal(t, 1, f.provider.GetMockGenerator().CallCount(), "cache hit must not call the generator")
}

func TestAnswer_FingerprintNormalization(t *testing.T) {
	f := newFixture(t)
	f.seedChunks(t, "what is the meaning of life")

	// Seed the cache with the canonical form of the question.
	entry := &core.CacheEntry{
		Fingerprint: core.Fingerprint("What  Is   The Meaning Of Life"),
		Answer:      "forty-two",
	}
	require.NoError(t, f.cache.PutEntry(context.Background(), entry, time.Minute))

	result, err := f.answerer.Answer(context.Background(), "what is the meaning of life")
	require.NoError(t, err)

	assert.True(t, result.Cached)
	assert.Equal(t, "forty-two", result.Answer)
	assert.Zero(t, f.provider.GetMockGenerator().CallCount())
}

func TestAnswer_NoEvidence(t *testing.T) {
	f := newFixture(t)

	// Orthogonal vectors guarantee a similarity of 0 regardless of text.
	f.provider.GetMockEmbedder().EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		vectors := make([][]float32, len(texts))
		for i, text := range texts {
			v := make([]float32, 8)
			if text == "completely unrelated indexed content" {
				v[0] = 1
			} else {
				v[1] = 1
			}
			vectors[i] = v
		}
		return vectors, nil
	}
	f.seedChunks(t, "completely unrelated indexed content")

	limiter := ratelimit.NewLimiter(ratelimit.Config{RequestsPerSecond: 1, BurstSize: 1})
	answerer, err := NewAnswerer(f.chunks, f.cache, f.provider, limiter)
	require.NoError(t, err)

	result, err := answerer.Answer(context.Background(), "a question with no matching facts at all")
	require.NoError(t, err)

	assert.Equal(t, NoEvidenceAnswer, result.Answer)
	assert.Empty(t, result.Evidence)
	assert.Zero(t, f.provider.GetMockGenerator().CallCount())
	assert.True(t, limiter.Allow(), "no-evidence answers must not consume a generator token")

	// Not cached: new documents may provide evidence later.
	_, err = f.cache.GetEntry(context.Background(), core.Fingerprint("a question with no matching facts at all"))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestAnswer_EmptyIndex(t *testing.T) {
	f := newFixture(t)

	result, err := f.answerer.Answer(context.Background(), "anything at all")
	require.NoError(t, err)
	assert.Equal(t, NoEvidenceAnswer, result.Answer)
}

func TestAnswer_ConcurrentIdenticalQuestionsComputeOnce(t *testing.T) {
	f := newFixture(t)
	f.seedChunks(t, "what is x")

	release := make(chan struct{})
	f.provider.GetMockGenerator().GenerateAnswerFunc = func(ctx context.Context, question string, evidence []string) (string, error) {
		<-release
		return "x is x", nil
	}

	var wg sync.WaitGroup
	results := make([]*core.AnswerResult, 4)
	errs := make([]error, 4)
	// Different surface forms, same fingerprint.
	questions := []string{"What is X?", "what is x?", "WHAT  IS  X?", "what is x?"}

	for i, q := range questions {
		wg.Add(1)
		go func(i int, q string) {
			defer wg.Done()
			results[i], errs[i] = f.answerer.Answer(context.Background(), q)
		}(i, q)
	}

	// Give all goroutines time to join the in-flight computation.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, "x is x", results[i].Answer)
	}
	assert.Equal(t, 1, f.provider.GetMockGenerator().CallCount(), "concurrent identical questions must share one generation")
}

func TestAnswer_TimeoutWhileComputing(t *testing.T) {
	f := newFixture(t)
	f.seedChunks(t, "slow answer material")

	computed := make(chan struct{})
	f.provider.GetMockGenerator().GenerateAnswerFunc = func(ctx context.Context, question string, evidence []string) (string, error) {
		defer close(computed)
		time.Sleep(100 * time.Millisecond)
		return "eventually done", nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := f.answerer.Answer(ctx, "slow answer material")
	assert.ErrorIs(t, err, ErrAnswerTimeout)

	// The detached computation still finishes and caches its result.
	select {
	case <-computed:
	case <-time.After(time.Second):
		t.Fatal("background computation never finished")
	}

	require.Eventually(t, func() bool {
		result, err := f.answerer.Answer(context.Background(), "slow answer material")
		return err == nil && result.Cached && result.Answer == "eventually done"
	}, time.Second, 10*time.Millisecond)
}

func TestAnswer_GeneratorFailurePropagates(t *testing.T) {
	f := newFixture(t)
	f.seedChunks(t, "some indexed fact")

	f.provider.GetMockGenerator().GenerateAnswerFunc = func(ctx context.Context, question string, evidence []string) (string, error) {
		return "", ai.ErrGenerationFailed
	}

	_, err := f.answerer.Answer(context.Background(), "some indexed fact")
	assert.ErrorIs(t, err, ai.ErrGenerationFailed)

	// Failures are not cached.
	_, err = f.cache.GetEntry(context.Background(), core.Fingerprint("some indexed fact"))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestAnswer_RateLimiterThrottles(t *testing.T) {
	docRepo, chunkRepo, cacheRepo, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer func() {
		cacheRepo.Close()
		chunkRepo.Close()
		docRepo.Close()
		backend.Close()
	}()

	provider := mock.NewMockProvider().(*mock.MockProvider)
	limiter := ratelimit.NewLimiter(ratelimit.Config{RequestsPerSecond: 1, BurstSize: 1})

	answerer, err := NewAnswerer(chunkRepo, cacheRepo, provider, limiter,
		WithAcquireTimeout(20*time.Millisecond))
	require.NoError(t, err)

	f := &answerFixture{answerer: answerer, chunks: chunkRepo, cache: cacheRepo, provider: provider}
	f.seedChunks(t, "first question text", "second question text")

	_, err = answerer.Answer(context.Background(), "first question text")
	require.NoError(t, err)

	// The bucket is empty; a different question must hit the acquire timeout.
	_, err = answerer.Answer(context.Background(), "second question text")
	assert.ErrorIs(t, err, ratelimit.ErrRateLimitExceeded)
}

func TestAnswer_TopKLimit(t *testing.T) {
	f := newFixture(t)

	texts := make([]string, 6)
	base := "repeated fact about the system"
	for i := range texts {
		texts[i] = base
	}
	// Identical text yields identical vectors, all scoring 1.0.
	docID := core.IDFromContent([]byte("doc"))
	vectors, err := f.provider.GetMockEmbedder().EmbedTexts(context.Background(), texts)
	require.NoError(t, err)
	chunks := make([]*core.Chunk, len(texts))
	for i := range texts {
		chunks[i] = &core.Chunk{
			Id:         core.ChunkID(docID, i, texts[i]),
			DocumentId: docID,
			Ordinal:    i,
			Text:       texts[i],
			Vector:     vectors[i],
		}
	}
	require.NoError(t, f.chunks.UpsertChunks(context.Background(), chunks...))

	answerer, err := NewAnswerer(f.chunks, f.cache, f.provider,
		ratelimit.NewLimiter(ratelimit.Config{RequestsPerSecond: 1000, BurstSize: 10}),
		WithTopK(3))
	require.NoError(t, err)

	result, err := answerer.Answer(context.Background(), base)
	require.NoError(t, err)
	assert.Len(t, result.Evidence, 3)
}

func TestNewAnswerer_Validation(t *testing.T) {
	docRepo, chunkRepo, cacheRepo, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer func() {
		cacheRepo.Close()
		chunkRepo.Close()
		docRepo.Close()
		backend.Close()
	}()

	provider := mock.NewMockProvider()
	limiter := ratelimit.NewLimiter(ratelimit.DefaultConfig())

	_, err = NewAnswerer(nil, cacheRepo, provider, limiter)
	assert.ErrorIs(t, err, ErrChunkRepositoryRequired)

	_, err = NewAnswerer(chunkRepo, nil, provider, limiter)
	assert.ErrorIs(t, err, ErrCacheRepositoryRequired)

	_, err = NewAnswerer(chunkRepo, cacheRepo, nil, limiter)
	assert.ErrorIs(t, err, ErrAIProviderRequired)

	_, err = NewAnswerer(chunkRepo, cacheRepo, provider, nil)
	assert.ErrorIs(t, err, ErrLimiterRequired)
}
