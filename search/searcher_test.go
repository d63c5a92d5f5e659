package search

import (
	"context"
	"testing"

	"github.com/poiesic/answerit/ai/mock"
	"github.com/poiesic/answerit/core"
	"github.com/poiesic/answerit/storage"
	"github.com/poiesic/answerit/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSearchFixture(t *testing.T, opts ...Option) (*Searcher, storage.ChunkRepository, *mock.MockProvider) {
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
	searcher, err := NewSearcher(chunkRepo, provider, opts...)
	require.NoError(t, err)

	return searcher, chunkRepo, provider
}

func seedChunks(t *testing.T, repo storage.ChunkRepository, provider *mock.MockProvider, texts ...string) []*core.Chunk {
	t.Helper()

	vectors, err := provider.GetMockEmbedder().EmbedTexts(context.Background(), texts)
	require.NoError(t, err)

	docID := core.IDFromContent([]byte("search-doc"))
	chunks := make([]*core.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = &core.Chunk{
			Id:         core.ChunkID(docID, i, text),
			DocumentId: docID,
			Ordinal:    i,
			Text:       text,
			Vector:     vectors[i],
		}
	}
	require.NoError(t, repo.UpsertChunks(context.Background(), chunks...))
	return chunks
}

func TestFindSimilar_ExactMatch(t *testing.T) {
	searcher, repo, provider := newSearchFixture(t)
	chunks := seedChunks(t, repo, provider, "kubernetes rollout strategy for blue green deploys")

	results, err := searcher.FindSimilar(context.Background(), "kubernetes rollout strategy for blue green deploys", 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	assert.Equal(t, chunks[0].Id, results[0].Chunk.Id)
	// Exact text: similarity 1.0 plus the verbatim boost.
	assert.InDelta(t, 1.3, results[0].Score, 0.01)
}

func TestFindSimilar_EmptyQuery(t *testing.T) {
	searcher, _, _ := newSearchFixture(t)

	_, err := searcher.FindSimilar(context.Background(), "   ", 5)
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestFindSimilar_EmptyIndex(t *testing.T) {
	searcher, _, _ := newSearchFixture(t)

	results, err := searcher.FindSimilar(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestFindSimilar_FloorFiltersWeakMatches(t *testing.T) {
	searcher, repo, provider := newSearchFixture(t)

	// Orthogonal vectors: the indexed chunk can never clear the floor.
	provider.GetMockEmbedder().EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		vectors := make([][]float32, len(texts))
		for i, text := range texts {
			v := make([]float32, 8)
			if text == "indexed content" {
				v[0] = 1
			} else {
				v[1] = 1
			}
			vectors[i] = v
		}
		return vectors, nil
	}
	seedChunks(t, repo, provider, "indexed content")

	results, err := searcher.FindSimilar(context.Background(), "unrelated query", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestFindSimilar_MaxHitsLimit(t *testing.T) {
	searcher, repo, provider := newSearchFixture(t)

	text := "identical chunk text for ranking"
	seedChunks(t, repo, provider, text, text, text, text, text)

	results, err := searcher.FindSimilar(context.Background(), text, 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestFindSimilar_ResultsSortedByScore(t *testing.T) {
	searcher, repo, provider := newSearchFixture(t)
	seedChunks(t, repo, provider,
		"alpha beta gamma delta",
		"alpha beta gamma epsilon",
		"alpha beta gamma zeta",
	)

	results, err := searcher.FindSimilar(context.Background(), "alpha beta gamma delta", 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
	assert.Equal(t, "alpha beta gamma delta", results[0].Chunk.Text)
}

type recordingMonitor struct {
	started    bool
	matches    int
	retrieved  int
	boosts     int
	finished   int
}

func (m *recordingMonitor) Start(_ string)                                  { m.started = true }
func (m *recordingMonitor) AfterSimilaritySearch(matches []core.ChunkMatch) { m.matches = len(matches) }
func (m *recordingMonitor) AfterChunkRetrieval(chunks []*core.Chunk)        { m.retrieved = len(chunks) }
func (m *recordingMonitor) VerbatimBoost(_ *core.Chunk)                     { m.boosts++ }
func (m *recordingMonitor) Finish(results []*Result)                        { m.finished = len(results) }

func TestFindSimilarWithMonitor(t *testing.T) {
	searcher, repo, provider := newSearchFixture(t)
	seedChunks(t, repo, provider, "observable search pipeline stages")

	monitor := &recordingMonitor{}
	results, err := searcher.FindSimilarWithMonitor(context.Background(), "observable search pipeline stages", 5, monitor)
	require.NoError(t, err)

	assert.True(t, monitor.started)
	assert.Equal(t, 1, monitor.matches)
	assert.Equal(t, 1, monitor.retrieved)
	assert.Equal(t, 1, monitor.boosts)
	assert.Equal(t, len(results), monitor.finished)
}

func TestNewSearcher_Validation(t *testing.T) {
	_, chunkRepo, cacheRepo, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer func() {
		cacheRepo.Close()
		chunkRepo.Close()
		backend.Close()
	}()

	_, err = NewSearcher(nil, mock.NewMockProvider())
	assert.ErrorIs(t, err, ErrChunkRepositoryRequired)

	_, err = NewSearcher(chunkRepo, nil)
	assert.ErrorIs(t, err, ErrAIProviderRequired)
}
