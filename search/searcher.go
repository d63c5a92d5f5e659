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


package search

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/poiesic/answerit/ai"
	"github.com/poiesic/answerit/core"
	"github.com/poiesic/answerit/storage"
)

// Result is a ranked chunk hit.
type Result struct {
	Chunk *core.Chunk
	Score float32
}

// Searcher provides semantic search over indexed chunks.
type Searcher struct {
	chunks   storage.ChunkRepository
	embedder ai.Embedder
	floor    float32
	logger   *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithSimilarityFloor drops matches scoring below the floor.
// Default is 0.6, matching the answering path.
func WithSimilarityFloor(floor float32) Option {
	return func(s *Searcher) error {
		s.floor = floor
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(
	chunks storage.ChunkRepository,
	provider ai.AIProvider,
	opts ...Option,
) (*Searcher, error) {
	if chunks == nil {
		return nil, ErrChunkRepositoryRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	s := &Searcher{
		chunks:   chunks,
		embedder: provider.Embedder(),
		floor:    0.6,
		logger:   slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// FindSimilar searches for chunks similar to the query.
// Returns up to maxHits results, ranked by relevance score.
func (s *Searcher) FindSimilar(ctx context.Context, query string, maxHits int) ([]*Result, error) {
	return s.FindSimilarWithMonitor(ctx, query, maxHits, nil)
}

// FindSimilarWithMonitor searches for chunks similar to the query with monitoring.
// The monitor receives callbacks at each stage of the search process.
// Returns up to maxHits results, ranked by relevance score.
func (s *Searcher) FindSimilarWithMonitor(ctx context.Context, query string, maxHits int, monitor SearchMonitor) ([]*Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if maxHits < 1 {
		maxHits = 1
	}

	// Use noop monitor if none provided
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	monitor.Start(query)

	vectors, err := s.embedder.EmbedTexts(ctx, []string{query})
	if err != nil {
		s.logger.Error("error generating embedding for query", "query", query, "err", err)
		return nil, err
	}
	queryVector := ai.Normalize(vectors[0])

	// Over-fetch so the verbatim boost can promote hits from below the cut.
	matches, err := s.chunks.QuerySimilar(ctx, queryVector, maxHits*2)
	if err != nil {
		s.logger.Error("error querying for similar chunks", "err", err)
		return nil, err
	}
	monitor.AfterSimilaritySearch(matches)

	scores := make(map[core.ID]float32, len(matches))
	ids := make([]core.ID, 0, len(matches))
	for _, match := range matches {
		if match.Score < s.floor {
			continue
		}
		scores[match.ChunkId] = match.Score
		ids = append(ids, match.ChunkId)
	}

	if len(ids) == 0 {
		return []*Result{}, nil
	}

	chunks, err := s.chunks.GetChunks(ctx, ids...)
	if err != nil {
		s.logger.Error("error retrieving chunks", "chunkCount", len(ids), "err", err)
		return nil, err
	}
	monitor.AfterChunkRetrieval(chunks)

	results := make([]*Result, 0, len(chunks))
	for _, chunk := range chunks {
		score := scores[chunk.Id]

		// Apply verbatim match boost
		if containsAllQueryWords(chunk.Text, query) {
			score += 0.3
			monitor.VerbatimBoost(chunk)
		}

		results = append(results, &Result{Chunk: chunk, Score: score})
	}

	// Sort by score descending; ties by chunk ID for stable output
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Chunk.Id < results[j].Chunk.Id
	})
	if len(results) > maxHits {
		results = results[:maxHits]
	}
	monitor.Finish(results)

	return results, nil
}
