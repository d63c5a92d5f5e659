package search

import "github.com/poiesic/answerit/core"

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
type SearchMonitor interface {
	Start(query string)
	AfterSimilaritySearch(matches []core.ChunkMatch)
	AfterChunkRetrieval(chunks []*core.Chunk)
	VerbatimBoost(chunk *core.Chunk)
	Finish(results []*Result)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                            {}
func (n *noopMonitor) AfterSimilaritySearch(_ []core.ChunkMatch) {}
func (n *noopMonitor) AfterChunkRetrieval(_ []*core.Chunk)       {}
func (n *noopMonitor) VerbatimBoost(_ *core.Chunk)               {}
func (n *noopMonitor) Finish(_ []*Result)                        {}
