package storage

import (
	"context"
	"time"

	"github.com/poiesic/answerit/core"
)

// Repository provides common storage operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// WithTransaction executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Close closes the storage backend and releases resources.
	Close() error
}

// DocumentRepository provides operations for managing document records.
type DocumentRepository interface {
	Repository

	// CreateDocument stores a new document record.
	// Sets CreatedAt/UpdatedAt timestamps. The record is durable when the
	// call returns. Returns ErrDuplicateKey if a document with the same ID
	// already exists.
	CreateDocument(ctx context.Context, doc *core.Document) (*core.Document, error)

	// GetDocument retrieves a single document by ID.
	// Returns ErrNotFound if the document doesn't exist.
	GetDocument(ctx context.Context, id core.ID) (*core.Document, error)

	// SetDocumentState transitions a document to a new state.
	// Returns ErrNotFound if the document doesn't exist, and
	// core.ErrInvalidTransition if the transition is not in the allowed
	// state graph. errDetail is recorded on the document when moving to
	// Failed. The state change is durable before the call returns.
	SetDocumentState(ctx context.Context, id core.ID, state core.DocumentState, errDetail string) (*core.Document, error)

	// SetDocumentChunkCount records how many chunks a document produced.
	SetDocumentChunkCount(ctx context.Context, id core.ID, count int) error

	// ListDocuments returns all document records, ordered by creation time.
	ListDocuments(ctx context.Context) ([]*core.Document, error)

	// DeleteDocument removes a document record by ID.
	// Returns ErrNotFound if the document doesn't exist.
	DeleteDocument(ctx context.Context, id core.ID) error
}

// ChunkRepository provides the vector index: chunk storage plus
// nearest-neighbor similarity queries.
type ChunkRepository interface {
	Repository

	// UpsertChunks writes chunks (and their vectors) to the index.
	// Existing chunks with the same ID are overwritten. All vectors must
	// share the index dimension; ErrDimensionMismatch otherwise.
	UpsertChunks(ctx context.Context, chunks ...*core.Chunk) error

	// GetChunks retrieves chunks by their IDs.
	// Returns only the chunks that exist (no error for missing chunks).
	GetChunks(ctx context.Context, ids ...core.ID) ([]*core.Chunk, error)

	// GetChunksByDocument retrieves all chunks of a document, ordered by ordinal.
	GetChunksByDocument(ctx context.Context, documentID core.ID) ([]*core.Chunk, error)

	// QuerySimilar returns up to k chunk matches ordered by descending
	// similarity (dot product; cosine for normalized vectors). Ties are
	// broken by ascending chunk ID so identical index state and query
	// vector always produce identical results. An empty index yields an
	// empty result, not an error.
	QuerySimilar(ctx context.Context, vector []float32, k int) ([]core.ChunkMatch, error)

	// DeleteChunksByDocument removes all chunks belonging to a document.
	DeleteChunksByDocument(ctx context.Context, documentID core.ID) error

	// ResetDimension clears the recorded index dimension so the next vector
	// written establishes a new embedding space. Used when switching
	// embedding models; callers must rewrite every chunk's vector afterwards.
	ResetDimension(ctx context.Context) error
}

// CacheRepository provides the response cache keyed by question fingerprint.
// Get and Put are atomic with respect to each other for the same key.
type CacheRepository interface {
	Repository

	// GetEntry retrieves a cache entry by fingerprint.
	// Returns ErrNotFound when the entry is absent or expired; an expired
	// entry may still be physically present but is never returned.
	GetEntry(ctx context.Context, fingerprint string) (*core.CacheEntry, error)

	// PutEntry stores an entry under its fingerprint with the given TTL.
	// An existing entry for the same fingerprint is replaced wholesale.
	// Entries are never invalidated on index mutation; staleness is bounded
	// by the TTL.
	PutEntry(ctx context.Context, entry *core.CacheEntry, ttl time.Duration) error
}
