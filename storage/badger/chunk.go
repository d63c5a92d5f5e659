package badger

import (
	"context"
	"encoding/binary"
	"fmt"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/answerit/core"
	"github.com/poiesic/answerit/storage"
)

// ChunkRepository implements storage.ChunkRepository for BadgerDB. It serves
// as the vector index: chunks are stored with their embeddings and queried by
// brute-force dot-product scan.
type ChunkRepository struct {
	backend *Backend
}

var _ storage.ChunkRepository = (*ChunkRepository)(nil)

// NewChunkRepository creates a new ChunkRepository.
//
// Returns storage.ChunkRepository interface to enforce abstraction.
func NewChunkRepository(backend *Backend) (storage.ChunkRepository, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend required")
	}
	return &ChunkRepository{backend: backend}, nil
}

// Close releases repository resources.
func (r *ChunkRepository) Close() error {
	return nil
}

// WithTransaction delegates to the backend.
func (r *ChunkRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// UpsertChunks writes chunks and their vectors to the index. The index
// dimension is fixed by the first vector ever written; later vectors with a
// different dimension are rejected, which keeps a single embedding space per
// index.
func (r *ChunkRepository) UpsertChunks(ctx context.Context, chunks ...*core.Chunk) error {
	for _, chunk := range chunks {
		if err := core.ValidateChunk(chunk); err != nil {
			return err
		}
	}

	return r.backend.WithTx(func(tx *badger.Txn) error {
		dim, err := r.readDimension(tx)
		if err != nil {
			return err
		}

		for _, chunk := range chunks {
			if len(chunk.Vector) > 0 {
				if dim == 0 {
					dim = len(chunk.Vector)
					if err := r.writeDimension(tx, dim); err != nil {
						return err
					}
				} else if len(chunk.Vector) != dim {
					return fmt.Errorf("%w: index dimension %d, vector dimension %d",
						storage.ErrDimensionMismatch, dim, len(chunk.Vector))
				}
			}

			if err := tx.Set(makeChunkKey(chunk.Id), storage.MarshalChunk(chunk)); err != nil {
				return err
			}

			docKey := makeChunkDocumentKey(chunk.DocumentId, chunk.Ordinal)
			if err := tx.Set(docKey, storage.MarshalID(chunk.Id)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// GetChunks retrieves chunks by their IDs.
// Returns only the chunks that exist (no error for missing chunks).
func (r *ChunkRepository) GetChunks(ctx context.Context, ids ...core.ID) ([]*core.Chunk, error) {
	var chunks []*core.Chunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			chunk, err := r.readChunk(tx, makeChunkKey(id))
			if err != nil {
				return err
			}
			if chunk != nil {
				chunks = append(chunks, chunk)
			}
		}
		return nil
	}, false)
	return chunks, err
}

// GetChunksByDocument retrieves all chunks of a document, ordered by ordinal.
func (r *ChunkRepository) GetChunksByDocument(ctx context.Context, documentID core.ID) ([]*core.Chunk, error) {
	var chunks []*core.Chunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makePartialChunkDocumentKey(documentID)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var chunkID core.ID
			err := iter.Item().Value(func(val []byte) error {
				var err error
				chunkID, err = storage.UnmarshalID(val)
				return err
			})
			if err != nil {
				return err
			}

			chunk, err := r.readChunk(tx, makeChunkKey(chunkID))
			if err != nil {
				return err
			}
			if chunk != nil {
				chunks = append(chunks, chunk)
			}
		}
		return nil
	}, false)
	return chunks, err
}

// QuerySimilar returns up to k chunk matches ordered by descending dot
// product. For normalized vectors this is cosine similarity. Ties are broken
// by ascending chunk ID so repeated queries over identical index state are
// deterministic. A query vector whose length differs from the recorded index
// dimension is rejected with ErrDimensionMismatch, matching the upsert-side
// check. Chunks without embeddings are skipped; an empty index yields an
// empty result.
func (r *ChunkRepository) QuerySimilar(ctx context.Context, vector []float32, k int) ([]core.ChunkMatch, error) {
	if k <= 0 {
		return []core.ChunkMatch{}, nil
	}

	var matches []core.ChunkMatch
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		dim, err := r.readDimension(tx)
		if err != nil {
			return err
		}
		if dim > 0 && len(vector) != dim {
			return fmt.Errorf("%w: index dimension %d, query dimension %d",
				storage.ErrDimensionMismatch, dim, len(vector))
		}

		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(chunkRecordPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var chunk *core.Chunk
			err := iter.Item().Value(func(val []byte) error {
				var err error
				chunk, err = storage.UnmarshalChunk(val)
				return err
			})
			if err != nil {
				return err
			}
			if chunk == nil || len(chunk.Vector) == 0 {
				continue
			}

			matches = append(matches, core.ChunkMatch{
				ChunkId: chunk.Id,
				Score:   dotProduct(vector, chunk.Vector),
			})
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(matches, func(a, b core.ChunkMatch) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		// Tie-break by ascending chunk ID for deterministic ordering
		if a.ChunkId < b.ChunkId {
			return -1
		}
		if a.ChunkId > b.ChunkId {
			return 1
		}
		return 0
	})

	if len(matches) > k {
		matches = matches[:k]
	}
	if matches == nil {
		matches = []core.ChunkMatch{}
	}
	return matches, nil
}

// DeleteChunksByDocument removes all chunks belonging to a document.
func (r *ChunkRepository) DeleteChunksByDocument(ctx context.Context, documentID core.ID) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makePartialChunkDocumentKey(documentID)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		var indexKeys [][]byte
		var chunkIDs []core.ID
		for iter.Rewind(); iter.Valid(); iter.Next() {
			var chunkID core.ID
			err := iter.Item().Value(func(val []byte) error {
				var err error
				chunkID, err = storage.UnmarshalID(val)
				return err
			})
			if err != nil {
				return err
			}
			chunkIDs = append(chunkIDs, chunkID)
			indexKeys = append(indexKeys, iter.Item().KeyCopy(nil))
		}
		// Badger panics if a transaction commits with an open iterator.
		iter.Close()

		for _, id := range chunkIDs {
			if err := tx.Delete(makeChunkKey(id)); err != nil {
				return err
			}
		}
		for _, key := range indexKeys {
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// ResetDimension clears the recorded index dimension so the next vector
// written establishes a new embedding space.
func (r *ChunkRepository) ResetDimension(ctx context.Context) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Delete([]byte(chunkDimensionKey)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// readChunk reads a chunk by key within a transaction.
// Returns nil, nil when the key is absent.
func (r *ChunkRepository) readChunk(tx *badger.Txn, key []byte) (*core.Chunk, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var chunk *core.Chunk
	err = item.Value(func(val []byte) error {
		var err error
		chunk, err = storage.UnmarshalChunk(val)
		return err
	})
	return chunk, err
}

// readDimension reads the recorded index dimension; 0 means no vector has
// been written yet.
func (r *ChunkRepository) readDimension(tx *badger.Txn) (int, error) {
	item, err := tx.Get([]byte(chunkDimensionKey))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return 0, nil
		}
		return 0, err
	}

	var dim int
	err = item.Value(func(val []byte) error {
		if len(val) != 8 {
			return storage.ErrSerializationFailed
		}
		dim = int(binary.BigEndian.Uint64(val))
		return nil
	})
	return dim, err
}

func (r *ChunkRepository) writeDimension(tx *badger.Txn, dim int) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(dim))
	return tx.Set([]byte(chunkDimensionKey), buf)
}

// dotProduct calculates the dot product of two vectors.
func dotProduct(a, b []float32) float32 {
	var sum float32
	minLen := len(a)
	if len(b) < minLen {
		minLen = len(b)
	}
	for i := 0; i < minLen; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
