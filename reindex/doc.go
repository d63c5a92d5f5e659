// Package reindex rebuilds the vector index with a new embedding model.
// Chunk texts and IDs are preserved; every vector is regenerated in batches
// with progress reporting and retry on transient embedding failures. Run it
// offline after changing the embedding model, since old and new vectors do
// not share an embedding space.
package reindex
