package badger

import (
	"encoding/binary"
	"fmt"

	"github.com/poiesic/answerit/core"
)

// Key prefixes for different data types
const (
	documentRecordPrefix = "docrec"
	chunkRecordPrefix    = "chkrec"
	chunkDocumentPrefix  = "chkdoc"
	chunkDimensionKey    = "chkdim"
	cacheRecordPrefix    = "cacrec"
)

// makeDocumentKey generates a key for a document record by ID.
func makeDocumentKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", documentRecordPrefix, id))
}

// makeChunkKey generates a key for a chunk record by ID.
// The ID is written in BigEndian so lexicographic iteration order matches
// ascending chunk ID order.
func makeChunkKey(id core.ID) []byte {
	prefix := chunkRecordPrefix + ":"
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makeChunkDocumentKey generates a composite key for the per-document chunk index.
// Format: prefix:documentID:ordinal
func makeChunkDocumentKey(documentID core.ID, ordinal int) []byte {
	prefix := chunkDocumentPrefix + ":"
	buf := make([]byte, len(prefix)+16)
	offset := copy(buf, prefix)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(documentID))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], uint64(ordinal))
	return buf
}

// makePartialChunkDocumentKey generates a partial key for per-document chunk scans.
func makePartialChunkDocumentKey(documentID core.ID) []byte {
	prefix := chunkDocumentPrefix + ":"
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(documentID))
	return buf
}

// makeCacheKey generates a key for a response cache entry by fingerprint.
func makeCacheKey(fingerprint string) []byte {
	return []byte(cacheRecordPrefix + ":" + fingerprint)
}
