package core

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// It is generated by content-based hashing so that identical payloads map to
// identical identifiers across re-ingestion.
type ID uint64

// IDFromContent generates a deterministic ID from content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(data []byte) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write(data)
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// ChunkID derives the identifier for a chunk from its owning document,
// ordinal position and text. Re-chunking the same document yields the same
// chunk IDs, which keeps re-processing idempotent.
func ChunkID(documentID ID, ordinal int, text string) ID {
	return IDFromContent([]byte(fmt.Sprintf("%d:%d:%s", documentID, ordinal, text)))
}

// DocumentState tracks a document through the ingestion lifecycle.
type DocumentState int

const (
	// DocumentPending means the document is stored but not yet claimed by a worker.
	DocumentPending DocumentState = iota + 1
	// DocumentProcessing means a worker is extracting and embedding the document.
	DocumentProcessing
	// DocumentReady means all chunks are embedded and queryable.
	DocumentReady
	// DocumentFailed means ingestion failed; Error carries the cause.
	DocumentFailed
	// DocumentCancelled means ingestion was cancelled by the caller.
	DocumentCancelled
)

// String returns the lowercase name of the state.
func (s DocumentState) String() string {
	switch s {
	case DocumentPending:
		return "pending"
	case DocumentProcessing:
		return "processing"
	case DocumentReady:
		return "ready"
	case DocumentFailed:
		return "failed"
	case DocumentCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// CanTransition reports whether a document may move from s to next.
//
// Allowed transitions:
//
//	Pending    -> Processing, Cancelled
//	Processing -> Ready, Failed, Cancelled
//	Failed     -> Processing (bounded retry)
func (s DocumentState) CanTransition(next DocumentState) bool {
	switch s {
	case DocumentPending:
		return next == DocumentProcessing || next == DocumentCancelled
	case DocumentProcessing:
		return next == DocumentReady || next == DocumentFailed || next == DocumentCancelled
	case DocumentFailed:
		return next == DocumentProcessing
	default:
		return false
	}
}

// Document is the durable record of an uploaded payload and its processing state.
type Document struct {
	Id          ID
	Name        string // Caller-supplied display name (e.g. the upload filename)
	ContentType string // "application/pdf" or "text/plain"
	State       DocumentState
	ChunkCount  int
	Error       string // Human-readable cause, set when State is Failed
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Chunk is a contiguous span of a document's extracted text, the unit of
// embedding and retrieval. Chunks are immutable once written.
type Chunk struct {
	Id         ID
	DocumentId ID
	Ordinal    int
	Text       string
	Vector     []float32 // Embedding vector, populated during ingestion
}

// ChunkMatch is a single vector index query result.
type ChunkMatch struct {
	ChunkId ID
	Score   float32
}

// CacheEntry memoizes one answered question. Entries are immutable once
// written and replaced wholesale on the same fingerprint.
type CacheEntry struct {
	Fingerprint string
	Answer      string
	Evidence    []ID // Chunk IDs cited by the answer
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// Expired reports whether the entry's TTL has elapsed at the given time.
func (e *CacheEntry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

// AnswerResult is the outcome of answering a question.
type AnswerResult struct {
	Answer   string
	Evidence []ID // Chunk IDs used as context for the answer
	Cached   bool // True when served from the response cache
}
