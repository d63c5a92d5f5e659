package jobs

import (
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/answerit/core"
)

// Kind identifies the class of work a job performs.
type Kind int

const (
	// KindIngest is document processing work.
	KindIngest Kind = iota + 1
	// KindAnswer is question answering work.
	KindAnswer
)

// String returns a human-readable representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindIngest:
		return "ingest"
	case KindAnswer:
		return "answer"
	default:
		return "unknown"
	}
}

// State represents the lifecycle of a job.
type State int

const (
	// StateQueued means the job is waiting for a worker.
	StateQueued State = iota + 1
	// StateRunning means a worker is executing the job.
	StateRunning
	// StateSucceeded means the job completed without error.
	StateSucceeded
	// StateFailed means the job exhausted its attempts or hit a
	// permanent error.
	StateFailed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateQueued:
		return "queued"
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Job is a snapshot of a unit of asynchronous work. Snapshots are values;
// the queue owns the live record and hands out copies.
type Job struct {
	ID         string
	Kind       Kind
	DocumentID core.ID // zero for answer jobs
	State      State
	Attempts   int
	Err        string // message of the final error, set when Failed
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// newJobID returns a fresh unique job identifier.
func newJobID() string {
	return uuid.NewString()
}
