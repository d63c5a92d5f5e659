package reindex

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/answerit/ai"
	"github.com/poiesic/answerit/core"
	"github.com/poiesic/answerit/jobs"
	"github.com/poiesic/answerit/storage"
)

// Config controls batching and retry behavior for a reindex run.
type Config struct {
	// BatchSize is how many chunks are embedded per backend call.
	BatchSize int
	// ReportInterval reports progress every N chunks.
	ReportInterval int
	// MaxRetries is the maximum attempts per batch.
	MaxRetries int
	// RetryDelay is the base delay for exponential backoff.
	RetryDelay time.Duration
}

// DefaultConfig returns conservative defaults for a reindex run.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      100,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     time.Second,
	}
}

// Validate checks the configuration values.
func (c *Config) Validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: BatchSize must be greater than 0", ErrInvalidConfig)
	}
	if c.ReportInterval <= 0 {
		return fmt.Errorf("%w: ReportInterval must be greater than 0", ErrInvalidConfig)
	}
	if c.MaxRetries <= 0 {
		return fmt.Errorf("%w: MaxRetries must be greater than 0", ErrInvalidConfig)
	}
	return nil
}

// Reindexer regenerates every chunk vector with the configured embedder.
type Reindexer struct {
	documents storage.DocumentRepository
	chunks    storage.ChunkRepository
	embedder  ai.Embedder
	config    *Config
	writer    io.Writer
	logger    *slog.Logger
}

// NewReindexer creates a reindexer. Progress is written to writer, typically
// os.Stderr.
func NewReindexer(
	documents storage.DocumentRepository,
	chunks storage.ChunkRepository,
	embedder ai.Embedder,
	config *Config,
	writer io.Writer,
) (*Reindexer, error) {
	if documents == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if chunks == nil {
		return nil, ErrChunkRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if writer == nil {
		writer = io.Discard
	}

	return &Reindexer{
		documents: documents,
		chunks:    chunks,
		embedder:  embedder,
		config:    config,
		writer:    writer,
		logger:    slog.Default().With("component", "reindex"),
	}, nil
}

// Run regenerates every chunk vector. The index dimension is reset first so
// the new model may use a different vector length; a run that fails midway
// leaves a mixed index and should be restarted.
func (r *Reindexer) Run(ctx context.Context) error {
	docs, err := r.documents.ListDocuments(ctx)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	total := 0
	for _, doc := range docs {
		total += doc.ChunkCount
	}

	r.logger.Info("starting reindex", "documents", len(docs), "chunks", total)
	progress := NewProgressTracker(r.writer, total, r.config.ReportInterval)
	progress.Start()

	if err := r.chunks.ResetDimension(ctx); err != nil {
		return fmt.Errorf("failed to reset index dimension: %w", err)
	}

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.reindexDocument(ctx, doc, progress); err != nil {
			return fmt.Errorf("failed to reindex document %016x: %w", uint64(doc.Id), err)
		}
	}

	progress.Finish()
	r.logger.Info("reindex complete", "chunks", total, "elapsed", progress.Elapsed())
	return nil
}

// reindexDocument re-embeds one document's chunks in batches.
func (r *Reindexer) reindexDocument(ctx context.Context, doc *core.Document, progress *ProgressTracker) error {
	chunks, err := r.chunks.GetChunksByDocument(ctx, doc.Id)
	if err != nil {
		return err
	}

	for start := 0; start < len(chunks); start += r.config.BatchSize {
		end := min(start+r.config.BatchSize, len(chunks))
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, chunk := range batch {
			texts[i] = chunk.Text
		}

		err := jobs.RetryWithBackoff(ctx, func() error {
			vectors, err := r.embedder.EmbedTexts(ctx, texts)
			if err != nil {
				return err
			}
			for i := range batch {
				batch[i].Vector = ai.Normalize(vectors[i])
			}
			return r.chunks.UpsertChunks(ctx, batch...)
		}, r.config.MaxRetries, r.config.RetryDelay, 0)
		if err != nil {
			return err
		}

		progress.Increment(len(batch))
	}

	return nil
}
