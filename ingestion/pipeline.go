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


package ingestion

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/poiesic/answerit/ai"
	"github.com/poiesic/answerit/core"
	"github.com/poiesic/answerit/extract"
	"github.com/poiesic/answerit/jobs"
	"github.com/poiesic/answerit/storage"
)

// DefaultEmbedBatchSize bounds how many chunk texts go to the embedder per
// call. Cancellation is only observed between batches.
const DefaultEmbedBatchSize = 16

// Pipeline orchestrates asynchronous document processing.
type Pipeline struct {
	documents storage.DocumentRepository
	chunks    storage.ChunkRepository
	embedder  ai.Embedder
	extractor extract.Extractor
	chunker   *extract.Chunker
	queue     *jobs.Queue
	retry     jobs.RetryPolicy
	batchSize int
	logger    *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithChunking sets the chunk size and overlap in characters.
func WithChunking(size, overlap int) Option {
	return func(p *Pipeline) error {
		p.chunker = extract.NewChunker(size, overlap)
		return nil
	}
}

// WithEmbedBatchSize sets how many chunks are embedded per backend call.
func WithEmbedBatchSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		p.batchSize = size
		return nil
	}
}

// WithRetryPolicy overrides how transient processing failures are retried.
func WithRetryPolicy(policy jobs.RetryPolicy) Option {
	return func(p *Pipeline) error {
		if policy.MaxAttempts <= 0 {
			return jobs.ErrInvalidMaxAttempts
		}
		p.retry = policy
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	documents storage.DocumentRepository,
	chunks storage.ChunkRepository,
	provider ai.AIProvider,
	queue *jobs.Queue,
	opts ...Option,
) (*Pipeline, error) {
	if documents == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if chunks == nil {
		return nil, ErrChunkRepositoryRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}
	if queue == nil {
		return nil, ErrQueueRequired
	}

	p := &Pipeline{
		documents: documents,
		chunks:    chunks,
		embedder:  provider.Embedder(),
		extractor: extract.NewExtractor(),
		chunker:   extract.NewChunker(extract.DefaultChunkSize, extract.DefaultChunkOverlap),
		queue:     queue,
		retry:     jobs.DefaultRetryPolicy(),
		batchSize: DefaultEmbedBatchSize,
		logger:    slog.Default().With("component", "ingestion"),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			return nil, optErr
		}
	}

	return p, nil
}

// Ingest registers a document and queues it for processing. The document ID
// is derived from the payload, so uploading identical content twice returns
// the existing record: if it is already Ready the upload is a no-op, if it
// failed earlier it is queued again.
func (p *Pipeline) Ingest(ctx context.Context, name, contentType string, payload []byte) (*core.Document, jobs.Job, error) {
	if len(payload) == 0 {
		return nil, jobs.Job{}, core.ErrEmptyContent
	}

	docID := core.IDFromContent(payload)

	existing, err := p.documents.GetDocument(ctx, docID)
	switch {
	case err == nil:
		switch existing.State {
		case core.DocumentReady, core.DocumentPending, core.DocumentProcessing:
			// Same content already ingested or underway.
			p.logger.Debug("duplicate upload short-circuited", "document", docID, "state", existing.State.String())
			return existing, jobs.Job{}, nil
		case core.DocumentFailed:
			job, submitErr := p.submit(docID, contentType, payload)
			if submitErr != nil {
				return nil, jobs.Job{}, submitErr
			}
			return existing, job, nil
		case core.DocumentCancelled:
			// Cancelled is terminal for this content; the record stays.
			return existing, jobs.Job{}, nil
		}
	case !errors.Is(err, storage.ErrNotFound):
		return nil, jobs.Job{}, err
	}

	doc := &core.Document{
		Id:          docID,
		Name:        name,
		ContentType: contentType,
		State:       core.DocumentPending,
	}
	doc, err = p.documents.CreateDocument(ctx, doc)
	if err != nil {
		return nil, jobs.Job{}, err
	}

	job, err := p.submit(docID, contentType, payload)
	if err != nil {
		return nil, jobs.Job{}, err
	}

	p.logger.Info("document queued", "document", docID, "name", name, "job", job.ID)
	return doc, job, nil
}

// submit queues the processing task for a document. The task carries its own
// retry loop and always settles the document state before returning, so queue
// level retries are disabled via Permanent.
func (p *Pipeline) submit(docID core.ID, contentType string, payload []byte) (jobs.Job, error) {
	return p.queue.SubmitIngest(docID, func(ctx context.Context) error {
		if err := p.process(ctx, docID, contentType, payload); err != nil {
			if !errors.Is(err, ErrDocumentCancelled) {
				if _, stateErr := p.documents.SetDocumentState(ctx, docID, core.DocumentFailed, err.Error()); stateErr != nil {
					p.logger.Error("error marking document failed", "document", docID, "err", stateErr)
				}
			}
			p.discardChunks(ctx, docID)
			return jobs.Permanent(err)
		}
		return nil
	})
}

// discardChunks removes any vectors indexed before processing stopped. Only
// Ready documents may serve as answer evidence; chunk IDs are content-derived,
// so a later retry rebuilds them at full cost but identical identity.
func (p *Pipeline) discardChunks(ctx context.Context, docID core.ID) {
	err := jobs.RetryWithBackoff(ctx, func() error {
		return p.chunks.DeleteChunksByDocument(ctx, docID)
	}, p.retry.MaxAttempts, p.retry.BaseDelay, p.retry.MaxDelay)
	if err != nil {
		p.logger.Error("error discarding chunks of unfinished document", "document", docID, "err", err)
	}
}

// process runs the full pipeline for one document: claim, extract, chunk,
// embed, index, publish. Extraction errors are terminal; embedding and
// storage errors are retried with backoff before giving up.
func (p *Pipeline) process(ctx context.Context, docID core.ID, contentType string, payload []byte) error {
	started := time.Now()

	if err := p.claim(ctx, docID); err != nil {
		return err
	}

	// Terminal by nature: the payload won't parse differently next time.
	text, err := p.extractor.ExtractText(ctx, contentType, payload)
	if err != nil {
		return err
	}

	chunks, err := p.chunker.Chunk(docID, text)
	if err != nil {
		return err
	}

	for start := 0; start < len(chunks); start += p.batchSize {
		if cancelled, cErr := p.isCancelled(ctx, docID); cErr != nil {
			return cErr
		} else if cancelled {
			p.logger.Info("processing stopped, document cancelled", "document", docID)
			return ErrDocumentCancelled
		}

		end := min(start+p.batchSize, len(chunks))
		batch := chunks[start:end]

		if err := p.embedAndStore(ctx, batch); err != nil {
			return err
		}
	}

	if err := jobs.RetryWithBackoff(ctx, func() error {
		return p.documents.SetDocumentChunkCount(ctx, docID, len(chunks))
	}, p.retry.MaxAttempts, p.retry.BaseDelay, p.retry.MaxDelay); err != nil {
		return err
	}

	if _, err := p.documents.SetDocumentState(ctx, docID, core.DocumentReady, ""); err != nil {
		if errors.Is(err, core.ErrInvalidTransition) {
			// Cancelled between the last batch and publication.
			return ErrDocumentCancelled
		}
		return err
	}

	p.logger.Info("document processed", "document", docID, "chunks", len(chunks), "elapsed", time.Since(started))
	return nil
}

// claim moves the document into Processing, tolerating retried jobs that
// already hold the claim.
func (p *Pipeline) claim(ctx context.Context, docID core.ID) error {
	doc, err := p.documents.GetDocument(ctx, docID)
	if err != nil {
		return err
	}

	switch doc.State {
	case core.DocumentProcessing:
		return nil
	case core.DocumentCancelled:
		return ErrDocumentCancelled
	}

	if _, err := p.documents.SetDocumentState(ctx, docID, core.DocumentProcessing, ""); err != nil {
		return err
	}
	return nil
}

// isCancelled checks the live document state between batches.
func (p *Pipeline) isCancelled(ctx context.Context, docID core.ID) (bool, error) {
	doc, err := p.documents.GetDocument(ctx, docID)
	if err != nil {
		return false, err
	}
	return doc.State == core.DocumentCancelled, nil
}

// embedAndStore embeds one batch of chunks and writes them to the index,
// retrying transient backend failures.
func (p *Pipeline) embedAndStore(ctx context.Context, batch []core.Chunk) error {
	texts := make([]string, len(batch))
	for i := range batch {
		texts[i] = batch[i].Text
	}

	return jobs.RetryWithBackoff(ctx, func() error {
		vectors, err := p.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return err
		}

		refs := make([]*core.Chunk, len(batch))
		for i := range batch {
			batch[i].Vector = ai.Normalize(vectors[i])
			refs[i] = &batch[i]
		}
		return p.chunks.UpsertChunks(ctx, refs...)
	}, p.retry.MaxAttempts, p.retry.BaseDelay, p.retry.MaxDelay)
}
