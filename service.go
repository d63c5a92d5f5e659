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


package answerit

import (
	"context"
	"log/slog"

	"github.com/poiesic/answerit/ai"
	"github.com/poiesic/answerit/ai/openai"
	"github.com/poiesic/answerit/answer"
	"github.com/poiesic/answerit/core"
	"github.com/poiesic/answerit/ingestion"
	"github.com/poiesic/answerit/jobs"
	"github.com/poiesic/answerit/ratelimit"
	"github.com/poiesic/answerit/search"
	"github.com/poiesic/answerit/storage"
	"github.com/poiesic/answerit/storage/badger"
)

// Service is the top-level facade: document ingestion, question answering,
// and document lifecycle management over a single storage backend.
type Service struct {
	backend   *badger.Backend
	docRepo   storage.DocumentRepository
	chunkRepo storage.ChunkRepository
	cacheRepo storage.CacheRepository
	provider  ai.AIProvider
	queue     *jobs.Queue
	limiter   *ratelimit.Limiter
	pipeline  *ingestion.Pipeline
	answerer  *answer.Answerer
	logger    *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	aiConfig       *ai.Config
	provider       ai.AIProvider
	rateConfig     ratelimit.Config
	ingestPoolSize int
	answerPoolSize int
	inMemory       bool
	ingestionOpts  []ingestion.Option
	answeringOpts  []answer.Option
}

// WithAIConfig sets the configuration for the default OpenAI-compatible
// provider.
func WithAIConfig(config *ai.Config) ServiceOption {
	return func(o *serviceOptions) {
		if config != nil {
			o.aiConfig = config
		}
	}
}

// WithAIProvider supplies a pre-built provider, bypassing the default
// OpenAI-compatible one. The service takes ownership and closes it.
func WithAIProvider(provider ai.AIProvider) ServiceOption {
	return func(o *serviceOptions) {
		o.provider = provider
	}
}

// WithRateLimit overrides the generator rate limit.
func WithRateLimit(config ratelimit.Config) ServiceOption {
	return func(o *serviceOptions) {
		o.rateConfig = config
	}
}

// WithPoolSize sets the same worker pool size for both job classes.
func WithPoolSize(size int) ServiceOption {
	return func(o *serviceOptions) {
		o.ingestPoolSize = size
		o.answerPoolSize = size
	}
}

// WithPoolSizes sizes the ingest and answer worker pools independently.
func WithPoolSizes(ingest, answer int) ServiceOption {
	return func(o *serviceOptions) {
		o.ingestPoolSize = ingest
		o.answerPoolSize = answer
	}
}

// WithInMemoryStorage keeps all data in memory. Intended for tests and
// ephemeral usage; nothing survives Close.
func WithInMemoryStorage() ServiceOption {
	return func(o *serviceOptions) {
		o.inMemory = true
	}
}

// WithIngestionOptions forwards options to the ingestion pipeline.
func WithIngestionOptions(opts ...ingestion.Option) ServiceOption {
	return func(o *serviceOptions) {
		o.ingestionOpts = append(o.ingestionOpts, opts...)
	}
}

// WithAnswerOptions forwards options to the answerer.
func WithAnswerOptions(opts ...answer.Option) ServiceOption {
	return func(o *serviceOptions) {
		o.answeringOpts = append(o.answeringOpts, opts...)
	}
}

// NewService opens the storage backend at filePath and wires up the full
// pipeline. Pass WithInMemoryStorage to ignore filePath and run ephemeral.
func NewService(filePath string, opts ...ServiceOption) (*Service, error) {
	options := &serviceOptions{
		aiConfig:   ai.DefaultConfig(),
		rateConfig: ratelimit.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(options)
	}

	backend, err := badger.OpenBackend(filePath, options.inMemory)
	if err != nil {
		return nil, err
	}

	docRepo, err := badger.NewDocumentRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	chunkRepo, err := badger.NewChunkRepository(backend)
	if err != nil {
		docRepo.Close()
		backend.Close()
		return nil, err
	}

	cacheRepo, err := badger.NewCacheRepository(backend)
	if err != nil {
		chunkRepo.Close()
		docRepo.Close()
		backend.Close()
		return nil, err
	}

	provider := options.provider
	if provider == nil {
		provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			cacheRepo.Close()
			chunkRepo.Close()
			docRepo.Close()
			backend.Close()
			return nil, err
		}
	}

	queueOpts := []jobs.Option{}
	if options.ingestPoolSize > 0 || options.answerPoolSize > 0 {
		queueOpts = append(queueOpts, jobs.WithPoolSizes(options.ingestPoolSize, options.answerPoolSize))
	}
	queue, err := jobs.NewQueue(queueOpts...)
	if err != nil {
		provider.Close()
		cacheRepo.Close()
		chunkRepo.Close()
		docRepo.Close()
		backend.Close()
		return nil, err
	}

	limiter := ratelimit.NewLimiter(options.rateConfig)

	pipeline, err := ingestion.NewPipeline(docRepo, chunkRepo, provider, queue, options.ingestionOpts...)
	if err != nil {
		queue.Release()
		provider.Close()
		cacheRepo.Close()
		chunkRepo.Close()
		docRepo.Close()
		backend.Close()
		return nil, err
	}

	answerer, err := answer.NewAnswerer(chunkRepo, cacheRepo, provider, limiter, options.answeringOpts...)
	if err != nil {
		queue.Release()
		provider.Close()
		cacheRepo.Close()
		chunkRepo.Close()
		docRepo.Close()
		backend.Close()
		return nil, err
	}

	return &Service{
		backend:   backend,
		docRepo:   docRepo,
		chunkRepo: chunkRepo,
		cacheRepo: cacheRepo,
		provider:  provider,
		queue:     queue,
		limiter:   limiter,
		pipeline:  pipeline,
		answerer:  answerer,
		logger:    slog.Default(),
	}, nil
}

// Ingest registers a document and queues it for asynchronous processing.
// The returned document carries its content-derived ID; use Document to poll
// its state or WaitForJob to block on the processing job.
func (s *Service) Ingest(ctx context.Context, name, contentType string, payload []byte) (*core.Document, jobs.Job, error) {
	return s.pipeline.Ingest(ctx, name, contentType, payload)
}

// Answer resolves a question against the ingested corpus, blocking until the
// answer is ready or ctx expires.
func (s *Service) Answer(ctx context.Context, question string) (*core.AnswerResult, error) {
	return s.answerer.Answer(ctx, question)
}

// AnswerAsync queues the question on the answer worker pool and returns the
// job for polling. The computed result lands in the response cache, so once
// the job succeeds a blocking Answer call for the same question serves it
// without another generator invocation.
func (s *Service) AnswerAsync(question string) (jobs.Job, error) {
	return s.queue.SubmitAnswer(func(ctx context.Context) error {
		_, err := s.answerer.Answer(ctx, question)
		return err
	})
}

// Document returns the current record for a document.
func (s *Service) Document(ctx context.Context, id core.ID) (*core.Document, error) {
	return s.docRepo.GetDocument(ctx, id)
}

// Documents lists all document records, oldest first.
func (s *Service) Documents(ctx context.Context) ([]*core.Document, error) {
	return s.docRepo.ListDocuments(ctx)
}

// Cancel stops processing of a pending or in-flight document. The processor
// observes the cancellation at its next batch boundary.
func (s *Service) Cancel(ctx context.Context, id core.ID) (*core.Document, error) {
	return s.docRepo.SetDocumentState(ctx, id, core.DocumentCancelled, "")
}

// Remove deletes a document record and all its indexed chunks. Cached
// answers that cited the document expire on their own TTL.
func (s *Service) Remove(ctx context.Context, id core.ID) error {
	if err := s.chunkRepo.DeleteChunksByDocument(ctx, id); err != nil {
		return err
	}
	return s.docRepo.DeleteDocument(ctx, id)
}

// NewSearcher builds a similarity searcher over the service's chunk index.
// Useful for inspecting what evidence a question would retrieve without
// invoking the generator.
func (s *Service) NewSearcher(opts ...search.Option) (*search.Searcher, error) {
	return search.NewSearcher(s.chunkRepo, s.provider, opts...)
}

// Job returns a snapshot of a background job.
func (s *Service) Job(id string) (jobs.Job, error) {
	return s.queue.Job(id)
}

// WaitForJob blocks until a background job finishes or ctx is cancelled.
func (s *Service) WaitForJob(ctx context.Context, id string) (jobs.Job, error) {
	return s.queue.Wait(ctx, id)
}

// Close shuts down workers, the AI provider, and storage, in that order.
func (s *Service) Close() error {
	s.queue.Release()

	if err := s.provider.Close(); err != nil {
		s.logger.Error("error closing AI provider", "err", err)
	}

	if err := s.cacheRepo.Close(); err != nil {
		s.logger.Error("error closing cache repository", "err", err)
		return err
	}
	if err := s.chunkRepo.Close(); err != nil {
		s.logger.Error("error closing chunk repository", "err", err)
		return err
	}
	if err := s.docRepo.Close(); err != nil {
		s.logger.Error("error closing document repository", "err", err)
		return err
	}

	if err := s.backend.Close(); err != nil {
		s.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}
