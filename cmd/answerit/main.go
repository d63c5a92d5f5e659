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


package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	answerit "github.com/poiesic/answerit"
	"github.com/poiesic/answerit/ai"
	"github.com/poiesic/answerit/ai/openai"
	"github.com/poiesic/answerit/core"
	"github.com/poiesic/answerit/jobs"
	"github.com/poiesic/answerit/ratelimit"
	"github.com/poiesic/answerit/reindex"
	"github.com/poiesic/answerit/storage/badger"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "answerit",
		Usage: "Document question answering over your own files",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to BadgerDB database directory",
				EnvVars: []string{"ANSWERIT_DB"},
				Value:   "answerit.db",
			},
			&cli.StringFlag{
				Name:    "host",
				Usage:   "OpenAI-compatible API host for embeddings and generation",
				EnvVars: []string{"ANSWERIT_HOST"},
				Value:   "http://localhost:11434/v1",
			},
			&cli.StringFlag{
				Name:    "api-key",
				Usage:   "API key for the model endpoints",
				EnvVars: []string{"ANSWERIT_API_KEY"},
				Value:   "none",
			},
			&cli.StringFlag{
				Name:    "embedding-model",
				Usage:   "Embedding model name",
				EnvVars: []string{"ANSWERIT_EMBEDDING_MODEL"},
				Value:   "embeddinggemma",
			},
			&cli.StringFlag{
				Name:    "generator-model",
				Usage:   "Generation model name",
				EnvVars: []string{"ANSWERIT_GENERATOR_MODEL"},
				Value:   "qwen2.5:3b",
			},
			&cli.IntFlag{
				Name:    "embedding-dimension",
				Usage:   "Embedding vector length the model produces",
				EnvVars: []string{"ANSWERIT_EMBEDDING_DIMENSION"},
				Value:   384,
			},
			&cli.Float64Flag{
				Name:  "rate",
				Usage: "Generator requests per second",
				Value: 1.0,
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Upload a document and process it for question answering",
				ArgsUsage: "<file>",
				Action:    ingestCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "wait",
						Usage: "Block until processing finishes",
					},
					&cli.StringFlag{
						Name:  "content-type",
						Usage: "Override the content type inferred from the file extension",
					},
				},
			},
			{
				Name:      "ask",
				Usage:     "Ask a question against the ingested documents",
				ArgsUsage: "<question>",
				Action:    askCommand,
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "Give up waiting for the answer after this long",
						Value: 60 * time.Second,
					},
				},
			},
			{
				Name:      "status",
				Usage:     "Show document states, or one document when an ID is given",
				ArgsUsage: "[document-id]",
				Action:    statusCommand,
			},
			{
				Name:      "cancel",
				Usage:     "Cancel processing of a document",
				ArgsUsage: "<document-id>",
				Action:    cancelCommand,
			},
			{
				Name:      "remove",
				Usage:     "Delete a document and its indexed chunks",
				ArgsUsage: "<document-id>",
				Action:    removeCommand,
			},
			{
				Name:      "search",
				Usage:     "Show the chunks a question would retrieve, without generating an answer",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "max-hits",
						Usage: "Maximum number of chunks to return",
						Value: 5,
					},
				},
			},
			{
				Name:   "reindex",
				Usage:  "Regenerate every chunk vector with the configured embedding model",
				Action: reindexCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Chunks per embedding request",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N chunks",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum attempts per batch",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func openService(c *cli.Context) (*answerit.Service, error) {
	aiConfig := ai.NewConfig(
		ai.WithHost(c.String("host")),
		ai.WithAPIKey(c.String("api-key")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
		ai.WithGeneratorModel(c.String("generator-model")),
		ai.WithEmbeddingDimension(c.Int("embedding-dimension")),
	)
	if err := aiConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AI configuration: %w", err)
	}

	svc, err := answerit.NewService(c.String("db"),
		answerit.WithAIConfig(aiConfig),
		answerit.WithRateLimit(ratelimit.Config{
			RequestsPerSecond: c.Float64("rate"),
			BurstSize:         1,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open service: %w", err)
	}
	return svc, nil
}

func ingestCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one file argument")
	}
	path := c.Args().First()

	payload, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	contentType := c.String("content-type")
	if contentType == "" {
		contentType = inferContentType(path)
	}

	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	doc, job, err := svc.Ingest(context.Background(), filepath.Base(path), contentType, payload)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	fmt.Printf("document %s queued (%s, %d bytes)\n", formatID(doc.Id), contentType, len(payload))

	if job.ID == "" {
		fmt.Printf("already ingested, state: %s\n", doc.State)
		return nil
	}

	if !c.Bool("wait") {
		return nil
	}

	final, err := svc.WaitForJob(context.Background(), job.ID)
	if err != nil {
		return err
	}
	if final.State == jobs.StateFailed {
		return fmt.Errorf("processing failed: %s", final.Err)
	}

	processed, err := svc.Document(context.Background(), doc.Id)
	if err != nil {
		return err
	}
	fmt.Printf("document ready, %d chunks indexed\n", processed.ChunkCount)
	return nil
}

func askCommand(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("expected a question")
	}
	question := strings.Join(c.Args().Slice(), " ")

	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), c.Duration("timeout"))
	defer cancel()

	result, err := svc.Answer(ctx, question)
	if err != nil {
		return err
	}

	fmt.Println(result.Answer)
	if len(result.Evidence) > 0 {
		fmt.Fprintf(os.Stderr, "\nbased on %d chunks", len(result.Evidence))
		if result.Cached {
			fmt.Fprint(os.Stderr, " (cached)")
		}
		fmt.Fprintln(os.Stderr)
	}
	return nil
}

func statusCommand(c *cli.Context) error {
	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	if c.NArg() == 1 {
		id, err := parseID(c.Args().First())
		if err != nil {
			return err
		}
		doc, err := svc.Document(context.Background(), id)
		if err != nil {
			return err
		}
		printDocument(doc)
		return nil
	}

	docs, err := svc.Documents(context.Background())
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		fmt.Println("no documents ingested")
		return nil
	}
	for _, doc := range docs {
		printDocument(doc)
	}
	return nil
}

func cancelCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one document ID")
	}
	id, err := parseID(c.Args().First())
	if err != nil {
		return err
	}

	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	doc, err := svc.Cancel(context.Background(), id)
	if err != nil {
		return fmt.Errorf("cancellation failed: %w", err)
	}
	fmt.Printf("document %s cancelled\n", formatID(doc.Id))
	return nil
}

func removeCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one document ID")
	}
	id, err := parseID(c.Args().First())
	if err != nil {
		return err
	}

	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	if err := svc.Remove(context.Background(), id); err != nil {
		return fmt.Errorf("removal failed: %w", err)
	}
	fmt.Printf("document %s removed\n", formatID(id))
	return nil
}

func searchCommand(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("expected a query")
	}
	query := strings.Join(c.Args().Slice(), " ")

	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	searcher, err := svc.NewSearcher()
	if err != nil {
		return err
	}

	results, err := searcher.FindSimilar(context.Background(), query, c.Int("max-hits"))
	if err != nil {
		return err
	}

	fmt.Printf("found %d hits\n", len(results))
	for i, hit := range results {
		fmt.Printf("%d: [%0.3f] %s #%d: %s\n",
			i, hit.Score, formatID(hit.Chunk.DocumentId), hit.Chunk.Ordinal, hit.Chunk.Text)
	}
	return nil
}

func reindexCommand(c *cli.Context) error {
	ctx := context.Background()

	backend, err := badger.OpenBackend(c.String("db"), false)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer backend.Close()

	docRepo, err := badger.NewDocumentRepository(backend)
	if err != nil {
		return fmt.Errorf("failed to create document repository: %w", err)
	}
	defer docRepo.Close()

	chunkRepo, err := badger.NewChunkRepository(backend)
	if err != nil {
		return fmt.Errorf("failed to create chunk repository: %w", err)
	}
	defer chunkRepo.Close()

	aiConfig := ai.NewConfig(
		ai.WithHost(c.String("host")),
		ai.WithAPIKey(c.String("api-key")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
		ai.WithGeneratorModel(c.String("generator-model")),
		ai.WithEmbeddingDimension(c.Int("embedding-dimension")),
	)
	if err := aiConfig.Validate(); err != nil {
		return fmt.Errorf("invalid AI configuration: %w", err)
	}

	embedder, err := openai.NewEmbedder(aiConfig)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}

	config := &reindex.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}

	reindexer, err := reindex.NewReindexer(docRepo, chunkRepo, embedder, config, os.Stderr)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Database: %s\n", c.String("db"))
	fmt.Fprintf(os.Stderr, "Embedding model: %s\n\n", c.String("embedding-model"))

	if err := reindexer.Run(ctx); err != nil {
		return fmt.Errorf("reindexing failed: %w", err)
	}
	return nil
}

func printDocument(doc *core.Document) {
	line := fmt.Sprintf("%s  %-10s  %s", formatID(doc.Id), doc.State, doc.Name)
	if doc.State == core.DocumentReady {
		line += fmt.Sprintf("  (%d chunks)", doc.ChunkCount)
	}
	if doc.Error != "" {
		line += fmt.Sprintf("  error: %s", doc.Error)
	}
	fmt.Println(line)
}

func formatID(id core.ID) string {
	return fmt.Sprintf("%016x", uint64(id))
}

func parseID(s string) (core.ID, error) {
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid document ID %q: %w", s, err)
	}
	return core.ID(v), nil
}

func inferContentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return "application/pdf"
	case ".md", ".markdown":
		return "text/markdown"
	default:
		return "text/plain"
	}
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	// Map string to slog.Level
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	// Configure slog with the specified level
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
