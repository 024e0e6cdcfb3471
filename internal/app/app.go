// Package app wires configuration into the services both binaries share.
package app

import (
	"log/slog"
	"os"

	"github.com/jschreck/saga/internal/config"
	"github.com/jschreck/saga/internal/embedding"
	"github.com/jschreck/saga/internal/ingest"
	"github.com/jschreck/saga/internal/store"
	"github.com/jschreck/saga/internal/vectorstore"
)

// NewLogger returns a JSON logger at the configured level and installs it as
// the default.
func NewLogger(level string) *slog.Logger {
	logLevel := slog.LevelInfo
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
	return logger
}

// Lore holds the retrieval stack: embeddings cached in SQLite and vectors in
// Qdrant.
type Lore struct {
	Embedder    *embedding.CachedEmbedder
	Qdrant      *vectorstore.QdrantClient
	Collections *vectorstore.CollectionManager
}

func NewLore(cfg *config.Config, db *store.DB, logger *slog.Logger) *Lore {
	ollama := embedding.NewOllamaClient(cfg.OllamaBaseURL, cfg.EmbeddingModel)
	qdrant := vectorstore.NewQdrantClient(cfg.QdrantURL, cfg.EmbeddingDim)
	return &Lore{
		Embedder:    embedding.NewCachedEmbedder(ollama, store.NewEmbeddingCacheStore(db), cfg.EmbeddingModel, cfg.EmbeddingDim, logger),
		Qdrant:      qdrant,
		Collections: vectorstore.NewCollectionManager(qdrant),
	}
}

// NewPipeline builds the ingestion pipeline over the lore stack.
func NewPipeline(cfg *config.Config, db *store.DB, lore *Lore, logger *slog.Logger) *ingest.Pipeline {
	return ingest.NewPipeline(
		store.NewChunkStore(db),
		lore.Embedder,
		lore.Collections,
		ingest.Options{
			Collection: cfg.LoreCollection,
			ChunkSize:  cfg.ChunkSize,
			Overlap:    cfg.ChunkOverlap,
			BatchSize:  cfg.IngestBatchSize,
			Workers:    cfg.IngestWorkers,
		},
		logger,
	)
}
