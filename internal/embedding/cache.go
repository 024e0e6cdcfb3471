package embedding

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"

	"github.com/jschreck/saga/internal/search"
	"github.com/jschreck/saga/internal/store"
)

// CachedEmbedder wraps an Embedder with content-hash caching via SQLite.
// Re-ingesting the same text never calls the model twice.
type CachedEmbedder struct {
	client Embedder
	cache  *store.EmbeddingCacheStore
	model  string
	dim    int
	logger *slog.Logger
}

func NewCachedEmbedder(client Embedder, cache *store.EmbeddingCacheStore, model string, dim int, logger *slog.Logger) *CachedEmbedder {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedEmbedder{
		client: client,
		cache:  cache,
		model:  model,
		dim:    dim,
		logger: logger,
	}
}

// Embed returns the embedding for text, using cache when available.
func (e *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	hash := ContentHash(e.model + "\x00" + text)

	entry, err := e.cache.Get(hash)
	if err != nil {
		return nil, fmt.Errorf("cache lookup: %w", err)
	}
	if entry != nil {
		return search.BytesToFloat32(entry.Embedding), nil
	}

	vec, err := e.client.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if e.dim > 0 && len(vec) != e.dim {
		return nil, fmt.Errorf("embedding dimension %d, want %d", len(vec), e.dim)
	}

	if err := e.cache.Put(&store.EmbeddingCacheEntry{
		ContentHash: hash,
		Embedding:   search.Float32ToBytes(vec),
		Dimension:   len(vec),
		Model:       e.model,
	}); err != nil {
		e.logger.Warn("embedding cache write failed", "error", err)
	}

	return vec, nil
}

// ContentHash computes a SHA-256 hash of text content.
func ContentHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%x", h)
}
