package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jschreck/saga/internal/vectorstore"
)

// Embedder turns a query into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// LoreSearcher retrieves ingested document fragments for a turn.
type LoreSearcher struct {
	embedder    Embedder
	collections *vectorstore.CollectionManager
	collection  string
	minScore    float64
	logger      *slog.Logger
}

func NewLoreSearcher(embedder Embedder, collections *vectorstore.CollectionManager, collection string, minScore float64, logger *slog.Logger) *LoreSearcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoreSearcher{
		embedder:    embedder,
		collections: collections,
		collection:  collection,
		minScore:    minScore,
		logger:      logger,
	}
}

// Search returns the text of the k nearest chunks, best first. Results
// without a text payload are skipped.
func (s *LoreSearcher) Search(ctx context.Context, query string, k int) ([]string, error) {
	query = strings.TrimSpace(query)
	if query == "" || k <= 0 {
		return nil, nil
	}
	if err := s.collections.Ensure(ctx, s.collection); err != nil {
		return nil, err
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := s.collections.Client().Search(ctx, s.collection, vec, k, s.minScore)
	if err != nil {
		return nil, fmt.Errorf("lore search: %w", err)
	}

	frags := make([]string, 0, len(results))
	for _, r := range results {
		text := strings.TrimSpace(r.PayloadString("text"))
		if text == "" {
			continue
		}
		frags = append(frags, text)
	}
	s.logger.Debug("lore search", "query_chars", len(query), "hits", len(frags))
	return frags, nil
}
