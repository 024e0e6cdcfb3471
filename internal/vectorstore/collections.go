package vectorstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// PointID derives a stable Qdrant point id from a chunk id, so re-ingesting
// the same chunk overwrites rather than duplicates.
func PointID(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(chunkID)).String()
}

// CollectionManager ensures collections exist before first use and
// remembers which ones it has already checked.
type CollectionManager struct {
	client *QdrantClient
	known  map[string]bool
	mu     sync.RWMutex
}

func NewCollectionManager(client *QdrantClient) *CollectionManager {
	return &CollectionManager{
		client: client,
		known:  make(map[string]bool),
	}
}

// Ensure creates the collection if needed. Results are cached in-memory.
func (m *CollectionManager) Ensure(ctx context.Context, name string) error {
	m.mu.RLock()
	if m.known[name] {
		m.mu.RUnlock()
		return nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if m.known[name] {
		return nil
	}

	if err := m.client.EnsureCollection(ctx, name); err != nil {
		return fmt.Errorf("ensure collection %s: %w", name, err)
	}

	m.known[name] = true
	return nil
}

// Client returns the underlying Qdrant client.
func (m *CollectionManager) Client() *QdrantClient { return m.client }

// Upsert ensures the collection exists, then writes points to it.
func (m *CollectionManager) Upsert(ctx context.Context, collection string, points []Point) error {
	if err := m.Ensure(ctx, collection); err != nil {
		return err
	}
	return m.client.Upsert(ctx, collection, points)
}
