package store

import (
	"fmt"
	"strings"
	"time"
)

// Chunk is one indexed slice of an ingested document.
type Chunk struct {
	ID          string
	Source      string
	Seq         int
	PointID     string
	ContentHash string
	Text        string
	Collection  string
	CreatedAt   int64
}

// ChunkStore records which chunks have already been embedded and upserted,
// so re-running ingestion only processes new material.
type ChunkStore struct {
	db *DB
}

func NewChunkStore(db *DB) *ChunkStore {
	return &ChunkStore{db: db}
}

// ExistingIDs returns the subset of ids already recorded.
func (s *ChunkStore) ExistingIDs(ids []string) (map[string]bool, error) {
	found := make(map[string]bool, len(ids))
	const batch = 500 // stay under SQLite's bound-parameter limit
	for start := 0; start < len(ids); start += batch {
		end := min(start+batch, len(ids))
		part := ids[start:end]

		args := make([]any, len(part))
		for i, id := range part {
			args[i] = id
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(part)), ",")

		rows, err := s.db.Query(`SELECT id FROM chunks WHERE id IN (`+placeholders+`)`, args...)
		if err != nil {
			return nil, fmt.Errorf("query chunk ids: %w", err)
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan chunk id: %w", err)
			}
			found[id] = true
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("iterate chunk ids: %w", err)
		}
	}
	return found, nil
}

// InsertBatch records chunks in one transaction. Existing ids are ignored.
func (s *ChunkStore) InsertBatch(chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO chunks (id, source, seq, point_id, content_hash, text, collection, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, c := range chunks {
		if c.CreatedAt == 0 {
			c.CreatedAt = now
		}
		if _, err := stmt.Exec(c.ID, c.Source, c.Seq, c.PointID, c.ContentHash, c.Text, c.Collection, c.CreatedAt); err != nil {
			return fmt.Errorf("insert chunk %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

// RecordDocument upserts the per-file summary after ingestion.
func (s *ChunkStore) RecordDocument(source, path string) error {
	_, err := s.db.Exec(`
		INSERT INTO documents (source, path, chunk_count, ingested_at)
		VALUES (?, ?, (SELECT COUNT(*) FROM chunks WHERE source = ?), ?)
		ON CONFLICT(source) DO UPDATE SET
			path = excluded.path,
			chunk_count = excluded.chunk_count,
			ingested_at = excluded.ingested_at
	`, source, path, source, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("record document: %w", err)
	}
	return nil
}

// Count returns the number of recorded chunks.
func (s *ChunkStore) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}

// DocumentCount returns the number of ingested documents.
func (s *ChunkStore) DocumentCount() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}
