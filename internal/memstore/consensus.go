package memstore

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/jschreck/saga/internal/models"
	"github.com/jschreck/saga/internal/textclean"
)

// AppendConsensus records a long-term instruction. Private blocks and a
// leading "saga" address are removed first.
func (s *Store) AppendConsensus(instruction string) (models.MemoryEntry, error) {
	text := textclean.StripAddress(textclean.StripPrivateTags(instruction))
	if text == "" {
		return models.MemoryEntry{}, ErrEmptyEntry
	}

	entry := models.MemoryEntry{Timestamp: time.Now().UTC(), Instruction: text}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := appendLine(s.consensusPath(), entry); err != nil {
		return models.MemoryEntry{}, fmt.Errorf("append consensus: %w", err)
	}
	s.logger.Info("consensus saved", "chars", len(text))
	return entry, nil
}

// Consensus returns every entry in file order.
func (s *Store) Consensus() ([]models.MemoryEntry, error) {
	entries, err := readLines[models.MemoryEntry](s.consensusPath(), s.logger)
	if err != nil {
		return nil, fmt.Errorf("read consensus: %w", err)
	}
	out := entries[:0]
	for _, e := range entries {
		if e.Instruction != "" {
			out = append(out, e)
		}
	}
	return out, nil
}

// RecentConsensus returns the last n entries, oldest first. n <= 0 returns all.
func (s *Store) RecentConsensus(n int) ([]models.MemoryEntry, error) {
	entries, err := s.Consensus()
	if err != nil {
		return nil, err
	}
	return tail(entries, n), nil
}

func (s *Store) consensusPath() string {
	return filepath.Join(s.dir, consensusFile)
}
