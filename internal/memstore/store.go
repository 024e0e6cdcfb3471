// Package memstore persists Saga's durable memory tiers as plain files under
// a single data directory: the long-term consensus log, one note log per
// project, and one JSON archive per closed session.
package memstore

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

var (
	ErrInvalidProjectName = errors.New("invalid project name")
	ErrEmptyEntry         = errors.New("entry is empty")
	ErrProjectExists      = errors.New("project already exists")
	ErrProjectNotFound    = errors.New("project not found")
	ErrArchiveNotFound    = errors.New("archive not found")
	ErrInvalidArchiveID   = errors.New("invalid archive id")
)

const (
	consensusFile = "consensus.jsonl"
	projectsDir   = "projects"
	archivesDir   = "archives"

	maxProjectNameLen = 64
)

var projectNameRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// Store is safe for concurrent use. Writes are serialized; every append is a
// single write of one complete line.
type Store struct {
	dir    string
	logger *slog.Logger
	mu     sync.Mutex
}

// Open creates the directory layout under dir if needed.
func Open(dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	for _, d := range []string{dir, filepath.Join(dir, projectsDir), filepath.Join(dir, archivesDir)} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", d, err)
		}
	}
	return &Store{dir: dir, logger: logger}, nil
}

// Dir returns the root data directory.
func (s *Store) Dir() string { return s.dir }

// NormalizeProjectName lowercases name and joins its words with underscores.
// It returns ErrInvalidProjectName if the result is not a safe file stem.
func NormalizeProjectName(name string) (string, error) {
	n := strings.Join(strings.Fields(strings.ToLower(name)), "_")
	if n == "" || len(n) > maxProjectNameLen || !projectNameRegex.MatchString(n) {
		return "", fmt.Errorf("%w: %q", ErrInvalidProjectName, name)
	}
	return n, nil
}

func appendLine(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append %s: %w", filepath.Base(path), err)
	}
	return nil
}

// readLines decodes every well-formed line of a JSONL file. A missing file
// yields no entries; lines that fail to decode are skipped.
func readLines[T any](path string, logger *slog.Logger) ([]T, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	var out []T
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var v T
		if err := json.Unmarshal([]byte(line), &v); err != nil {
			logger.Debug("skipping corrupt line", "file", filepath.Base(path), "line", lineNo, "error", err)
			continue
		}
		out = append(out, v)
	}
	if err := sc.Err(); err != nil {
		return out, fmt.Errorf("scan %s: %w", filepath.Base(path), err)
	}
	return out, nil
}

func tail[T any](items []T, n int) []T {
	if n <= 0 || len(items) <= n {
		return items
	}
	return items[len(items)-n:]
}
