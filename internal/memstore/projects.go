package memstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jschreck/saga/internal/models"
	"github.com/jschreck/saga/internal/textclean"
)

const projectExt = ".jsonl"

// CreateProject creates an empty note log and returns the normalized name.
func (s *Store) CreateProject(name string) (string, error) {
	n, err := NormalizeProjectName(name)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.projectPath(n), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if errors.Is(err, os.ErrExist) {
		return "", fmt.Errorf("%w: %s", ErrProjectExists, n)
	}
	if err != nil {
		return "", fmt.Errorf("create project %s: %w", n, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close project %s: %w", n, err)
	}
	s.logger.Info("project created", "project", n)
	return n, nil
}

// ListProjects returns every project name, sorted.
func (s *Store) ListProjects() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, projectsDir))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), projectExt) {
			continue
		}
		n := strings.TrimSuffix(e.Name(), projectExt)
		if projectNameRegex.MatchString(n) {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names, nil
}

// ProjectExists reports whether a note log exists for name.
func (s *Store) ProjectExists(name string) bool {
	n, err := NormalizeProjectName(name)
	if err != nil {
		return false
	}
	_, err = os.Stat(s.projectPath(n))
	return err == nil
}

// AppendNote adds a note to an existing project.
func (s *Store) AppendNote(project, note string) (models.ProjectNote, error) {
	n, err := NormalizeProjectName(project)
	if err != nil {
		return models.ProjectNote{}, err
	}
	text := textclean.StripPrivateTags(note)
	if text == "" {
		return models.ProjectNote{}, ErrEmptyEntry
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.projectPath(n)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return models.ProjectNote{}, fmt.Errorf("%w: %s", ErrProjectNotFound, n)
	}
	entry := models.ProjectNote{Timestamp: time.Now().UTC(), Note: text}
	if err := appendLine(path, entry); err != nil {
		return models.ProjectNote{}, fmt.Errorf("append note: %w", err)
	}
	return entry, nil
}

// ProjectNotes returns every note of project in file order. Lines that carry
// neither a note nor legacy content are dropped.
func (s *Store) ProjectNotes(project string) ([]models.ProjectNote, error) {
	n, err := NormalizeProjectName(project)
	if err != nil {
		return nil, err
	}
	path := s.projectPath(n)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, n)
	}
	notes, err := readLines[models.ProjectNote](path, s.logger)
	if err != nil {
		return nil, fmt.Errorf("read notes: %w", err)
	}
	out := notes[:0]
	for _, note := range notes {
		if note.Text() == "" {
			continue
		}
		note.Note, note.Content = note.Text(), ""
		out = append(out, note)
	}
	return out, nil
}

// RecentNotes returns the last n notes of project, oldest first.
func (s *Store) RecentNotes(project string, n int) ([]models.ProjectNote, error) {
	notes, err := s.ProjectNotes(project)
	if err != nil {
		return nil, err
	}
	return tail(notes, n), nil
}

func (s *Store) projectPath(name string) string {
	return filepath.Join(s.dir, projectsDir, name+projectExt)
}
