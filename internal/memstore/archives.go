package memstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jschreck/saga/internal/models"
)

const (
	archiveExt       = ".json"
	archiveSep       = "--"
	archiveTimeFmt   = "20060102-150405"
	defaultLabel     = "none"
	defaultTitle     = "untitled"
	maxArchiveSegLen = 64
)

// SaveArchive writes a closed session and returns its id. The id is the file
// stem: <label>--<title>--<YYYYMMDD-HHMMSS>, with a numeric suffix when two
// sessions close within the same second.
func (s *Store) SaveArchive(a models.Archive) (models.ArchiveInfo, error) {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	a.Label = archiveSegment(a.Label, defaultLabel)
	a.Title = archiveSegment(a.Title, defaultTitle)
	if a.Turns == nil {
		a.Turns = []models.Message{}
	}

	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return models.ArchiveInfo{}, fmt.Errorf("marshal archive: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	base := strings.Join([]string{a.Label, a.Title, a.CreatedAt.Format(archiveTimeFmt)}, archiveSep)
	id := base
	for i := 2; ; i++ {
		f, err := os.OpenFile(s.archivePath(id), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if errors.Is(err, os.ErrExist) {
			id = base + "-" + strconv.Itoa(i)
			continue
		}
		if err != nil {
			return models.ArchiveInfo{}, fmt.Errorf("create archive: %w", err)
		}
		_, werr := f.Write(data)
		cerr := f.Close()
		if werr != nil {
			return models.ArchiveInfo{}, fmt.Errorf("write archive: %w", werr)
		}
		if cerr != nil {
			return models.ArchiveInfo{}, fmt.Errorf("close archive: %w", cerr)
		}
		break
	}

	s.logger.Info("session archived", "id", id, "turns", len(a.Turns))
	return models.ArchiveInfo{ID: id, Label: a.Label, Title: a.Title, CreatedAt: a.CreatedAt}, nil
}

// ListArchives returns every archive, newest first. Names that do not follow
// the archive layout are ignored.
func (s *Store) ListArchives() ([]models.ArchiveInfo, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, archivesDir))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list archives: %w", err)
	}

	var out []models.ArchiveInfo
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), archiveExt) {
			continue
		}
		info, ok := parseArchiveID(strings.TrimSuffix(e.Name(), archiveExt))
		if !ok {
			continue
		}
		out = append(out, info)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// LoadArchive returns the turns stored under id.
func (s *Store) LoadArchive(id string) ([]models.Message, error) {
	if err := validateArchiveID(id); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.archivePath(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrArchiveNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("read archive: %w", err)
	}

	var a models.Archive
	if err := json.Unmarshal(data, &a); err != nil {
		// Early archives were a bare array of turns.
		var turns []models.Message
		if err2 := json.Unmarshal(data, &turns); err2 != nil {
			return nil, fmt.Errorf("decode archive %s: %w", id, err)
		}
		return turns, nil
	}
	if a.Turns == nil {
		a.Turns = []models.Message{}
	}
	return a.Turns, nil
}

func (s *Store) archivePath(id string) string {
	return filepath.Join(s.dir, archivesDir, id+archiveExt)
}

func validateArchiveID(id string) error {
	if id == "" || strings.Contains(id, "..") || strings.ContainsAny(id, `/\`) || filepath.Base(id) != id {
		return fmt.Errorf("%w: %q", ErrInvalidArchiveID, id)
	}
	return nil
}

func parseArchiveID(id string) (models.ArchiveInfo, bool) {
	parts := strings.Split(id, archiveSep)
	if len(parts) != 3 {
		return models.ArchiveInfo{}, false
	}
	stamp := parts[2]
	if len(stamp) > len(archiveTimeFmt) {
		stamp = stamp[:len(archiveTimeFmt)]
	}
	ts, err := time.Parse(archiveTimeFmt, stamp)
	if err != nil {
		return models.ArchiveInfo{}, false
	}
	return models.ArchiveInfo{ID: id, Label: parts[0], Title: parts[1], CreatedAt: ts}, true
}

// archiveSegment reduces s to [a-z0-9_] so the archive name stays parseable.
func archiveSegment(s, fallback string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		case !lastUnderscore && b.Len() > 0:
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	out := strings.TrimRight(b.String(), "_")
	if len(out) > maxArchiveSegLen {
		out = strings.TrimRight(out[:maxArchiveSegLen], "_")
	}
	if out == "" {
		return fallback
	}
	return out
}
