package api

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/jschreck/saga/internal/ingest"
	"github.com/jschreck/saga/internal/models"
)

const maxUploadBytes = 256 << 20

type UploadHandler struct {
	dir   string
	queue ingest.Enqueuer
}

func NewUploadHandler(dir string, queue ingest.Enqueuer) *UploadHandler {
	return &UploadHandler{dir: dir, queue: queue}
}

// Upload handles POST /api/upload
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required: "+err.Error())
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if name == "." || name == string(filepath.Separator) || !ingest.Supported(name) {
		writeError(w, http.StatusBadRequest, "only .pdf, .txt and .md files are accepted")
		return
	}

	dest := filepath.Join(h.dir, name)
	if err := saveUpload(dest, file); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	queued := false
	if h.queue != nil {
		queued = h.queue.Enqueue(dest) == nil
	}
	writeJSON(w, http.StatusAccepted, models.UploadResponse{Filename: name, Queued: queued})
}

func saveUpload(dest string, src io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create upload dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".upload-*")
	if err != nil {
		return fmt.Errorf("create upload: %w", err)
	}
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close upload: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("store upload: %w", err)
	}
	return nil
}
