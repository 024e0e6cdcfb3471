package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/jschreck/saga/internal/memstore"
	"github.com/jschreck/saga/internal/models"
)

const defaultConsensusLimit = 15

type MemoryHandler struct {
	store *memstore.Store
}

func NewMemoryHandler(store *memstore.Store) *MemoryHandler {
	return &MemoryHandler{store: store}
}

// ListConsensus handles GET /api/consensus
func (h *MemoryHandler) ListConsensus(w http.ResponseWriter, r *http.Request) {
	limit := defaultConsensusLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	entries, err := h.store.RecentConsensus(limit)
	if err != nil {
		writeErr(w, err)
		return
	}
	if entries == nil {
		entries = []models.MemoryEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// SaveConsensus handles POST /api/consensus
func (h *MemoryHandler) SaveConsensus(w http.ResponseWriter, r *http.Request) {
	var req models.SaveConsensusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	entry, err := h.store.AppendConsensus(req.Instruction)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// ListProjects handles GET /api/projects
func (h *MemoryHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	names, err := h.store.ListProjects()
	if err != nil {
		writeErr(w, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, names)
}

// CreateProject handles POST /api/projects
func (h *MemoryHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req models.CreateProjectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	name, err := h.store.CreateProject(req.Name)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, models.CreateProjectResponse{Name: name})
}

// ListNotes handles GET /api/projects/{name}/notes
func (h *MemoryHandler) ListNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := h.store.ProjectNotes(chi.URLParam(r, "name"))
	if err != nil {
		writeErr(w, err)
		return
	}
	if notes == nil {
		notes = []models.ProjectNote{}
	}
	writeJSON(w, http.StatusOK, notes)
}

// AddNote handles POST /api/projects/{name}/notes
func (h *MemoryHandler) AddNote(w http.ResponseWriter, r *http.Request) {
	var req models.AddNoteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	note, err := h.store.AppendNote(chi.URLParam(r, "name"), req.Note)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}
