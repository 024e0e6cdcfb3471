package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jschreck/saga/internal/chat"
	"github.com/jschreck/saga/internal/models"
)

type ChatHandler struct {
	svc *chat.Service
}

func NewChatHandler(svc *chat.Service) *ChatHandler {
	return &ChatHandler{svc: svc}
}

// Chat handles POST /api/chat
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "messages is required")
		return
	}

	resp, err := h.svc.Chat(r.Context(), conversationID(r, req.ConversationID), req)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Session handles GET /api/session
func (h *ChatHandler) Session(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Snapshot(conversationID(r, "")))
}

// Close handles POST /api/session/close
func (h *ChatHandler) Close(w http.ResponseWriter, r *http.Request) {
	var req models.CloseSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	info, err := h.svc.Close(r.Context(), conversationID(r, req.ConversationID))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.CloseSessionResponse{Archived: info != nil, Archive: info})
}

// ListArchives handles GET /api/archives
func (h *ChatHandler) ListArchives(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListArchives()
	if err != nil {
		writeErr(w, err)
		return
	}
	if list == nil {
		list = []models.ArchiveInfo{}
	}
	writeJSON(w, http.StatusOK, list)
}

// LoadArchive handles POST /api/archives/{id}/load
func (h *ChatHandler) LoadArchive(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	turns, err := h.svc.LoadArchive(conversationID(r, ""), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.LoadArchiveResponse{ID: id, Turns: turns})
}
