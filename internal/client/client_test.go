package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jschreck/saga/internal/models"
)

func TestChatSendsConversationHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.Equal(t, "longship", r.Header.Get("X-Saga-Conversation"))
		var req models.ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		json.NewEncoder(w).Encode(models.ChatResponse{
			Message: models.Message{Role: models.RoleAssistant, Content: "hail " + req.LastUserMessage()},
			Intent:  models.IntentNone,
		})
	}))
	defer srv.Close()

	resp, err := New(srv.URL+"/", "longship").Chat(context.Background(), "jarl")
	require.NoError(t, err)
	assert.Equal(t, "hail jarl", resp.Message.Content)
}

func TestAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error":"project already exists: svilland"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, "").CreateProject(context.Background(), "svilland")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, "project already exists: svilland", apiErr.Message)
}

func TestStatusDegradedStillReturnsReport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(models.HealthResponse{Status: "degraded", Qdrant: models.ServiceCheck{Status: "error"}})
	}))
	defer srv.Close()

	h, err := New(srv.URL, "").Status(context.Background())
	require.Error(t, err)
	require.NotNil(t, h)
	assert.Equal(t, "degraded", h.Status)
}

func TestUpload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		data, _ := io.ReadAll(f)
		assert.Equal(t, "runes", string(data))
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(models.UploadResponse{Filename: hdr.Filename, Queued: true})
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "futhark.txt")
	require.NoError(t, os.WriteFile(path, []byte("runes"), 0o644))

	out, err := New(srv.URL, "").Upload(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "futhark.txt", out.Filename)
	assert.True(t, out.Queued)
}
