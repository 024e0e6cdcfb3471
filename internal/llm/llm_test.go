package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"google.golang.org/genai"

	"github.com/jschreck/saga/internal/models"
)

func TestOllamaComplete(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]string{"role": "assistant", "content": "  Hail, traveller.  "},
			"done":    true,
		})
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL+"/", "llama3:latest", time.Second)
	reply, err := c.Complete(context.Background(), []models.Message{
		{Role: models.RoleSystem, Content: "be brief"},
		{Role: models.RoleUser, Content: "hello"},
	}, Options{Temperature: 0.7})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if reply != "Hail, traveller." {
		t.Errorf("reply = %q", reply)
	}
	if got.Stream {
		t.Error("expected stream=false")
	}
	if got.Model != "llama3:latest" || len(got.Messages) != 2 {
		t.Errorf("unexpected request: %+v", got)
	}
	if got.Options["temperature"] != 0.7 {
		t.Errorf("temperature = %v", got.Options["temperature"])
	}
}

func TestOllamaCompleteModelOverride(t *testing.T) {
	var model string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		json.NewDecoder(r.Body).Decode(&req)
		model = req.Model
		json.NewEncoder(w).Encode(map[string]any{"message": map[string]string{"role": "assistant", "content": "ok"}})
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, "llama3:latest", time.Second)
	if _, err := c.Complete(context.Background(), nil, Options{Model: "mistral"}); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if model != "mistral" {
		t.Errorf("model = %q", model)
	}
}

func TestOllamaCompleteErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"status", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "model not found", http.StatusNotFound)
		}},
		{"malformed", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("{not json"))
		}},
		{"empty", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"message":{"role":"assistant","content":""}}`))
		}},
		{"error field", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"error":"out of memory"}`))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()
			c := NewOllamaClient(srv.URL, "m", time.Second)
			if _, err := c.Complete(context.Background(), nil, Options{}); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestOllamaCompleteConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewOllamaClient(url, "m", time.Second)
	if _, err := c.Complete(context.Background(), nil, Options{}); err == nil {
		t.Fatal("expected error")
	}
	if err := c.HealthCheck(context.Background()); err == nil {
		t.Fatal("expected health check error")
	}
}

func TestOllamaHealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"models":[]}`))
	}))
	defer srv.Close()

	if err := NewOllamaClient(srv.URL, "m", time.Second).HealthCheck(context.Background()); err != nil {
		t.Fatalf("health check: %v", err)
	}
}

func TestSoftError(t *testing.T) {
	reply := SoftError(errors.New("connection refused"))
	if reply != "Error connecting to the hearth: connection refused" {
		t.Errorf("reply = %q", reply)
	}
	if !IsSoftError(reply) {
		t.Error("expected soft error to be recognised")
	}
	if IsSoftError("The hearth is warm.") {
		t.Error("ordinary reply flagged as soft error")
	}
}

func TestToGeminiContents(t *testing.T) {
	system, contents := toGeminiContents([]models.Message{
		{Role: models.RoleSystem, Content: "identity"},
		{Role: models.RoleSystem, Content: "memories"},
		{Role: models.RoleUser, Content: "hi"},
		{Role: models.RoleAssistant, Content: "hail"},
		{Role: models.RoleUser, Content: "again"},
	})
	if system != "identity\n\nmemories" {
		t.Errorf("system = %q", system)
	}
	if len(contents) != 3 {
		t.Fatalf("expected 3 contents, got %d", len(contents))
	}
	if contents[1].Role != string(genai.RoleModel) || contents[2].Role != string(genai.RoleUser) {
		t.Errorf("unexpected roles: %s %s", contents[1].Role, contents[2].Role)
	}
	if contents[1].Parts[0].Text != "hail" {
		t.Errorf("text = %q", contents[1].Parts[0].Text)
	}
}
