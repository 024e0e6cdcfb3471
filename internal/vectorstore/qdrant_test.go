package vectorstore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestPointIDIsDeterministic(t *testing.T) {
	a := PointID("eddas.pdf_3")
	if a != PointID("eddas.pdf_3") {
		t.Fatal("point id changed between calls")
	}
	if a == PointID("eddas.pdf_4") {
		t.Fatal("distinct chunks share a point id")
	}
	if len(a) != 36 {
		t.Errorf("expected uuid string, got %q", a)
	}
}

func TestCollectionManagerCachesEnsure(t *testing.T) {
	var gets int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			atomic.AddInt32(&gets, 1)
		}
		w.Write([]byte(`{"result":{}}`))
	}))
	defer srv.Close()

	cm := NewCollectionManager(NewQdrantClient(srv.URL, 3))
	for i := 0; i < 3; i++ {
		if err := cm.Ensure(context.Background(), "saga_lore"); err != nil {
			t.Fatalf("ensure: %v", err)
		}
	}
	if gets != 1 {
		t.Errorf("expected one existence check, got %d", gets)
	}
}

func TestUpsertSendsPoints(t *testing.T) {
	var got struct {
		Points []Point `json:"points"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/collections/saga_lore/points" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.URL.Query().Get("wait") != "true" {
			t.Error("expected wait=true")
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	c := NewQdrantClient(srv.URL, 2)
	err := c.Upsert(context.Background(), "saga_lore", []Point{
		{ID: PointID("a_0"), Vector: []float32{1, 0}, Payload: map[string]any{"text": "hi"}},
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if len(got.Points) != 1 || got.Points[0].Payload["text"] != "hi" {
		t.Errorf("unexpected body %+v", got)
	}
}

func TestQdrantErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewQdrantClient(srv.URL, 2)
	if err := c.Upsert(context.Background(), "x", nil); err == nil {
		t.Error("expected upsert error")
	}
	if err := c.HealthCheck(context.Background()); err == nil {
		t.Error("expected health check error")
	}
}
