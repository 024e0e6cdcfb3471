package api

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	"github.com/jschreck/saga/internal/chat"
	"github.com/jschreck/saga/internal/ingest"
	"github.com/jschreck/saga/internal/memstore"
	"github.com/jschreck/saga/internal/store"
)

// Deps are the services the HTTP surface is built on. DB, Uploads,
// Provider and Qdrant may be nil.
type Deps struct {
	Chat      *chat.Service
	Memory    *memstore.Store
	DB        *store.DB
	Uploads   ingest.Enqueuer
	UploadDir string
	Provider  HealthChecker
	Qdrant    HealthChecker
	StaticDir string
	Logger    *slog.Logger
}

// NewRouter creates the Chi router with all routes and middleware.
func NewRouter(d Deps) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware (runs on ALL routes including /health)
	r.Use(CORS)
	r.Use(RequestID)
	r.Use(Logger(d.Logger))
	r.Use(Recovery(d.Logger))

	// Handlers
	healthH := NewHealthHandler(d.DB, d.Provider, d.Qdrant, d.Chat.Registry())
	chatH := NewChatHandler(d.Chat)
	memoryH := NewMemoryHandler(d.Memory)
	uploadH := NewUploadHandler(d.UploadDir, d.Uploads)

	r.Get("/health", healthH.Health)

	r.Route("/api", func(r chi.Router) {
		r.Use(ConversationExtractor)

		r.Get("/status", healthH.Health)
		r.Post("/chat", chatH.Chat)

		r.Get("/consensus", memoryH.ListConsensus)
		r.Post("/consensus", memoryH.SaveConsensus)

		r.Route("/projects", func(r chi.Router) {
			r.Get("/", memoryH.ListProjects)
			r.Post("/", memoryH.CreateProject)
			r.Get("/{name}/notes", memoryH.ListNotes)
			r.Post("/{name}/notes", memoryH.AddNote)
		})

		r.Get("/session", chatH.Session)
		r.Post("/session/close", chatH.Close)

		r.Get("/archives", chatH.ListArchives)
		r.Post("/archives/{id}/load", chatH.LoadArchive)

		if d.UploadDir != "" {
			r.Post("/upload", uploadH.Upload)
		}
	})

	if d.StaticDir != "" {
		if fi, err := os.Stat(d.StaticDir); err == nil && fi.IsDir() {
			r.Handle("/*", http.FileServer(http.Dir(d.StaticDir)))
		}
	}

	return r
}
