package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jschreck/saga/internal/affinity"
	"github.com/jschreck/saga/internal/api"
	"github.com/jschreck/saga/internal/app"
	"github.com/jschreck/saga/internal/chat"
	"github.com/jschreck/saga/internal/config"
	"github.com/jschreck/saga/internal/essence"
	"github.com/jschreck/saga/internal/ingest"
	"github.com/jschreck/saga/internal/llm"
	"github.com/jschreck/saga/internal/memstore"
	"github.com/jschreck/saga/internal/prompt"
	"github.com/jschreck/saga/internal/search"
	"github.com/jschreck/saga/internal/store"
)

func main() {
	// Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Logger
	logger := app.NewLogger(cfg.LogLevel)

	// Memory files
	mem, err := memstore.Open(cfg.DataDir, logger)
	if err != nil {
		logger.Error("failed to open memory store", "dir", cfg.DataDir, "error", err)
		os.Exit(1)
	}

	// SQLite
	db, err := store.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Inference
	var (
		completer llm.Completer
		providerH api.HealthChecker
		model     string
	)
	switch cfg.Provider {
	case "gemini":
		gc, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			logger.Error("failed to create gemini client", "error", err)
			os.Exit(1)
		}
		completer, model = gc, cfg.GeminiModel
	default:
		oc := llm.NewOllamaClient(cfg.OllamaBaseURL, cfg.Model, cfg.InferenceTimeout)
		completer, providerH, model = oc, oc, cfg.Model
	}
	titleModel := cfg.TitleModel
	if cfg.Provider == "gemini" {
		titleModel = cfg.GeminiModel
	}

	// Lore
	lore := app.NewLore(cfg, db, logger)
	if err := lore.Qdrant.HealthCheck(ctx); err != nil {
		logger.Warn("qdrant not available at startup, will retry on first use", "error", err)
	} else if err := lore.Collections.Ensure(ctx, cfg.LoreCollection); err != nil {
		logger.Warn("failed to create lore collection", "error", err)
	}
	var loreSearcher chat.LoreSearcher
	if cfg.LoreEnabled {
		loreSearcher = search.NewLoreSearcher(lore.Embedder, lore.Collections, cfg.LoreCollection, 0, logger)
	}

	// Conversation
	affinityParams := affinity.Params{
		Reinforce:          cfg.Affinity.Reinforce,
		Decay:              cfg.Affinity.Decay,
		Activation:         cfg.Affinity.Activation,
		CandidateIncrement: cfg.Affinity.CandidateIncrement,
		CreationThreshold:  cfg.Affinity.CreationThreshold,
		CandidateMinLen:    cfg.Affinity.CandidateMinLen,
		MaxScore:           cfg.Affinity.MaxScore,
	}
	registry := chat.NewRegistry(func() affinity.Detector {
		return affinity.NewTracker(affinityParams)
	}, cfg.Assembler.MaxHistory)

	chatSvc := chat.NewService(chat.Deps{
		Store:     mem,
		Completer: completer,
		Titler:    chat.NewTitler(completer, titleModel, logger),
		Assembler: prompt.NewAssembler(prompt.Params{
			ConsensusWindow:    cfg.Assembler.ConsensusWindow,
			HistoryWindow:      cfg.Assembler.HistoryWindow,
			NoteWindow:         cfg.Assembler.NoteWindow,
			NoteCharBudget:     cfg.Assembler.NoteCharBudget,
			LongInputThreshold: cfg.Assembler.LongInputThreshold,
		}),
		Identity:  prompt.IdentityLoader{Path: cfg.IdentityPath, Logger: logger},
		Extractor: essence.NewExtractor(nil, logger),
		Lore:      loreSearcher,
		Registry:  registry,
		Logger:    logger,
	}, chat.Options{
		Model:       model,
		Temperature: cfg.Temperature,
		LoreTopK:    cfg.LoreTopK,
	})

	// Ingestion worker
	pipeline := app.NewPipeline(cfg, db, lore, logger)
	go pipeline.Run(ctx)

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		logger.Error("failed to create upload dir", "dir", cfg.UploadDir, "error", err)
		os.Exit(1)
	}
	if cfg.IngestWatch {
		w, err := ingest.NewWatcher(cfg.UploadDir, pipeline, 0, logger)
		if err != nil {
			logger.Warn("upload watcher disabled", "error", err)
		} else {
			go w.Run(ctx)
		}
	}

	// Router
	router := api.NewRouter(api.Deps{
		Chat:      chatSvc,
		Memory:    mem,
		DB:        db,
		Uploads:   pipeline,
		UploadDir: cfg.UploadDir,
		Provider:  providerH,
		Qdrant:    lore.Qdrant,
		StaticDir: cfg.StaticDir,
		Logger:    logger,
	})

	// Server
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.InferenceTimeout + 60*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("saga server starting", "addr", addr, "provider", cfg.Provider, "model", model, "data_dir", cfg.DataDir)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("server stopped")
}
