package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// AffinityConfig tunes the project affinity tracker.
type AffinityConfig struct {
	Reinforce          float64 `yaml:"reinforce"`
	Decay              float64 `yaml:"decay"`
	Activation         float64 `yaml:"activation"`
	CandidateIncrement float64 `yaml:"candidate_increment"`
	CreationThreshold  float64 `yaml:"creation_threshold"`
	CandidateMinLen    int     `yaml:"candidate_min_len"`
	MaxScore           float64 `yaml:"max_score"`
}

// AssemblerConfig tunes prompt assembly and session history.
type AssemblerConfig struct {
	ConsensusWindow    int `yaml:"consensus_window"`
	HistoryWindow      int `yaml:"history_window"`
	NoteWindow         int `yaml:"note_window"`
	NoteCharBudget     int `yaml:"note_char_budget"`
	LongInputThreshold int `yaml:"long_input_threshold"`
	// MaxHistory caps the in-memory transcript. 0 keeps every turn.
	MaxHistory int `yaml:"max_history"`
}

type Config struct {
	Port         int    `yaml:"port"`
	DataDir      string `yaml:"data_dir"`
	IdentityPath string `yaml:"identity_path"`
	DBPath       string `yaml:"db_path"`
	UploadDir    string `yaml:"upload_dir"`
	StaticDir    string `yaml:"static_dir"`
	LogLevel     string `yaml:"log_level"`
	// Inference
	Provider         string        `yaml:"provider"`
	OllamaBaseURL    string        `yaml:"ollama_url"`
	Model            string        `yaml:"model"`
	TitleModel       string        `yaml:"title_model"`
	GeminiAPIKey     string        `yaml:"-"`
	GeminiModel      string        `yaml:"gemini_model"`
	InferenceTimeout time.Duration `yaml:"inference_timeout"`
	Temperature      float64       `yaml:"temperature"`
	// Lore retrieval
	QdrantURL      string `yaml:"qdrant_url"`
	EmbeddingModel string `yaml:"embedding_model"`
	EmbeddingDim   int    `yaml:"embedding_dim"`
	LoreEnabled    bool   `yaml:"lore_enabled"`
	LoreTopK       int    `yaml:"lore_top_k"`
	LoreCollection string `yaml:"lore_collection"`
	// Ingestion
	IngestWatch     bool `yaml:"ingest_watch"`
	IngestBatchSize int  `yaml:"ingest_batch_size"`
	IngestWorkers   int  `yaml:"ingest_workers"`
	ChunkSize       int  `yaml:"chunk_size"`
	ChunkOverlap    int  `yaml:"chunk_overlap"`

	Affinity  AffinityConfig  `yaml:"affinity"`
	Assembler AssemblerConfig `yaml:"assembler"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Port:             8000,
		DataDir:          "/saga/memory",
		IdentityPath:     "/saga/prompts/saga_system_active.txt",
		StaticDir:        "static",
		LogLevel:         "info",
		Provider:         "ollama",
		OllamaBaseURL:    "http://localhost:11434",
		Model:            "llama3:latest",
		GeminiModel:      "gemini-2.0-flash",
		InferenceTimeout: 300 * time.Second,
		Temperature:      0.7,
		QdrantURL:        "http://localhost:6333",
		EmbeddingModel:   "nomic-embed-text",
		EmbeddingDim:     768,
		LoreEnabled:      true,
		LoreTopK:         3,
		LoreCollection:   "saga_lore",
		IngestWatch:      true,
		IngestBatchSize:  20,
		IngestWorkers:    4,
		ChunkSize:        1000,
		ChunkOverlap:     150,
		Affinity: AffinityConfig{
			Reinforce:          0.4,
			Decay:              0.05,
			Activation:         0.7,
			CandidateIncrement: 0.45,
			CreationThreshold:  0.8,
			CandidateMinLen:    3,
			MaxScore:           1.0,
		},
		Assembler: AssemblerConfig{
			ConsensusWindow:    15,
			HistoryWindow:      10,
			NoteWindow:         5,
			NoteCharBudget:     1000,
			LongInputThreshold: 2000,
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file named
// by SAGA_CONFIG, and environment variables, in that order.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("SAGA_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.Port = envInt("SAGA_PORT", cfg.Port)
	cfg.DataDir = envStr("SAGA_DATA_DIR", cfg.DataDir)
	cfg.IdentityPath = envStr("SAGA_IDENTITY_PATH", cfg.IdentityPath)
	cfg.DBPath = envStr("SAGA_DB_PATH", cfg.DBPath)
	cfg.UploadDir = envStr("SAGA_UPLOAD_DIR", cfg.UploadDir)
	cfg.StaticDir = envStr("SAGA_STATIC_DIR", cfg.StaticDir)
	cfg.LogLevel = envStr("LOG_LEVEL", cfg.LogLevel)
	cfg.Provider = envStr("SAGA_PROVIDER", cfg.Provider)
	cfg.OllamaBaseURL = envStr("OLLAMA_URL", cfg.OllamaBaseURL)
	cfg.Model = envStr("SAGA_MODEL", cfg.Model)
	cfg.TitleModel = envStr("SAGA_TITLE_MODEL", cfg.TitleModel)
	cfg.GeminiAPIKey = envStr("GEMINI_API_KEY", cfg.GeminiAPIKey)
	cfg.GeminiModel = envStr("GEMINI_MODEL", cfg.GeminiModel)
	cfg.InferenceTimeout = envDuration("SAGA_INFERENCE_TIMEOUT", cfg.InferenceTimeout)
	cfg.Temperature = envFloat("SAGA_TEMPERATURE", cfg.Temperature)
	cfg.QdrantURL = envStr("QDRANT_URL", cfg.QdrantURL)
	cfg.EmbeddingModel = envStr("EMBEDDING_MODEL", cfg.EmbeddingModel)
	cfg.EmbeddingDim = envInt("EMBEDDING_DIM", cfg.EmbeddingDim)
	cfg.LoreEnabled = envBool("LORE_ENABLED", cfg.LoreEnabled)
	cfg.LoreTopK = envInt("LORE_TOP_K", cfg.LoreTopK)
	cfg.LoreCollection = envStr("LORE_COLLECTION", cfg.LoreCollection)
	cfg.IngestWatch = envBool("INGEST_WATCH", cfg.IngestWatch)
	cfg.IngestBatchSize = envInt("INGEST_BATCH_SIZE", cfg.IngestBatchSize)
	cfg.IngestWorkers = envInt("INGEST_WORKERS", cfg.IngestWorkers)
	cfg.ChunkSize = envInt("CHUNK_SIZE", cfg.ChunkSize)
	cfg.ChunkOverlap = envInt("CHUNK_OVERLAP", cfg.ChunkOverlap)

	cfg.Affinity.Reinforce = envFloat("AFFINITY_REINFORCE", cfg.Affinity.Reinforce)
	cfg.Affinity.Decay = envFloat("AFFINITY_DECAY", cfg.Affinity.Decay)
	cfg.Affinity.Activation = envFloat("AFFINITY_ACTIVATION", cfg.Affinity.Activation)
	cfg.Affinity.CandidateIncrement = envFloat("AFFINITY_CANDIDATE_INCREMENT", cfg.Affinity.CandidateIncrement)
	cfg.Affinity.CreationThreshold = envFloat("AFFINITY_CREATION_THRESHOLD", cfg.Affinity.CreationThreshold)
	cfg.Assembler.HistoryWindow = envInt("HISTORY_WINDOW", cfg.Assembler.HistoryWindow)
	cfg.Assembler.MaxHistory = envInt("MAX_HISTORY", cfg.Assembler.MaxHistory)

	cfg.fillDerived()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// fillDerived resolves paths and models that default to other settings.
func (c *Config) fillDerived() {
	if c.DBPath == "" {
		c.DBPath = filepath.Join(c.DataDir, "saga.db")
	}
	if c.UploadDir == "" {
		c.UploadDir = filepath.Join(c.DataDir, "uploads")
	}
	if c.TitleModel == "" {
		c.TitleModel = c.Model
	}
}

func (c *Config) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("SAGA_PORT must be between 1 and 65535, got %d", c.Port)
	}
	if c.DataDir == "" {
		return fmt.Errorf("SAGA_DATA_DIR must not be empty")
	}
	switch c.Provider {
	case "ollama":
		if c.OllamaBaseURL == "" {
			return fmt.Errorf("OLLAMA_URL must not be empty")
		}
	case "gemini":
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required when SAGA_PROVIDER=gemini")
		}
	default:
		return fmt.Errorf("SAGA_PROVIDER must be ollama or gemini, got %q", c.Provider)
	}
	if c.EmbeddingDim < 1 {
		return fmt.Errorf("EMBEDDING_DIM must be positive, got %d", c.EmbeddingDim)
	}
	if c.ChunkSize < 1 || c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP must be in [0, CHUNK_SIZE), got %d/%d", c.ChunkOverlap, c.ChunkSize)
	}
	a := c.Affinity
	if a.Reinforce <= 0 || a.Activation <= 0 || a.CandidateIncrement <= 0 || a.CreationThreshold <= 0 {
		return fmt.Errorf("affinity increments and thresholds must be positive")
	}
	if a.Decay < 0 || a.Decay >= a.Reinforce {
		return fmt.Errorf("affinity decay must be in [0, reinforce), got %f", a.Decay)
	}
	if a.MaxScore < a.Activation || a.MaxScore < a.CreationThreshold {
		return fmt.Errorf("affinity max_score %f is below a threshold", a.MaxScore)
	}
	if c.Assembler.HistoryWindow < 1 || c.Assembler.ConsensusWindow < 1 {
		return fmt.Errorf("assembler windows must be positive")
	}
	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
