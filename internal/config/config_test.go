package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SAGA_DATA_DIR", "/tmp/saga-test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 8000 {
		t.Errorf("port = %d, want 8000", cfg.Port)
	}
	if cfg.DBPath != filepath.Join("/tmp/saga-test", "saga.db") {
		t.Errorf("db path = %q", cfg.DBPath)
	}
	if cfg.UploadDir != filepath.Join("/tmp/saga-test", "uploads") {
		t.Errorf("upload dir = %q", cfg.UploadDir)
	}
	if cfg.TitleModel != cfg.Model {
		t.Errorf("title model = %q, want %q", cfg.TitleModel, cfg.Model)
	}
	if cfg.Affinity.Reinforce != 0.4 || cfg.Affinity.Decay != 0.05 || cfg.Affinity.Activation != 0.7 {
		t.Errorf("unexpected affinity defaults: %+v", cfg.Affinity)
	}
	if cfg.Assembler.ConsensusWindow != 15 || cfg.Assembler.HistoryWindow != 10 {
		t.Errorf("unexpected assembler defaults: %+v", cfg.Assembler)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SAGA_PORT", "9100")
	t.Setenv("SAGA_MODEL", "mistral")
	t.Setenv("SAGA_INFERENCE_TIMEOUT", "10m")
	t.Setenv("LORE_ENABLED", "false")
	t.Setenv("AFFINITY_ACTIVATION", "0.9")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 9100 {
		t.Errorf("port = %d, want 9100", cfg.Port)
	}
	if cfg.Model != "mistral" || cfg.TitleModel != "mistral" {
		t.Errorf("model = %q title = %q", cfg.Model, cfg.TitleModel)
	}
	if cfg.InferenceTimeout != 10*time.Minute {
		t.Errorf("timeout = %s", cfg.InferenceTimeout)
	}
	if cfg.LoreEnabled {
		t.Error("expected lore disabled")
	}
	if cfg.Affinity.Activation != 0.9 {
		t.Errorf("activation = %f", cfg.Affinity.Activation)
	}
}

func TestLoadYAMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saga.yaml")
	os.WriteFile(path, []byte(`
port: 8200
model: llama3.1
inference_timeout: 2m
affinity:
  reinforce: 0.5
  decay: 0.1
  activation: 0.7
  candidate_increment: 0.3
  creation_threshold: 0.8
  candidate_min_len: 4
  max_score: 1.0
assembler:
  consensus_window: 5
  history_window: 4
  note_window: 2
  note_char_budget: 200
  long_input_threshold: 500
`), 0o644)
	t.Setenv("SAGA_CONFIG", path)
	t.Setenv("SAGA_PORT", "8300")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	// env wins over the file
	if cfg.Port != 8300 {
		t.Errorf("port = %d, want 8300", cfg.Port)
	}
	if cfg.Model != "llama3.1" {
		t.Errorf("model = %q", cfg.Model)
	}
	if cfg.InferenceTimeout != 2*time.Minute {
		t.Errorf("timeout = %s", cfg.InferenceTimeout)
	}
	if cfg.Affinity.CandidateMinLen != 4 || cfg.Affinity.Reinforce != 0.5 {
		t.Errorf("affinity = %+v", cfg.Affinity)
	}
	if cfg.Assembler.NoteCharBudget != 200 || cfg.Assembler.HistoryWindow != 4 {
		t.Errorf("assembler = %+v", cfg.Assembler)
	}
}

func TestLoadYAMLMissingFile(t *testing.T) {
	t.Setenv("SAGA_CONFIG", filepath.Join(t.TempDir(), "nope.yaml"))
	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Port = 0 }},
		{"empty data dir", func(c *Config) { c.DataDir = "" }},
		{"unknown provider", func(c *Config) { c.Provider = "openai" }},
		{"gemini without key", func(c *Config) { c.Provider = "gemini" }},
		{"overlap too large", func(c *Config) { c.ChunkOverlap = c.ChunkSize }},
		{"decay above reinforce", func(c *Config) { c.Affinity.Decay = 0.5 }},
		{"max score below threshold", func(c *Config) { c.Affinity.MaxScore = 0.5 }},
		{"zero history window", func(c *Config) { c.Assembler.HistoryWindow = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}

	if err := Default().validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}
