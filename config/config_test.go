package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GO_ENVIRONMENT", "test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Policy.BatchSize != 100 || cfg.Data.BatchSize != 200 {
		t.Errorf("Unexpected batch sizes: policy=%d data=%d", cfg.Policy.BatchSize, cfg.Data.BatchSize)
	}
	if cfg.Policy.TopK != 6 || cfg.Data.TopK != 4 {
		t.Errorf("Unexpected top-k: policy=%d data=%d", cfg.Policy.TopK, cfg.Data.TopK)
	}
	if cfg.LargeFileThreshold != 50_000_000 {
		t.Errorf("Unexpected large file threshold: %d", cfg.LargeFileThreshold)
	}
	if cfg.EmbeddingDimension != 384 {
		t.Errorf("Unexpected embedding dimension: %d", cfg.EmbeddingDimension)
	}
	if cfg.LLMMaxAttempts != 1 {
		t.Errorf("Expected a single attempt by default, got %d", cfg.LLMMaxAttempts)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policybot.yaml")
	content := `
vector_backend: pgvector
policy:
  source_dir: /srv/circulars
  top_k: 8
data:
  large_files: ["annual-report.pdf"]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("POLICYBOT_CONFIG", path)
	t.Setenv("POLICY_DOCUMENTS_DIR", "/env/circulars")
	t.Setenv("LLM_API_KEY", "llm-key")
	t.Setenv("LLM_TIMEOUT", "15")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.VectorBackend != BackendPGVector {
		t.Errorf("Expected backend from file, got %s", cfg.VectorBackend)
	}
	if cfg.Policy.SourceDir != "/env/circulars" {
		t.Errorf("Expected env to win over file, got %s", cfg.Policy.SourceDir)
	}
	if cfg.Policy.TopK != 8 {
		t.Errorf("Expected top_k from file, got %d", cfg.Policy.TopK)
	}
	if cfg.Policy.BatchSize != 100 {
		t.Errorf("Expected default batch size to survive overlay, got %d", cfg.Policy.BatchSize)
	}
	if len(cfg.Data.LargeFiles) != 1 || cfg.Data.LargeFiles[0] != "annual-report.pdf" {
		t.Errorf("Unexpected large files: %v", cfg.Data.LargeFiles)
	}
	if cfg.WebLLMAPIKey != "llm-key" {
		t.Errorf("Expected web key to fall back to LLM key, got %q", cfg.WebLLMAPIKey)
	}
	if cfg.LLMTimeout != 15*time.Second {
		t.Errorf("Unexpected LLM timeout: %v", cfg.LLMTimeout)
	}
}

func TestValidate(t *testing.T) {
	cfg := defaults()
	err := cfg.Validate()
	if err == nil {
		t.Fatal("Expected missing credentials error")
	}
	for _, key := range []string{"LLM_API_KEY", "GOOGLE_CUSTOM_SEARCH_API_KEY", "GOOGLE_CUSTOM_SEARCH_ENGINE_ID"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("Expected %s in error, got %v", key, err)
		}
	}

	cfg.LLMAPIKey = "k"
	cfg.GoogleCustomSearchAPIKey = "g"
	cfg.GoogleCustomSearchEngineID = "cx"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Did not expect an error but got: %v", err)
	}

	cfg.VectorBackend = BackendPGVector
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Errorf("Expected DATABASE_URL to be required for pgvector, got %v", err)
	}

	cfg.VectorBackend = "milvus"
	if err := cfg.Validate(); err == nil {
		t.Errorf("Expected unknown backend error")
	}
}

func TestValidateIndex(t *testing.T) {
	cfg := defaults()
	if err := cfg.ValidateIndex(); err != nil {
		t.Errorf("Indexing should not need LLM or search credentials, got %v", err)
	}
	cfg.EmbeddingAPIURL = ""
	if err := cfg.ValidateIndex(); err == nil || !strings.Contains(err.Error(), "EMBEDDING_API_URL") {
		t.Errorf("Expected EMBEDDING_API_URL to be required, got %v", err)
	}
}
