package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	BackendSQLite   = "sqlite"
	BackendPGVector = "pgvector"
)

// CorpusConfig describes one indexed document collection.
type CorpusConfig struct {
	SourceDir  string   `yaml:"source_dir"`
	StorePath  string   `yaml:"store_path"`
	BatchSize  int      `yaml:"batch_size"`
	TopK       int      `yaml:"top_k"`
	LargeFiles []string `yaml:"large_files"`
}

type Config struct {
	Environment  string
	HTTPPort     string
	Domains      []string
	CertCacheDir string
	LogDir       string
	LogLevel     string
	WriteTimeout time.Duration

	VectorBackend string
	DatabaseURL   string
	Policy        CorpusConfig
	Data          CorpusConfig

	LargeFileThreshold int64

	EmbeddingAPIURL    string
	EmbeddingAPIKey    string
	EmbeddingModel     string
	EmbeddingDimension int
	EmbeddingTimeout   time.Duration

	LLMAPIURL      string
	LLMAPIKey      string
	LLMModel       string
	WebLLMAPIKey   string
	LLMTimeout     time.Duration
	LLMMaxAttempts int

	GoogleCustomSearchAPIKey   string
	GoogleCustomSearchEngineID string
	GoogleSearchBaseURL        string
	SearchTimeout              time.Duration
	SearchRequestsPerSecond    float64
	WebFetchPageContent        bool
}

// fileConfig is the optional YAML overlay named by POLICYBOT_CONFIG.
type fileConfig struct {
	VectorBackend      string       `yaml:"vector_backend"`
	Policy             CorpusConfig `yaml:"policy"`
	Data               CorpusConfig `yaml:"data"`
	LargeFileThreshold int64        `yaml:"large_file_threshold"`
	EmbeddingModel     string       `yaml:"embedding_model"`
	EmbeddingDimension int          `yaml:"embedding_dimension"`
	LLMModel           string       `yaml:"llm_model"`
}

var isTest bool

func init() {
	isTest = os.Getenv("GO_ENVIRONMENT") == "test"
	if !isTest {
		err := godotenv.Load()
		if err != nil {
			log.Println("Warning: Error loading .env file:", err)
		}
	}
}

func Load() (Config, error) {
	cfg := defaults()

	if path := getEnv("POLICYBOT_CONFIG", ""); path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	cfg.Environment = getEnv("ENVIRONMENT", cfg.Environment)
	cfg.HTTPPort = getEnv("HTTP_PORT", cfg.HTTPPort)
	if domains := getEnv("DOMAIN", ""); domains != "" {
		cfg.Domains = strings.Split(domains, ",")
	}
	cfg.CertCacheDir = getEnv("CERT_CACHE_DIR", cfg.CertCacheDir)
	cfg.LogDir = getEnv("LOG_DIR", cfg.LogDir)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.WriteTimeout = time.Duration(getEnvAsInt("WRITE_TIMEOUT", int(cfg.WriteTimeout/time.Second))) * time.Second

	cfg.VectorBackend = getEnv("VECTOR_BACKEND", cfg.VectorBackend)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.Policy.SourceDir = getEnv("POLICY_DOCUMENTS_DIR", cfg.Policy.SourceDir)
	cfg.Policy.StorePath = getEnv("POLICY_STORE_PATH", cfg.Policy.StorePath)
	cfg.Data.SourceDir = getEnv("DATA_DOCUMENTS_DIR", cfg.Data.SourceDir)
	cfg.Data.StorePath = getEnv("DATA_STORE_PATH", cfg.Data.StorePath)
	if large := getEnv("DATA_LARGE_FILES", ""); large != "" {
		cfg.Data.LargeFiles = strings.Split(large, ",")
	}
	cfg.LargeFileThreshold = int64(getEnvAsInt("LARGE_FILE_THRESHOLD", int(cfg.LargeFileThreshold)))

	cfg.EmbeddingAPIURL = getEnv("EMBEDDING_API_URL", cfg.EmbeddingAPIURL)
	cfg.EmbeddingAPIKey = getEnv("EMBEDDING_API_KEY", cfg.EmbeddingAPIKey)
	cfg.EmbeddingModel = getEnv("EMBEDDING_MODEL", cfg.EmbeddingModel)
	cfg.EmbeddingDimension = getEnvAsInt("EMBEDDING_DIMENSION", cfg.EmbeddingDimension)
	cfg.EmbeddingTimeout = time.Duration(getEnvAsInt("EMBEDDING_TIMEOUT", int(cfg.EmbeddingTimeout/time.Second))) * time.Second

	cfg.LLMAPIURL = getEnv("LLM_API_URL", cfg.LLMAPIURL)
	cfg.LLMAPIKey = getEnv("LLM_API_KEY", cfg.LLMAPIKey)
	cfg.LLMModel = getEnv("LLM_MODEL", cfg.LLMModel)
	cfg.WebLLMAPIKey = getEnv("WEB_LLM_API_KEY", cfg.LLMAPIKey)
	cfg.LLMTimeout = time.Duration(getEnvAsInt("LLM_TIMEOUT", int(cfg.LLMTimeout/time.Second))) * time.Second
	cfg.LLMMaxAttempts = getEnvAsInt("LLM_MAX_ATTEMPTS", cfg.LLMMaxAttempts)

	cfg.GoogleCustomSearchAPIKey = getEnv("GOOGLE_CUSTOM_SEARCH_API_KEY", cfg.GoogleCustomSearchAPIKey)
	cfg.GoogleCustomSearchEngineID = getEnv("GOOGLE_CUSTOM_SEARCH_ENGINE_ID", cfg.GoogleCustomSearchEngineID)
	cfg.GoogleSearchBaseURL = getEnv("GOOGLE_SEARCH_BASE_URL", cfg.GoogleSearchBaseURL)
	cfg.SearchTimeout = time.Duration(getEnvAsInt("SEARCH_TIMEOUT", int(cfg.SearchTimeout/time.Second))) * time.Second
	cfg.SearchRequestsPerSecond = getEnvAsFloat("SEARCH_REQUESTS_PER_SECOND", cfg.SearchRequestsPerSecond)
	cfg.WebFetchPageContent = getEnvAsBool("WEB_FETCH_PAGE_CONTENT", cfg.WebFetchPageContent)

	return cfg, nil
}

func defaults() Config {
	return Config{
		Environment:  "development",
		HTTPPort:     "8000",
		Domains:      []string{"example.com"},
		CertCacheDir: "certs",
		LogDir:       "logs",
		LogLevel:     "info",
		WriteTimeout: 180 * time.Second,

		VectorBackend: BackendSQLite,
		Policy: CorpusConfig{
			SourceDir: "D1. Master Circulars",
			StorePath: "policy_index",
			BatchSize: 100,
			TopK:      6,
		},
		Data: CorpusConfig{
			SourceDir:  "data",
			StorePath:  "data_index",
			BatchSize:  200,
			TopK:       4,
			LargeFiles: []string{"84530aasb-gnab2025-b.pdf"},
		},
		LargeFileThreshold: 50_000_000,

		EmbeddingAPIURL:    "http://localhost:8080/v1/embeddings",
		EmbeddingModel:     "sentence-transformers/all-MiniLM-L12-v2",
		EmbeddingDimension: 384,
		EmbeddingTimeout:   60 * time.Second,

		LLMAPIURL:      "https://api.groq.com/openai/v1/chat/completions",
		LLMModel:       "llama3-8b-8192",
		LLMTimeout:     120 * time.Second,
		LLMMaxAttempts: 1,

		GoogleSearchBaseURL:     "https://www.googleapis.com/customsearch/v1",
		SearchTimeout:           30 * time.Second,
		SearchRequestsPerSecond: 0,
	}
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if fc.VectorBackend != "" {
		cfg.VectorBackend = fc.VectorBackend
	}
	mergeCorpus(&cfg.Policy, fc.Policy)
	mergeCorpus(&cfg.Data, fc.Data)
	if fc.LargeFileThreshold > 0 {
		cfg.LargeFileThreshold = fc.LargeFileThreshold
	}
	if fc.EmbeddingModel != "" {
		cfg.EmbeddingModel = fc.EmbeddingModel
	}
	if fc.EmbeddingDimension > 0 {
		cfg.EmbeddingDimension = fc.EmbeddingDimension
	}
	if fc.LLMModel != "" {
		cfg.LLMModel = fc.LLMModel
	}
	return nil
}

func mergeCorpus(dst *CorpusConfig, src CorpusConfig) {
	if src.SourceDir != "" {
		dst.SourceDir = src.SourceDir
	}
	if src.StorePath != "" {
		dst.StorePath = src.StorePath
	}
	if src.BatchSize > 0 {
		dst.BatchSize = src.BatchSize
	}
	if src.TopK > 0 {
		dst.TopK = src.TopK
	}
	if len(src.LargeFiles) > 0 {
		dst.LargeFiles = src.LargeFiles
	}
}

// Validate reports every missing setting the server needs before it can take
// traffic.
func (c Config) Validate() error {
	return c.validate(true)
}

// ValidateIndex checks only what building or loading the indexes needs.
func (c Config) ValidateIndex() error {
	return c.validate(false)
}

func (c Config) validate(serving bool) error {
	var missing []string
	if serving && c.LLMAPIKey == "" {
		missing = append(missing, "LLM_API_KEY")
	}
	if c.EmbeddingAPIURL == "" {
		missing = append(missing, "EMBEDDING_API_URL")
	}
	if serving && c.GoogleCustomSearchAPIKey == "" {
		missing = append(missing, "GOOGLE_CUSTOM_SEARCH_API_KEY")
	}
	if serving && c.GoogleCustomSearchEngineID == "" {
		missing = append(missing, "GOOGLE_CUSTOM_SEARCH_ENGINE_ID")
	}
	switch c.VectorBackend {
	case BackendSQLite:
	case BackendPGVector:
		if c.DatabaseURL == "" {
			missing = append(missing, "DATABASE_URL")
		}
	default:
		return fmt.Errorf("unknown vector backend %q", c.VectorBackend)
	}
	if c.EmbeddingDimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive, got %d", c.EmbeddingDimension)
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}
