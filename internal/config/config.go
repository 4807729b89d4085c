package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the main configuration structure for embedeval.
type Config struct {
	Version       int                 `yaml:"version"`
	Logging       LoggingConfig       `yaml:"logging"`
	Paths         PathsConfig         `yaml:"paths"`
	Chunking      ChunkingConfig      `yaml:"chunking"`
	Backends      []BackendConfig     `yaml:"backends"`
	Index         IndexConfig         `yaml:"index"`
	GroundTruth   GroundTruthConfig   `yaml:"groundtruth"`
	Eval          EvalConfig          `yaml:"eval"`
	Artifacts     ArtifactConfig      `yaml:"artifacts"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// PathsConfig holds the input and output locations of every stage.
type PathsConfig struct {
	Document    string `yaml:"document"`
	Chunks      string `yaml:"chunks"`
	GroundTruth string `yaml:"ground_truth"`
	IndexDir    string `yaml:"index_dir"`
	ResultsDir  string `yaml:"results_dir"`
	Report      string `yaml:"report"`
}

// ChunkingConfig selects and tunes the chunker.
type ChunkingConfig struct {
	Mode         string       `yaml:"mode"` // recursive | structured
	ChunkSize    int          `yaml:"chunk_size"`
	ChunkOverlap int          `yaml:"chunk_overlap"`
	TOCPath      string       `yaml:"toc_path"`
	StartMarker  MarkerConfig `yaml:"start_marker"`
	IDPrefix     string       `yaml:"id_prefix"`
}

// MarkerConfig identifies the paragraph where structured chunking starts.
type MarkerConfig struct {
	Prefix   string `yaml:"prefix"`
	Contains string `yaml:"contains"`
}

// IndexConfig selects the vector store.
type IndexConfig struct {
	Type string `yaml:"type"` // sqlite | postgres | memory
	DSN  string `yaml:"dsn"`
}

// GroundTruthConfig configures the labelling LLM.
type GroundTruthConfig struct {
	Provider      string        `yaml:"provider"` // openai | anthropic
	Model         string        `yaml:"model"`
	APIKey        string        `yaml:"api_key"`
	BaseURL       string        `yaml:"base_url"`
	Temperature   float64       `yaml:"temperature"`
	MaxTokens     int           `yaml:"max_tokens"`
	QuestionsPath string        `yaml:"questions_path"`
	Format        string        `yaml:"format"` // jsonl | csv
	Timeout       time.Duration `yaml:"timeout"`
	MaxAttempts   int           `yaml:"max_attempts"`
}

// EvalConfig tunes the evaluator.
type EvalConfig struct {
	TopK        int `yaml:"top_k"`
	Concurrency int `yaml:"concurrency"`
}

// ArtifactConfig configures where run outputs are published.
type ArtifactConfig struct {
	// Backend specifies storage backend: "local", "s3", or "minio".
	Backend string `yaml:"backend"`

	// LocalPath is the directory for local storage.
	LocalPath string `yaml:"local_path"`

	// S3 settings, also used for MinIO.
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	Prefix          string `yaml:"prefix"`
	UsePathStyle    bool   `yaml:"use_path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// DefaultConfigFile is used when neither a flag nor EMBEDEVAL_CONFIG names a file.
const DefaultConfigFile = "embedeval.yaml"

// ConfigEnv names the environment variable holding the config path.
const ConfigEnv = "EMBEDEVAL_CONFIG"

// ValidationError collects every problem found in a configuration.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Issues) == 0 {
		return "invalid config"
	}
	return "invalid config:\n  - " + strings.Join(e.Issues, "\n  - ")
}

// LoadDotEnv loads environment variables from .env files. Missing files are ignored
// and variables already set in the environment win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

// Load reads, merges, defaults and validates the configuration at path.
func Load(path string) (*Config, error) {
	raw, err := LoadRaw(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := decodeRawConfig(raw)
	if err != nil {
		return nil, err
	}
	if cfg.Version != 0 {
		if err := ValidateVersion(cfg.Version); err != nil {
			return nil, err
		}
	}
	applyDefaults(cfg)
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Resolve picks the config file: explicit flag, then EMBEDEVAL_CONFIG, then the
// default file. A missing default file yields the built-in defaults; a missing
// explicit file is an error.
func Resolve(flagPath string) (*Config, string, error) {
	path := strings.TrimSpace(flagPath)
	explicit := path != ""
	if !explicit {
		if env := strings.TrimSpace(os.Getenv(ConfigEnv)); env != "" {
			path = env
			explicit = true
		}
	}
	if !explicit {
		path = DefaultConfigFile
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return Default(), "", nil
		}
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = CurrentVersion
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "auto"
	}

	if cfg.Paths.Document == "" {
		cfg.Paths.Document = "data/ACME_Enterprise_Platform.docx"
	}
	if cfg.Paths.Chunks == "" {
		cfg.Paths.Chunks = "data/chunks.json"
	}
	if cfg.Paths.GroundTruth == "" {
		cfg.Paths.GroundTruth = "data/ground_truth.jsonl"
	}
	if cfg.Paths.IndexDir == "" {
		cfg.Paths.IndexDir = "embeddings"
	}
	if cfg.Paths.ResultsDir == "" {
		cfg.Paths.ResultsDir = "."
	}

	if cfg.Chunking.Mode == "" {
		cfg.Chunking.Mode = "recursive"
	}
	if cfg.Chunking.ChunkSize == 0 {
		cfg.Chunking.ChunkSize = 500
		if cfg.Chunking.ChunkOverlap == 0 {
			cfg.Chunking.ChunkOverlap = 50
		}
	}
	if cfg.Chunking.StartMarker.Prefix == "" && cfg.Chunking.StartMarker.Contains == "" {
		cfg.Chunking.StartMarker = MarkerConfig{Prefix: "1.", Contains: "Executive Summary"}
	}
	if cfg.Chunking.IDPrefix == "" {
		cfg.Chunking.IDPrefix = "acme_"
	}

	if len(cfg.Backends) == 0 {
		cfg.Backends = DefaultBackends()
	}
	for i := range cfg.Backends {
		applyBackendDefaults(&cfg.Backends[i])
	}

	if cfg.Index.Type == "" {
		cfg.Index.Type = "sqlite"
	}

	gt := &cfg.GroundTruth
	if gt.Provider == "" {
		gt.Provider = "openai"
	}
	if gt.Model == "" {
		switch gt.Provider {
		case "anthropic":
			gt.Model = "claude-sonnet-4-20250514"
		default:
			gt.Model = "gpt-4o"
		}
	}
	if gt.APIKey == "" {
		switch gt.Provider {
		case "anthropic":
			gt.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		default:
			gt.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}
	if gt.MaxTokens == 0 {
		gt.MaxTokens = 8192
	}
	if gt.Format == "" {
		gt.Format = "jsonl"
	}
	if gt.Timeout == 0 {
		gt.Timeout = 5 * time.Minute
	}
	if gt.MaxAttempts == 0 {
		gt.MaxAttempts = 3
	}

	if cfg.Eval.TopK == 0 {
		cfg.Eval.TopK = 5
	}
	if cfg.Eval.Concurrency == 0 {
		cfg.Eval.Concurrency = 4
	}

	if cfg.Artifacts.Backend == "" {
		cfg.Artifacts.Backend = "local"
	}
	if cfg.Artifacts.LocalPath == "" {
		cfg.Artifacts.LocalPath = "artifacts"
	}
	if cfg.Artifacts.Prefix == "" {
		cfg.Artifacts.Prefix = "embedeval"
	}

	if cfg.Observability.Tracing.ServiceName == "" {
		cfg.Observability.Tracing.ServiceName = "embedeval"
	}
}

func validate(cfg *Config) error {
	var issues []string

	switch strings.ToLower(cfg.Logging.Format) {
	case "auto", "json", "text":
	default:
		issues = append(issues, fmt.Sprintf("logging.format must be auto, json or text (got %q)", cfg.Logging.Format))
	}

	switch cfg.Chunking.Mode {
	case "recursive", "structured":
	default:
		issues = append(issues, fmt.Sprintf("chunking.mode must be recursive or structured (got %q)", cfg.Chunking.Mode))
	}
	if cfg.Chunking.ChunkSize <= 0 {
		issues = append(issues, "chunking.chunk_size must be positive")
	}
	if cfg.Chunking.ChunkOverlap < 0 || cfg.Chunking.ChunkOverlap >= cfg.Chunking.ChunkSize {
		issues = append(issues, "chunking.chunk_overlap must be >= 0 and less than chunk_size")
	}

	issues = append(issues, backendIssues(cfg.Backends)...)

	switch cfg.Index.Type {
	case "sqlite", "memory":
	case "postgres":
		if strings.TrimSpace(cfg.Index.DSN) == "" {
			issues = append(issues, "index.dsn is required for postgres")
		}
	default:
		issues = append(issues, fmt.Sprintf("index.type must be sqlite, postgres or memory (got %q)", cfg.Index.Type))
	}

	switch cfg.GroundTruth.Provider {
	case "openai", "anthropic":
	default:
		issues = append(issues, fmt.Sprintf("groundtruth.provider must be openai or anthropic (got %q)", cfg.GroundTruth.Provider))
	}
	switch cfg.GroundTruth.Format {
	case "jsonl", "csv":
	default:
		issues = append(issues, fmt.Sprintf("groundtruth.format must be jsonl or csv (got %q)", cfg.GroundTruth.Format))
	}
	if cfg.GroundTruth.Temperature < 0 || cfg.GroundTruth.Temperature > 2 {
		issues = append(issues, "groundtruth.temperature must be between 0 and 2")
	}

	if cfg.Eval.TopK < 0 {
		issues = append(issues, "eval.top_k must be positive")
	}
	if cfg.Eval.Concurrency < 0 {
		issues = append(issues, "eval.concurrency must be positive")
	}

	switch cfg.Artifacts.Backend {
	case "local":
	case "s3", "minio":
		if strings.TrimSpace(cfg.Artifacts.Bucket) == "" {
			issues = append(issues, "artifacts.bucket is required for s3")
		}
		if cfg.Artifacts.Backend == "minio" && strings.TrimSpace(cfg.Artifacts.Endpoint) == "" {
			issues = append(issues, "artifacts.endpoint is required for minio")
		}
	default:
		issues = append(issues, fmt.Sprintf("artifacts.backend must be local, s3 or minio (got %q)", cfg.Artifacts.Backend))
	}

	tracing := cfg.Observability.Tracing
	if tracing.Enabled && strings.TrimSpace(tracing.Endpoint) == "" {
		issues = append(issues, "observability.tracing.endpoint is required when tracing is enabled")
	}
	if tracing.SamplingRate < 0 || tracing.SamplingRate > 1 {
		issues = append(issues, "observability.tracing.sampling_rate must be between 0 and 1")
	}

	if len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	return nil
}
