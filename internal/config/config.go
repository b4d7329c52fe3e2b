package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Intake    IntakeConfig    `mapstructure:"intake"`
	Stores    StoresConfig    `mapstructure:"stores"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Rerank    RerankConfig    `mapstructure:"rerank"`
	Vector    VectorConfig    `mapstructure:"vector"`
	Search    SearchConfig    `mapstructure:"search"`
	Log       LogConfig       `mapstructure:"log"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
}

// IntakeConfig locates the document directories for a chunking pass.
type IntakeConfig struct {
	Dir        string `mapstructure:"dir"`
	ArchiveDir string `mapstructure:"archive_dir"`
	Workers    int    `mapstructure:"workers"`
}

// StoresConfig locates the persisted registry and paragraph/chunk stores.
type StoresConfig struct {
	Registry   string `mapstructure:"registry"`
	Paragraphs string `mapstructure:"paragraphs"`
	Chunks     string `mapstructure:"chunks"`
}

// LLMConfig selects the segmentation/embedding backend.
type LLMConfig struct {
	Provider     string  `mapstructure:"provider"`
	Model        string  `mapstructure:"model"`
	APIKey       string  `mapstructure:"api_key"`
	BaseURL      string  `mapstructure:"base_url"`
	DelaySeconds float64 `mapstructure:"delay_seconds"` // throttle after each segmentation call
}

// EmbeddingConfig pins the embedding model. Dimension must match the model
// on both the indexing and the query side.
type EmbeddingConfig struct {
	Model     string `mapstructure:"model"`
	Dimension int    `mapstructure:"dimension"`
	BatchSize int    `mapstructure:"batch_size"`
}

// RerankConfig points at the cross-encoder scoring endpoint.
type RerankConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
}

// VectorConfig points at the Qdrant collection.
type VectorConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Collection string `mapstructure:"collection"`
}

// SearchConfig holds the default query bounds.
type SearchConfig struct {
	TopK      int     `mapstructure:"top_k"`
	FinalK    int     `mapstructure:"final_k"`
	Threshold float64 `mapstructure:"threshold"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TracingConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	SampleRate   float64 `mapstructure:"sample_rate"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Intake: IntakeConfig{
			Dir:        "data/intake",
			ArchiveDir: "data/archive",
			Workers:    4,
		},
		Stores: StoresConfig{
			Registry:   "data/processed_documents.json",
			Paragraphs: "data/paragraphs.json",
			Chunks:     "data/chunks.json",
		},
		LLM: LLMConfig{
			Provider:     "ollama",
			DelaySeconds: 1.0,
		},
		Embedding: EmbeddingConfig{
			Dimension: 1024,
			BatchSize: 32,
		},
		Vector: VectorConfig{
			Host:       "localhost",
			Port:       6334,
			Collection: "documents_chunks",
		},
		Search: SearchConfig{
			TopK:      20,
			FinalK:    3,
			Threshold: -7.0,
		},
	}
}

// Validate checks configuration for issues and returns warnings.
func (c *Config) Validate() []string {
	var warnings []string

	if c.Intake.Dir != "" && c.Intake.Dir == c.Intake.ArchiveDir {
		warnings = append(warnings, "intake dir and archive dir must be disjoint")
	}
	if c.Embedding.Dimension <= 0 {
		warnings = append(warnings, fmt.Sprintf("embedding dimension %d is not positive", c.Embedding.Dimension))
	}
	if c.Intake.Workers < 1 {
		warnings = append(warnings, fmt.Sprintf("intake workers %d is below 1, pass will run sequentially", c.Intake.Workers))
	}
	if c.Search.FinalK > c.Search.TopK {
		warnings = append(warnings, fmt.Sprintf("search final_k %d exceeds top_k %d", c.Search.FinalK, c.Search.TopK))
	}

	return warnings
}

// Load reads configuration from file and environment. Environment variables
// use the CHISEL_ prefix (e.g. CHISEL_VECTOR_HOST).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("CHISEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if warnings := cfg.Validate(); len(warnings) > 0 {
		for _, warning := range warnings {
			fmt.Fprintf(os.Stderr, "Warning: %s\n", warning)
		}
	}

	return cfg, nil
}
