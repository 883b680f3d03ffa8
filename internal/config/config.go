package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrMissingKnowledgeBase marks a run without a knowledge-base identifier.
var ErrMissingKnowledgeBase = errors.New("knowledge base id is not configured")

type Config struct {
	KnowledgeBase struct {
		ID string `yaml:"id"`
	} `yaml:"knowledge_base"`
	Retrieval struct {
		Backend        string        `yaml:"backend"` // "sqlite" or "http"
		Endpoint       string        `yaml:"endpoint"`
		APIKey         string        `yaml:"api_key"`
		TopK           int           `yaml:"top_k"`
		Timeout        time.Duration `yaml:"timeout"`
		Attempts       int           `yaml:"attempts"`
		AlignTerms     bool          `yaml:"align_terms"`
		AllowedDomains []string      `yaml:"allowed_domains"`
		GroupCap       int           `yaml:"group_cap"`
	} `yaml:"retrieval"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       struct {
		Provider string        `yaml:"provider"`
		Model    string        `yaml:"model"`
		APIKey   string        `yaml:"api_key"`
		BaseURL  string        `yaml:"base_url"`
		Timeout  time.Duration `yaml:"timeout"`
		Attempts int           `yaml:"attempts"`
	} `yaml:"llm"`
	Compose struct {
		Enabled  bool `yaml:"enabled"`
		MaxItems int  `yaml:"max_items"`
	} `yaml:"compose"`
	Query struct {
		Strategy      string   `yaml:"strategy"` // "variants", "single" or "topic"
		Vocabulary    []string `yaml:"vocabulary"`
		DefaultTopics []string `yaml:"default_topics"`
	} `yaml:"query"`
	Highlight struct {
		Keywords []string `yaml:"keywords"`
	} `yaml:"highlight"`
	Sink struct {
		Kind    string `yaml:"kind"` // "sqlite", "postgres" or "nats"
		DSN     string `yaml:"dsn"`
		Subject string `yaml:"subject"`
	} `yaml:"sink"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

// EmbeddingConfig selects the passage embedder. Zero BatchSize and
// BatchDelay keep the provider defaults.
type EmbeddingConfig struct {
	Provider   string        `yaml:"provider"` // "gemini", "openai" or "ollama"
	Model      string        `yaml:"model"`
	APIKey     string        `yaml:"api_key"`
	BaseURL    string        `yaml:"base_url"`
	Dimension  int           `yaml:"dimension"`
	BatchSize  int           `yaml:"batch_size"`
	BatchDelay time.Duration `yaml:"batch_delay"`
	Timeout    time.Duration `yaml:"timeout"`
	Attempts   int           `yaml:"attempts"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	var cfg Config
	cfg.Retrieval.Backend = "sqlite"
	cfg.Retrieval.TopK = 8
	cfg.Retrieval.Timeout = 30 * time.Second
	cfg.Retrieval.Attempts = 3
	cfg.Retrieval.AlignTerms = true
	cfg.Retrieval.GroupCap = 2
	cfg.Embedding.Provider = "gemini"
	cfg.Embedding.Model = "text-embedding-004"
	cfg.Embedding.Timeout = 90 * time.Second
	cfg.Embedding.Attempts = 3
	cfg.LLM.Provider = "gemini"
	cfg.LLM.Model = "gemini-2.5-flash-lite"
	cfg.LLM.Timeout = 45 * time.Second
	cfg.LLM.Attempts = 3
	cfg.Compose.Enabled = true
	cfg.Compose.MaxItems = 6
	cfg.Query.Strategy = "variants"
	cfg.Sink.Kind = "sqlite"
	cfg.Sink.Subject = "briefdoc.documents.draft"
	cfg.Logging.Level = "info"
	cfg.Logging.Format = "console"
	return &cfg
}

// LoadConfig reads path on top of Default and applies BRIEFDOC_* overrides.
// A missing file is not an error: defaults plus environment still apply.
func LoadConfig(path string) (*Config, error) {
	// 1. Load .env if exists
	_ = godotenv.Load()

	cfg := Default()

	// 2. Load YAML config
	file, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(file, cfg); err != nil {
			return nil, err
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}

	// 3. Override with Environment Variables if present
	applyEnv(cfg)
	cfg.normalize()

	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("BRIEFDOC_KB_ID"); v != "" {
		cfg.KnowledgeBase.ID = v
	}
	if v := os.Getenv("BRIEFDOC_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
		if cfg.Embedding.APIKey == "" {
			cfg.Embedding.APIKey = v
		}
	}
	if v := os.Getenv("BRIEFDOC_LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := os.Getenv("BRIEFDOC_EMBEDDING_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}
	if v := os.Getenv("BRIEFDOC_RETRIEVAL_ENDPOINT"); v != "" {
		cfg.Retrieval.Endpoint = v
	}
	if v := os.Getenv("BRIEFDOC_SINK_DSN"); v != "" {
		cfg.Sink.DSN = v
	}
	if v := os.Getenv("BRIEFDOC_COMPOSE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Compose.Enabled = b
		}
	}
	if v := os.Getenv("BRIEFDOC_ALLOWED_DOMAINS"); v != "" {
		cfg.Retrieval.AllowedDomains = strings.Split(v, ",")
	}
}

func (c *Config) normalize() {
	c.KnowledgeBase.ID = strings.TrimSpace(c.KnowledgeBase.ID)
	c.Retrieval.Backend = strings.ToLower(strings.TrimSpace(c.Retrieval.Backend))
	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	c.Embedding.Provider = strings.ToLower(strings.TrimSpace(c.Embedding.Provider))
	c.Sink.Kind = strings.ToLower(strings.TrimSpace(c.Sink.Kind))
	domains := c.Retrieval.AllowedDomains[:0]
	for _, d := range c.Retrieval.AllowedDomains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			domains = append(domains, d)
		}
	}
	c.Retrieval.AllowedDomains = domains
	if c.Retrieval.TopK <= 0 {
		c.Retrieval.TopK = 8
	}
	if c.Retrieval.GroupCap <= 0 {
		c.Retrieval.GroupCap = 2
	}
	if c.Compose.MaxItems <= 0 {
		c.Compose.MaxItems = 6
	}
}

// Validate reports configuration that makes document generation impossible.
func (c *Config) Validate() error {
	if c.KnowledgeBase.ID == "" {
		return ErrMissingKnowledgeBase
	}
	return nil
}

// MissingKeys lists the configuration keys an operator still has to set.
func (c *Config) MissingKeys() []string {
	var keys []string
	if c.KnowledgeBase.ID == "" {
		keys = append(keys, "knowledge_base.id (or BRIEFDOC_KB_ID)")
	}
	if c.Retrieval.Backend == "http" && c.Retrieval.Endpoint == "" {
		keys = append(keys, "retrieval.endpoint (or BRIEFDOC_RETRIEVAL_ENDPOINT)")
	}
	return keys
}
