package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"auditrag/internal/domain"
)

const (
	AnswererOllama     = "ollama"
	AnswererExtractive = "extractive"

	StyleBullets = "bullets"
	StyleProse   = "prose"

	DefaultChunkOverlap = 150
)

// DocsConfig points at the PDF corpus.
type DocsConfig struct {
	Path string `yaml:"path"`
}

// ChunkerConfig configures how pages are split into chunks.
type ChunkerConfig struct {
	ChunkSize    int  `yaml:"chunk_size"`
	ChunkOverlap *int `yaml:"chunk_overlap,omitempty"`
}

// Overlap returns the configured overlap; 0 is a valid setting.
func (c ChunkerConfig) Overlap() int {
	if c.ChunkOverlap == nil {
		return DefaultChunkOverlap
	}
	return *c.ChunkOverlap
}

// EmbedderConfig holds configuration for the OpenAI-compatible embedder.
type EmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	BatchSize   int    `yaml:"batch_size"`
	Concurrency int    `yaml:"concurrency"`
}

type RetrievalConfig struct {
	TopK             int `yaml:"top_k"`
	SnippetChars     int `yaml:"snippet_chars"`
	BuildTimeoutSecs int `yaml:"build_timeout_secs"`
}

// AnswererConfig selects and configures the answering model.
type AnswererConfig struct {
	Type         string `yaml:"type"`
	BaseURL      string `yaml:"base_url"`
	APIKeyEnv    string `yaml:"api_key_env"`
	Model        string `yaml:"model"`
	TimeoutSecs  int    `yaml:"timeout_secs"`
	MaxSentences int    `yaml:"max_sentences"`
}

// PreferencesConfig holds the auditor's answer preferences.
type PreferencesConfig struct {
	AnswerStyle    string `yaml:"answer_style"`
	Language       string `yaml:"language"`
	RequireSources *bool  `yaml:"require_sources,omitempty"`
}

type LoggingConfig struct {
	Env   string `yaml:"env"`
	Level string `yaml:"level"`
}

// MetricsConfig enables the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Docs        DocsConfig        `yaml:"docs"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Answerer    AnswererConfig    `yaml:"answerer"`
	Preferences PreferencesConfig `yaml:"preferences"`
	Logging     LoggingConfig     `yaml:"logging"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, fmt.Errorf("read config %s: %v: %w", path, err, domain.ErrConfiguration)
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %v: %w", path, err, domain.ErrConfiguration)
	}
	applyConfigDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/audit/config.yaml.
// If neither exists, it writes defaults to ~/.config/audit/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate rejects settings no component can run with.
func (c *AppConfig) Validate() error {
	var errs []error
	if c.Docs.Path == "" {
		errs = append(errs, errors.New("docs.path is empty"))
	}
	if c.Chunker.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("chunker.chunk_size must be positive, got %d", c.Chunker.ChunkSize))
	}
	if overlap := c.Chunker.Overlap(); overlap < 0 || overlap >= c.Chunker.ChunkSize {
		errs = append(errs, fmt.Errorf("chunker.chunk_overlap must be in [0, chunk_size), got %d", overlap))
	}
	if c.Retrieval.TopK <= 0 {
		errs = append(errs, fmt.Errorf("retrieval.top_k must be positive, got %d", c.Retrieval.TopK))
	}
	if c.Retrieval.SnippetChars <= 0 {
		errs = append(errs, fmt.Errorf("retrieval.snippet_chars must be positive, got %d", c.Retrieval.SnippetChars))
	}
	switch c.Answerer.Type {
	case AnswererOllama, AnswererExtractive:
	default:
		errs = append(errs, fmt.Errorf("unknown answerer: %q", c.Answerer.Type))
	}
	switch c.Preferences.AnswerStyle {
	case StyleBullets, StyleProse:
	default:
		errs = append(errs, fmt.Errorf("unknown answer style: %q", c.Preferences.AnswerStyle))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", domain.ErrConfiguration, errors.Join(errs...))
	}
	return nil
}

// EmbedderTimeout returns the per-request embedding timeout.
func (c *AppConfig) EmbedderTimeout() time.Duration {
	return time.Duration(c.Embedder.TimeoutSecs) * time.Second
}

func (c *AppConfig) AnswererTimeout() time.Duration {
	return time.Duration(c.Answerer.TimeoutSecs) * time.Second
}

func (c *AppConfig) BuildTimeout() time.Duration {
	return time.Duration(c.Retrieval.BuildTimeoutSecs) * time.Second
}

// RequireSourcesOrDefault reports whether answers must end with a sources section.
func (p PreferencesConfig) RequireSourcesOrDefault() bool {
	return p.RequireSources == nil || *p.RequireSources
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "audit", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Docs.Path == "" {
		cfg.Docs.Path = "data/docs"
	}
	if cfg.Chunker.ChunkSize == 0 {
		cfg.Chunker.ChunkSize = 1000
	}
	if cfg.Chunker.ChunkOverlap == nil {
		// 15% of the chunk size, 150 for the default 1000
		overlap := max(cfg.Chunker.ChunkSize*DefaultChunkOverlap/1000, 0)
		cfg.Chunker.ChunkOverlap = &overlap
	}
	if cfg.Embedder.BaseURL == "" {
		cfg.Embedder.BaseURL = "http://localhost:11434/v1"
	}
	if cfg.Embedder.Model == "" {
		cfg.Embedder.Model = "nomic-embed-text"
	}
	if cfg.Embedder.TimeoutSecs == 0 {
		cfg.Embedder.TimeoutSecs = 30
	}
	if cfg.Embedder.BatchSize == 0 {
		cfg.Embedder.BatchSize = 32
	}
	if cfg.Embedder.Concurrency == 0 {
		cfg.Embedder.Concurrency = 4
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 3
	}
	if cfg.Retrieval.SnippetChars == 0 {
		cfg.Retrieval.SnippetChars = 240
	}
	if cfg.Retrieval.BuildTimeoutSecs == 0 {
		cfg.Retrieval.BuildTimeoutSecs = 300
	}
	if cfg.Answerer.Type == "" {
		cfg.Answerer.Type = AnswererOllama
	}
	if cfg.Answerer.BaseURL == "" {
		cfg.Answerer.BaseURL = cfg.Embedder.BaseURL
	}
	if cfg.Answerer.Model == "" {
		cfg.Answerer.Model = "qwen2.5:7b"
	}
	if cfg.Answerer.TimeoutSecs == 0 {
		cfg.Answerer.TimeoutSecs = 120
	}
	if cfg.Answerer.MaxSentences == 0 {
		cfg.Answerer.MaxSentences = 4
	}
	if cfg.Preferences.AnswerStyle == "" {
		cfg.Preferences.AnswerStyle = StyleBullets
	}
	if cfg.Preferences.Language == "" {
		cfg.Preferences.Language = "pt"
	}
	if cfg.Preferences.RequireSources == nil {
		t := true
		cfg.Preferences.RequireSources = &t
	}
	if cfg.Logging.Env == "" {
		cfg.Logging.Env = "dev"
	}
}
