package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auditrag/internal/domain"
)

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "data/docs", cfg.Docs.Path)
	assert.Equal(t, 1000, cfg.Chunker.ChunkSize)
	assert.Equal(t, 150, cfg.Chunker.Overlap())
	assert.Equal(t, "nomic-embed-text", cfg.Embedder.Model)
	assert.Equal(t, 3, cfg.Retrieval.TopK)
	assert.Equal(t, 240, cfg.Retrieval.SnippetChars)
	assert.Equal(t, AnswererOllama, cfg.Answerer.Type)
	assert.Equal(t, "qwen2.5:7b", cfg.Answerer.Model)
	assert.Equal(t, 30*time.Second, cfg.EmbedderTimeout())
	assert.Equal(t, 2*time.Minute, cfg.AnswererTimeout())
	assert.Equal(t, 5*time.Minute, cfg.BuildTimeout())
	assert.True(t, cfg.Preferences.RequireSourcesOrDefault())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_PartialFileKeepsValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
docs:
  path: /srv/audit/pdfs
chunker:
  chunk_size: 500
answerer:
  type: extractive
preferences:
  answer_style: prose
  require_sources: false
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/audit/pdfs", cfg.Docs.Path)
	assert.Equal(t, 500, cfg.Chunker.ChunkSize)
	assert.Equal(t, 75, cfg.Chunker.Overlap())
	assert.Equal(t, AnswererExtractive, cfg.Answerer.Type)
	assert.Equal(t, StyleProse, cfg.Preferences.AnswerStyle)
	assert.False(t, cfg.Preferences.RequireSourcesOrDefault())
	assert.Equal(t, cfg.Embedder.BaseURL, cfg.Answerer.BaseURL)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_ZeroOverlapIsKept(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chunker:\n  chunk_size: 100\n  chunk_overlap: 0\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.Chunker.ChunkSize)
	assert.Equal(t, 0, cfg.Chunker.Overlap())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_SmallChunkSizeGetsProportionalOverlap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chunker:\n  chunk_size: 100\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 15, cfg.Chunker.Overlap())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chunker: [unclosed"), 0o644))

	_, err := Load(path)
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
}

func TestSaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := defaultConfig()
	cfg.Docs.Path = "/tmp/pdfs"
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AppConfig)
	}{
		{"overlap not below size", func(c *AppConfig) { c.Chunker.ChunkOverlap = &c.Chunker.ChunkSize }},
		{"negative size", func(c *AppConfig) { c.Chunker.ChunkSize = -1 }},
		{"negative top k", func(c *AppConfig) { c.Retrieval.TopK = -2 }},
		{"unknown answerer", func(c *AppConfig) { c.Answerer.Type = "gpt" }},
		{"unknown style", func(c *AppConfig) { c.Preferences.AnswerStyle = "haiku" }},
		{"empty docs path", func(c *AppConfig) { c.Docs.Path = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrConfiguration))
		})
	}
}
