package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auditrag/internal/config"
	"auditrag/internal/domain"
	"auditrag/internal/service"
)

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestAsk_RequiresQuestion(t *testing.T) {
	_, err := runRoot(t, "ask")
	assert.Error(t, err)
}

func TestAsk_InvalidConfig(t *testing.T) {
	path := writeConfig(t, "answerer:\n  type: gpt\n")
	_, err := runRoot(t, "--config", path, "ask", "any", "question")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
}

func TestIndex_EmptyCorpus(t *testing.T) {
	docs := t.TempDir()
	path := writeConfig(t, "docs:\n  path: "+docs+"\nlogging:\n  level: error\n")
	_, err := runRoot(t, "--config", path, "index")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrEmptyCorpus))
}

func TestAsk_BlankQuestion(t *testing.T) {
	path := writeConfig(t, "answerer:\n  type: extractive\nlogging:\n  level: error\n")
	_, err := runRoot(t, "--config", path, "ask", "   ")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrEmptyQuestion))
}

func TestAnswerStylesMatchAssistant(t *testing.T) {
	assert.Equal(t, service.StyleBullets, config.StyleBullets)
	assert.Equal(t, service.StyleProse, config.StyleProse)

	cfg, err := config.Load(writeConfig(t, "logging:\n  level: error\n"))
	require.NoError(t, err)
	assert.Equal(t, service.StyleBullets, cfg.Preferences.AnswerStyle)
}
