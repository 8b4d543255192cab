package openai

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"auditrag/internal/domain"
	"auditrag/internal/metrics"
)

const (
	DefaultBaseURL = "http://localhost:11434/v1"
	DefaultModel   = "qwen2.5:7b"
	DefaultTimeout = 120 * time.Second
)

// Client answers questions with an OpenAI-compatible chat completion
// endpoint. It implements domain.Answerer.
type Client struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

// Config configures the chat client.
type Config struct {
	BaseURL   string
	APIKeyEnv string
	Model     string
	Timeout   time.Duration
	Logger    *zap.Logger
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	var key string
	if cfg.APIKeyEnv != "" {
		key = os.Getenv(cfg.APIKeyEnv)
	}
	clientCfg := openai.DefaultConfig(key)
	clientCfg.BaseURL = cfg.BaseURL
	return &Client{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   cfg.Model,
		timeout: cfg.Timeout,
		logger:  cfg.Logger,
	}
}

// Answer sends the system instructions, the retrieved context and the question.
func (c *Client) Answer(ctx context.Context, prompt domain.Prompt) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: prompt.System},
		{Role: openai.ChatMessageRoleSystem, Content: "Audit context:\n" + prompt.Context},
		{Role: openai.ChatMessageRoleUser, Content: prompt.Question},
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
	})
	duration := time.Since(start)
	if err != nil {
		metrics.AnswerRequestDuration.WithLabelValues(c.model, "error").Observe(duration.Seconds())
		c.logger.Warn("Chat request failed",
			zap.String("model", c.model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("chat request timed out after %s: %w", c.timeout, domain.ErrAnswerService)
		}
		return "", fmt.Errorf("chat model %s: %v: %w", c.model, err, domain.ErrAnswerService)
	}
	metrics.AnswerRequestDuration.WithLabelValues(c.model, "success").Observe(duration.Seconds())

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat model %s returned no choices: %w", c.model, domain.ErrAnswerService)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
