package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"auditrag/internal/domain"
	"auditrag/internal/metrics"
)

const (
	DefaultBaseURL     = "http://localhost:11434/v1"
	DefaultModel       = "nomic-embed-text"
	DefaultTimeout     = 30 * time.Second
	DefaultBatchSize   = 32
	DefaultConcurrency = 4
)

// Client is an embeddings client for OpenAI-compatible endpoints such as
// Ollama's /v1 API. It implements domain.Embedder.
type Client struct {
	client      *openai.Client
	model       string
	timeout     time.Duration
	batchSize   int
	concurrency int
	logger      *zap.Logger
}

// Config configures the embeddings client.
type Config struct {
	BaseURL     string
	APIKeyEnv   string
	Model       string
	Timeout     time.Duration
	BatchSize   int
	Concurrency int
	Logger      *zap.Logger
}

// NewClient creates a new embeddings client. An API key is optional; local
// Ollama ignores it.
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
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
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
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		timeout:     cfg.Timeout,
		batchSize:   cfg.BatchSize,
		concurrency: cfg.Concurrency,
		logger:      cfg.Logger,
	}
}

// Embed returns an embedding vector for the given text.
func (c *Client) Embed(ctx context.Context, text string) (domain.Vector, error) {
	vecs, err := c.EmbedMany(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedMany embeds texts in batches, several batches in flight at once.
// The first failing batch cancels the others.
func (c *Client) EmbedMany(ctx context.Context, texts []string) ([]domain.Vector, error) {
	out := make([]domain.Vector, len(texts))
	if len(texts) == 0 {
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for start := 0; start < len(texts); start += c.batchSize {
		start := start
		end := min(start+c.batchSize, len(texts))
		g.Go(func() error {
			vecs, err := c.request(gctx, texts[start:end])
			if err != nil {
				return fmt.Errorf("batch %d-%d: %w", start, end, err)
			}
			copy(out[start:end], vecs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	dim := len(out[0])
	for i, v := range out {
		if len(v) != dim {
			return nil, fmt.Errorf("embedding %d has dimension %d, want %d: %w",
				i, len(v), dim, domain.ErrEmbeddingService)
		}
	}
	return out, nil
}

func (c *Client) request(ctx context.Context, batch []string) ([]domain.Vector, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:          batch,
		Model:          openai.EmbeddingModel(c.model),
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	})
	duration := time.Since(start)
	metrics.EmbeddingInputsTotal.WithLabelValues(c.model).Add(float64(len(batch)))

	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(c.model, "error").Inc()
		c.logger.Warn("Embedding request failed",
			zap.String("model", c.model),
			zap.Int("batch_size", len(batch)),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("embedding request timed out after %s: %w", c.timeout, domain.ErrEmbeddingService)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("embedding request aborted: %w: %w", domain.ErrEmbeddingService, ctxErr)
		}
		return nil, parseAPIError(err)
	}

	vecs, err := collect(resp, len(batch))
	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(c.model, "malformed").Inc()
		return nil, err
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(c.model, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(c.model).Observe(duration.Seconds())
	c.logger.Debug("Embedding request completed",
		zap.String("model", c.model),
		zap.Int("batch_size", len(batch)),
		zap.Duration("duration", duration),
	)
	return vecs, nil
}

// collect orders the response data by index and checks it covers the batch.
func collect(resp openai.EmbeddingResponse, want int) ([]domain.Vector, error) {
	if len(resp.Data) != want {
		return nil, fmt.Errorf("got %d embeddings for %d inputs: %w",
			len(resp.Data), want, domain.ErrEmbeddingService)
	}
	vecs := make([]domain.Vector, want)
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= want || vecs[d.Index] != nil {
			return nil, fmt.Errorf("bad embedding index %d: %w", d.Index, domain.ErrEmbeddingService)
		}
		if len(d.Embedding) == 0 {
			return nil, fmt.Errorf("empty embedding at index %d: %w", d.Index, domain.ErrEmbeddingService)
		}
		vecs[d.Index] = domain.Vector(d.Embedding)
	}
	return vecs, nil
}

// parseAPIError keeps the upstream status and message, wrapped as ErrEmbeddingService.
func parseAPIError(err error) error {
	wrap := domain.ErrEmbeddingService

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if detail := extractDetail(reqErr.Body); detail != "" {
			return fmt.Errorf("embedding API error %d: %s: %w", reqErr.HTTPStatusCode, detail, wrap)
		}
		return fmt.Errorf("embedding API error %d: %w", reqErr.HTTPStatusCode, wrap)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("embedding API error %d: %s: %w", apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	return fmt.Errorf("embedding request failed: %v: %w", err, wrap)
}

// extractDetail reads the "error" or "detail" field Ollama-style servers put in error bodies.
func extractDetail(body []byte) string {
	var parsed struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) != nil {
		return ""
	}
	if parsed.Detail != "" {
		return parsed.Detail
	}
	return parsed.Error
}
