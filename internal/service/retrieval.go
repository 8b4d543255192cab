package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"auditrag/internal/chunker"
	"auditrag/internal/domain"
	"auditrag/internal/metrics"
)

const (
	DefaultBuildTimeout = 5 * time.Minute
	DefaultSnippetChars = 240

	contextSeparator = "\n\n"
	ellipsis         = "..."
	buildKey         = "index"
)

// IndexStats describes the last successful build.
type IndexStats struct {
	Documents int
	Chunks    int
	Duration  time.Duration
	BuiltAt   time.Time
}

// EngineConfig holds the engine's tunables.
type EngineConfig struct {
	DocsDir      string
	BuildTimeout time.Duration
}

// Engine builds the vector index from the document directory on first use
// and answers similarity queries against it.
type Engine struct {
	loader   domain.Loader
	chunker  domain.Chunker
	embedder domain.Embedder
	index    domain.VectorIndex
	cfg      EngineConfig
	logger   *zap.Logger

	group singleflight.Group
	built atomic.Bool

	mu    sync.RWMutex
	stats IndexStats
}

func NewEngine(loader domain.Loader, chunker domain.Chunker, embedder domain.Embedder, index domain.VectorIndex, cfg EngineConfig, logger *zap.Logger) *Engine {
	if cfg.BuildTimeout <= 0 {
		cfg.BuildTimeout = DefaultBuildTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		loader:   loader,
		chunker:  chunker,
		embedder: embedder,
		index:    index,
		cfg:      cfg,
		logger:   logger,
	}
}

// EnsureIndex builds the index unless a previous build succeeded. Concurrent
// callers share one build; a caller whose context ends stops waiting but
// the build keeps running for the others. A failed build is retried in
// full by the next call.
func (e *Engine) EnsureIndex(ctx context.Context) error {
	if e.built.Load() {
		return nil
	}
	ch := e.group.DoChan(buildKey, func() (any, error) {
		if e.built.Load() {
			return nil, nil
		}
		buildCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.BuildTimeout)
		defer cancel()
		if err := e.build(buildCtx); err != nil {
			return nil, err
		}
		e.built.Store(true)
		return nil, nil
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return fmt.Errorf("waiting for index build: %w", ctx.Err())
	}
}

// Built reports whether a build has succeeded.
func (e *Engine) Built() bool {
	return e.built.Load()
}

// Stats returns the figures of the last successful build.
func (e *Engine) Stats() IndexStats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.stats
}

func (e *Engine) build(ctx context.Context) error {
	start := time.Now()
	e.logger.Info("Building index", zap.String("docs_dir", e.cfg.DocsDir))

	stats, err := e.runPipeline(ctx)
	duration := time.Since(start)
	metrics.IndexBuildDuration.Observe(duration.Seconds())
	if err != nil {
		metrics.IndexBuildsTotal.WithLabelValues("error").Inc()
		e.logger.Error("Index build failed",
			zap.String("docs_dir", e.cfg.DocsDir),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return err
	}

	stats.Duration = duration
	stats.BuiltAt = time.Now()
	e.mu.Lock()
	e.stats = stats
	e.mu.Unlock()

	metrics.IndexBuildsTotal.WithLabelValues("success").Inc()
	metrics.IndexedChunks.Set(float64(stats.Chunks))
	e.logger.Info("Index built",
		zap.Int("documents", stats.Documents),
		zap.Int("chunks", stats.Chunks),
		zap.Duration("duration", duration),
	)
	return nil
}

// runPipeline loads, chunks and embeds the corpus from scratch and swaps the result into the index.
func (e *Engine) runPipeline(ctx context.Context) (IndexStats, error) {
	docs, err := e.loader.Load(ctx, e.cfg.DocsDir)
	if err != nil {
		return IndexStats{}, fmt.Errorf("load documents: %w", err)
	}
	chunks, err := chunker.ChunkAll(e.chunker, docs)
	if err != nil {
		return IndexStats{}, err
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := e.embedder.EmbedMany(ctx, texts)
	if err != nil {
		return IndexStats{}, fmt.Errorf("embed %d chunks: %w", len(chunks), err)
	}
	if len(vectors) != len(chunks) {
		return IndexStats{}, fmt.Errorf("got %d vectors for %d chunks: %w",
			len(vectors), len(chunks), domain.ErrEmbeddingService)
	}

	entries := make([]domain.IndexEntry, len(chunks))
	for i := range chunks {
		entries[i] = domain.IndexEntry{Chunk: chunks[i], Vector: vectors[i]}
	}
	if err := e.index.Build(entries); err != nil {
		return IndexStats{}, fmt.Errorf("build index: %w", err)
	}
	return IndexStats{Documents: len(docs), Chunks: len(chunks)}, nil
}

// Search ensures the index, embeds the query and returns up to k nearest chunks.
func (e *Engine) Search(ctx context.Context, query string, k int) ([]domain.SearchResult, error) {
	if err := e.EnsureIndex(ctx); err != nil {
		return nil, err
	}
	vec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		metrics.SearchesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("embed query: %w", err)
	}
	results, err := e.index.Search(vec, k)
	if err != nil {
		metrics.SearchesTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.SearchesTotal.WithLabelValues("success").Inc()
	e.logger.Debug("Search completed",
		zap.Int("query_len", utf8.RuneCountInString(query)),
		zap.Int("k", k),
		zap.Int("results", len(results)),
	)
	return results, nil
}

// SearchContext joins the retrieved chunk texts, best first, with a blank line.
func (e *Engine) SearchContext(ctx context.Context, query string, k int) (string, error) {
	results, err := e.Search(ctx, query, k)
	if err != nil {
		return "", err
	}
	return joinContext(results), nil
}

// BuildSources projects the retrieved chunks into citations.
func (e *Engine) BuildSources(ctx context.Context, query string, k, snippetChars int) ([]domain.Citation, error) {
	results, err := e.Search(ctx, query, k)
	if err != nil {
		return nil, err
	}
	return citations(results, snippetChars), nil
}

// Retrieve returns the context and citations of a single search.
func (e *Engine) Retrieve(ctx context.Context, query string, k, snippetChars int) (domain.Retrieval, error) {
	results, err := e.Search(ctx, query, k)
	if err != nil {
		return domain.Retrieval{}, err
	}
	return domain.Retrieval{
		Context: joinContext(results),
		Sources: citations(results, snippetChars),
	}, nil
}

func joinContext(results []domain.SearchResult) string {
	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Chunk.Text
	}
	return strings.Join(texts, contextSeparator)
}

func citations(results []domain.SearchResult, snippetChars int) []domain.Citation {
	out := make([]domain.Citation, 0, len(results))
	for _, r := range results {
		out = append(out, domain.Citation{
			File:    r.Chunk.SourceFile,
			Page:    r.Chunk.Page,
			Snippet: Snippet(r.Chunk.Text, snippetChars),
		})
	}
	return out
}

// Snippet trims text, collapses newlines to spaces and cuts it to at most
// limit runes, appending "..." only when something was cut.
func Snippet(text string, limit int) string {
	s := strings.ReplaceAll(strings.TrimSpace(text), "\n", " ")
	if limit < 0 {
		limit = 0
	}
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit]) + ellipsis
}
