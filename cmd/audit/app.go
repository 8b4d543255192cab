package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"auditrag/internal/answer/extractive"
	answeropenai "auditrag/internal/answer/openai"
	"auditrag/internal/chunker"
	"auditrag/internal/config"
	"auditrag/internal/domain"
	embedopenai "auditrag/internal/embedding/openai"
	"auditrag/internal/loader"
	"auditrag/internal/logger"
	"auditrag/internal/metrics"
	"auditrag/internal/service"
	"auditrag/internal/vectorstore/memory"
)

// app holds the assembled components for one command run.
type app struct {
	cfg       *config.AppConfig
	logger    *zap.Logger
	engine    *service.Engine
	assistant *service.Assistant
	metrics   *http.Server
}

func loadConfig(path string) (*config.AppConfig, string, error) {
	if path == "" {
		return config.LoadDefault()
	}
	cfg, err := config.Load(path)
	return cfg, path, err
}

func newApp(ctx context.Context, cfgPath string) (context.Context, *app, error) {
	cfg, usedPath, err := loadConfig(cfgPath)
	if err != nil {
		return ctx, nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return ctx, nil, err
	}

	log, err := logger.NewLogger(cfg.Logging.Env, cfg.Logging.Level)
	if err != nil {
		return ctx, nil, fmt.Errorf("init logger: %w", err)
	}
	ctx = logger.ContextWithLogger(ctx, log)

	ch, err := chunker.NewRecursiveChunker(cfg.Chunker.ChunkSize, cfg.Chunker.Overlap())
	if err != nil {
		return ctx, nil, err
	}

	emb := embedopenai.NewClient(embedopenai.Config{
		BaseURL:     cfg.Embedder.BaseURL,
		APIKeyEnv:   cfg.Embedder.APIKeyEnv,
		Model:       cfg.Embedder.Model,
		Timeout:     cfg.EmbedderTimeout(),
		BatchSize:   cfg.Embedder.BatchSize,
		Concurrency: cfg.Embedder.Concurrency,
		Logger:      log.Named("embedder"),
	})

	var ans domain.Answerer
	switch cfg.Answerer.Type {
	case config.AnswererOllama:
		ans = answeropenai.NewClient(answeropenai.Config{
			BaseURL:   cfg.Answerer.BaseURL,
			APIKeyEnv: cfg.Answerer.APIKeyEnv,
			Model:     cfg.Answerer.Model,
			Timeout:   cfg.AnswererTimeout(),
			Logger:    log.Named("answerer"),
		})
	case config.AnswererExtractive:
		ans = extractive.New(cfg.Answerer.MaxSentences)
	default:
		return ctx, nil, fmt.Errorf("unknown answerer %q: %w", cfg.Answerer.Type, domain.ErrConfiguration)
	}

	engine := service.NewEngine(
		loader.NewPDFLoader(log.Named("loader")),
		ch,
		emb,
		memory.NewStorage(),
		service.EngineConfig{DocsDir: cfg.Docs.Path, BuildTimeout: cfg.BuildTimeout()},
		log.Named("engine"),
	)
	assistant := service.NewAssistant(engine, ans, service.AssistantConfig{
		TopK:         cfg.Retrieval.TopK,
		SnippetChars: cfg.Retrieval.SnippetChars,
		Preferences: service.Preferences{
			AnswerStyle:    cfg.Preferences.AnswerStyle,
			Language:       cfg.Preferences.Language,
			RequireSources: cfg.Preferences.RequireSourcesOrDefault(),
		},
	}, log.Named("assistant"))

	a := &app{
		cfg:       cfg,
		logger:    log,
		engine:    engine,
		assistant: assistant,
	}
	a.startMetrics()
	log.Debug("Configuration loaded", zap.String("path", usedPath), zap.String("docs", cfg.Docs.Path))
	return ctx, a, nil
}

func (a *app) startMetrics() {
	metrics.Register()
	if a.cfg.Metrics.Addr == "" {
		return
	}
	a.metrics = &http.Server{
		Addr:              a.cfg.Metrics.Addr,
		Handler:           metrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := a.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("Metrics server failed", zap.String("addr", a.cfg.Metrics.Addr), zap.Error(err))
		}
	}()
	a.logger.Info("Serving metrics", zap.String("addr", a.cfg.Metrics.Addr))
}

func (a *app) close() {
	if a.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.metrics.Shutdown(ctx)
	}
	_ = a.logger.Sync()
}
