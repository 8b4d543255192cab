package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"auditrag/internal/domain"
)

const (
	StyleBullets = "bullets"
	StyleProse   = "prose"

	DefaultTopK     = 3
	DefaultLanguage = "pt"
)

// Preferences shape how answers are written.
type Preferences struct {
	AnswerStyle    string
	Language       string
	RequireSources bool
}

// DefaultPreferences matches a fresh auditor profile.
func DefaultPreferences() Preferences {
	return Preferences{AnswerStyle: StyleBullets, Language: DefaultLanguage, RequireSources: true}
}

// Retriever returns the context and citations for a question.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k, snippetChars int) (domain.Retrieval, error)
}

type AssistantConfig struct {
	TopK         int
	SnippetChars int
	Preferences  Preferences
}

// Assistant answers audit questions from retrieved context.
type Assistant struct {
	retriever Retriever
	answerer  domain.Answerer
	cfg       AssistantConfig
	logger    *zap.Logger
}

func NewAssistant(retriever Retriever, answerer domain.Answerer, cfg AssistantConfig, logger *zap.Logger) *Assistant {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.SnippetChars <= 0 {
		cfg.SnippetChars = DefaultSnippetChars
	}
	if cfg.Preferences.AnswerStyle == "" {
		cfg.Preferences.AnswerStyle = StyleBullets
	}
	if cfg.Preferences.Language == "" {
		cfg.Preferences.Language = DefaultLanguage
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assistant{retriever: retriever, answerer: answerer, cfg: cfg, logger: logger}
}

// Preferences returns the preferences used for every answer.
func (a *Assistant) Preferences() Preferences {
	return a.cfg.Preferences
}

// Ask retrieves context for the question and asks the answering model.
func (a *Assistant) Ask(ctx context.Context, question string) (domain.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return domain.Answer{}, domain.ErrEmptyQuestion
	}

	ragStart := time.Now()
	retrieval, err := a.retriever.Retrieve(ctx, question, a.cfg.TopK, a.cfg.SnippetChars)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("retrieve context: %w", err)
	}
	ragDuration := time.Since(ragStart)

	llmStart := time.Now()
	text, err := a.answerer.Answer(ctx, domain.Prompt{
		System:   SystemPrompt(a.cfg.Preferences),
		Context:  retrieval.Context,
		Question: question,
	})
	if err != nil {
		return domain.Answer{}, fmt.Errorf("answer question: %w", err)
	}
	llmDuration := time.Since(llmStart)

	a.logger.Info("ask_processed",
		zap.Int("question_len", utf8.RuneCountInString(question)),
		zap.Float64("rag_ms", Milliseconds(ragDuration)),
		zap.Float64("llm_ms", Milliseconds(llmDuration)),
		zap.Int("sources_count", len(retrieval.Sources)),
		zap.String("answer_style", a.cfg.Preferences.AnswerStyle),
		zap.String("language", a.cfg.Preferences.Language),
	)

	return domain.Answer{
		Question:    question,
		Text:        text,
		Sources:     retrieval.Sources,
		RAGDuration: ragDuration,
		LLMDuration: llmDuration,
	}, nil
}

// SystemPrompt builds the answering instructions for the given preferences.
func SystemPrompt(p Preferences) string {
	style := "Answer in bullet points with short headings."
	if p.AnswerStyle == StyleProse {
		style = "Answer in clear and concise prose."
	}
	sources := "No sources section is needed."
	if p.RequireSources {
		sources = "End with a 'Sources' section naming the relevant PDFs and pages."
	}
	return strings.Join([]string{
		"You are an assistant specialised in auditing.",
		"Answer only from the provided context.",
		"If the answer is not clearly supported by the context, say explicitly that there is not enough evidence.",
		"Language: " + p.Language + ".",
		style,
		sources,
	}, " ")
}

// Milliseconds rounds d to two decimal places of a millisecond.
func Milliseconds(d time.Duration) float64 {
	return float64(d.Round(10*time.Microsecond)) / float64(time.Millisecond)
}
