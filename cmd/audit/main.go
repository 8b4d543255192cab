package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"auditrag/internal/domain"
	"auditrag/internal/logger"
	"auditrag/internal/service"
	"auditrag/internal/tui"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath string
	root := &cobra.Command{
		Use:          "audit",
		Short:        "Ask questions about a folder of audit PDFs",
		Long:         "audit indexes the PDFs of the configured folder and answers questions from them, citing file and page.",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, a, err := newApp(cmd.Context(), cfgPath)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.engine.EnsureIndex(ctx); err != nil {
				return err
			}
			stats := a.engine.Stats()
			subtitle := fmt.Sprintf("%d pages, %d chunks from %s", stats.Documents, stats.Chunks, a.cfg.Docs.Path)

			_, err = tea.NewProgram(tui.New(ctx, a.assistant, subtitle), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
			return err
		},
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "",
		"Path to YAML config file (optional; uses ./config.yaml or ~/.config/audit/config.yaml if not provided)")
	root.AddCommand(newAskCmd(&cfgPath), newIndexCmd(&cfgPath))
	return root
}

type askMetrics struct {
	RAGMillis float64 `json:"rag_ms"`
	LLMMillis float64 `json:"llm_ms"`
}

type askPreferences struct {
	AnswerStyle    string `json:"answer_style"`
	Language       string `json:"language"`
	RequireSources bool   `json:"require_sources"`
}

type askOutput struct {
	Question        string            `json:"question"`
	Answer          string            `json:"answer"`
	Sources         []domain.Citation `json:"sources"`
	PreferencesUsed askPreferences    `json:"preferences_used"`
	Metrics         askMetrics        `json:"metrics"`
}

func newAskCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question...>",
		Short: "Answer one question and print the result as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, a, err := newApp(cmd.Context(), *cfgPath)
			if err != nil {
				return err
			}
			defer a.close()

			answer, err := a.assistant.Ask(ctx, strings.Join(args, " "))
			if err != nil {
				logger.FromContext(ctx).Error("Ask failed",
					zap.Int("status", domain.HTTPStatus(err)),
					zap.Bool("retryable", domain.Retryable(err)),
					zap.Error(err),
				)
				return err
			}
			prefs := a.assistant.Preferences()
			out := askOutput{
				Question: answer.Question,
				Answer:   answer.Text,
				Sources:  answer.Sources,
				PreferencesUsed: askPreferences{
					AnswerStyle:    prefs.AnswerStyle,
					Language:       prefs.Language,
					RequireSources: prefs.RequireSources,
				},
				Metrics: askMetrics{
					RAGMillis: service.Milliseconds(answer.RAGDuration),
					LLMMillis: service.Milliseconds(answer.LLMDuration),
				},
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			enc.SetEscapeHTML(false)
			return enc.Encode(out)
		},
	}
}

func newIndexCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Build the index and report what was indexed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, a, err := newApp(cmd.Context(), *cfgPath)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.engine.EnsureIndex(ctx); err != nil {
				return err
			}
			s := a.engine.Stats()
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d pages from %s into %d chunks in %s\n",
				s.Documents, a.cfg.Docs.Path, s.Chunks, s.Duration.Round(time.Millisecond))
			return err
		},
	}
}
