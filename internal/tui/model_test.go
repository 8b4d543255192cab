package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auditrag/internal/domain"
)

type fakeAssistant struct {
	answer   domain.Answer
	err      error
	question string
}

func (f *fakeAssistant) Ask(ctx context.Context, question string) (domain.Answer, error) {
	f.question = question
	return f.answer, f.err
}

func sized(t *testing.T, m Model) Model {
	t.Helper()
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return next.(Model)
}

func askQuestion(t *testing.T, m Model, q string) Model {
	t.Helper()
	m.input.SetValue(q)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	require.NotNil(t, cmd)
	assert.True(t, m.pending)
	next, _ = m.Update(cmd())
	return next.(Model)
}

func TestModel_AskShowsAnswerAndSources(t *testing.T) {
	fa := &fakeAssistant{answer: domain.Answer{
		Question: "material weaknesses",
		Text:     "Two material weaknesses were reported.",
		Sources: []domain.Citation{
			{File: "doc_b.pdf", Page: domain.PageNumber(2), Snippet: "Two material weaknesses were identified."},
			{File: "doc_a.pdf", Snippet: "Revenue recognition followed policy."},
		},
	}}
	m := sized(t, New(context.Background(), fa, "3 documents indexed"))
	m = askQuestion(t, m, "  material weaknesses ")

	assert.Equal(t, "material weaknesses", fa.question)
	assert.False(t, m.pending)
	require.NotNil(t, m.answer)
	assert.Contains(t, m.status, "2 sources")

	content := m.renderAnswer()
	assert.Contains(t, content, "Two material weaknesses were reported.")
	assert.Contains(t, content, "> 1. doc_b.pdf, p. 2")
	assert.Contains(t, content, "  2. doc_a.pdf")
	assert.Contains(t, m.View(), "Audit Assistant")

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = next.(Model)
	assert.Equal(t, 1, m.cursor)
	assert.Contains(t, m.renderAnswer(), "> 2. doc_a.pdf")

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 0, next.(Model).cursor)

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
	assert.Equal(t, 0, next.(Model).cursor)
}

func TestModel_AskError(t *testing.T) {
	fa := &fakeAssistant{err: errors.New("index not built")}
	m := sized(t, New(context.Background(), fa, ""))
	m = askQuestion(t, m, "anything")

	assert.Nil(t, m.answer)
	assert.Contains(t, m.status, "Error: index not built")
	assert.Equal(t, "No answer yet.", m.renderAnswer())
}

func TestModel_BlankInputDoesNotAsk(t *testing.T) {
	fa := &fakeAssistant{}
	m := sized(t, New(context.Background(), fa, ""))
	m.input.SetValue("   ")
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.False(t, next.(Model).pending)
	assert.Empty(t, fa.question)
}

func TestCitationLabel(t *testing.T) {
	assert.Equal(t, "report.pdf, p. 7", citationLabel(domain.Citation{File: "report.pdf", Page: domain.PageNumber(7)}))
	assert.Equal(t, "report.pdf", citationLabel(domain.Citation{File: "report.pdf"}))
}

func TestToTokenSet(t *testing.T) {
	got := toTokenSet("Were the Material weaknesses of 2023 reported?")
	assert.Contains(t, got, "material")
	assert.Contains(t, got, "weaknesses")
	assert.Contains(t, got, "the")
	assert.NotContains(t, got, "of")
	assert.NotContains(t, got, "2023")
}
