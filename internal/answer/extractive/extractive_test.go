package extractive

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auditrag/internal/domain"
)

const auditContext = "Revenue grew by ten percent. Auditors reported two material weaknesses in controls.\n\nThe office moved to Lisbon."

func TestAnswerer_PrefersQuestionTerms(t *testing.T) {
	a := New(1)
	got, err := a.Answer(context.Background(), domain.Prompt{
		Context:  auditContext,
		Question: "Were material weaknesses found?",
	})
	require.NoError(t, err)
	assert.Equal(t, "Auditors reported two material weaknesses in controls.", got)
}

func TestAnswerer_KeepsOriginalOrder(t *testing.T) {
	a := New(3)
	got, err := a.Answer(context.Background(), domain.Prompt{Context: auditContext, Question: "revenue"})
	require.NoError(t, err)
	assert.Equal(t, "Revenue grew by ten percent. Auditors reported two material weaknesses in controls. The office moved to Lisbon.", got)
}

func TestAnswerer_EmptyContext(t *testing.T) {
	got, err := New(0).Answer(context.Background(), domain.Prompt{Context: "  \n", Question: "anything"})
	require.NoError(t, err)
	assert.Equal(t, NoEvidence, got)
}

func TestAnswerer_NoSentenceBoundaries(t *testing.T) {
	got, err := New(2).Answer(context.Background(), domain.Prompt{Context: "  table of contents  ", Question: "contents"})
	require.NoError(t, err)
	assert.Equal(t, "table of contents", got)
}

func TestAnswerer_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(2).Answer(ctx, domain.Prompt{Context: auditContext})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAnswerer_KeepsUnterminatedTail(t *testing.T) {
	a := New(1)
	got, err := a.Answer(context.Background(), domain.Prompt{
		Context:  "Revenue grew by ten percent. Two material weaknesses remain open",
		Question: "material weaknesses",
	})
	require.NoError(t, err)
	assert.Equal(t, "Two material weaknesses remain open", got)
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"decimal stays whole", "Margin was 12.5% in Q1. Costs fell!", []string{"Margin was 12.5% in Q1.", "Costs fell!"}},
		{"tail without terminator", "Controls passed. Review pending", []string{"Controls passed.", "Review pending"}},
		{"repeated punctuation", "Really?! Yes.\nDone", []string{"Really?!", "Yes.", "Done"}},
		{"blank", "  ", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, splitSentences(tt.text))
		})
	}
}
