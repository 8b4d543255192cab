package extractive

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"

	"auditrag/internal/domain"
)

const DefaultMaxSentences = 4

// NoEvidence is returned when the retrieved context is empty.
const NoEvidence = "The indexed documents do not contain enough evidence to answer this question."

// sentenceEnd matches terminal punctuation followed by whitespace or the end
// of the text, so "12.5%" stays in one sentence.
var sentenceEnd = regexp.MustCompile(`[.!?]+(?:\s+|$)`)

// Answerer answers without a language model by extracting the context
// sentences that share the most salient terms with the question.
type Answerer struct {
	tokenPattern *regexp.Regexp
	stopwords    map[string]struct{}
	maxSentences int
}

func New(maxSentences int) *Answerer {
	if maxSentences <= 0 {
		maxSentences = DefaultMaxSentences
	}
	return &Answerer{
		tokenPattern: regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`),
		stopwords:    defaultStopwords(),
		maxSentences: maxSentences,
	}
}

// Answer ranks context sentences by term frequency, doubling the weight of
// question terms, and returns the best ones in their original order.
func (a *Answerer) Answer(ctx context.Context, prompt domain.Prompt) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	text := strings.TrimSpace(prompt.Context)
	if text == "" {
		return NoEvidence, nil
	}
	sentences := splitSentences(text)

	question := map[string]struct{}{}
	for _, tok := range a.tokens(prompt.Question) {
		if _, stop := a.stopwords[tok]; !stop {
			question[tok] = struct{}{}
		}
	}

	freq := map[string]float64{}
	for _, sent := range sentences {
		for _, tok := range a.tokens(sent) {
			if _, stop := a.stopwords[tok]; stop {
				continue
			}
			freq[tok]++
		}
	}
	maxF := 0.0
	for _, v := range freq {
		maxF = max(maxF, v)
	}
	for tok, v := range freq {
		freq[tok] = v / maxF
		if _, ok := question[tok]; ok {
			freq[tok] += 2
		}
	}

	type scored struct {
		idx   int
		score float64
	}
	scores := make([]scored, len(sentences))
	for i, sent := range sentences {
		toks := a.tokens(sent)
		s := 0.0
		for _, tok := range toks {
			s += freq[tok]
		}
		if len(toks) > 0 {
			s /= math.Sqrt(float64(len(toks)))
		}
		scores[i] = scored{i, s}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	n := min(a.maxSentences, len(scores))
	selected := make([]int, n)
	for i := 0; i < n; i++ {
		selected[i] = scores[i].idx
	}
	sort.Ints(selected)

	out := make([]string, 0, n)
	for _, idx := range selected {
		out = append(out, strings.Join(strings.Fields(sentences[idx]), " "))
	}
	return strings.Join(out, " "), nil
}

// splitSentences keeps the closing punctuation with each sentence. Text after
// the last terminator is the final sentence.
func splitSentences(text string) []string {
	var out []string
	prev := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(text, -1) {
		if s := strings.TrimSpace(text[prev:loc[1]]); s != "" {
			out = append(out, s)
		}
		prev = loc[1]
	}
	if tail := strings.TrimSpace(text[prev:]); tail != "" {
		out = append(out, tail)
	}
	return out
}

func (a *Answerer) tokens(text string) []string {
	return a.tokenPattern.FindAllString(strings.ToLower(text), -1)
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "should", "now", "what", "which", "who", "how", "any", "there", "do", "does", "did",
		"o", "os", "as", "um", "uma", "de", "do", "da", "dos", "das", "e", "em", "no", "na", "nos", "nas", "por", "para", "com", "que", "se", "foi", "foram", "ser", "é",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
