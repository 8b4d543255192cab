package chunker

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"auditrag/internal/domain"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 150
)

// sentenceBoundary stands for any ".", "!" or "?" followed by whitespace.
// Pieces split there keep their closing punctuation and are rejoined with a space.
const sentenceBoundary = ". "

// defaultSeparators are tried in order: paragraph, line, sentence, word, character.
var defaultSeparators = []string{"\n\n", "\n", sentenceBoundary, " ", ""}

var sentenceEnd = regexp.MustCompile(`[.!?]\s+`)

// RecursiveChunker splits text at the largest boundary that keeps chunks within
// chunkSize runes, carrying up to chunkOverlap runes into the next chunk.
type RecursiveChunker struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
}

func NewRecursiveChunker(chunkSize, chunkOverlap int) (*RecursiveChunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d: %w", chunkSize, domain.ErrConfiguration)
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d: %w", chunkSize, chunkOverlap, domain.ErrConfiguration)
	}
	return &RecursiveChunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		separators:   defaultSeparators,
	}, nil
}

// Chunk splits one document. Every chunk keeps the document's file and page.
func (c *RecursiveChunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	trimmed := strings.TrimSpace(document.Text)
	if trimmed == "" {
		return nil, nil
	}
	var texts []string
	if utf8.RuneCountInString(trimmed) <= c.chunkSize {
		texts = []string{trimmed}
	} else {
		texts = c.split(document.Text, c.separators)
	}
	chunks := make([]domain.Chunk, 0, len(texts))
	for i, text := range texts {
		chunks = append(chunks, domain.Chunk{
			Text:       text,
			SourceFile: document.SourceFile,
			Page:       document.Page,
			ChunkIndex: i,
		})
	}
	return chunks, nil
}

// ChunkAll splits every document in order and concatenates the results.
func ChunkAll(c domain.Chunker, documents []domain.Document) ([]domain.Chunk, error) {
	var all []domain.Chunk
	for _, d := range documents {
		chunks, err := c.Chunk(d)
		if err != nil {
			return nil, fmt.Errorf("chunk %s: %w", d.SourceFile, err)
		}
		all = append(all, chunks...)
	}
	return all, nil
}

func (c *RecursiveChunker) split(text string, separators []string) []string {
	// Pick the first separator present in the text; "" always matches.
	separator := separators[len(separators)-1]
	var next []string
	for i, s := range separators {
		if s == "" {
			separator = s
			break
		}
		if containsSeparator(text, s) {
			separator = s
			next = separators[i+1:]
			break
		}
	}

	join := joinSeparator(separator)
	var out, good []string
	for _, piece := range splitNonEmpty(text, separator) {
		if utf8.RuneCountInString(piece) < c.chunkSize {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			out = append(out, c.merge(good, join)...)
			good = nil
		}
		if len(next) == 0 {
			out = append(out, piece)
		} else {
			out = append(out, c.split(piece, next)...)
		}
	}
	if len(good) > 0 {
		out = append(out, c.merge(good, join)...)
	}
	return out
}

// merge joins small pieces into chunks of at most chunkSize runes. When a chunk
// is emitted, pieces are dropped from its front until at most chunkOverlap runes
// remain, and those become the start of the next chunk.
func (c *RecursiveChunker) merge(pieces []string, separator string) []string {
	sepLen := utf8.RuneCountInString(separator)
	var (
		docs    []string
		current []string
		total   int
	)
	joinLen := func() int {
		if len(current) > 0 {
			return sepLen
		}
		return 0
	}
	for _, p := range pieces {
		l := utf8.RuneCountInString(p)
		if total+l+joinLen() > c.chunkSize && len(current) > 0 {
			if doc := strings.TrimSpace(strings.Join(current, separator)); doc != "" {
				docs = append(docs, doc)
			}
			for total > c.chunkOverlap || (total > 0 && total+l+joinLen() > c.chunkSize) {
				dropped := utf8.RuneCountInString(current[0])
				if len(current) > 1 {
					dropped += sepLen
				}
				total -= dropped
				current = current[1:]
			}
		}
		total += l + joinLen()
		current = append(current, p)
	}
	if doc := strings.TrimSpace(strings.Join(current, separator)); doc != "" {
		docs = append(docs, doc)
	}
	return docs
}

func containsSeparator(text, separator string) bool {
	if separator == sentenceBoundary {
		return sentenceEnd.MatchString(text)
	}
	return strings.Contains(text, separator)
}

func joinSeparator(separator string) string {
	if separator == sentenceBoundary {
		return " "
	}
	return separator
}

func splitNonEmpty(text, separator string) []string {
	var raw []string
	switch separator {
	case sentenceBoundary:
		prev := 0
		for _, loc := range sentenceEnd.FindAllStringIndex(text, -1) {
			raw = append(raw, text[prev:loc[0]+1])
			prev = loc[1]
		}
		raw = append(raw, text[prev:])
	case "":
		raw = make([]string, 0, len(text))
		for _, r := range text {
			raw = append(raw, string(r))
		}
	default:
		raw = strings.Split(text, separator)
	}
	out := raw[:0]
	for _, s := range raw {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
