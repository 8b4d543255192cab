package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"auditrag/internal/domain"
)

const pdfExt = ".pdf"

// PageText is the text extracted from one page. Number <= 0 means the
// extractor could not tell which page it was.
type PageText struct {
	Number int
	Text   string
}

// ExtractFunc returns the pages of one file in order.
type ExtractFunc func(path string) ([]PageText, error)

// PDFLoader reads every PDF in a directory into one Document per page.
type PDFLoader struct {
	extract ExtractFunc
	logger  *zap.Logger
}

func NewPDFLoader(logger *zap.Logger) *PDFLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PDFLoader{extract: ExtractPDF, logger: logger}
}

// WithExtractor replaces the page extractor.
func (l *PDFLoader) WithExtractor(fn ExtractFunc) *PDFLoader {
	l.extract = fn
	return l
}

// Load returns the pages of all PDF files under dir (not recursive), files in
// name order and pages in file order.
func (l *PDFLoader) Load(ctx context.Context, dir string) ([]domain.Document, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("document directory %s: %v: %w", dir, err, domain.ErrConfiguration)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("document path %s is not a directory: %w", dir, domain.ErrConfiguration)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read document directory %s: %v: %w", dir, err, domain.ErrConfiguration)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), pdfExt) {
			continue
		}
		files = append(files, e.Name())
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no %s files in %s: %w", pdfExt, dir, domain.ErrEmptyCorpus)
	}

	var documents []domain.Document
	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pages, err := l.extract(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("extract %s: %v: %w", name, err, domain.ErrConfiguration)
		}
		for _, p := range pages {
			doc := domain.Document{Text: p.Text, SourceFile: name}
			if p.Number > 0 {
				doc.Page = domain.PageNumber(p.Number)
			}
			documents = append(documents, doc)
		}
		l.logger.Debug("Loaded document", zap.String("file", name), zap.Int("pages", len(pages)))
	}
	return documents, nil
}

// ExtractPDF reads the plain text of every page. Pages without a content
// stream come back with empty text.
func ExtractPDF(path string) ([]PageText, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	n := r.NumPage()
	pages := make([]PageText, 0, n)
	for i := 1; i <= n; i++ {
		p := r.Page(i)
		if p.V.IsNull() || p.V.Key("Contents").IsNull() {
			pages = append(pages, PageText{Number: i})
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, PageText{Number: i, Text: text})
	}
	return pages, nil
}
