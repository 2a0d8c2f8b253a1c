// Package pdf decodes uploaded PDFs into per-page plain text.
package pdf

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/cloo-solutions/studyrag/internal/domain"
	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog/log"
)

// Extractor reads the text layer of a PDF page by page.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// ExtractPages returns one RawPage per physical page, numbered from 1. A page
// whose text cannot be read is kept with empty text so numbering stays
// contiguous; the cleaner drops it later.
func (e *Extractor) ExtractPages(ctx context.Context, r io.ReaderAt, size int64) (pages []domain.RawPage, err error) {
	// the decoder panics on some malformed cross-reference tables
	defer func() {
		if rec := recover(); rec != nil {
			pages = nil
			err = fmt.Errorf("malformed pdf: %v", rec)
		}
	}()

	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}

	numPages := reader.NumPage()
	pages = make([]domain.RawPage, 0, numPages)
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, domain.RawPage{Number: i})
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			log.Debug().Err(err).Int("page", i).Msg("unreadable pdf page")
			text = ""
		}
		pages = append(pages, domain.RawPage{Number: i, Text: text})
	}
	return pages, nil
}

// ExtractFile is ExtractPages for a file on disk.
func (e *Extractor) ExtractFile(ctx context.Context, path string) ([]domain.RawPage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}
	return e.ExtractPages(ctx, f, stat.Size())
}
