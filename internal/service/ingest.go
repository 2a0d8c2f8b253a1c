package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/cloo-solutions/studyrag/internal/domain"
	"github.com/cloo-solutions/studyrag/internal/telemetry"
	"github.com/rs/zerolog/log"
)

// PageExtractor decodes a PDF into raw per-page text in page order.
type PageExtractor interface {
	ExtractPages(ctx context.Context, r io.ReaderAt, size int64) ([]domain.RawPage, error)
}

// IngestDocumentRepository is what ingestion needs from document persistence
type IngestDocumentRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, totalPages, usablePages int) error
}

// IngestResult summarizes one ingested document.
type IngestResult struct {
	DocumentID  string
	TotalPages  int
	UsablePages int
	Status      domain.DocumentStatus
}

// IngestService turns an uploaded PDF into stored, cleaned pages.
type IngestService struct {
	docRepo   IngestDocumentRepository
	storage   StorageClientInterface
	extractor PageExtractor
	cleaner   *PageCleaner
	txRunner  TxRunner
}

func NewIngestService(
	docRepo IngestDocumentRepository,
	storage StorageClientInterface,
	extractor PageExtractor,
	cleaner *PageCleaner,
	txRunner TxRunner,
) *IngestService {
	return &IngestService{
		docRepo:   docRepo,
		storage:   storage,
		extractor: extractor,
		cleaner:   cleaner,
		txRunner:  txRunner,
	}
}

// IngestDocument downloads, decodes and cleans one document, then replaces
// its stored pages. A decode failure or a document with no usable pages is
// marked empty and reported as domain.ErrExtractionEmpty; storage and
// database failures are returned as-is so the caller may retry.
func (s *IngestService) IngestDocument(ctx context.Context, documentID string) (*IngestResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "IngestService.IngestDocument", telemetry.SpanAttributes{
		DocumentID: documentID,
		Operation:  "ingest",
	})
	defer span.End()

	doc, err := s.docRepo.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}

	if err := s.docRepo.UpdateStatus(ctx, doc.ID, domain.DocumentStatusProcessing, doc.TotalPages, doc.UsablePages); err != nil {
		return nil, fmt.Errorf("failed to mark document processing: %w", err)
	}

	data, err := s.storage.GetObject(ctx, doc.StorageKey)
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("failed to download document: %w", err)
	}

	raw, extractErr := s.extractor.ExtractPages(ctx, bytes.NewReader(data), int64(len(data)))
	if extractErr == nil {
		extractErr = domain.ValidatePages(raw)
	}
	if extractErr != nil {
		// a document that cannot be decoded has no usable pages
		log.Warn().Err(extractErr).Str("document_id", doc.ID).Msg("pdf decode failed")
		raw = nil
	}

	cleaned := s.cleaner.CleanPages(raw)
	result := &IngestResult{
		DocumentID:  doc.ID,
		TotalPages:  len(raw),
		UsablePages: len(cleaned),
		Status:      domain.DocumentStatusReady,
	}
	if len(cleaned) == 0 {
		result.Status = domain.DocumentStatusEmpty
	}

	pages := make([]domain.DocumentPage, len(cleaned))
	for i, p := range cleaned {
		pages[i] = domain.DocumentPage{DocumentID: doc.ID, Number: p.Number, Text: p.Text}
	}

	err = s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Pages().ReplacePages(ctx, doc.ID, pages); err != nil {
			return fmt.Errorf("failed to store pages: %w", err)
		}
		return repos.Documents().UpdateStatus(ctx, doc.ID, result.Status, result.TotalPages, result.UsablePages)
	})
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	span.SetData("total_pages", result.TotalPages)
	span.SetData("usable_pages", result.UsablePages)

	log.Info().
		Str("document_id", doc.ID).
		Int("total_pages", result.TotalPages).
		Int("usable_pages", result.UsablePages).
		Str("status", string(result.Status)).
		Msg("document ingested")

	if result.Status == domain.DocumentStatusEmpty {
		if extractErr != nil {
			return result, domain.ErrExtractionEmpty.WithCause(extractErr)
		}
		return result, domain.ErrExtractionEmpty
	}
	return result, nil
}

// IsPermanentIngestError reports whether retrying ingestion cannot help.
func IsPermanentIngestError(err error) bool {
	return errors.Is(err, domain.ErrExtractionEmpty) ||
		errors.Is(err, domain.ErrDocumentNotFound) ||
		errors.Is(err, domain.ErrUnsupportedContentType)
}
