package service

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/cloo-solutions/studyrag/internal/domain"
	"github.com/cloo-solutions/studyrag/internal/pagination"
	"github.com/cloo-solutions/studyrag/internal/telemetry"
)

// StorageClientInterface is the object store holding uploaded PDFs.
type StorageClientInterface interface {
	GenerateUploadURL(ctx context.Context, key string, contentType string) (string, error)
	GenerateDownloadURL(ctx context.Context, key string) (string, error)
	DeleteObject(ctx context.Context, key string) error
	HeadObject(ctx context.Context, key string) (*ObjectMetadata, error)
	GetObject(ctx context.Context, key string) ([]byte, error)
}

type ObjectMetadata struct {
	ContentLength int64
	ContentType   string
	ETag          string
}

// DocumentRepositoryInterface defines the repository interface for document persistence
type DocumentRepositoryInterface interface {
	Create(ctx context.Context, d *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	ListWithCursor(ctx context.Context, cursor *pagination.Cursor, limit int) (*DocumentPageResult, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, totalPages, usablePages int) error
	Delete(ctx context.Context, id string) error
}

// DocumentPageResult is one page of documents, newest first
type DocumentPageResult struct {
	Items      []*domain.Document
	NextCursor string
	HasMore    bool
}

// PageRepositoryInterface stores the cleaned pages of ingested documents
type PageRepositoryInterface interface {
	ReplacePages(ctx context.Context, documentID string, pages []domain.DocumentPage) error
	ListByDocument(ctx context.Context, documentID string) ([]domain.DocumentPage, error)
}

// IngestJobRepositoryInterface defines the repository interface for queuing ingest jobs
type IngestJobRepositoryInterface interface {
	Create(ctx context.Context, job *domain.IngestJob) error
}

// DocumentService handles uploads and reads of source documents
type DocumentService struct {
	docRepo    DocumentRepositoryInterface
	pageRepo   PageRepositoryInterface
	ingestRepo IngestJobRepositoryInterface
	storage    StorageClientInterface
	uuidGen    UUIDGenerator
	txRunner   TxRunner
}

func NewDocumentService(
	docRepo DocumentRepositoryInterface,
	pageRepo PageRepositoryInterface,
	ingestRepo IngestJobRepositoryInterface,
	storage StorageClientInterface,
	txRunner TxRunner,
) *DocumentService {
	return NewDocumentServiceWithUUIDGen(docRepo, pageRepo, ingestRepo, storage, txRunner, &DefaultUUIDGenerator{})
}

// NewDocumentServiceWithUUIDGen creates a DocumentService with a custom UUID generator (for testing)
func NewDocumentServiceWithUUIDGen(
	docRepo DocumentRepositoryInterface,
	pageRepo PageRepositoryInterface,
	ingestRepo IngestJobRepositoryInterface,
	storage StorageClientInterface,
	txRunner TxRunner,
	uuidGen UUIDGenerator,
) *DocumentService {
	return &DocumentService{
		docRepo:    docRepo,
		pageRepo:   pageRepo,
		ingestRepo: ingestRepo,
		storage:    storage,
		uuidGen:    uuidGen,
		txRunner:   txRunner,
	}
}

type InitUploadInput struct {
	Filename    string
	ContentType string
}

type InitUploadResult struct {
	DocumentID string
	StorageKey string
	UploadURL  string
}

// InitUpload reserves a document id and returns a presigned upload URL.
func (s *DocumentService) InitUpload(ctx context.Context, input InitUploadInput) (*InitUploadResult, error) {
	if strings.TrimSpace(input.Filename) == "" {
		return nil, fmt.Errorf("%w: filename", domain.ErrMissingRequiredField)
	}
	if input.ContentType != domain.ContentTypePDF {
		return nil, domain.ErrUnsupportedContentType
	}

	documentID := s.uuidGen.NewString()
	storageKey := buildStorageKey(documentID, input.Filename)

	uploadURL, err := s.storage.GenerateUploadURL(ctx, storageKey, input.ContentType)
	if err != nil {
		return nil, fmt.Errorf("failed to generate upload URL: %w", err)
	}

	return &InitUploadResult{
		DocumentID: documentID,
		StorageKey: storageKey,
		UploadURL:  uploadURL,
	}, nil
}

type CompleteUploadInput struct {
	DocumentID string
	Filename   string
	StorageKey string
}

// CompleteUpload records an uploaded document and queues it for ingestion.
func (s *DocumentService) CompleteUpload(ctx context.Context, input CompleteUploadInput) (*domain.Document, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.CompleteUpload", telemetry.SpanAttributes{
		DocumentID: input.DocumentID,
		Operation:  "complete_upload",
	})
	defer span.End()

	if input.StorageKey != buildStorageKey(input.DocumentID, input.Filename) {
		return nil, fmt.Errorf("%w: storage key does not match document", domain.ErrMissingRequiredField)
	}

	meta, err := s.storage.HeadObject(ctx, input.StorageKey)
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("failed to verify uploaded file: %w", err)
	}

	contentType := meta.ContentType
	if contentType == "" {
		contentType = domain.ContentTypePDF
	}

	now := time.Now().UTC()
	doc := domain.NewDocument(input.DocumentID, input.Filename, input.StorageKey, contentType, meta.ContentLength, now)
	if err := domain.ValidateDocument(doc); err != nil {
		return nil, err
	}
	job := domain.NewIngestJob(s.uuidGen.NewString(), doc.ID, now)

	err = s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Documents().Create(ctx, doc); err != nil {
			return fmt.Errorf("failed to create document record: %w", err)
		}
		if err := repos.IngestJobs().Create(ctx, job); err != nil {
			return fmt.Errorf("failed to create ingest job: %w", err)
		}
		return nil
	})
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	return doc, nil
}

func (s *DocumentService) GetByID(ctx context.Context, documentID string) (*domain.Document, error) {
	return s.docRepo.GetByID(ctx, documentID)
}

// ListPage returns documents newest first, continuing after cursor.
func (s *DocumentService) ListPage(ctx context.Context, cursor string, limit int) (*DocumentPageResult, error) {
	c, err := pagination.DecodeCursor(cursor)
	if err != nil {
		return nil, fmt.Errorf("%w: cursor", domain.ErrMissingRequiredField)
	}
	return s.docRepo.ListWithCursor(ctx, c, limit)
}

// Pages returns the cleaned pages of a ready document.
func (s *DocumentService) Pages(ctx context.Context, documentID string) ([]domain.DocumentPage, error) {
	doc, err := s.docRepo.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if !doc.IsReady() {
		return nil, notReadyError(doc)
	}
	return s.pageRepo.ListByDocument(ctx, documentID)
}

func (s *DocumentService) GetDownloadURL(ctx context.Context, documentID string) (string, error) {
	doc, err := s.docRepo.GetByID(ctx, documentID)
	if err != nil {
		return "", err
	}

	url, err := s.storage.GenerateDownloadURL(ctx, doc.StorageKey)
	if err != nil {
		return "", fmt.Errorf("failed to generate download URL: %w", err)
	}
	return url, nil
}

func (s *DocumentService) Delete(ctx context.Context, documentID string) error {
	doc, err := s.docRepo.GetByID(ctx, documentID)
	if err != nil {
		return err
	}

	if err := s.storage.DeleteObject(ctx, doc.StorageKey); err != nil {
		return fmt.Errorf("failed to delete from storage: %w", err)
	}

	if err := s.docRepo.Delete(ctx, documentID); err != nil {
		return fmt.Errorf("failed to delete document record: %w", err)
	}
	return nil
}

// notReadyError maps a document that cannot serve content to its error.
func notReadyError(doc *domain.Document) error {
	if doc.Status == domain.DocumentStatusEmpty {
		return fmt.Errorf("%w: %s", domain.ErrExtractionEmpty, doc.Name)
	}
	return fmt.Errorf("%w: %s is %s", domain.ErrDocumentNotReady, doc.Name, doc.Status)
}

func buildStorageKey(documentID, filename string) string {
	return fmt.Sprintf("documents/%s/%s", documentID, path.Base(filename))
}
