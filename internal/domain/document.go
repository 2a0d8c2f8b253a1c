package domain

import (
	"fmt"
	"time"
)

// DocumentStatus tracks a document through ingestion
type DocumentStatus string

const (
	DocumentStatusPending    DocumentStatus = "pending"
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusReady      DocumentStatus = "ready"
	DocumentStatusEmpty      DocumentStatus = "empty"
	DocumentStatusFailed     DocumentStatus = "failed"
)

// ContentTypePDF is the only content type the ingestion pipeline decodes.
const ContentTypePDF = "application/pdf"

// Document is an uploaded source (one PDF) that can be selected for chat and quizzes.
type Document struct {
	ID          string
	Name        string
	StorageKey  string
	ContentType string
	SizeBytes   int64
	TotalPages  int
	UsablePages int
	Status      DocumentStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RawPage is one physical page of text as produced by the PDF decoder.
// Number starts at 1 and is strictly increasing within a document.
type RawPage struct {
	Number int
	Text   string
}

// DocumentPage is the cleaned text of one accepted page, stored after ingestion.
type DocumentPage struct {
	DocumentID string
	Number     int
	Text       string
}

// NewDocument creates a pending Document
func NewDocument(id, name, storageKey, contentType string, sizeBytes int64, createdAt time.Time) *Document {
	return &Document{
		ID:          id,
		Name:        name,
		StorageKey:  storageKey,
		ContentType: contentType,
		SizeBytes:   sizeBytes,
		Status:      DocumentStatusPending,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
}

// IsReady reports whether the document has cleaned pages available.
func (d *Document) IsReady() bool {
	return d != nil && d.Status == DocumentStatusReady
}

// ValidateDocument validates a Document instance
func ValidateDocument(d *Document) error {
	if d == nil {
		return fmt.Errorf("document cannot be nil")
	}

	if d.ID == "" {
		return fmt.Errorf("document ID is required")
	}

	if d.Name == "" {
		return fmt.Errorf("document Name is required")
	}

	if d.StorageKey == "" {
		return fmt.Errorf("document StorageKey is required")
	}

	if d.ContentType != ContentTypePDF {
		return ErrUnsupportedContentType
	}

	if !isValidDocumentStatus(d.Status) {
		return fmt.Errorf("document Status is invalid: %s", d.Status)
	}

	return nil
}

// ValidatePages checks the page-order invariant: numbers start at 1 and are contiguous.
func ValidatePages(pages []RawPage) error {
	for i, p := range pages {
		if p.Number != i+1 {
			return fmt.Errorf("page %d out of order: expected %d", p.Number, i+1)
		}
	}
	return nil
}

func isValidDocumentStatus(s DocumentStatus) bool {
	switch s {
	case DocumentStatusPending, DocumentStatusProcessing, DocumentStatusReady,
		DocumentStatusEmpty, DocumentStatusFailed:
		return true
	}
	return false
}
