package service

import (
	"context"
	"time"

	"github.com/cloo-solutions/studyrag/internal/domain"
)

// DocumentPreview is what a viewer shows for the selected document.
type DocumentPreview struct {
	Document    *domain.Document
	Pages       []domain.DocumentPage
	DownloadURL string
}

// DefaultPreviewIdleTTL is how long a viewer's preview is kept without use.
const DefaultPreviewIdleTTL = 30 * time.Minute

// PreviewService tracks the document each viewer has open. A viewer that
// switches documents quickly only ever sees the last selection.
type PreviewService struct {
	loaders *LoaderSet[*DocumentPreview]
}

func NewPreviewService(documents *DocumentService) *PreviewService {
	return NewPreviewServiceWithTTL(documents, DefaultPreviewIdleTTL)
}

// NewPreviewServiceWithTTL drops viewers idle for longer than idleTTL. A
// non-positive idleTTL keeps viewers until Close.
func NewPreviewServiceWithTTL(documents *DocumentService, idleTTL time.Duration) *PreviewService {
	fetch := func(ctx context.Context, documentID string) (*DocumentPreview, func(), error) {
		pages, err := documents.Pages(ctx, documentID)
		if err != nil {
			return nil, nil, err
		}
		doc, err := documents.GetByID(ctx, documentID)
		if err != nil {
			return nil, nil, err
		}
		url, err := documents.GetDownloadURL(ctx, documentID)
		if err != nil {
			return nil, nil, err
		}
		return &DocumentPreview{Document: doc, Pages: pages, DownloadURL: url}, nil, nil
	}
	return &PreviewService{loaders: NewLoaderSet(fetch).WithIdleTTL(idleTTL)}
}

// Open selects documentID for the viewer. A request overtaken by a newer
// selection from the same viewer returns domain.ErrStaleResult.
func (s *PreviewService) Open(ctx context.Context, viewerID, documentID string) (*DocumentPreview, error) {
	return s.loaders.For(viewerID).Load(ctx, documentID)
}

// State reports the viewer's current load state. Unknown viewers are idle.
func (s *PreviewService) State(viewerID string) LoaderSnapshot[*DocumentPreview] {
	l, ok := s.loaders.Peek(viewerID)
	if !ok {
		return LoaderSnapshot[*DocumentPreview]{State: LoadStateIdle}
	}
	return l.Snapshot()
}

// Close forgets the viewer and releases its preview.
func (s *PreviewService) Close(viewerID string) {
	s.loaders.Drop(viewerID)
}
