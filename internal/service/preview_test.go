package service

import (
	"context"
	"testing"
	"time"

	"github.com/cloo-solutions/studyrag/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestPreviewService_Open(t *testing.T) {
	ctx := context.Background()
	f := newDocumentFixture()
	doc := readyDocument("doc-1")
	pages := []domain.DocumentPage{{DocumentID: "doc-1", Number: 1, Text: "cells"}}
	f.docs.On("GetByID", mock.Anything, "doc-1").Return(doc, nil)
	f.pages.On("ListByDocument", mock.Anything, "doc-1").Return(pages, nil)
	f.storage.On("GenerateDownloadURL", mock.Anything, doc.StorageKey).Return("https://s3/get", nil)

	previews := NewPreviewService(f.svc)
	preview, err := previews.Open(ctx, "viewer-1", "doc-1")

	require.NoError(t, err)
	assert.Equal(t, pages, preview.Pages)
	assert.Equal(t, "https://s3/get", preview.DownloadURL)

	state := previews.State("viewer-1")
	assert.Equal(t, LoadStateReady, state.State)
	assert.Equal(t, "doc-1", state.ID)

	previews.Close("viewer-1")
	assert.Equal(t, LoadStateIdle, previews.State("viewer-1").State)
	assert.Equal(t, 0, previews.loaders.Len())
}

func TestPreviewService_StateDoesNotTrackUnknownViewers(t *testing.T) {
	f := newDocumentFixture()
	previews := NewPreviewService(f.svc)

	assert.Equal(t, LoadStateIdle, previews.State("viewer-9").State)
	assert.Equal(t, 0, previews.loaders.Len())
}

func TestPreviewService_IdleViewersAreEvicted(t *testing.T) {
	f := newDocumentFixture()
	doc := readyDocument("doc-1")
	f.docs.On("GetByID", mock.Anything, "doc-1").Return(doc, nil)
	f.pages.On("ListByDocument", mock.Anything, "doc-1").Return([]domain.DocumentPage{{DocumentID: "doc-1", Number: 1, Text: "cells"}}, nil)
	f.storage.On("GenerateDownloadURL", mock.Anything, doc.StorageKey).Return("https://s3/get", nil)

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	previews := NewPreviewServiceWithTTL(f.svc, time.Minute)
	previews.loaders.now = func() time.Time { return now }

	for _, viewer := range []string{"tab-1", "tab-2", "tab-3"} {
		_, err := previews.Open(context.Background(), viewer, "doc-1")
		require.NoError(t, err)
	}
	require.Equal(t, 3, previews.loaders.Len())

	now = now.Add(2 * time.Minute)
	_, err := previews.Open(context.Background(), "tab-4", "doc-1")
	require.NoError(t, err)

	assert.Equal(t, 1, previews.loaders.Len())
	assert.Equal(t, LoadStateIdle, previews.State("tab-1").State)
	assert.Equal(t, LoadStateReady, previews.State("tab-4").State)
}

func TestPreviewService_FailureIsVisibleInState(t *testing.T) {
	f := newDocumentFixture()
	doc := readyDocument("doc-1")
	doc.Status = domain.DocumentStatusEmpty
	f.docs.On("GetByID", mock.Anything, "doc-1").Return(doc, nil)

	previews := NewPreviewService(f.svc)
	_, err := previews.Open(context.Background(), "viewer-1", "doc-1")

	assert.ErrorIs(t, err, domain.ErrExtractionEmpty)
	assert.Equal(t, LoadStateFailed, previews.State("viewer-1").State)
}
