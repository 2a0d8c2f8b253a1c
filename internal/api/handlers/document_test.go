package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cloo-solutions/studyrag/internal/api/middleware"
	"github.com/cloo-solutions/studyrag/internal/domain"
	"github.com/cloo-solutions/studyrag/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockDocumentService struct {
	mock.Mock
}

func (m *MockDocumentService) InitUpload(ctx context.Context, input service.InitUploadInput) (*service.InitUploadResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.InitUploadResult), args.Error(1)
}

func (m *MockDocumentService) CompleteUpload(ctx context.Context, input service.CompleteUploadInput) (*domain.Document, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentService) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentService) ListPage(ctx context.Context, cursor string, limit int) (*service.DocumentPageResult, error) {
	args := m.Called(ctx, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DocumentPageResult), args.Error(1)
}

func (m *MockDocumentService) Pages(ctx context.Context, id string) ([]domain.DocumentPage, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.DocumentPage), args.Error(1)
}

func (m *MockDocumentService) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockPreviewService struct {
	mock.Mock
}

func (m *MockPreviewService) Open(ctx context.Context, viewerID, documentID string) (*service.DocumentPreview, error) {
	args := m.Called(ctx, viewerID, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DocumentPreview), args.Error(1)
}

func (m *MockPreviewService) State(viewerID string) service.LoaderSnapshot[*service.DocumentPreview] {
	args := m.Called(viewerID)
	return args.Get(0).(service.LoaderSnapshot[*service.DocumentPreview])
}

func (m *MockPreviewService) Close(viewerID string) {
	m.Called(viewerID)
}

func newTestDocument() *domain.Document {
	doc := domain.NewDocument("doc-1", "biology.pdf", "documents/doc-1/biology.pdf", domain.ContentTypePDF, 2048,
		time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	doc.Status = domain.DocumentStatusReady
	doc.TotalPages = 3
	doc.UsablePages = 2
	return doc
}

func TestDocumentHandler_InitUpload_Success(t *testing.T) {
	svc := new(MockDocumentService)
	handler := NewDocumentHandler(svc, nil)

	svc.On("InitUpload", mock.Anything, service.InitUploadInput{Filename: "biology.pdf", ContentType: domain.ContentTypePDF}).
		Return(&service.InitUploadResult{DocumentID: "doc-1", StorageKey: "documents/doc-1/biology.pdf", UploadURL: "https://s3/put"}, nil)

	w := httptest.NewRecorder()
	handler.InitUpload(w, newRequest(http.MethodPost, "/documents/init", `{"filename":"biology.pdf"}`))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp InitUploadResponse
	decodeData(t, w, &resp)
	assert.Equal(t, "doc-1", resp.DocumentID)
	assert.Equal(t, "https://s3/put", resp.UploadURL)
	svc.AssertExpectations(t)
}

func TestDocumentHandler_InitUpload_MissingFilename(t *testing.T) {
	svc := new(MockDocumentService)
	handler := NewDocumentHandler(svc, nil)

	w := httptest.NewRecorder()
	handler.InitUpload(w, newRequest(http.MethodPost, "/documents/init", `{}`))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNotCalled(t, "InitUpload", mock.Anything, mock.Anything)
}

func TestDocumentHandler_InitUpload_UnsupportedType(t *testing.T) {
	svc := new(MockDocumentService)
	handler := NewDocumentHandler(svc, nil)
	svc.On("InitUpload", mock.Anything, mock.Anything).Return(nil, domain.ErrUnsupportedContentType)

	w := httptest.NewRecorder()
	handler.InitUpload(w, newRequest(http.MethodPost, "/documents/init", `{"filename":"a.docx","content_type":"application/msword"}`))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, domain.ErrCodeValidation, decodeError(t, w)["code"])
}

func TestDocumentHandler_CompleteUpload_Accepted(t *testing.T) {
	svc := new(MockDocumentService)
	handler := NewDocumentHandler(svc, nil)
	doc := newTestDocument()
	doc.Status = domain.DocumentStatusPending

	svc.On("CompleteUpload", mock.Anything, service.CompleteUploadInput{
		DocumentID: "doc-1",
		Filename:   "biology.pdf",
		StorageKey: "documents/doc-1/biology.pdf",
	}).Return(doc, nil)

	req := newRequest(http.MethodPost, "/documents/doc-1/complete", `{"filename":"biology.pdf","storage_key":"documents/doc-1/biology.pdf"}`)
	w := httptest.NewRecorder()
	handler.CompleteUpload(w, withURLParam(req, "id", "doc-1"))

	assert.Equal(t, http.StatusAccepted, w.Code)
	var resp DocumentResponse
	decodeData(t, w, &resp)
	assert.Equal(t, "pending", resp.Status)
	svc.AssertExpectations(t)
}

func TestDocumentHandler_CompleteUpload_InvalidBody(t *testing.T) {
	handler := NewDocumentHandler(new(MockDocumentService), nil)

	w := httptest.NewRecorder()
	handler.CompleteUpload(w, withURLParam(newRequest(http.MethodPost, "/documents/doc-1/complete", `{`), "id", "doc-1"))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDocumentHandler_List(t *testing.T) {
	t.Run("defaults limit", func(t *testing.T) {
		svc := new(MockDocumentService)
		handler := NewDocumentHandler(svc, nil)
		svc.On("ListPage", mock.Anything, "", 20).Return(&service.DocumentPageResult{
			Items:      []*domain.Document{newTestDocument()},
			NextCursor: "abc",
			HasMore:    true,
		}, nil)

		w := httptest.NewRecorder()
		handler.List(w, newRequest(http.MethodGet, "/documents", ""))

		assert.Equal(t, http.StatusOK, w.Code)
		var resp DocumentListResponse
		decodeData(t, w, &resp)
		assert.Len(t, resp.Items, 1)
		assert.Equal(t, "abc", resp.NextCursor)
		assert.True(t, resp.HasMore)
	})

	t.Run("caps limit and forwards cursor", func(t *testing.T) {
		svc := new(MockDocumentService)
		handler := NewDocumentHandler(svc, nil)
		svc.On("ListPage", mock.Anything, "xyz", maxPageLimit).Return(&service.DocumentPageResult{}, nil)

		w := httptest.NewRecorder()
		handler.List(w, newRequest(http.MethodGet, "/documents?limit=500&cursor=xyz", ""))

		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("rejects bad limit", func(t *testing.T) {
		svc := new(MockDocumentService)
		handler := NewDocumentHandler(svc, nil)

		w := httptest.NewRecorder()
		handler.List(w, newRequest(http.MethodGet, "/documents?limit=abc", ""))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestDocumentHandler_Get_NotFound(t *testing.T) {
	svc := new(MockDocumentService)
	handler := NewDocumentHandler(svc, nil)
	svc.On("GetByID", mock.Anything, "doc-9").Return(nil, domain.ErrDocumentNotFound)

	w := httptest.NewRecorder()
	handler.Get(w, withURLParam(newRequest(http.MethodGet, "/documents/doc-9", ""), "id", "doc-9"))

	assert.Equal(t, http.StatusNotFound, w.Code)
	svc.AssertExpectations(t)
}

func TestDocumentHandler_Pages(t *testing.T) {
	t.Run("returns pages", func(t *testing.T) {
		svc := new(MockDocumentService)
		handler := NewDocumentHandler(svc, nil)
		svc.On("Pages", mock.Anything, "doc-1").Return([]domain.DocumentPage{
			{DocumentID: "doc-1", Number: 1, Text: "Cells are the unit of life."},
		}, nil)

		w := httptest.NewRecorder()
		handler.Pages(w, withURLParam(newRequest(http.MethodGet, "/documents/doc-1/pages", ""), "id", "doc-1"))

		assert.Equal(t, http.StatusOK, w.Code)
		var resp []PageResponse
		decodeData(t, w, &resp)
		assert.Equal(t, []PageResponse{{Number: 1, Text: "Cells are the unit of life."}}, resp)
	})

	t.Run("empty extraction is unprocessable", func(t *testing.T) {
		svc := new(MockDocumentService)
		handler := NewDocumentHandler(svc, nil)
		svc.On("Pages", mock.Anything, "doc-1").Return(nil, domain.ErrExtractionEmpty)

		w := httptest.NewRecorder()
		handler.Pages(w, withURLParam(newRequest(http.MethodGet, "/documents/doc-1/pages", ""), "id", "doc-1"))

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, domain.ErrCodeExtractionEmpty, decodeError(t, w)["code"])
	})
}

func TestDocumentHandler_Preview(t *testing.T) {
	t.Run("uses viewer from context", func(t *testing.T) {
		preview := new(MockPreviewService)
		handler := NewDocumentHandler(new(MockDocumentService), preview)
		preview.On("Open", mock.Anything, "tab-1", "doc-1").Return(&service.DocumentPreview{
			Document:    newTestDocument(),
			Pages:       []domain.DocumentPage{{Number: 2, Text: "Mitosis"}},
			DownloadURL: "https://s3/get",
		}, nil)

		req := withURLParam(newRequest(http.MethodGet, "/documents/doc-1/preview", ""), "id", "doc-1")
		req = req.WithContext(context.WithValue(req.Context(), middleware.ViewerIDKey, "tab-1"))
		w := httptest.NewRecorder()
		handler.Preview(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp PreviewResponse
		decodeData(t, w, &resp)
		assert.Equal(t, "https://s3/get", resp.DownloadURL)
		assert.Equal(t, 2, resp.Pages[0].Number)
		preview.AssertExpectations(t)
	})

	t.Run("superseded preview conflicts", func(t *testing.T) {
		preview := new(MockPreviewService)
		handler := NewDocumentHandler(new(MockDocumentService), preview)
		preview.On("Open", mock.Anything, middleware.DefaultViewerID, "doc-1").Return(nil, domain.ErrStaleResult)

		w := httptest.NewRecorder()
		handler.Preview(w, withURLParam(newRequest(http.MethodGet, "/documents/doc-1/preview", ""), "id", "doc-1"))

		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestDocumentHandler_PreviewState(t *testing.T) {
	t.Run("ready viewer", func(t *testing.T) {
		preview := new(MockPreviewService)
		handler := NewDocumentHandler(new(MockDocumentService), preview)
		preview.On("State", "tab-1").Return(service.LoaderSnapshot[*service.DocumentPreview]{
			State: service.LoadStateReady,
			ID:    "doc-1",
		})

		req := newRequest(http.MethodGet, "/documents/preview", "")
		req = req.WithContext(context.WithValue(req.Context(), middleware.ViewerIDKey, "tab-1"))
		w := httptest.NewRecorder()
		handler.PreviewState(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp PreviewStateResponse
		decodeData(t, w, &resp)
		assert.Equal(t, "ready", resp.State)
		assert.Equal(t, "doc-1", resp.DocumentID)
		assert.Empty(t, resp.ErrorCode)
	})

	t.Run("failed load reports code only", func(t *testing.T) {
		preview := new(MockPreviewService)
		handler := NewDocumentHandler(new(MockDocumentService), preview)
		preview.On("State", middleware.DefaultViewerID).Return(service.LoaderSnapshot[*service.DocumentPreview]{
			State: service.LoadStateFailed,
			ID:    "doc-1",
			Err:   domain.ErrExtractionEmpty,
		})

		w := httptest.NewRecorder()
		handler.PreviewState(w, newRequest(http.MethodGet, "/documents/preview", ""))

		var resp PreviewStateResponse
		decodeData(t, w, &resp)
		assert.Equal(t, "failed", resp.State)
		assert.Equal(t, domain.ErrCodeExtractionEmpty, resp.ErrorCode)
	})
}

func TestDocumentHandler_ClosePreview(t *testing.T) {
	preview := new(MockPreviewService)
	handler := NewDocumentHandler(new(MockDocumentService), preview)
	preview.On("Close", "tab-1").Return()

	req := newRequest(http.MethodDelete, "/documents/preview", "")
	req = req.WithContext(context.WithValue(req.Context(), middleware.ViewerIDKey, "tab-1"))
	w := httptest.NewRecorder()
	handler.ClosePreview(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	preview.AssertExpectations(t)
}

func TestDocumentHandler_Delete(t *testing.T) {
	t.Run("no content", func(t *testing.T) {
		svc := new(MockDocumentService)
		handler := NewDocumentHandler(svc, nil)
		svc.On("Delete", mock.Anything, "doc-1").Return(nil)

		w := httptest.NewRecorder()
		handler.Delete(w, withURLParam(newRequest(http.MethodDelete, "/documents/doc-1", ""), "id", "doc-1"))

		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("storage failure hides details", func(t *testing.T) {
		svc := new(MockDocumentService)
		handler := NewDocumentHandler(svc, nil)
		svc.On("Delete", mock.Anything, "doc-1").Return(errors.New("s3: access denied"))

		w := httptest.NewRecorder()
		handler.Delete(w, withURLParam(newRequest(http.MethodDelete, "/documents/doc-1", ""), "id", "doc-1"))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "internal server error", decodeError(t, w)["error"])
	})
}
