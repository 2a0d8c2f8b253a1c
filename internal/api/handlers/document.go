package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/cloo-solutions/studyrag/internal/api"
	"github.com/cloo-solutions/studyrag/internal/api/middleware"
	"github.com/cloo-solutions/studyrag/internal/domain"
	"github.com/cloo-solutions/studyrag/internal/service"
	"github.com/go-chi/chi/v5"
)

const maxPageLimit = 100

type DocumentService interface {
	InitUpload(ctx context.Context, input service.InitUploadInput) (*service.InitUploadResult, error)
	CompleteUpload(ctx context.Context, input service.CompleteUploadInput) (*domain.Document, error)
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	ListPage(ctx context.Context, cursor string, limit int) (*service.DocumentPageResult, error)
	Pages(ctx context.Context, id string) ([]domain.DocumentPage, error)
	Delete(ctx context.Context, id string) error
}

type PreviewService interface {
	Open(ctx context.Context, viewerID, documentID string) (*service.DocumentPreview, error)
	State(viewerID string) service.LoaderSnapshot[*service.DocumentPreview]
	Close(viewerID string)
}

type DocumentHandler struct {
	svc     DocumentService
	preview PreviewService
}

func NewDocumentHandler(svc DocumentService, preview PreviewService) *DocumentHandler {
	return &DocumentHandler{svc: svc, preview: preview}
}

type InitUploadRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
}

type InitUploadResponse struct {
	DocumentID string `json:"document_id"`
	StorageKey string `json:"storage_key"`
	UploadURL  string `json:"upload_url"`
}

type CompleteUploadRequest struct {
	Filename   string `json:"filename"`
	StorageKey string `json:"storage_key"`
}

type DocumentResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
	TotalPages  int    `json:"total_pages"`
	UsablePages int    `json:"usable_pages"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

type PageResponse struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

type DocumentListResponse struct {
	Items      []*DocumentResponse `json:"items"`
	NextCursor string              `json:"next_cursor,omitempty"`
	HasMore    bool                `json:"has_more"`
}

type PreviewResponse struct {
	Document    *DocumentResponse `json:"document"`
	Pages       []PageResponse    `json:"pages"`
	DownloadURL string            `json:"download_url"`
}

type PreviewStateResponse struct {
	State      string `json:"state"`
	DocumentID string `json:"document_id,omitempty"`
	ErrorCode  string `json:"error_code,omitempty"`
}

func documentToResponse(d *domain.Document) *DocumentResponse {
	return &DocumentResponse{
		ID:          d.ID,
		Name:        d.Name,
		ContentType: d.ContentType,
		SizeBytes:   d.SizeBytes,
		TotalPages:  d.TotalPages,
		UsablePages: d.UsablePages,
		Status:      string(d.Status),
		CreatedAt:   d.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   d.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func pagesToResponse(pages []domain.DocumentPage) []PageResponse {
	out := make([]PageResponse, len(pages))
	for i, p := range pages {
		out[i] = PageResponse{Number: p.Number, Text: p.Text}
	}
	return out
}

func (h *DocumentHandler) InitUpload(w http.ResponseWriter, r *http.Request) {
	var req InitUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Filename == "" {
		api.Error(w, http.StatusBadRequest, "filename is required")
		return
	}
	if req.ContentType == "" {
		req.ContentType = domain.ContentTypePDF
	}

	result, err := h.svc.InitUpload(r.Context(), service.InitUploadInput{
		Filename:    req.Filename,
		ContentType: req.ContentType,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, InitUploadResponse{
		DocumentID: result.DocumentID,
		StorageKey: result.StorageKey,
		UploadURL:  result.UploadURL,
	})
}

func (h *DocumentHandler) CompleteUpload(w http.ResponseWriter, r *http.Request) {
	var req CompleteUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.StorageKey == "" {
		api.Error(w, http.StatusBadRequest, "storage_key is required")
		return
	}

	doc, err := h.svc.CompleteUpload(r.Context(), service.CompleteUploadInput{
		DocumentID: chi.URLParam(r, "id"),
		Filename:   req.Filename,
		StorageKey: req.StorageKey,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusAccepted, documentToResponse(doc))
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			api.Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxPageLimit)
	}

	page, err := h.svc.ListPage(r.Context(), r.URL.Query().Get("cursor"), limit)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	items := make([]*DocumentResponse, len(page.Items))
	for i, d := range page.Items {
		items[i] = documentToResponse(d)
	}
	api.Success(w, http.StatusOK, DocumentListResponse{
		Items:      items,
		NextCursor: page.NextCursor,
		HasMore:    page.HasMore,
	})
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	doc, err := h.svc.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, documentToResponse(doc))
}

func (h *DocumentHandler) Pages(w http.ResponseWriter, r *http.Request) {
	pages, err := h.svc.Pages(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, pagesToResponse(pages))
}

// Preview opens the document for the requesting viewer. When the same
// viewer has since opened another document the request answers 409.
func (h *DocumentHandler) Preview(w http.ResponseWriter, r *http.Request) {
	preview, err := h.preview.Open(r.Context(), viewerFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, PreviewResponse{
		Document:    documentToResponse(preview.Document),
		Pages:       pagesToResponse(preview.Pages),
		DownloadURL: preview.DownloadURL,
	})
}

// PreviewState reports what the requesting viewer has open.
func (h *DocumentHandler) PreviewState(w http.ResponseWriter, r *http.Request) {
	snap := h.preview.State(viewerFrom(r))
	resp := PreviewStateResponse{State: string(snap.State), DocumentID: snap.ID}
	if snap.Err != nil {
		resp.ErrorCode = domain.ErrCodeInternalError
		var domainErr *domain.DomainError
		if errors.As(snap.Err, &domainErr) {
			resp.ErrorCode = domainErr.Code
		}
	}
	api.Success(w, http.StatusOK, resp)
}

// ClosePreview releases the requesting viewer's preview.
func (h *DocumentHandler) ClosePreview(w http.ResponseWriter, r *http.Request) {
	h.preview.Close(viewerFrom(r))
	w.WriteHeader(http.StatusNoContent)
}

func viewerFrom(r *http.Request) string {
	if id := middleware.GetViewerID(r.Context()); id != "" {
		return id
	}
	return middleware.DefaultViewerID
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		api.HandleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
