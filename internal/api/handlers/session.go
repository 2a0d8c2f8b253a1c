package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/cloo-solutions/studyrag/internal/api"
	"github.com/cloo-solutions/studyrag/internal/domain"
	"github.com/cloo-solutions/studyrag/internal/service"
	"github.com/go-chi/chi/v5"
)

type ChatService interface {
	CreateSession(ctx context.Context, input service.CreateSessionInput) (*domain.ChatSession, error)
	SetDocuments(ctx context.Context, sessionID string, documentIDs []string) (*domain.ChatSession, error)
	GetSession(ctx context.Context, sessionID string) (*domain.ChatSession, error)
	ListSessions(ctx context.Context) ([]*domain.ChatSession, error)
	DeleteSession(ctx context.Context, sessionID string) error
	Ask(ctx context.Context, input service.AskInput) (*service.AskResult, error)
}

type SessionHandler struct {
	svc ChatService
}

func NewSessionHandler(svc ChatService) *SessionHandler {
	return &SessionHandler{svc: svc}
}

type CreateSessionRequest struct {
	Title       string   `json:"title"`
	DocumentIDs []string `json:"document_ids"`
}

type SetDocumentsRequest struct {
	DocumentIDs []string `json:"document_ids"`
}

type AskRequest struct {
	Message string `json:"message"`
}

type CitationResponse struct {
	Page     int    `json:"page"`
	Snippet  string `json:"snippet"`
	SourceID string `json:"source_id"`
}

type MessageResponse struct {
	ID        string             `json:"id"`
	Role      string             `json:"role"`
	Content   string             `json:"content"`
	Citations []CitationResponse `json:"citations"`
	CreatedAt string             `json:"created_at"`
}

type SessionResponse struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	DocumentIDs []string          `json:"document_ids"`
	Messages    []MessageResponse `json:"messages,omitempty"`
	CreatedAt   string            `json:"created_at"`
	UpdatedAt   string            `json:"updated_at"`
}

type EvidenceResponse struct {
	Page     int     `json:"page"`
	SourceID string  `json:"source_id"`
	Score    float64 `json:"score"`
	Content  string  `json:"content"`
}

type AskResponse struct {
	Question MessageResponse    `json:"question"`
	Answer   MessageResponse    `json:"answer"`
	Evidence []EvidenceResponse `json:"evidence"`
}

func messageToResponse(m domain.ChatMessage) MessageResponse {
	citations := make([]CitationResponse, len(m.Citations))
	for i, c := range m.Citations {
		citations[i] = CitationResponse{Page: c.Page, Snippet: c.Snippet, SourceID: c.SourceID}
	}
	return MessageResponse{
		ID:        m.ID,
		Role:      string(m.Role),
		Content:   m.Content,
		Citations: citations,
		CreatedAt: m.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func sessionToResponse(s *domain.ChatSession) *SessionResponse {
	resp := &SessionResponse{
		ID:          s.ID,
		Title:       s.Title,
		DocumentIDs: s.DocumentIDs,
		CreatedAt:   s.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   s.UpdatedAt.UTC().Format(time.RFC3339),
	}
	for _, m := range s.Messages {
		resp.Messages = append(resp.Messages, messageToResponse(m))
	}
	return resp
}

func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.DocumentIDs) == 0 {
		api.Error(w, http.StatusBadRequest, "document_ids is required")
		return
	}

	session, err := h.svc.CreateSession(r.Context(), service.CreateSessionInput{
		Title:       req.Title,
		DocumentIDs: req.DocumentIDs,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, sessionToResponse(session))
}

func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.svc.ListSessions(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	out := make([]*SessionResponse, len(sessions))
	for i, s := range sessions {
		out[i] = sessionToResponse(s)
	}
	api.Success(w, http.StatusOK, out)
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	session, err := h.svc.GetSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, sessionToResponse(session))
}

// SetDocuments swaps the session's document selection. Only the latest of
// overlapping requests takes effect; the others answer 409.
func (h *SessionHandler) SetDocuments(w http.ResponseWriter, r *http.Request) {
	var req SetDocumentsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.DocumentIDs) == 0 {
		api.Error(w, http.StatusBadRequest, "document_ids is required")
		return
	}

	session, err := h.svc.SetDocuments(r.Context(), chi.URLParam(r, "id"), req.DocumentIDs)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, sessionToResponse(session))
}

func (h *SessionHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		api.Error(w, http.StatusBadRequest, "message is required")
		return
	}

	result, err := h.svc.Ask(r.Context(), service.AskInput{
		SessionID: chi.URLParam(r, "id"),
		Message:   req.Message,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	evidence := make([]EvidenceResponse, len(result.Evidence))
	for i, e := range result.Evidence {
		evidence[i] = EvidenceResponse{Page: e.Page, SourceID: e.SourceID, Score: e.Score, Content: e.Content}
	}
	api.Success(w, http.StatusOK, AskResponse{
		Question: messageToResponse(result.Question),
		Answer:   messageToResponse(result.Answer),
		Evidence: evidence,
	})
}

func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteSession(r.Context(), chi.URLParam(r, "id")); err != nil {
		api.HandleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
