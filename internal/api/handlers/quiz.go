package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/cloo-solutions/studyrag/internal/api"
	"github.com/cloo-solutions/studyrag/internal/domain"
	"github.com/cloo-solutions/studyrag/internal/service"
	"github.com/go-chi/chi/v5"
)

type QuizService interface {
	Generate(ctx context.Context, input service.GenerateQuizInput) (*domain.Quiz, error)
	GetByID(ctx context.Context, quizID string) (*domain.Quiz, error)
	List(ctx context.Context) ([]*domain.Quiz, error)
	ListAttempts(ctx context.Context, quizID string) ([]*domain.Attempt, error)
	SubmitAttempt(ctx context.Context, input service.SubmitAttemptInput) (*service.AttemptResult, error)
	GradeAnswer(input service.GradeAnswerInput) (domain.AnswerEvaluation, error)
}

type QuizHandler struct {
	svc QuizService
}

func NewQuizHandler(svc QuizService) *QuizHandler {
	return &QuizHandler{svc: svc}
}

type GenerateQuizRequest struct {
	DocumentIDs []string `json:"document_ids"`
	Type        string   `json:"type"`
	Count       int      `json:"count"`
	Difficulty  string   `json:"difficulty"`
}

type SubmitAttemptRequest struct {
	Answers          map[string]string `json:"answers"`
	TimeSpentSeconds int               `json:"time_spent_seconds"`
}

type GradeRequest struct {
	UserAnswer    string `json:"user_answer"`
	CorrectAnswer string `json:"correct_answer"`
	Explanation   string `json:"explanation"`
}

type QuestionResponse struct {
	ID            string   `json:"id"`
	Type          string   `json:"type"`
	Question      string   `json:"question"`
	Options       []string `json:"options,omitempty"`
	CorrectAnswer string   `json:"correct_answer"`
	Explanation   string   `json:"explanation"`
	Topic         string   `json:"topic"`
	Difficulty    string   `json:"difficulty"`
	PageReference int      `json:"page_reference,omitempty"`
	SourceSnippet string   `json:"source_snippet,omitempty"`
}

type QuizResponse struct {
	ID          string             `json:"id"`
	DocumentIDs []string           `json:"document_ids"`
	Type        string             `json:"type"`
	Questions   []QuestionResponse `json:"questions"`
	CreatedAt   string             `json:"created_at"`
}

type AttemptResponse struct {
	ID               string            `json:"id"`
	QuizID           string            `json:"quiz_id"`
	Answers          map[string]string `json:"answers"`
	Score            int               `json:"score"`
	MaxScore         int               `json:"max_score"`
	CorrectIDs       []string          `json:"correct_ids"`
	IncorrectIDs     []string          `json:"incorrect_ids"`
	TimeSpentSeconds int               `json:"time_spent_seconds"`
	CompletedAt      string            `json:"completed_at"`
}

type AttemptResultResponse struct {
	Attempt     *AttemptResponse                   `json:"attempt"`
	Evaluations map[string]domain.AnswerEvaluation `json:"evaluations"`
}

func quizToResponse(q *domain.Quiz) *QuizResponse {
	questions := make([]QuestionResponse, len(q.Questions))
	for i, question := range q.Questions {
		resp := QuestionResponse{
			ID:            question.ID,
			Type:          string(question.Type),
			Question:      question.Text,
			CorrectAnswer: question.CorrectAnswer,
			Explanation:   question.Explanation,
			Topic:         question.Topic,
			Difficulty:    string(question.Difficulty),
			PageReference: question.PageReference,
			SourceSnippet: question.SourceSnippet,
		}
		if question.Options != nil {
			resp.Options = question.Options[:]
		}
		questions[i] = resp
	}
	return &QuizResponse{
		ID:          q.ID,
		DocumentIDs: q.DocumentIDs,
		Type:        string(q.Type),
		Questions:   questions,
		CreatedAt:   q.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func attemptToResponse(a *domain.Attempt) *AttemptResponse {
	return &AttemptResponse{
		ID:               a.ID,
		QuizID:           a.QuizID,
		Answers:          a.Answers,
		Score:            a.Score,
		MaxScore:         a.MaxScore,
		CorrectIDs:       nonNil(a.CorrectIDs),
		IncorrectIDs:     nonNil(a.IncorrectIDs),
		TimeSpentSeconds: int(a.TimeSpent / time.Second),
		CompletedAt:      a.CompletedAt.UTC().Format(time.RFC3339),
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func (h *QuizHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req GenerateQuizRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.DocumentIDs) == 0 {
		api.Error(w, http.StatusBadRequest, "document_ids is required")
		return
	}
	if req.Type == "" {
		req.Type = string(domain.QuizTypeMixed)
	}

	quiz, err := h.svc.Generate(r.Context(), service.GenerateQuizInput{
		DocumentIDs: req.DocumentIDs,
		Type:        domain.QuizType(req.Type),
		Questions:   req.Count,
		Difficulty:  domain.Difficulty(req.Difficulty),
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, quizToResponse(quiz))
}

func (h *QuizHandler) List(w http.ResponseWriter, r *http.Request) {
	quizzes, err := h.svc.List(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	out := make([]*QuizResponse, len(quizzes))
	for i, q := range quizzes {
		out[i] = quizToResponse(q)
	}
	api.Success(w, http.StatusOK, out)
}

func (h *QuizHandler) Get(w http.ResponseWriter, r *http.Request) {
	quiz, err := h.svc.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, quizToResponse(quiz))
}

func (h *QuizHandler) ListAttempts(w http.ResponseWriter, r *http.Request) {
	attempts, err := h.svc.ListAttempts(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	out := make([]*AttemptResponse, len(attempts))
	for i, a := range attempts {
		out[i] = attemptToResponse(a)
	}
	api.Success(w, http.StatusOK, out)
}

func (h *QuizHandler) SubmitAttempt(w http.ResponseWriter, r *http.Request) {
	var req SubmitAttemptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TimeSpentSeconds < 0 {
		api.Error(w, http.StatusBadRequest, "time_spent_seconds cannot be negative")
		return
	}

	result, err := h.svc.SubmitAttempt(r.Context(), service.SubmitAttemptInput{
		QuizID:    chi.URLParam(r, "id"),
		Answers:   req.Answers,
		TimeSpent: time.Duration(req.TimeSpentSeconds) * time.Second,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, AttemptResultResponse{
		Attempt:     attemptToResponse(result.Attempt),
		Evaluations: result.Evaluations,
	})
}

// Grade scores a single free-text answer without touching any quiz.
func (h *QuizHandler) Grade(w http.ResponseWriter, r *http.Request) {
	var req GradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	eval, err := h.svc.GradeAnswer(service.GradeAnswerInput{
		UserAnswer:    req.UserAnswer,
		CorrectAnswer: req.CorrectAnswer,
		Explanation:   req.Explanation,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, eval)
}
