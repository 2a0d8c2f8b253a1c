package handlers

import (
	"context"
	"net/http"

	"github.com/cloo-solutions/studyrag/internal/api"
	"github.com/cloo-solutions/studyrag/internal/domain"
	"github.com/cloo-solutions/studyrag/internal/service"
)

type ProgressService interface {
	Calculate(ctx context.Context) (*domain.Progress, error)
}

type ProgressHandler struct {
	svc ProgressService
}

func NewProgressHandler(svc ProgressService) *ProgressHandler {
	return &ProgressHandler{svc: svc}
}

type ProgressResponse struct {
	TotalQuizzes   int                          `json:"total_quizzes"`
	AverageScore   float64                      `json:"average_score"`
	Strengths      []string                     `json:"strengths"`
	Weaknesses     []string                     `json:"weaknesses"`
	TopicScores    map[string]domain.TopicScore `json:"topic_scores"`
	RecentAttempts []*AttemptResponse           `json:"recent_attempts"`
}

func (h *ProgressHandler) Get(w http.ResponseWriter, r *http.Request) {
	progress, err := h.svc.Calculate(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	recent := make([]*AttemptResponse, len(progress.RecentAttempts))
	for i, a := range progress.RecentAttempts {
		recent[i] = attemptToResponse(a)
	}
	topics := progress.TopicScores
	if topics == nil {
		topics = map[string]domain.TopicScore{}
	}

	api.Success(w, http.StatusOK, ProgressResponse{
		TotalQuizzes:   progress.TotalQuizzes,
		AverageScore:   progress.AverageScore,
		Strengths:      nonNil(progress.Strengths),
		Weaknesses:     nonNil(progress.Weaknesses),
		TopicScores:    topics,
		RecentAttempts: recent,
	})
}

type RecommendationService interface {
	ForTopic(ctx context.Context, topic, extra string) (*service.StudyRecommendation, error)
	ForWeaknesses(ctx context.Context) ([]service.StudyRecommendation, error)
}

type RecommendationHandler struct {
	svc RecommendationService
}

func NewRecommendationHandler(svc RecommendationService) *RecommendationHandler {
	return &RecommendationHandler{svc: svc}
}

type RecommendationResponse struct {
	Topic   string   `json:"topic"`
	Queries []string `json:"queries"`
}

// Get answers ?topic= with queries for that topic, and otherwise with
// queries for each weak topic in the quiz history.
func (h *RecommendationHandler) Get(w http.ResponseWriter, r *http.Request) {
	if topic := r.URL.Query().Get("topic"); topic != "" {
		rec, err := h.svc.ForTopic(r.Context(), topic, r.URL.Query().Get("context"))
		if err != nil {
			api.HandleError(w, err)
			return
		}
		api.Success(w, http.StatusOK, []RecommendationResponse{recommendationToResponse(*rec)})
		return
	}

	recs, err := h.svc.ForWeaknesses(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}
	resp := make([]RecommendationResponse, len(recs))
	for i, rec := range recs {
		resp[i] = recommendationToResponse(rec)
	}
	api.Success(w, http.StatusOK, resp)
}

func recommendationToResponse(rec service.StudyRecommendation) RecommendationResponse {
	return RecommendationResponse{Topic: rec.Topic, Queries: nonNil(rec.Queries)}
}
