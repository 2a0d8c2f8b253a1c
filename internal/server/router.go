package server

import (
	"net/http"

	"github.com/cloo-solutions/studyrag/internal/api"
	"github.com/cloo-solutions/studyrag/internal/api/handlers"
	"github.com/cloo-solutions/studyrag/internal/api/middleware"
	"github.com/go-chi/chi/v5"
)

type RouterConfig struct {
	DocumentHandler *handlers.DocumentHandler
	SessionHandler  *handlers.SessionHandler
	QuizHandler     *handlers.QuizHandler
	ProgressHandler *handlers.ProgressHandler

	// Optional; without it the route is absent.
	RecommendationHandler *handlers.RecommendationHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 1 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.Viewer)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/documents", func(r chi.Router) {
		r.Post("/init", cfg.DocumentHandler.InitUpload)
		r.Get("/", cfg.DocumentHandler.List)
		r.Get("/preview", cfg.DocumentHandler.PreviewState)
		r.Delete("/preview", cfg.DocumentHandler.ClosePreview)
		r.Get("/{id}", cfg.DocumentHandler.Get)
		r.Delete("/{id}", cfg.DocumentHandler.Delete)
		r.Post("/{id}/complete", cfg.DocumentHandler.CompleteUpload)
		r.Get("/{id}/pages", cfg.DocumentHandler.Pages)
		r.Get("/{id}/preview", cfg.DocumentHandler.Preview)
	})

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", cfg.SessionHandler.Create)
		r.Get("/", cfg.SessionHandler.List)
		r.Get("/{id}", cfg.SessionHandler.Get)
		r.Delete("/{id}", cfg.SessionHandler.Delete)
		r.Put("/{id}/documents", cfg.SessionHandler.SetDocuments)
		r.Post("/{id}/messages", cfg.SessionHandler.Ask)
	})

	r.Route("/quizzes", func(r chi.Router) {
		r.Post("/", cfg.QuizHandler.Generate)
		r.Get("/", cfg.QuizHandler.List)
		r.Get("/{id}", cfg.QuizHandler.Get)
		r.Post("/{id}/attempts", cfg.QuizHandler.SubmitAttempt)
		r.Get("/{id}/attempts", cfg.QuizHandler.ListAttempts)
	})

	r.Get("/progress", cfg.ProgressHandler.Get)
	if cfg.RecommendationHandler != nil {
		r.Get("/progress/recommendations", cfg.RecommendationHandler.Get)
	}
	r.Post("/grade", cfg.QuizHandler.Grade)

	return r
}
