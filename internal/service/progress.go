package service

import (
	"context"
	"math"

	"github.com/cloo-solutions/studyrag/internal/domain"
)

// RecentAttemptLimit bounds the attempts listed in a progress report.
const RecentAttemptLimit = 10

// ProgressService summarises quiz history.
type ProgressService struct {
	quizzes  QuizRepositoryInterface
	attempts AttemptRepositoryInterface
	topics   *TopicNormalizer
}

func NewProgressService(quizzes QuizRepositoryInterface, attempts AttemptRepositoryInterface, topics *TopicNormalizer) *ProgressService {
	return &ProgressService{quizzes: quizzes, attempts: attempts, topics: topics}
}

// Calculate aggregates every attempt into a progress report. The average is
// total score over total max score as a percentage; per-topic counters are
// built from each attempt's quiz questions.
func (s *ProgressService) Calculate(ctx context.Context) (*domain.Progress, error) {
	attempts, err := s.attempts.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	quizzes, err := s.quizzesFor(ctx, attempts)
	if err != nil {
		return nil, err
	}

	return s.Summarize(attempts, quizzes), nil
}

// Summarize builds a report from attempts listed oldest first.
func (s *ProgressService) Summarize(attempts []*domain.Attempt, quizzes map[string]*domain.Quiz) *domain.Progress {
	progress := &domain.Progress{
		TotalQuizzes:   len(attempts),
		RecentAttempts: []*domain.Attempt{},
	}

	var score, maxScore int
	for _, a := range attempts {
		score += a.Score
		maxScore += a.MaxScore
	}
	if maxScore > 0 {
		progress.AverageScore = math.Round(float64(score)/float64(maxScore)*1000) / 10
	}

	progress.TopicScores = s.topics.Aggregate(attempts, quizzes)
	progress.Strengths, progress.Weaknesses = s.topics.Classify(progress.TopicScores)

	for i := len(attempts) - 1; i >= 0 && len(progress.RecentAttempts) < RecentAttemptLimit; i-- {
		progress.RecentAttempts = append(progress.RecentAttempts, attempts[i])
	}
	return progress
}

func (s *ProgressService) quizzesFor(ctx context.Context, attempts []*domain.Attempt) (map[string]*domain.Quiz, error) {
	seen := make(map[string]struct{})
	ids := make([]string, 0)
	for _, a := range attempts {
		if _, ok := seen[a.QuizID]; ok {
			continue
		}
		seen[a.QuizID] = struct{}{}
		ids = append(ids, a.QuizID)
	}

	out := make(map[string]*domain.Quiz, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	quizzes, err := s.quizzes.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, q := range quizzes {
		out[q.ID] = q
	}
	return out, nil
}
