package domain

import (
	"fmt"
	"time"
)

// Attempt is one completed pass through a quiz
type Attempt struct {
	ID           string
	QuizID       string
	Answers      map[string]string // question id -> submitted answer
	Score        int
	MaxScore     int
	CorrectIDs   []string
	IncorrectIDs []string
	TimeSpent    time.Duration
	CompletedAt  time.Time
}

// IsCorrect reports whether the question id is in the attempt's correct set.
func (a *Attempt) IsCorrect(questionID string) bool {
	for _, id := range a.CorrectIDs {
		if id == questionID {
			return true
		}
	}
	return false
}

// ValidateAttempt validates an Attempt instance
func ValidateAttempt(a *Attempt) error {
	if a == nil {
		return fmt.Errorf("attempt cannot be nil")
	}

	if a.ID == "" {
		return fmt.Errorf("attempt ID is required")
	}

	if a.QuizID == "" {
		return fmt.Errorf("attempt QuizID is required")
	}

	if a.Score < 0 || a.Score > a.MaxScore {
		return fmt.Errorf("attempt Score %d out of range [0, %d]", a.Score, a.MaxScore)
	}

	return nil
}

// TopicScore counts correct answers per topic. 0 <= Correct <= Total always
// holds; counters only grow.
type TopicScore struct {
	Correct int `json:"correct"`
	Total   int `json:"total"`
}

// Add records one answered question.
func (s TopicScore) Add(correct bool) TopicScore {
	s.Total++
	if correct {
		s.Correct++
	}
	return s
}

// Merge sums two counters.
func (s TopicScore) Merge(other TopicScore) TopicScore {
	return TopicScore{Correct: s.Correct + other.Correct, Total: s.Total + other.Total}
}

// Ratio returns Correct/Total, or 0 for an empty counter.
func (s TopicScore) Ratio() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Correct) / float64(s.Total)
}

// AnswerEvaluation is the heuristic verdict on a free-text answer.
// Similarity is in [0,1]. It is approximate partial credit, not ground truth.
type AnswerEvaluation struct {
	IsCorrect  bool    `json:"is_correct"`
	Similarity float64 `json:"similarity"`
}

// Progress summarises a learner's quiz history
type Progress struct {
	TotalQuizzes   int
	AverageScore   float64 // percentage 0..100
	Strengths      []string
	Weaknesses     []string
	TopicScores    map[string]TopicScore
	RecentAttempts []*Attempt
}
