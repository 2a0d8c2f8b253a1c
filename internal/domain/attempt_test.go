package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttempt_IsCorrect(t *testing.T) {
	a := &Attempt{CorrectIDs: []string{"q1", "q3"}}

	assert.True(t, a.IsCorrect("q1"))
	assert.True(t, a.IsCorrect("q3"))
	assert.False(t, a.IsCorrect("q2"))
}

func TestValidateAttempt(t *testing.T) {
	tests := []struct {
		name    string
		attempt *Attempt
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid attempt",
			attempt: &Attempt{ID: "a1", QuizID: "quiz1", Score: 2, MaxScore: 3},
		},
		{
			name:    "nil attempt",
			attempt: nil,
			wantErr: true,
			errMsg:  "nil",
		},
		{
			name:    "missing quiz",
			attempt: &Attempt{ID: "a1", Score: 0, MaxScore: 1},
			wantErr: true,
			errMsg:  "QuizID",
		},
		{
			name:    "score above max",
			attempt: &Attempt{ID: "a1", QuizID: "quiz1", Score: 4, MaxScore: 3},
			wantErr: true,
			errMsg:  "out of range",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAttempt(tt.attempt)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTopicScore(t *testing.T) {
	var s TopicScore
	s = s.Add(true)
	s = s.Add(false)
	s = s.Add(true)

	assert.Equal(t, TopicScore{Correct: 2, Total: 3}, s)
	assert.InDelta(t, 2.0/3.0, s.Ratio(), 1e-9)

	merged := s.Merge(TopicScore{Correct: 1, Total: 1})
	assert.Equal(t, TopicScore{Correct: 3, Total: 4}, merged)

	assert.Equal(t, 0.0, TopicScore{}.Ratio())
}
