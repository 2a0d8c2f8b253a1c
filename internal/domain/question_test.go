package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuestionTypeConstants(t *testing.T) {
	tests := []struct {
		name     string
		typeVal  QuestionType
		expected string
	}{
		{"MCQ", QuestionTypeMCQ, "MCQ"},
		{"SAQ", QuestionTypeSAQ, "SAQ"},
		{"LAQ", QuestionTypeLAQ, "LAQ"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, string(tt.typeVal))
		})
	}
}

func TestOptionsFromSlice(t *testing.T) {
	t.Run("pads short lists", func(t *testing.T) {
		opts := OptionsFromSlice([]string{"A", " B "})
		assert.Equal(t, Options{"A", "B", "", ""}, opts)
		assert.Equal(t, 2, opts.NonEmpty())
	})

	t.Run("drops extras", func(t *testing.T) {
		opts := OptionsFromSlice([]string{"A", "B", "C", "D", "E"})
		assert.Equal(t, Options{"A", "B", "C", "D"}, opts)
		assert.Equal(t, 4, opts.NonEmpty())
	})

	t.Run("whitespace options are empty", func(t *testing.T) {
		opts := OptionsFromSlice([]string{"A", "   ", "C"})
		assert.Equal(t, 2, opts.NonEmpty())
	})
}

func TestNewMCQ(t *testing.T) {
	q := NewMCQ("q1", "What is ATP?", Options{"Energy", "Water", "Salt", "Air"}, "Energy", "ATP stores energy.", "cell energy", DifficultyEasy)

	assert.Equal(t, "q1", q.ID)
	assert.Equal(t, QuestionTypeMCQ, q.Type)
	require.NotNil(t, q.Options)
	assert.Equal(t, "Energy", q.Options[0])
	assert.False(t, q.IsOpen())
}

func TestNewOpenQuestion(t *testing.T) {
	q := NewOpenQuestion("q2", QuestionTypeLAQ, "Explain photosynthesis.", "Light to chemical energy", "", "photosynthesis", DifficultyHard)

	assert.Equal(t, QuestionTypeLAQ, q.Type)
	assert.Nil(t, q.Options)
	assert.True(t, q.IsOpen())
}

func TestValidateQuestion(t *testing.T) {
	opts := Options{"A", "B", "C", "D"}

	tests := []struct {
		name    string
		q       Question
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid MCQ",
			q:    Question{ID: "q1", Type: QuestionTypeMCQ, Options: &opts},
		},
		{
			name: "valid SAQ",
			q:    Question{ID: "q1", Type: QuestionTypeSAQ},
		},
		{
			name:    "missing ID",
			q:       Question{Type: QuestionTypeSAQ},
			wantErr: true,
			errMsg:  "ID",
		},
		{
			name:    "unknown type",
			q:       Question{ID: "q1", Type: "TF"},
			wantErr: true,
			errMsg:  "invalid question type",
		},
		{
			name:    "MCQ without options",
			q:       Question{ID: "q1", Type: QuestionTypeMCQ},
			wantErr: true,
			errMsg:  "no options",
		},
		{
			name:    "LAQ with options",
			q:       Question{ID: "q1", Type: QuestionTypeLAQ, Options: &opts},
			wantErr: true,
			errMsg:  "must not carry options",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateQuestion(tt.q)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateQuiz(t *testing.T) {
	now := time.Now()
	valid := Question{ID: "q1", Type: QuestionTypeSAQ}

	t.Run("valid quiz", func(t *testing.T) {
		quiz := &Quiz{ID: "quiz1", Type: QuizTypeSAQ, Questions: []Question{valid}, CreatedAt: now}
		assert.NoError(t, ValidateQuiz(quiz))
	})

	t.Run("nil quiz", func(t *testing.T) {
		assert.Error(t, ValidateQuiz(nil))
	})

	t.Run("empty quiz is ungrounded", func(t *testing.T) {
		quiz := &Quiz{ID: "quiz1", Type: QuizTypeMixed, CreatedAt: now}
		err := ValidateQuiz(quiz)
		assert.True(t, errors.Is(err, ErrUngroundedGeneration))
	})

	t.Run("invalid type", func(t *testing.T) {
		quiz := &Quiz{ID: "quiz1", Type: "ESSAY", Questions: []Question{valid}}
		err := ValidateQuiz(quiz)
		assert.True(t, errors.Is(err, ErrInvalidQuizType))
	})
}

func TestQuiz_Question(t *testing.T) {
	quiz := &Quiz{Questions: []Question{{ID: "a"}, {ID: "b", Text: "second"}}}

	q, ok := quiz.Question("b")
	assert.True(t, ok)
	assert.Equal(t, "second", q.Text)

	_, ok = quiz.Question("missing")
	assert.False(t, ok)
}

func TestParseDifficulty(t *testing.T) {
	assert.Equal(t, DifficultyEasy, ParseDifficulty("Easy"))
	assert.Equal(t, DifficultyHard, ParseDifficulty(" hard "))
	assert.Equal(t, DifficultyMedium, ParseDifficulty("medium"))
	assert.Equal(t, DifficultyMedium, ParseDifficulty("impossible"))
}
