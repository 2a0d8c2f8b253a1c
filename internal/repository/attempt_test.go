//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/cloo-solutions/studyrag/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttemptRepository(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(ctx, t)
	quizzes := NewQuizRepository(pool)
	repo := NewAttemptRepository(pool)

	quiz := newTestQuiz(time.Now())
	require.NoError(t, quizzes.Create(ctx, quiz))

	base := time.Now().UTC().Truncate(time.Microsecond)
	late := &domain.Attempt{
		ID:           uuid.NewString(),
		QuizID:       quiz.ID,
		Answers:      map[string]string{"q1": "Mitochondria", "q2": ""},
		Score:        1,
		MaxScore:     2,
		CorrectIDs:   []string{"q1"},
		IncorrectIDs: []string{"q2"},
		TimeSpent:    90 * time.Second,
		CompletedAt:  base,
	}
	early := &domain.Attempt{
		ID:          uuid.NewString(),
		QuizID:      quiz.ID,
		MaxScore:    2,
		CompletedAt: base.Add(-time.Hour),
	}
	require.NoError(t, repo.Create(ctx, late))
	require.NoError(t, repo.Create(ctx, early))

	t.Run("get by id", func(t *testing.T) {
		got, err := repo.GetByID(ctx, late.ID)
		require.NoError(t, err)
		assert.Equal(t, late.Answers, got.Answers)
		assert.Equal(t, []string{"q1"}, got.CorrectIDs)
		assert.Equal(t, 90*time.Second, got.TimeSpent)
		assert.True(t, got.IsCorrect("q1"))
	})

	t.Run("missing attempt", func(t *testing.T) {
		_, err := repo.GetByID(ctx, uuid.NewString())
		assert.ErrorIs(t, err, domain.ErrAttemptNotFound)
	})

	t.Run("nil slices stored as empty", func(t *testing.T) {
		got, err := repo.GetByID(ctx, early.ID)
		require.NoError(t, err)
		assert.Empty(t, got.CorrectIDs)
		assert.Empty(t, got.Answers)
	})

	t.Run("lists oldest first", func(t *testing.T) {
		byQuiz, err := repo.ListByQuiz(ctx, quiz.ID)
		require.NoError(t, err)
		require.Len(t, byQuiz, 2)
		assert.Equal(t, early.ID, byQuiz[0].ID)

		all, err := repo.ListAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, late.ID, all[1].ID)
	})
}
