package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cloo-solutions/studyrag/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const attemptColumns = `id, quiz_id, answers, score, max_score, correct_ids, incorrect_ids, time_spent_ms, completed_at`

type AttemptRepository struct {
	db dbtx
}

func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{db: pool}
}

func (r *AttemptRepository) Create(ctx context.Context, a *domain.Attempt) error {
	answers := a.Answers
	if answers == nil {
		answers = map[string]string{}
	}
	raw, err := json.Marshal(answers)
	if err != nil {
		return fmt.Errorf("encode answers: %w", err)
	}
	_, err = r.db.Exec(ctx,
		`INSERT INTO quiz_attempts (`+attemptColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.QuizID, raw, a.Score, a.MaxScore, nonNilStrings(a.CorrectIDs), nonNilStrings(a.IncorrectIDs),
		a.TimeSpent.Milliseconds(), a.CompletedAt,
	)
	return err
}

func (r *AttemptRepository) GetByID(ctx context.Context, id string) (*domain.Attempt, error) {
	a, err := scanAttempt(r.db.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM quiz_attempts WHERE id = $1`,
		id,
	))
	if err != nil {
		if isMissing(err) {
			return nil, domain.ErrAttemptNotFound
		}
		return nil, err
	}
	return a, nil
}

func (r *AttemptRepository) ListByQuiz(ctx context.Context, quizID string) ([]*domain.Attempt, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+attemptColumns+` FROM quiz_attempts WHERE quiz_id = $1 ORDER BY completed_at ASC, id ASC`,
		quizID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAttemptRows(rows)
}

// ListAll returns every attempt, oldest first.
func (r *AttemptRepository) ListAll(ctx context.Context) ([]*domain.Attempt, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+attemptColumns+` FROM quiz_attempts ORDER BY completed_at ASC, id ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAttemptRows(rows)
}

func scanAttempt(row pgx.Row) (*domain.Attempt, error) {
	var a domain.Attempt
	var raw []byte
	var timeSpentMs int64
	if err := row.Scan(&a.ID, &a.QuizID, &raw, &a.Score, &a.MaxScore, &a.CorrectIDs, &a.IncorrectIDs, &timeSpentMs, &a.CompletedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &a.Answers); err != nil {
		return nil, fmt.Errorf("decode answers of attempt %s: %w", a.ID, err)
	}
	a.TimeSpent = time.Duration(timeSpentMs) * time.Millisecond
	return &a, nil
}

func scanAttemptRows(rows pgx.Rows) ([]*domain.Attempt, error) {
	var results []*domain.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, a)
	}
	return results, rows.Err()
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
