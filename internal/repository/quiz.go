package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cloo-solutions/studyrag/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const quizColumns = `id, document_ids, type, questions, created_at`

// questionRecord is the JSONB shape of a stored question.
type questionRecord struct {
	ID            string   `json:"id"`
	Type          string   `json:"type"`
	Text          string   `json:"text"`
	Options       []string `json:"options,omitempty"`
	CorrectAnswer string   `json:"correct_answer"`
	Explanation   string   `json:"explanation"`
	Topic         string   `json:"topic"`
	Difficulty    string   `json:"difficulty"`
	PageReference int      `json:"page_reference,omitempty"`
	SourceSnippet string   `json:"source_snippet,omitempty"`
}

func toQuestionRecords(questions []domain.Question) []questionRecord {
	out := make([]questionRecord, len(questions))
	for i, q := range questions {
		rec := questionRecord{
			ID:            q.ID,
			Type:          string(q.Type),
			Text:          q.Text,
			CorrectAnswer: q.CorrectAnswer,
			Explanation:   q.Explanation,
			Topic:         q.Topic,
			Difficulty:    string(q.Difficulty),
			PageReference: q.PageReference,
			SourceSnippet: q.SourceSnippet,
		}
		if q.Options != nil {
			rec.Options = q.Options[:]
		}
		out[i] = rec
	}
	return out
}

func fromQuestionRecords(records []questionRecord) []domain.Question {
	out := make([]domain.Question, len(records))
	for i, rec := range records {
		q := domain.Question{
			ID:            rec.ID,
			Type:          domain.QuestionType(rec.Type),
			Text:          rec.Text,
			CorrectAnswer: rec.CorrectAnswer,
			Explanation:   rec.Explanation,
			Topic:         rec.Topic,
			Difficulty:    domain.Difficulty(rec.Difficulty),
			PageReference: rec.PageReference,
			SourceSnippet: rec.SourceSnippet,
		}
		if len(rec.Options) > 0 {
			opts := domain.OptionsFromSlice(rec.Options)
			q.Options = &opts
		}
		out[i] = q
	}
	return out
}

type QuizRepository struct {
	db dbtx
}

func NewQuizRepository(pool *pgxpool.Pool) *QuizRepository {
	return &QuizRepository{db: pool}
}

func (r *QuizRepository) Create(ctx context.Context, q *domain.Quiz) error {
	questions, err := json.Marshal(toQuestionRecords(q.Questions))
	if err != nil {
		return fmt.Errorf("encode questions: %w", err)
	}
	_, err = r.db.Exec(ctx,
		`INSERT INTO quizzes (`+quizColumns+`) VALUES ($1, $2, $3, $4, $5)`,
		q.ID, q.DocumentIDs, q.Type, questions, q.CreatedAt,
	)
	return err
}

func (r *QuizRepository) GetByID(ctx context.Context, id string) (*domain.Quiz, error) {
	q, err := scanQuiz(r.db.QueryRow(ctx,
		`SELECT `+quizColumns+` FROM quizzes WHERE id = $1`,
		id,
	))
	if err != nil {
		if isMissing(err) {
			return nil, domain.ErrQuizNotFound
		}
		return nil, err
	}
	return q, nil
}

// GetByIDs returns the quizzes that exist among ids; missing ids are skipped.
func (r *QuizRepository) GetByIDs(ctx context.Context, ids []string) ([]*domain.Quiz, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+quizColumns+` FROM quizzes WHERE id::text = ANY($1) ORDER BY created_at ASC`,
		ids,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanQuizRows(rows)
}

func (r *QuizRepository) List(ctx context.Context) ([]*domain.Quiz, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+quizColumns+` FROM quizzes ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanQuizRows(rows)
}

func scanQuiz(row pgx.Row) (*domain.Quiz, error) {
	var q domain.Quiz
	var raw []byte
	if err := row.Scan(&q.ID, &q.DocumentIDs, &q.Type, &raw, &q.CreatedAt); err != nil {
		return nil, err
	}
	var records []questionRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("decode questions of quiz %s: %w", q.ID, err)
	}
	q.Questions = fromQuestionRecords(records)
	return &q, nil
}

func scanQuizRows(rows pgx.Rows) ([]*domain.Quiz, error) {
	var results []*domain.Quiz
	for rows.Next() {
		q, err := scanQuiz(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, q)
	}
	return results, rows.Err()
}
