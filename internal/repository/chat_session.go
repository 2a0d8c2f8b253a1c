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

// ChatSessionRepository stores sessions and their message history.
type ChatSessionRepository struct {
	db dbtx
}

func NewChatSessionRepository(pool *pgxpool.Pool) *ChatSessionRepository {
	return &ChatSessionRepository{db: pool}
}

func (r *ChatSessionRepository) Create(ctx context.Context, s *domain.ChatSession) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO chat_sessions (id, title, document_ids, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		s.ID, s.Title, s.DocumentIDs, s.CreatedAt, s.UpdatedAt,
	)
	return err
}

// GetByID loads a session with its messages in the order they were appended.
func (r *ChatSessionRepository) GetByID(ctx context.Context, id string) (*domain.ChatSession, error) {
	var s domain.ChatSession
	err := r.db.QueryRow(ctx,
		`SELECT id, title, document_ids, created_at, updated_at FROM chat_sessions WHERE id = $1`,
		id,
	).Scan(&s.ID, &s.Title, &s.DocumentIDs, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if isMissing(err) {
			return nil, domain.ErrChatSessionNotFound
		}
		return nil, err
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, role, content, citations, created_at FROM chat_messages
		 WHERE session_id = $1
		 ORDER BY seq ASC`,
		id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var m domain.ChatMessage
		var citations []byte
		if err := rows.Scan(&m.ID, &m.Role, &m.Content, &citations, &m.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(citations, &m.Citations); err != nil {
			return nil, fmt.Errorf("decode citations of message %s: %w", m.ID, err)
		}
		s.Messages = append(s.Messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &s, nil
}

// List returns sessions without messages, most recently active first.
func (r *ChatSessionRepository) List(ctx context.Context) ([]*domain.ChatSession, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, title, document_ids, created_at, updated_at FROM chat_sessions
		 ORDER BY updated_at DESC, id DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*domain.ChatSession
	for rows.Next() {
		var s domain.ChatSession
		if err := rows.Scan(&s.ID, &s.Title, &s.DocumentIDs, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		results = append(results, &s)
	}
	return results, rows.Err()
}

func (r *ChatSessionRepository) UpdateDocuments(ctx context.Context, id string, documentIDs []string, updatedAt time.Time) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE chat_sessions SET document_ids = $1, updated_at = $2 WHERE id = $3`,
		documentIDs, updatedAt, id,
	)
	if err != nil {
		if isMissing(err) {
			return domain.ErrChatSessionNotFound
		}
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrChatSessionNotFound
	}
	return nil
}

// AppendMessages adds messages after the existing history and touches the session.
func (r *ChatSessionRepository) AppendMessages(ctx context.Context, sessionID string, title string, messages []domain.ChatMessage, updatedAt time.Time) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE chat_sessions SET title = $1, updated_at = $2 WHERE id = $3`,
		title, updatedAt, sessionID,
	)
	if err != nil {
		if isMissing(err) {
			return domain.ErrChatSessionNotFound
		}
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrChatSessionNotFound
	}
	if len(messages) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, m := range messages {
		citations := m.Citations
		if citations == nil {
			citations = []domain.Citation{}
		}
		raw, err := json.Marshal(citations)
		if err != nil {
			return fmt.Errorf("encode citations: %w", err)
		}
		batch.Queue(
			`INSERT INTO chat_messages (id, session_id, role, content, citations, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			m.ID, sessionID, m.Role, m.Content, raw, m.CreatedAt,
		)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()
	for range messages {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}

func (r *ChatSessionRepository) Delete(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM chat_sessions WHERE id = $1`, id)
	if err != nil {
		if isMissing(err) {
			return domain.ErrChatSessionNotFound
		}
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrChatSessionNotFound
	}
	return nil
}
