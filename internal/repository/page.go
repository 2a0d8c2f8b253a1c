package repository

import (
	"context"
	"fmt"

	"github.com/cloo-solutions/studyrag/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PageRepository stores the cleaned text of accepted pages.
type PageRepository struct {
	db dbtx
}

func NewPageRepository(pool *pgxpool.Pool) *PageRepository {
	return &PageRepository{db: pool}
}

func NewPageRepositoryWithTx(tx pgx.Tx) *PageRepository {
	return &PageRepository{db: tx}
}

// ReplacePages deletes the stored pages of a document and inserts the new set.
func (r *PageRepository) ReplacePages(ctx context.Context, documentID string, pages []domain.DocumentPage) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM document_pages WHERE document_id = $1`, documentID); err != nil {
		return err
	}
	if len(pages) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, p := range pages {
		batch.Queue(
			`INSERT INTO document_pages (document_id, page_number, text) VALUES ($1, $2, $3)`,
			documentID, p.Number, p.Text,
		)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()
	for _, p := range pages {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert page %d: %w", p.Number, err)
		}
	}
	return nil
}

// ListByDocument returns the stored pages of a document in page order.
func (r *PageRepository) ListByDocument(ctx context.Context, documentID string) ([]domain.DocumentPage, error) {
	rows, err := r.db.Query(ctx,
		`SELECT document_id, page_number, text FROM document_pages
		 WHERE document_id = $1
		 ORDER BY page_number ASC`,
		documentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pages []domain.DocumentPage
	for rows.Next() {
		var p domain.DocumentPage
		if err := rows.Scan(&p.DocumentID, &p.Number, &p.Text); err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}
