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

func createIngestJob(ctx context.Context, t *testing.T, repo *IngestJobRepository, documentID string, at time.Time) *domain.IngestJob {
	t.Helper()
	job := domain.NewIngestJob(uuid.NewString(), documentID, at.UTC().Truncate(time.Microsecond))
	require.NoError(t, repo.Create(ctx, job))
	return job
}

func TestIngestJobRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(ctx, t)
	doc := createDocument(ctx, t, NewDocumentRepository(pool), "biology.pdf", time.Now())
	repo := NewIngestJobRepository(pool)

	job := createIngestJob(ctx, t, repo, doc.ID, time.Now())

	got, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, got.DocumentID)
	assert.Equal(t, domain.IngestJobStatusPending, got.Status)
	assert.Equal(t, int32(0), got.Retries)
	assert.Empty(t, got.Error)
	assert.Nil(t, got.ProcessedAt)

	_, err = repo.GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrIngestJobNotFound)
}

func TestIngestJobRepository_ClaimPending(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(ctx, t)
	doc := createDocument(ctx, t, NewDocumentRepository(pool), "biology.pdf", time.Now())
	repo := NewIngestJobRepository(pool)

	older := createIngestJob(ctx, t, repo, doc.ID, time.Now().Add(-2*time.Minute))
	newer := createIngestJob(ctx, t, repo, doc.ID, time.Now().Add(-time.Minute))

	claimed, err := repo.ClaimPending(ctx, 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, older.ID, claimed[0].ID)
	assert.Equal(t, domain.IngestJobStatusProcessing, claimed[0].Status)

	claimed, err = repo.ClaimPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, newer.ID, claimed[0].ID)

	claimed, err = repo.ClaimPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, claimed)
}

func TestIngestJobRepository_UpdateStatusAndRetries(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(ctx, t)
	doc := createDocument(ctx, t, NewDocumentRepository(pool), "biology.pdf", time.Now())
	repo := NewIngestJobRepository(pool)
	job := createIngestJob(ctx, t, repo, doc.ID, time.Now())

	require.NoError(t, repo.IncrementRetries(ctx, job.ID))
	require.NoError(t, repo.UpdateStatus(ctx, job.ID, domain.IngestJobStatusFailed, "s3 timeout"))

	got, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, int32(1), got.Retries)
	assert.Equal(t, domain.IngestJobStatusFailed, got.Status)
	assert.Equal(t, "s3 timeout", got.Error)
	assert.NotNil(t, got.ProcessedAt)

	assert.ErrorIs(t, repo.IncrementRetries(ctx, uuid.NewString()), domain.ErrIngestJobNotFound)
	assert.ErrorIs(t, repo.UpdateStatus(ctx, uuid.NewString(), domain.IngestJobStatusCompleted, ""), domain.ErrIngestJobNotFound)
}
