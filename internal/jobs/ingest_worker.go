package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloo-solutions/studyrag/internal/domain"
	"github.com/cloo-solutions/studyrag/internal/service"
	"github.com/cloo-solutions/studyrag/internal/telemetry"
	"github.com/rs/zerolog/log"
)

const (
	// MaxRetries is the maximum number of attempts for a failing job
	MaxRetries = 3
	// DefaultBatchSize bounds how many jobs one poll claims
	DefaultBatchSize = 5
)

// IngestJobRepository defines the interface for ingest job persistence
type IngestJobRepository interface {
	// ClaimPending moves pending jobs to processing and returns them
	ClaimPending(ctx context.Context, limit int) ([]*domain.IngestJob, error)
	UpdateStatus(ctx context.Context, id string, status domain.IngestJobStatus, errMsg string) error
	IncrementRetries(ctx context.Context, id string) error
}

// DocumentStatusUpdater marks documents whose ingestion gave up
type DocumentStatusUpdater interface {
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, totalPages, usablePages int) error
}

// Ingester turns one uploaded document into stored pages
type Ingester interface {
	IngestDocument(ctx context.Context, documentID string) (*service.IngestResult, error)
}

// IngestWorker processes ingest jobs
type IngestWorker struct {
	jobs      IngestJobRepository
	docs      DocumentStatusUpdater
	ingester  Ingester
	batchSize int
}

// NewIngestWorker creates a new IngestWorker instance
func NewIngestWorker(jobs IngestJobRepository, docs DocumentStatusUpdater, ingester Ingester) *IngestWorker {
	return &IngestWorker{
		jobs:      jobs,
		docs:      docs,
		ingester:  ingester,
		batchSize: DefaultBatchSize,
	}
}

// ProcessJobs implements the JobProcessor interface
func (w *IngestWorker) ProcessJobs(ctx context.Context) error {
	jobs, err := w.jobs.ClaimPending(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("failed to claim pending jobs: %w", err)
	}
	if len(jobs) == 0 {
		return nil
	}

	log.Info().Int("count", len(jobs)).Msg("processing ingest jobs")

	for _, job := range jobs {
		if err := w.processJob(ctx, job); err != nil {
			log.Error().Err(err).Str("job_id", job.ID).Msg("ingest job bookkeeping failed")
		}
	}
	return nil
}

func (w *IngestWorker) processJob(ctx context.Context, job *domain.IngestJob) error {
	ctx, span := telemetry.StartTransaction(ctx, "ingest "+job.DocumentID, "job.ingest")
	defer span.End()

	_, err := w.ingester.IngestDocument(ctx, job.DocumentID)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrExtractionEmpty):
		// the document is stored as empty; retrying decodes the same bytes
		log.Warn().Str("job_id", job.ID).Str("document_id", job.DocumentID).Msg("document has no usable pages")
		telemetry.AddBreadcrumb(ctx, "ingest", "document "+job.DocumentID+" has no usable pages")
	case service.IsPermanentIngestError(err):
		span.SetError(err)
		return w.fail(ctx, job, err)
	default:
		span.SetError(err)
		return w.handleJobFailure(ctx, job, err)
	}

	if err := w.jobs.UpdateStatus(ctx, job.ID, domain.IngestJobStatusCompleted, ""); err != nil {
		return fmt.Errorf("failed to update job status to completed: %w", err)
	}
	log.Info().Str("job_id", job.ID).Str("document_id", job.DocumentID).Msg("ingest job completed")
	return nil
}

// handleJobFailure requeues a job until it has used MaxRetries attempts
func (w *IngestWorker) handleJobFailure(ctx context.Context, job *domain.IngestJob, jobErr error) error {
	log.Warn().Err(jobErr).Str("job_id", job.ID).Int32("retries", job.Retries).Msg("ingest job failed")

	if err := w.jobs.IncrementRetries(ctx, job.ID); err != nil {
		return fmt.Errorf("failed to increment retries: %w", err)
	}

	if job.Retries+1 >= MaxRetries {
		return w.fail(ctx, job, fmt.Errorf("max retries exceeded: %w", jobErr))
	}

	errMsg := fmt.Sprintf("retry %d: %v", job.Retries+1, jobErr)
	if err := w.jobs.UpdateStatus(ctx, job.ID, domain.IngestJobStatusPending, errMsg); err != nil {
		return fmt.Errorf("failed to reset job status to pending: %w", err)
	}
	return nil
}

func (w *IngestWorker) fail(ctx context.Context, job *domain.IngestJob, jobErr error) error {
	log.Error().Err(jobErr).Str("job_id", job.ID).Str("document_id", job.DocumentID).Msg("ingest job failed permanently")
	telemetry.CaptureError(ctx, jobErr)

	if err := w.jobs.UpdateStatus(ctx, job.ID, domain.IngestJobStatusFailed, jobErr.Error()); err != nil {
		return fmt.Errorf("failed to update job status to failed: %w", err)
	}
	if errors.Is(jobErr, domain.ErrDocumentNotFound) {
		return nil
	}
	if err := w.docs.UpdateStatus(ctx, job.DocumentID, domain.DocumentStatusFailed, 0, 0); err != nil {
		return fmt.Errorf("failed to mark document failed: %w", err)
	}
	return nil
}
