package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cloo-solutions/studyrag/internal/domain"
	"github.com/cloo-solutions/studyrag/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockJobProcessor is a mock implementation of JobProcessor
type MockJobProcessor struct {
	mock.Mock
}

func (m *MockJobProcessor) ProcessJobs(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockIngestJobRepository is a mock implementation of IngestJobRepository
type MockIngestJobRepository struct {
	mock.Mock
}

func (m *MockIngestJobRepository) ClaimPending(ctx context.Context, limit int) ([]*domain.IngestJob, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.IngestJob), args.Error(1)
}

func (m *MockIngestJobRepository) UpdateStatus(ctx context.Context, id string, status domain.IngestJobStatus, errMsg string) error {
	args := m.Called(ctx, id, status, errMsg)
	return args.Error(0)
}

func (m *MockIngestJobRepository) IncrementRetries(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockDocumentStatusUpdater is a mock implementation of DocumentStatusUpdater
type MockDocumentStatusUpdater struct {
	mock.Mock
}

func (m *MockDocumentStatusUpdater) UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, totalPages, usablePages int) error {
	args := m.Called(ctx, id, status, totalPages, usablePages)
	return args.Error(0)
}

// MockIngester is a mock implementation of Ingester
type MockIngester struct {
	mock.Mock
}

func (m *MockIngester) IngestDocument(ctx context.Context, documentID string) (*service.IngestResult, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.IngestResult), args.Error(1)
}

type ingestFixture struct {
	jobs     *MockIngestJobRepository
	docs     *MockDocumentStatusUpdater
	ingester *MockIngester
	worker   *IngestWorker
}

func newIngestFixture(jobs ...*domain.IngestJob) *ingestFixture {
	f := &ingestFixture{
		jobs:     new(MockIngestJobRepository),
		docs:     new(MockDocumentStatusUpdater),
		ingester: new(MockIngester),
	}
	f.jobs.On("ClaimPending", mock.Anything, DefaultBatchSize).Return(jobs, nil)
	f.worker = NewIngestWorker(f.jobs, f.docs, f.ingester)
	return f
}

func pendingJob(retries int32) *domain.IngestJob {
	return &domain.IngestJob{ID: "job-1", DocumentID: "doc-1", Status: domain.IngestJobStatusProcessing, Retries: retries}
}

func TestWorker_StartStop(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(nil)

	worker := NewWorker(mockProcessor, 100*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	time.Sleep(250 * time.Millisecond)

	worker.Stop()
	wg.Wait()

	mockProcessor.AssertCalled(t, "ProcessJobs", mock.Anything)
}

func TestWorker_ContextCancellation(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(errors.New("db down"))

	worker := NewWorker(mockProcessor, 100*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	time.Sleep(150 * time.Millisecond)

	cancel()
	wg.Wait()

	mockProcessor.AssertCalled(t, "ProcessJobs", mock.Anything)
}

func TestIngestWorker_ProcessJobs_NoPendingJobs(t *testing.T) {
	f := newIngestFixture()

	err := f.worker.ProcessJobs(context.Background())

	assert.NoError(t, err)
	f.ingester.AssertNotCalled(t, "IngestDocument", mock.Anything, mock.Anything)
}

func TestIngestWorker_ProcessJobs_ClaimError(t *testing.T) {
	jobs := new(MockIngestJobRepository)
	jobs.On("ClaimPending", mock.Anything, DefaultBatchSize).Return(nil, errors.New("db down"))
	worker := NewIngestWorker(jobs, new(MockDocumentStatusUpdater), new(MockIngester))

	err := worker.ProcessJobs(context.Background())

	assert.ErrorContains(t, err, "failed to claim pending jobs")
}

func TestIngestWorker_ProcessJobs_Success(t *testing.T) {
	f := newIngestFixture(pendingJob(0))
	f.ingester.On("IngestDocument", mock.Anything, "doc-1").
		Return(&service.IngestResult{DocumentID: "doc-1", Status: domain.DocumentStatusReady}, nil)
	f.jobs.On("UpdateStatus", mock.Anything, "job-1", domain.IngestJobStatusCompleted, "").Return(nil)

	err := f.worker.ProcessJobs(context.Background())

	assert.NoError(t, err)
	f.jobs.AssertExpectations(t)
	f.ingester.AssertExpectations(t)
}

func TestIngestWorker_ProcessJobs_EmptyDocumentCompletesJob(t *testing.T) {
	f := newIngestFixture(pendingJob(0))
	f.ingester.On("IngestDocument", mock.Anything, "doc-1").
		Return(&service.IngestResult{DocumentID: "doc-1", Status: domain.DocumentStatusEmpty}, domain.ErrExtractionEmpty)
	f.jobs.On("UpdateStatus", mock.Anything, "job-1", domain.IngestJobStatusCompleted, "").Return(nil)

	err := f.worker.ProcessJobs(context.Background())

	assert.NoError(t, err)
	f.jobs.AssertNotCalled(t, "IncrementRetries", mock.Anything, mock.Anything)
	f.docs.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestIngestWorker_ProcessJobs_FailureWithRetry(t *testing.T) {
	f := newIngestFixture(pendingJob(0))
	f.ingester.On("IngestDocument", mock.Anything, "doc-1").Return(nil, errors.New("s3 timeout"))
	f.jobs.On("IncrementRetries", mock.Anything, "job-1").Return(nil)
	f.jobs.On("UpdateStatus", mock.Anything, "job-1", domain.IngestJobStatusPending, mock.MatchedBy(func(msg string) bool {
		return msg == "retry 1: s3 timeout"
	})).Return(nil)

	err := f.worker.ProcessJobs(context.Background())

	assert.NoError(t, err)
	f.jobs.AssertExpectations(t)
	f.docs.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestIngestWorker_ProcessJobs_MaxRetriesExceeded(t *testing.T) {
	f := newIngestFixture(pendingJob(MaxRetries - 1))
	f.ingester.On("IngestDocument", mock.Anything, "doc-1").Return(nil, errors.New("s3 timeout"))
	f.jobs.On("IncrementRetries", mock.Anything, "job-1").Return(nil)
	f.jobs.On("UpdateStatus", mock.Anything, "job-1", domain.IngestJobStatusFailed, mock.MatchedBy(func(msg string) bool {
		return msg == "max retries exceeded: s3 timeout"
	})).Return(nil)
	f.docs.On("UpdateStatus", mock.Anything, "doc-1", domain.DocumentStatusFailed, 0, 0).Return(nil)

	err := f.worker.ProcessJobs(context.Background())

	assert.NoError(t, err)
	f.jobs.AssertExpectations(t)
	f.docs.AssertExpectations(t)
}

func TestIngestWorker_ProcessJobs_MissingDocumentFailsWithoutRetry(t *testing.T) {
	f := newIngestFixture(pendingJob(0))
	f.ingester.On("IngestDocument", mock.Anything, "doc-1").Return(nil, domain.ErrDocumentNotFound)
	f.jobs.On("UpdateStatus", mock.Anything, "job-1", domain.IngestJobStatusFailed, mock.Anything).Return(nil)

	err := f.worker.ProcessJobs(context.Background())

	assert.NoError(t, err)
	f.jobs.AssertNotCalled(t, "IncrementRetries", mock.Anything, mock.Anything)
	f.docs.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestIngestWorker_ProcessJobs_ContinuesAfterBookkeepingError(t *testing.T) {
	second := &domain.IngestJob{ID: "job-2", DocumentID: "doc-2"}
	f := newIngestFixture(pendingJob(0), second)
	f.ingester.On("IngestDocument", mock.Anything, mock.Anything).Return(&service.IngestResult{}, nil)
	f.jobs.On("UpdateStatus", mock.Anything, "job-1", domain.IngestJobStatusCompleted, "").Return(errors.New("conn reset"))
	f.jobs.On("UpdateStatus", mock.Anything, "job-2", domain.IngestJobStatusCompleted, "").Return(nil)

	err := f.worker.ProcessJobs(context.Background())

	assert.NoError(t, err)
	f.ingester.AssertNumberOfCalls(t, "IngestDocument", 2)
}
