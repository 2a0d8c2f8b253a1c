package service

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/cloo-solutions/studyrag/internal/domain"
	"github.com/cloo-solutions/studyrag/internal/pagination"
	"github.com/stretchr/testify/mock"
)

// MockDocumentRepository is a mock implementation of DocumentRepositoryInterface
type MockDocumentRepository struct {
	mock.Mock
}

func (m *MockDocumentRepository) Create(ctx context.Context, d *domain.Document) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}

func (m *MockDocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentRepository) ListWithCursor(ctx context.Context, cursor *pagination.Cursor, limit int) (*DocumentPageResult, error) {
	args := m.Called(ctx, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*DocumentPageResult), args.Error(1)
}

func (m *MockDocumentRepository) UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, totalPages, usablePages int) error {
	args := m.Called(ctx, id, status, totalPages, usablePages)
	return args.Error(0)
}

func (m *MockDocumentRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockPageRepository is a mock implementation of PageRepositoryInterface
type MockPageRepository struct {
	mock.Mock
}

func (m *MockPageRepository) ReplacePages(ctx context.Context, documentID string, pages []domain.DocumentPage) error {
	args := m.Called(ctx, documentID, pages)
	return args.Error(0)
}

func (m *MockPageRepository) ListByDocument(ctx context.Context, documentID string) ([]domain.DocumentPage, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.DocumentPage), args.Error(1)
}

// MockIngestJobRepository is a mock implementation of IngestJobRepositoryInterface
type MockIngestJobRepository struct {
	mock.Mock
}

func (m *MockIngestJobRepository) Create(ctx context.Context, job *domain.IngestJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

// MockStorageClient is a mock implementation of StorageClientInterface
type MockStorageClient struct {
	mock.Mock
}

func (m *MockStorageClient) GenerateUploadURL(ctx context.Context, key string, contentType string) (string, error) {
	args := m.Called(ctx, key, contentType)
	return args.String(0), args.Error(1)
}

func (m *MockStorageClient) GenerateDownloadURL(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockStorageClient) DeleteObject(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockStorageClient) HeadObject(ctx context.Context, key string) (*ObjectMetadata, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ObjectMetadata), args.Error(1)
}

func (m *MockStorageClient) GetObject(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// MockPageExtractor is a mock implementation of PageExtractor
type MockPageExtractor struct {
	mock.Mock
}

func (m *MockPageExtractor) ExtractPages(ctx context.Context, r io.ReaderAt, size int64) ([]domain.RawPage, error) {
	args := m.Called(ctx, r, size)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RawPage), args.Error(1)
}

// MockChatSessionRepository is a mock implementation of ChatSessionRepositoryInterface
type MockChatSessionRepository struct {
	mock.Mock
}

func (m *MockChatSessionRepository) Create(ctx context.Context, s *domain.ChatSession) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *MockChatSessionRepository) GetByID(ctx context.Context, id string) (*domain.ChatSession, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ChatSession), args.Error(1)
}

func (m *MockChatSessionRepository) List(ctx context.Context) ([]*domain.ChatSession, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ChatSession), args.Error(1)
}

func (m *MockChatSessionRepository) UpdateDocuments(ctx context.Context, id string, documentIDs []string, updatedAt time.Time) error {
	args := m.Called(ctx, id, documentIDs, updatedAt)
	return args.Error(0)
}

func (m *MockChatSessionRepository) AppendMessages(ctx context.Context, sessionID string, title string, messages []domain.ChatMessage, updatedAt time.Time) error {
	args := m.Called(ctx, sessionID, title, messages, updatedAt)
	return args.Error(0)
}

func (m *MockChatSessionRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockLanguageModel is a mock implementation of LanguageModel. CompleteJSON
// decodes the string registered as its first return value into out.
type MockLanguageModel struct {
	mock.Mock
}

func (m *MockLanguageModel) Complete(ctx context.Context, messages []domain.PromptMessage) (string, error) {
	args := m.Called(ctx, messages)
	return args.String(0), args.Error(1)
}

func (m *MockLanguageModel) CompleteJSON(ctx context.Context, messages []domain.PromptMessage, out any) error {
	args := m.Called(ctx, messages, out)
	if err := args.Error(1); err != nil {
		return err
	}
	return json.Unmarshal([]byte(args.String(0)), out)
}

// MockQuizRepository is a mock implementation of QuizRepositoryInterface
type MockQuizRepository struct {
	mock.Mock
}

func (m *MockQuizRepository) Create(ctx context.Context, q *domain.Quiz) error {
	args := m.Called(ctx, q)
	return args.Error(0)
}

func (m *MockQuizRepository) GetByID(ctx context.Context, id string) (*domain.Quiz, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Quiz), args.Error(1)
}

func (m *MockQuizRepository) GetByIDs(ctx context.Context, ids []string) ([]*domain.Quiz, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Quiz), args.Error(1)
}

func (m *MockQuizRepository) List(ctx context.Context) ([]*domain.Quiz, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Quiz), args.Error(1)
}

// MockAttemptRepository is a mock implementation of AttemptRepositoryInterface
type MockAttemptRepository struct {
	mock.Mock
}

func (m *MockAttemptRepository) Create(ctx context.Context, a *domain.Attempt) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *MockAttemptRepository) GetByID(ctx context.Context, id string) (*domain.Attempt, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Attempt), args.Error(1)
}

func (m *MockAttemptRepository) ListByQuiz(ctx context.Context, quizID string) ([]*domain.Attempt, error) {
	args := m.Called(ctx, quizID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Attempt), args.Error(1)
}

func (m *MockAttemptRepository) ListAll(ctx context.Context) ([]*domain.Attempt, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Attempt), args.Error(1)
}

// MockUUIDGenerator hands out the given ids in order, then "default-uuid".
type MockUUIDGenerator struct {
	callCount int
	uuids     []string
}

func NewMockUUIDGenerator(uuids ...string) *MockUUIDGenerator {
	return &MockUUIDGenerator{uuids: uuids}
}

func (m *MockUUIDGenerator) NewString() string {
	if m.callCount < len(m.uuids) {
		uuid := m.uuids[m.callCount]
		m.callCount++
		return uuid
	}
	return "default-uuid"
}

func readyDocument(id string) *domain.Document {
	doc := domain.NewDocument(id, id+".pdf", "documents/"+id+"/"+id+".pdf", domain.ContentTypePDF, 1024, time.Now().UTC())
	doc.Status = domain.DocumentStatusReady
	return doc
}
