package admin

import (
	"context"
	"fmt"

	"github.com/cloo-solutions/studyrag/internal/config"
	"github.com/cloo-solutions/studyrag/internal/domain"
	"github.com/cloo-solutions/studyrag/internal/openai"
	"github.com/cloo-solutions/studyrag/internal/service"
	"github.com/cloo-solutions/studyrag/internal/storage"
	"github.com/rs/zerolog/log"
)

// S3StorageAdapter maps storage.S3Client onto the service storage interface.
type S3StorageAdapter struct {
	client *storage.S3Client
}

func NewS3StorageAdapter(client *storage.S3Client) *S3StorageAdapter {
	return &S3StorageAdapter{client: client}
}

func (a *S3StorageAdapter) GenerateUploadURL(ctx context.Context, key string, contentType string) (string, error) {
	return a.client.GenerateUploadURL(ctx, key, contentType)
}

func (a *S3StorageAdapter) GenerateDownloadURL(ctx context.Context, key string) (string, error) {
	return a.client.GenerateDownloadURL(ctx, key)
}

func (a *S3StorageAdapter) DeleteObject(ctx context.Context, key string) error {
	return a.client.DeleteObject(ctx, key)
}

func (a *S3StorageAdapter) HeadObject(ctx context.Context, key string) (*service.ObjectMetadata, error) {
	meta, err := a.client.HeadObject(ctx, key)
	if err != nil {
		return nil, err
	}
	return &service.ObjectMetadata{
		ContentLength: meta.ContentLength,
		ContentType:   meta.ContentType,
		ETag:          meta.ETag,
	}, nil
}

func (a *S3StorageAdapter) GetObject(ctx context.Context, key string) ([]byte, error) {
	return a.client.GetObject(ctx, key)
}

// NoOpStorage answers every call with an error so the API can still serve
// sessions, quizzes and progress for documents ingested earlier.
type NoOpStorage struct{}

func errStorageNotConfigured() error {
	return fmt.Errorf("%w: STUDY_S3_ENDPOINT required", domain.ErrStorageOperationFail)
}

func (NoOpStorage) GenerateUploadURL(ctx context.Context, key string, contentType string) (string, error) {
	return "", errStorageNotConfigured()
}

func (NoOpStorage) GenerateDownloadURL(ctx context.Context, key string) (string, error) {
	return "", errStorageNotConfigured()
}

func (NoOpStorage) DeleteObject(ctx context.Context, key string) error {
	return errStorageNotConfigured()
}

func (NoOpStorage) HeadObject(ctx context.Context, key string) (*service.ObjectMetadata, error) {
	return nil, errStorageNotConfigured()
}

func (NoOpStorage) GetObject(ctx context.Context, key string) ([]byte, error) {
	return nil, errStorageNotConfigured()
}

// NoOpLanguageModel fails every completion with domain.ErrModelUnavailable.
type NoOpLanguageModel struct{}

func (NoOpLanguageModel) Complete(ctx context.Context, messages []domain.PromptMessage) (string, error) {
	return "", fmt.Errorf("%w: STUDY_OPENAI_API_KEY required", domain.ErrModelUnavailable)
}

func (NoOpLanguageModel) CompleteJSON(ctx context.Context, messages []domain.PromptMessage, out any) error {
	return fmt.Errorf("%w: STUDY_OPENAI_API_KEY required", domain.ErrModelUnavailable)
}

var (
	_ service.StorageClientInterface = (*S3StorageAdapter)(nil)
	_ service.StorageClientInterface = NoOpStorage{}
	_ service.LanguageModel          = NoOpLanguageModel{}
	_ service.LanguageModel          = (*openai.Client)(nil)
)

func newStorage(ctx context.Context, cfg *config.Config) (service.StorageClientInterface, error) {
	if !cfg.HasS3() {
		log.Warn().Msg("S3 not configured, uploads and ingestion are disabled")
		return NoOpStorage{}, nil
	}

	client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        cfg.S3Endpoint,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKey,
		SecretAccessKey: cfg.S3SecretKey,
		Bucket:          cfg.S3Bucket,
		UsePathStyle:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}
	if err := client.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure S3 bucket: %w", err)
	}
	log.Info().Str("bucket", cfg.S3Bucket).Msg("S3 bucket ready")
	return NewS3StorageAdapter(client), nil
}

func newLanguageModel(cfg *config.Config) service.LanguageModel {
	if !cfg.HasOpenAI() {
		log.Warn().Msg("no model API key configured, chat and quiz generation are disabled")
		return NoOpLanguageModel{}
	}
	client := openai.NewClientWithConfig(openai.Config{
		APIKey:        cfg.OpenAIAPIKey,
		BaseURL:       cfg.OpenAIBaseURL,
		Model:         cfg.AIModel,
		FallbackModel: cfg.AIFallbackModel,
	})
	log.Info().Str("model", client.Model()).Msg("language model configured")
	return client
}
