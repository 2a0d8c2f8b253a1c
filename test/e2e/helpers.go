//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/cloo-solutions/studyrag/internal/api/handlers"
	"github.com/cloo-solutions/studyrag/internal/cli/admin"
	"github.com/cloo-solutions/studyrag/internal/domain"
	"github.com/cloo-solutions/studyrag/internal/jobs"
	"github.com/cloo-solutions/studyrag/internal/pdf"
	"github.com/cloo-solutions/studyrag/internal/repository"
	"github.com/cloo-solutions/studyrag/internal/server"
	"github.com/cloo-solutions/studyrag/internal/service"
	"github.com/cloo-solutions/studyrag/internal/storage"
	"github.com/cloo-solutions/studyrag/internal/testutil"
	"github.com/jackc/pgx/v5/pgxpool"
)

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	PostgresC    *testutil.PostgresContainer
	RustFSC      *testutil.RustFSContainer
	Pool         *pgxpool.Pool
	ServerURL    string
	ServerCloser func()
	S3Client     *storage.S3Client
	Ingest       *jobs.IngestWorker
	Model        *scriptedModel
	HTTPClient   *http.Client
}

// SetupE2EEnv starts Postgres and RustFS, wires the real services and serves
// the API on a free port. The language model is scripted.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	s3C := testutil.NewRustFSContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        s3C.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     "rustfsadmin",
		SecretAccessKey: "rustfsadmin",
		Bucket:          "test-documents",
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to create S3 client: %v", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}

	env := &E2ETestEnv{
		T:          t,
		Ctx:        ctx,
		PostgresC:  pgC,
		RustFSC:    s3C,
		Pool:       pool,
		S3Client:   s3Client,
		Model:      &scriptedModel{},
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
	env.ServerURL, env.ServerCloser = env.startServer(port)
	return env
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.RustFSC != nil {
		e.RustFSC.Terminate(e.Ctx)
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Status int             `json:"-"`
	Data   json.RawMessage `json:"data"`
	Error  string          `json:"error,omitempty"`
	Code   string          `json:"code,omitempty"`
}

func (e *E2ETestEnv) Get(path string) (*APIResponse, error) {
	return e.doRequest(http.MethodGet, path, nil)
}

func (e *E2ETestEnv) Post(path string, body any) (*APIResponse, error) {
	return e.doRequest(http.MethodPost, path, body)
}

func (e *E2ETestEnv) Put(path string, body any) (*APIResponse, error) {
	return e.doRequest(http.MethodPut, path, body)
}

func (e *E2ETestEnv) Delete(path string) (*APIResponse, error) {
	return e.doRequest(http.MethodDelete, path, nil)
}

// doRequest returns the decoded envelope for any status. Transport and
// decoding failures are errors; HTTP error statuses are not.
func (e *E2ETestEnv) doRequest(method, path string, body any) (*APIResponse, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(e.Ctx, method, e.ServerURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	apiResp := &APIResponse{Status: resp.StatusCode}
	if resp.StatusCode == http.StatusNoContent {
		return apiResp, nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(respBody, apiResp); err != nil {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}
	return apiResp, nil
}

// UploadFile uploads a file to the presigned URL
func (e *E2ETestEnv) UploadFile(uploadURL string, content []byte, contentType string) error {
	req, err := http.NewRequestWithContext(e.Ctx, http.MethodPut, uploadURL, bytes.NewReader(content))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("upload failed with status %d: %s", resp.StatusCode, body)
	}
	return nil
}

// UploadPDF runs init, presigned upload, complete and one ingest pass, and
// returns the stored document.
func (e *E2ETestEnv) UploadPDF(filename string, content []byte) handlers.DocumentResponse {
	e.T.Helper()

	initResp, err := e.Post("/documents/init", handlers.InitUploadRequest{
		Filename:    filename,
		ContentType: domain.ContentTypePDF,
	})
	if err != nil || initResp.Status != http.StatusOK {
		e.T.Fatalf("init upload failed: %v %+v", err, initResp)
	}
	var upload handlers.InitUploadResponse
	e.decode(initResp, &upload)

	if err := e.UploadFile(upload.UploadURL, content, domain.ContentTypePDF); err != nil {
		e.T.Fatalf("upload failed: %v", err)
	}

	completeResp, err := e.Post("/documents/"+upload.DocumentID+"/complete", handlers.CompleteUploadRequest{
		Filename:   filename,
		StorageKey: upload.StorageKey,
	})
	if err != nil || completeResp.Status != http.StatusAccepted {
		e.T.Fatalf("complete upload failed: %v %+v", err, completeResp)
	}

	if err := e.Ingest.ProcessJobs(e.Ctx); err != nil {
		e.T.Fatalf("ingest failed: %v", err)
	}

	docResp, err := e.Get("/documents/" + upload.DocumentID)
	if err != nil || docResp.Status != http.StatusOK {
		e.T.Fatalf("get document failed: %v %+v", err, docResp)
	}
	var doc handlers.DocumentResponse
	e.decode(docResp, &doc)
	return doc
}

func (e *E2ETestEnv) decode(resp *APIResponse, out any) {
	e.T.Helper()
	if err := json.Unmarshal(resp.Data, out); err != nil {
		e.T.Fatalf("failed to decode %s: %v", string(resp.Data), err)
	}
}

func (e *E2ETestEnv) startServer(port int) (string, func()) {
	pipeline := service.MustDefaultPipeline()

	documentRepo := repository.NewDocumentRepository(e.Pool)
	pageRepo := repository.NewPageRepository(e.Pool)
	ingestJobRepo := repository.NewIngestJobRepository(e.Pool)
	quizRepo := repository.NewQuizRepository(e.Pool)
	attemptRepo := repository.NewAttemptRepository(e.Pool)
	sessionRepo := repository.NewChatSessionRepository(e.Pool)
	txRunner := repository.NewTxRunner(e.Pool)
	storageClient := admin.NewS3StorageAdapter(e.S3Client)

	documentSvc := service.NewDocumentService(documentRepo, pageRepo, ingestJobRepo, storageClient, txRunner)
	ingestSvc := service.NewIngestService(documentRepo, storageClient, pdf.NewExtractor(), pipeline.Cleaner, txRunner)
	builder := service.NewCorpusBuilder(service.NewCorpusPageSource(documentRepo, pageRepo), pipeline.Chunk)
	chatSvc := service.NewChatService(sessionRepo, service.NewSessionCorpora(builder), pipeline.Ranker, e.Model)
	quizSvc := service.NewQuizService(quizRepo, attemptRepo, builder, pipeline, e.Model)
	progressSvc := service.NewProgressService(quizRepo, attemptRepo, pipeline.Topics)

	e.Ingest = jobs.NewIngestWorker(ingestJobRepo, documentRepo, ingestSvc)

	recommendSvc := service.NewRecommendationService(progressSvc, e.Model)

	router := server.NewRouter(server.RouterConfig{
		DocumentHandler:       handlers.NewDocumentHandler(documentSvc, service.NewPreviewService(documentSvc)),
		SessionHandler:        handlers.NewSessionHandler(chatSvc),
		QuizHandler:           handlers.NewQuizHandler(quizSvc),
		ProgressHandler:       handlers.NewProgressHandler(progressSvc),
		RecommendationHandler: handlers.NewRecommendationHandler(recommendSvc),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			e.T.Logf("server error: %v", err)
		}
	}()

	serverURL := fmt.Sprintf("http://localhost:%d", port)
	waitForServer(e.T, serverURL, 10*time.Second)

	return serverURL, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v", timeout)
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// scriptedModel answers chat prompts with Answer and quiz prompts with
// QuizJSON.
type scriptedModel struct {
	Answer   string
	QuizJSON string
}

func (m *scriptedModel) Complete(ctx context.Context, messages []domain.PromptMessage) (string, error) {
	return m.Answer, nil
}

func (m *scriptedModel) CompleteJSON(ctx context.Context, messages []domain.PromptMessage, out any) error {
	return json.Unmarshal([]byte(m.QuizJSON), out)
}
