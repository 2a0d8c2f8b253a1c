package admin

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloo-solutions/studyrag/internal/api/handlers"
	"github.com/cloo-solutions/studyrag/internal/cli"
	"github.com/cloo-solutions/studyrag/internal/config"
	"github.com/cloo-solutions/studyrag/internal/database"
	"github.com/cloo-solutions/studyrag/internal/jobs"
	"github.com/cloo-solutions/studyrag/internal/pdf"
	"github.com/cloo-solutions/studyrag/internal/repository"
	"github.com/cloo-solutions/studyrag/internal/server"
	"github.com/cloo-solutions/studyrag/internal/service"
	"github.com/cloo-solutions/studyrag/internal/telemetry"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the study assistant API server and the background ingest worker",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")
	cmd.Flags().Bool("no-worker", false, "Do not run the ingest worker in this process")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cli.SetupLogger(cfg.Debug)

	if cfg.SentryDSN != "" {
		// 10% sampling in production, everything elsewhere
		sampleRate := 1.0
		if cfg.Environment == "production" {
			sampleRate = 0.1
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              cfg.SentryDSN,
			Environment:      cfg.Environment,
			TracesSampleRate: sampleRate,
		})
		if err != nil {
			log.Warn().Err(err).Msg("telemetry init failed, continuing without tracing")
		} else {
			defer shutdownTelemetry()
		}
	}

	if portFlag, _ := cmd.Flags().GetString("port"); cmd.Flags().Changed("port") {
		cfg.Port = portFlag
	}

	pipelineCfg, err := cfg.PipelineConfig()
	if err != nil {
		return fmt.Errorf("invalid pipeline config: %w", err)
	}
	pipeline, err := service.NewPipeline(pipelineCfg)
	if err != nil {
		return fmt.Errorf("invalid pipeline config: %w", err)
	}

	pool, err := database.NewPool(ctx, database.Config{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	log.Info().Msg("connected to database")

	if noMigrate, _ := cmd.Flags().GetBool("no-migrate"); !noMigrate {
		if err := runMigrations(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	documentRepo := repository.NewDocumentRepository(pool)
	pageRepo := repository.NewPageRepository(pool)
	ingestJobRepo := repository.NewIngestJobRepository(pool)
	quizRepo := repository.NewQuizRepository(pool)
	attemptRepo := repository.NewAttemptRepository(pool)
	sessionRepo := repository.NewChatSessionRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	storageClient, err := newStorage(ctx, cfg)
	if err != nil {
		return err
	}
	model := newLanguageModel(cfg)

	documentSvc := service.NewDocumentService(documentRepo, pageRepo, ingestJobRepo, storageClient, txRunner)
	ingestSvc := service.NewIngestService(documentRepo, storageClient, pdf.NewExtractor(), pipeline.Cleaner, txRunner)
	builder := service.NewCorpusBuilder(service.NewCorpusPageSource(documentRepo, pageRepo), pipeline.Chunk)

	chatCfg := service.DefaultChatConfig()
	chatCfg.TopK = pipelineCfg.Rank.TopK
	chatSvc := service.NewChatServiceWithConfig(sessionRepo, service.NewSessionCorpora(builder), pipeline.Ranker, model, chatCfg)
	quizSvc := service.NewQuizService(quizRepo, attemptRepo, builder, pipeline, model)
	progressSvc := service.NewProgressService(quizRepo, attemptRepo, pipeline.Topics)

	var ingestWorker *jobs.Worker
	if noWorker, _ := cmd.Flags().GetBool("no-worker"); !noWorker {
		processor := jobs.NewIngestWorker(ingestJobRepo, documentRepo, ingestSvc)
		ingestWorker = jobs.NewWorker(processor, cfg.IngestPollInterval)
		go ingestWorker.Start(ctx)
		log.Info().Dur("poll_interval", cfg.IngestPollInterval).Msg("ingest worker started")
	}

	recommendSvc := service.NewRecommendationService(progressSvc, model)

	router := server.NewRouter(server.RouterConfig{
		DocumentHandler:       handlers.NewDocumentHandler(documentSvc, service.NewPreviewServiceWithTTL(documentSvc, cfg.PreviewIdleTTL)),
		SessionHandler:        handlers.NewSessionHandler(chatSvc),
		QuizHandler:           handlers.NewQuizHandler(quizSvc),
		ProgressHandler:       handlers.NewProgressHandler(progressSvc),
		RecommendationHandler: handlers.NewRecommendationHandler(recommendSvc),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	if ingestWorker != nil {
		ingestWorker.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("server exited")
	return nil
}

func runMigrations(databaseURL, dir string) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+dir, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	upErr := m.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", upErr)
	}

	version, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		log.Info().Msg("migrations: no migrations applied")
	case err != nil:
		return fmt.Errorf("failed to get migration version: %w", err)
	case dirty:
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	case errors.Is(upErr, migrate.ErrNoChange):
		log.Info().Uint("version", version).Msg("migrations: database is up to date")
	default:
		log.Info().Uint("version", version).Msg("migrations: applied successfully")
	}

	return nil
}
