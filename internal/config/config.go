package config

import (
	"fmt"
	"time"

	"github.com/cloo-solutions/studyrag/internal/service"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	Debug       bool   `envconfig:"DEBUG" default:"false"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	DatabaseURL   string `envconfig:"DATABASE_URL" required:"true"`
	DBMaxConns    int32  `envconfig:"DB_MAX_CONNS" default:"10"`
	DBMinConns    int32  `envconfig:"DB_MIN_CONNS" default:"0"`
	MigrationsDir string `envconfig:"MIGRATIONS_DIR" default:"migrations"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"study-documents"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	// Any OpenAI compatible endpoint; the default models are Groq's.
	OpenAIAPIKey    string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL   string `envconfig:"OPENAI_BASE_URL"`
	AIModel         string `envconfig:"AI_MODEL"`
	AIFallbackModel string `envconfig:"AI_FALLBACK_MODEL"`

	SentryDSN string `envconfig:"SENTRY_DSN"`

	// PolicyFile is a YAML file overriding the pattern lists of the pipeline.
	PolicyFile string `envconfig:"POLICY_FILE"`

	ChunkSize      int     `envconfig:"CHUNK_SIZE" default:"1200"`
	ChunkOverlap   int     `envconfig:"CHUNK_OVERLAP" default:"220"`
	ChunkMinChars  int     `envconfig:"CHUNK_MIN_CHARS" default:"100"`
	MinPageChars   int     `envconfig:"MIN_PAGE_CHARS" default:"120"`
	TopK           int     `envconfig:"TOP_K" default:"5"`
	PhraseBonus    float64 `envconfig:"PHRASE_BONUS" default:"100"`
	GradeThreshold float64 `envconfig:"GRADE_THRESHOLD" default:"0.38"`
	StrengthRatio  float64 `envconfig:"STRENGTH_RATIO" default:"0.75"`
	WeaknessRatio  float64 `envconfig:"WEAKNESS_RATIO" default:"0.50"`

	IngestPollInterval time.Duration `envconfig:"INGEST_POLL_INTERVAL" default:"5s"`
	PreviewIdleTTL     time.Duration `envconfig:"PREVIEW_IDLE_TTL" default:"30m"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("STUDY", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

// PipelineConfig returns the stage policies: defaults, then the thresholds
// from the environment, then the pattern lists of the policy file if set.
func (c *Config) PipelineConfig() (service.PipelineConfig, error) {
	pc := service.DefaultPipelineConfig()

	pc.Chunk = service.ChunkConfig{Size: c.ChunkSize, Overlap: c.ChunkOverlap, MinChars: c.ChunkMinChars}
	pc.Cleaner.MinPageChars = c.MinPageChars
	pc.Rank.TopK = c.TopK
	pc.Rank.PhraseBonus = c.PhraseBonus
	pc.Grading.PassScore = c.GradeThreshold
	pc.Topics.StrengthRatio = c.StrengthRatio
	pc.Topics.WeaknessRatio = c.WeaknessRatio

	if c.WeaknessRatio > c.StrengthRatio {
		return pc, fmt.Errorf("weakness ratio %.2f above strength ratio %.2f", c.WeaknessRatio, c.StrengthRatio)
	}
	if err := pc.Chunk.Validate(); err != nil {
		return pc, err
	}

	if c.PolicyFile == "" {
		return pc, nil
	}
	policy, err := LoadPolicy(c.PolicyFile)
	if err != nil {
		return pc, err
	}
	policy.Apply(&pc)
	return pc, nil
}
