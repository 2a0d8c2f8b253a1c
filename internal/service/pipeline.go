package service

import "fmt"

// PipelineConfig gathers the tunable policy of every pipeline stage.
type PipelineConfig struct {
	Cleaner   CleanerPolicy
	Chunk     ChunkConfig
	Rank      RankConfig
	Grounding GroundingPolicy
	Topics    TopicPolicy
	Grading   GradingConfig
}

func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Cleaner:   DefaultCleanerPolicy(),
		Chunk:     DefaultChunkConfig(),
		Rank:      DefaultRankConfig(),
		Grounding: DefaultGroundingPolicy(),
		Topics:    DefaultTopicPolicy(),
		Grading:   DefaultGradingConfig(),
	}
}

// Pipeline holds the compiled, stateless stages. All members are safe for
// concurrent use.
type Pipeline struct {
	Cleaner   *PageCleaner
	Chunk     ChunkConfig
	Ranker    *Ranker
	Grounding *GroundingValidator
	Topics    *TopicNormalizer
	Grader    *Grader
}

// NewPipeline validates cfg and compiles its patterns.
func NewPipeline(cfg PipelineConfig) (*Pipeline, error) {
	if err := cfg.Chunk.Validate(); err != nil {
		return nil, err
	}

	cleaner, err := NewPageCleaner(cfg.Cleaner)
	if err != nil {
		return nil, fmt.Errorf("cleaner: %w", err)
	}
	grounding, err := NewGroundingValidator(cfg.Grounding)
	if err != nil {
		return nil, fmt.Errorf("grounding: %w", err)
	}
	topics, err := NewTopicNormalizer(cfg.Topics)
	if err != nil {
		return nil, fmt.Errorf("topics: %w", err)
	}

	return &Pipeline{
		Cleaner:   cleaner,
		Chunk:     cfg.Chunk,
		Ranker:    NewRanker(cfg.Rank),
		Grounding: grounding,
		Topics:    topics,
		Grader:    NewGrader(cfg.Grading),
	}, nil
}

// MustDefaultPipeline compiles the default pipeline and panics on error.
func MustDefaultPipeline() *Pipeline {
	p, err := NewPipeline(DefaultPipelineConfig())
	if err != nil {
		panic(err)
	}
	return p
}
