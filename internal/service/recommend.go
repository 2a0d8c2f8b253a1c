package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/cloo-solutions/studyrag/internal/domain"
	"github.com/cloo-solutions/studyrag/internal/telemetry"
	"github.com/rs/zerolog/log"
)

const recommendSystemPrompt = "You suggest search queries that find high-quality educational videos, such as Khan Academy or CrashCourse lessons."

// StudyRecommendation is a set of video search queries for one topic.
type StudyRecommendation struct {
	Topic   string
	Queries []string
}

type RecommendConfig struct {
	QueriesPerTopic int
	// MaxTopics bounds how many weak topics get recommendations.
	MaxTopics int
}

func DefaultRecommendConfig() RecommendConfig {
	return RecommendConfig{QueriesPerTopic: 5, MaxTopics: 3}
}

// ProgressCalculator is what recommendations need from progress tracking.
type ProgressCalculator interface {
	Calculate(ctx context.Context) (*domain.Progress, error)
}

// RecommendationService turns topics, or the weaknesses in quiz history,
// into video search queries.
type RecommendationService struct {
	progress ProgressCalculator
	model    LanguageModel
	cfg      RecommendConfig
}

func NewRecommendationService(progress ProgressCalculator, model LanguageModel) *RecommendationService {
	return NewRecommendationServiceWithConfig(progress, model, DefaultRecommendConfig())
}

func NewRecommendationServiceWithConfig(progress ProgressCalculator, model LanguageModel, cfg RecommendConfig) *RecommendationService {
	return &RecommendationService{progress: progress, model: model, cfg: cfg}
}

type generatedQueries struct {
	Queries []string `json:"queries"`
}

// ForTopic asks the model for search queries about topic. Blank and
// duplicate queries are dropped.
func (s *RecommendationService) ForTopic(ctx context.Context, topic, extra string) (*StudyRecommendation, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, fmt.Errorf("%w: topic", domain.ErrMissingRequiredField)
	}

	var out generatedQueries
	if err := s.model.CompleteJSON(ctx, s.buildPrompt(topic, extra), &out); err != nil {
		return nil, domain.ErrModelUnavailable.WithCause(err)
	}

	return &StudyRecommendation{Topic: topic, Queries: s.cleanQueries(out.Queries)}, nil
}

// ForWeaknesses recommends for the weak topics of the quiz history, lowest
// ratio first. A topic whose request fails is skipped.
func (s *RecommendationService) ForWeaknesses(ctx context.Context) ([]StudyRecommendation, error) {
	ctx, span := telemetry.StartSpan(ctx, "RecommendationService.ForWeaknesses", telemetry.SpanAttributes{
		Operation: "recommend",
	})
	defer span.End()

	progress, err := s.progress.Calculate(ctx)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	topics := append([]string(nil), progress.Weaknesses...)
	sort.SliceStable(topics, func(i, j int) bool {
		return progress.TopicScores[topics[i]].Ratio() < progress.TopicScores[topics[j]].Ratio()
	})
	if s.cfg.MaxTopics > 0 && len(topics) > s.cfg.MaxTopics {
		topics = topics[:s.cfg.MaxTopics]
	}

	recs := make([]StudyRecommendation, 0, len(topics))
	for _, topic := range topics {
		score := progress.TopicScores[topic]
		extra := fmt.Sprintf("The student answered %d of %d questions on this topic correctly.", score.Correct, score.Total)
		rec, err := s.ForTopic(ctx, topic, extra)
		if err != nil {
			log.Warn().Err(err).Str("topic", topic).Msg("skipping recommendation")
			continue
		}
		recs = append(recs, *rec)
	}
	span.SetData("topics", len(topics))
	span.SetData("recommended", len(recs))
	return recs, nil
}

func (s *RecommendationService) buildPrompt(topic, extra string) []domain.PromptMessage {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate %d specific, educational YouTube video search queries for learning about: %s\n", s.cfg.QueriesPerTopic, topic)
	if extra = strings.TrimSpace(extra); extra != "" {
		fmt.Fprintf(&b, "Context: %s\n", extra)
	}
	b.WriteString(`Return a JSON object: {"queries": ["query1", "query2", ...]}`)

	return []domain.PromptMessage{
		{Role: domain.PromptRoleSystem, Content: recommendSystemPrompt},
		{Role: domain.PromptRoleUser, Content: b.String()},
	}
}

func (s *RecommendationService) cleanQueries(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, q := range raw {
		q = strings.Join(strings.Fields(q), " ")
		key := strings.ToLower(q)
		if q == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, q)
		if s.cfg.QueriesPerTopic > 0 && len(out) == s.cfg.QueriesPerTopic {
			break
		}
	}
	return out
}
