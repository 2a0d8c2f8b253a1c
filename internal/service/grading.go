package service

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/cloo-solutions/studyrag/internal/domain"
)

// GradingConfig holds the weights and cutoffs of the open-answer grader.
type GradingConfig struct {
	PrecisionWeight float64
	RecallWeight    float64
	JaccardWeight   float64

	// PassScore is the combined score at or above which an answer passes.
	PassScore float64

	// An answer also passes when precision and Jaccard both reach these.
	PassPrecision float64
	PassJaccard   float64

	ExplanationKeywords int
	MaxKeywords         int
	Stopwords           []string
}

func DefaultGradingConfig() GradingConfig {
	return GradingConfig{
		PrecisionWeight:     0.4,
		RecallWeight:        0.2,
		JaccardWeight:       0.4,
		PassScore:           0.38,
		PassPrecision:       0.5,
		PassJaccard:         0.3,
		ExplanationKeywords: 12,
		MaxKeywords:         24,
		Stopwords: []string{
			"a", "an", "the", "and", "or", "but", "if", "then", "else", "when",
			"at", "by", "for", "in", "of", "on", "to", "with", "as", "is",
			"are", "was", "were", "be", "been", "being", "it", "its", "that", "this",
			"these", "those", "from", "which", "who", "whom", "what", "why", "how",
		},
	}
}

// Grader scores free-text answers by token overlap with a keyword set built
// from the reference answer and its explanation. The verdict is approximate
// partial credit, not a semantic judgement.
type Grader struct {
	cfg       GradingConfig
	stopwords map[string]struct{}
}

func NewGrader(cfg GradingConfig) *Grader {
	stop := make(map[string]struct{}, len(cfg.Stopwords))
	for _, w := range cfg.Stopwords {
		stop[strings.ToLower(w)] = struct{}{}
	}
	return &Grader{cfg: cfg, stopwords: stop}
}

// Evaluate grades userAnswer against correctAnswer. explanation may be empty.
func (g *Grader) Evaluate(userAnswer, correctAnswer, explanation string) domain.AnswerEvaluation {
	keywords := g.keywords(correctAnswer, explanation)
	user := unique(g.tokenize(userAnswer))
	if len(keywords) == 0 || len(user) == 0 {
		return domain.AnswerEvaluation{}
	}

	keySet := make(map[string]struct{}, len(keywords))
	for _, k := range keywords {
		keySet[k] = struct{}{}
	}
	overlap := 0
	for _, u := range user {
		if _, ok := keySet[u]; ok {
			overlap++
		}
	}

	precision := float64(overlap) / float64(len(keywords))
	recall := float64(overlap) / float64(len(user))
	jaccard := float64(overlap) / float64(len(keywords)+len(user)-overlap)
	combined := g.cfg.PrecisionWeight*precision + g.cfg.RecallWeight*recall + g.cfg.JaccardWeight*jaccard

	correct := combined >= g.cfg.PassScore ||
		(precision >= g.cfg.PassPrecision && jaccard >= g.cfg.PassJaccard)

	return domain.AnswerEvaluation{
		IsCorrect:  correct,
		Similarity: math.Round(clamp01(combined)*1000) / 1000,
	}
}

// keywords returns the unique reference tokens followed by the most frequent
// explanation tokens, capped at MaxKeywords.
func (g *Grader) keywords(correctAnswer, explanation string) []string {
	base := g.tokenize(correctAnswer)

	expl := g.tokenize(explanation)
	freq := make(map[string]int, len(expl))
	order := make([]string, 0, len(expl))
	for _, t := range expl {
		if freq[t] == 0 {
			order = append(order, t)
		}
		freq[t]++
	}
	sort.SliceStable(order, func(i, j int) bool {
		return freq[order[i]] > freq[order[j]]
	})
	if len(order) > g.cfg.ExplanationKeywords {
		order = order[:g.cfg.ExplanationKeywords]
	}

	keys := unique(append(base, order...))
	if g.cfg.MaxKeywords > 0 && len(keys) > g.cfg.MaxKeywords {
		keys = keys[:g.cfg.MaxKeywords]
	}
	return keys
}

func (g *Grader) tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(c rune) bool {
		return !unicode.IsLetter(c) && !unicode.IsDigit(c)
	})
	out := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) <= 1 {
			continue
		}
		if _, stop := g.stopwords[f]; stop {
			continue
		}
		out = append(out, f)
	}
	return out
}

func unique(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
