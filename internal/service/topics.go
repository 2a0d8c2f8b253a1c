package service

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/cloo-solutions/studyrag/internal/domain"
)

// TopicPolicy controls topic canonicalization and strength classification.
type TopicPolicy struct {
	Fallback string
	MinLen   int
	MaxWords int
	// NumberingLabels are words that, followed by a number, mark a
	// section heading ("chapter 3", "ex. 4.1").
	NumberingLabels []string
	// StructuralWords are stripped wherever they appear.
	StructuralWords []string
	StrengthRatio   float64
	WeaknessRatio   float64
}

func DefaultTopicPolicy() TopicPolicy {
	return TopicPolicy{
		Fallback: "General",
		MinLen:   3,
		MaxWords: 6,
		NumberingLabels: []string{
			"chapter", "chap", "ch", "section", "sec", "unit", "exercise", "ex", "lesson", "part", "module",
		},
		StructuralWords: []string{
			`table\s+of\s+contents`, `contents`, `index`, `acknowledge?ments?`, `chapter`, `section`, `exercises?`,
		},
		StrengthRatio: 0.75,
		WeaknessRatio: 0.50,
	}
}

var (
	bareNumberPattern    = regexp.MustCompile(`\b\d+(?:\.\d+)*\b`)
	topicDisallowPattern = regexp.MustCompile(`[^\p{L}\p{N}\s'\-]`)
)

// TopicNormalizer reduces free-text topic labels to a small comparable
// vocabulary and folds attempts into per-topic counters.
type TopicNormalizer struct {
	policy     TopicPolicy
	numbering  *regexp.Regexp
	structural *regexp.Regexp
}

func NewTopicNormalizer(policy TopicPolicy) (*TopicNormalizer, error) {
	if policy.Fallback == "" {
		policy.Fallback = DefaultTopicPolicy().Fallback
	}
	n := &TopicNormalizer{policy: policy}

	if len(policy.NumberingLabels) > 0 {
		labels := make([]string, len(policy.NumberingLabels))
		for i, l := range policy.NumberingLabels {
			labels[i] = regexp.QuoteMeta(l)
		}
		expr := `(?i)\b(?:` + strings.Join(labels, "|") + `)(?:\.?\s*\d+(?:\.\d+)*|(?:\.\s*|\s+)[ivx]{1,4})\b`
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid numbering labels: %w", err)
		}
		n.numbering = re
	}

	if len(policy.StructuralWords) > 0 {
		re, err := regexp.Compile(`(?i)\b(?:` + strings.Join(policy.StructuralWords, "|") + `)\b`)
		if err != nil {
			return nil, fmt.Errorf("invalid structural words: %w", err)
		}
		n.structural = re
	}

	return n, nil
}

// Normalize canonicalizes one raw topic label.
func (n *TopicNormalizer) Normalize(raw string) string {
	topic := strings.ToLower(raw)
	if n.numbering != nil {
		topic = n.numbering.ReplaceAllString(topic, " ")
	}
	topic = bareNumberPattern.ReplaceAllString(topic, " ")
	if n.structural != nil {
		topic = n.structural.ReplaceAllString(topic, " ")
	}
	topic = topicDisallowPattern.ReplaceAllString(topic, " ")

	words := strings.Fields(topic)
	for i, w := range words {
		words[i] = strings.Trim(w, "'-")
	}
	topic = strings.Join(strings.Fields(strings.Join(words, " ")), " ")

	if utf8.RuneCountInString(topic) < n.policy.MinLen {
		return n.policy.Fallback
	}

	if n.policy.MaxWords > 0 {
		if words := strings.Fields(topic); len(words) > n.policy.MaxWords {
			topic = strings.Join(words[:n.policy.MaxWords], " ")
		}
	}
	return topic
}

// Aggregate folds every question of every attempt's quiz into per-topic
// counters. Attempts whose quiz is unknown are skipped. The result does not
// depend on attempt order.
func (n *TopicNormalizer) Aggregate(attempts []*domain.Attempt, quizzes map[string]*domain.Quiz) map[string]domain.TopicScore {
	scores := make(map[string]domain.TopicScore)
	for _, a := range attempts {
		quiz, ok := quizzes[a.QuizID]
		if !ok {
			continue
		}
		for _, q := range quiz.Questions {
			topic := n.Normalize(q.Topic)
			scores[topic] = scores[topic].Add(a.IsCorrect(q.ID))
		}
	}
	return scores
}

// MergeTopicScores sums two aggregations into a new map.
func MergeTopicScores(a, b map[string]domain.TopicScore) map[string]domain.TopicScore {
	out := make(map[string]domain.TopicScore, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = out[k].Merge(v)
	}
	return out
}

// Classify splits topics into strengths and weaknesses, each sorted by name.
// Topics between the two cutoffs appear in neither list.
func (n *TopicNormalizer) Classify(scores map[string]domain.TopicScore) (strengths, weaknesses []string) {
	strengths = []string{}
	weaknesses = []string{}
	for topic, s := range scores {
		if s.Total == 0 {
			continue
		}
		switch r := s.Ratio(); {
		case r >= n.policy.StrengthRatio:
			strengths = append(strengths, topic)
		case r < n.policy.WeaknessRatio:
			weaknesses = append(weaknesses, topic)
		}
	}
	sort.Strings(strengths)
	sort.Strings(weaknesses)
	return strengths, weaknesses
}
