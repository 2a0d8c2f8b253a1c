package service

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/cloo-solutions/studyrag/internal/domain"
)

// GroundingPolicy decides which generated questions may be persisted.
type GroundingPolicy struct {
	MinOptions  int
	MaxTopicLen int
	// TopicDenylist holds whole-word patterns for section labels that make
	// a topic useless for analytics.
	TopicDenylist []string
}

func DefaultGroundingPolicy() GroundingPolicy {
	return GroundingPolicy{
		MinOptions:  3,
		MaxTopicLen: 40,
		TopicDenylist: []string{
			`chapter`,
			`contents`,
			`table\s+of\s+contents`,
			`index`,
			`exercises?`,
			`section\s*\d+`,
			`unit\s*\d+`,
			`appendix`,
			`preface`,
			`acknowledg\w*`,
		},
	}
}

var (
	errEmptyText        = errors.New("question text is empty")
	errEmptyAnswer      = errors.New("correct answer is empty")
	errEmptyExplanation = errors.New("explanation is empty")
	errTooFewOptions    = errors.New("too few options")
	errTopicTooLong     = errors.New("topic too long")
	errStructuralTopic  = errors.New("topic is a section label")
)

// GroundingValidator drops malformed or poorly grounded questions.
type GroundingValidator struct {
	minOptions  int
	maxTopicLen int
	denylist    *regexp.Regexp
}

func NewGroundingValidator(policy GroundingPolicy) (*GroundingValidator, error) {
	v := &GroundingValidator{
		minOptions:  policy.MinOptions,
		maxTopicLen: policy.MaxTopicLen,
	}
	if len(policy.TopicDenylist) > 0 {
		re, err := regexp.Compile(`(?i)\b(?:` + strings.Join(policy.TopicDenylist, "|") + `)\b`)
		if err != nil {
			return nil, fmt.Errorf("invalid topic denylist: %w", err)
		}
		v.denylist = re
	}
	return v, nil
}

// Check returns nil when q may be shown to a user, otherwise the first reason
// it was rejected.
func (v *GroundingValidator) Check(q domain.Question) error {
	if strings.TrimSpace(q.Text) == "" {
		return errEmptyText
	}
	if strings.TrimSpace(q.CorrectAnswer) == "" {
		return errEmptyAnswer
	}
	if strings.TrimSpace(q.Explanation) == "" {
		return errEmptyExplanation
	}
	if q.Type == domain.QuestionTypeMCQ {
		if q.Options == nil || q.Options.NonEmpty() < v.minOptions {
			return errTooFewOptions
		}
	}

	topic := strings.TrimSpace(q.Topic)
	if topic == "" {
		return nil
	}
	if v.maxTopicLen > 0 && utf8.RuneCountInString(topic) > v.maxTopicLen {
		return errTopicTooLong
	}
	if v.denylist != nil && v.denylist.MatchString(topic) {
		return errStructuralTopic
	}
	return nil
}

// Filter keeps the questions that pass Check, in order. Rejected questions
// are dropped, never repaired.
func (v *GroundingValidator) Filter(questions []domain.Question) []domain.Question {
	out := make([]domain.Question, 0, len(questions))
	for _, q := range questions {
		if v.Check(q) == nil {
			out = append(out, q)
		}
	}
	return out
}
