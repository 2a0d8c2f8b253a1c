package domain

import (
	"fmt"
	"strings"
	"time"
)

// QuestionType is the kind of a quiz question
type QuestionType string

const (
	QuestionTypeMCQ QuestionType = "MCQ"
	QuestionTypeSAQ QuestionType = "SAQ"
	QuestionTypeLAQ QuestionType = "LAQ"
)

// QuizType is the requested mix of question types for a quiz
type QuizType string

const (
	QuizTypeMCQ   QuizType = "MCQ"
	QuizTypeSAQ   QuizType = "SAQ"
	QuizTypeLAQ   QuizType = "LAQ"
	QuizTypeMixed QuizType = "MIXED"
)

// Difficulty of a generated question
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// MCQOptionCount is the fixed number of options an MCQ carries.
const MCQOptionCount = 4

// Options holds the fixed-arity answer choices of an MCQ.
type Options [MCQOptionCount]string

// NonEmpty counts options with visible text.
func (o Options) NonEmpty() int {
	n := 0
	for _, opt := range o {
		if strings.TrimSpace(opt) != "" {
			n++
		}
	}
	return n
}

// OptionsFromSlice fits a free-length option list into the fixed array,
// dropping extras and leaving missing slots empty.
func OptionsFromSlice(in []string) Options {
	var o Options
	for i := 0; i < len(in) && i < MCQOptionCount; i++ {
		o[i] = strings.TrimSpace(in[i])
	}
	return o
}

// Question is one generated quiz question. Options is set only for MCQ;
// SAQ and LAQ questions carry nil. Questions are immutable once persisted.
type Question struct {
	ID            string
	Type          QuestionType
	Text          string
	Options       *Options
	CorrectAnswer string
	Explanation   string
	Topic         string
	Difficulty    Difficulty
	PageReference int // 0 when the model gave none
	SourceSnippet string
}

// NewMCQ creates a multiple choice question
func NewMCQ(id, text string, options Options, correctAnswer, explanation, topic string, difficulty Difficulty) Question {
	return Question{
		ID:            id,
		Type:          QuestionTypeMCQ,
		Text:          text,
		Options:       &options,
		CorrectAnswer: correctAnswer,
		Explanation:   explanation,
		Topic:         topic,
		Difficulty:    difficulty,
	}
}

// NewOpenQuestion creates a short or long answer question
func NewOpenQuestion(id string, qType QuestionType, text, correctAnswer, explanation, topic string, difficulty Difficulty) Question {
	return Question{
		ID:            id,
		Type:          qType,
		Text:          text,
		CorrectAnswer: correctAnswer,
		Explanation:   explanation,
		Topic:         topic,
		Difficulty:    difficulty,
	}
}

// IsOpen reports whether the question is graded as free text.
func (q Question) IsOpen() bool {
	return q.Type == QuestionTypeSAQ || q.Type == QuestionTypeLAQ
}

// Quiz is a persisted, validated set of questions generated from documents
type Quiz struct {
	ID          string
	DocumentIDs []string
	Type        QuizType
	Questions   []Question
	CreatedAt   time.Time
}

// Question returns the question with the given id.
func (q *Quiz) Question(id string) (Question, bool) {
	for _, question := range q.Questions {
		if question.ID == id {
			return question, true
		}
	}
	return Question{}, false
}

// ValidateQuestion checks the structural shape of a question: the type tag
// must match the presence of options.
func ValidateQuestion(q Question) error {
	if q.ID == "" {
		return fmt.Errorf("question ID is required")
	}

	if !IsValidQuestionType(q.Type) {
		return fmt.Errorf("%w: %s", ErrInvalidQuestionType, q.Type)
	}

	if q.Type == QuestionTypeMCQ && q.Options == nil {
		return fmt.Errorf("MCQ question %s has no options", q.ID)
	}

	if q.Type != QuestionTypeMCQ && q.Options != nil {
		return fmt.Errorf("%s question %s must not carry options", q.Type, q.ID)
	}

	return nil
}

// ValidateQuiz validates a Quiz instance before persistence
func ValidateQuiz(q *Quiz) error {
	if q == nil {
		return fmt.Errorf("quiz cannot be nil")
	}

	if q.ID == "" {
		return fmt.Errorf("quiz ID is required")
	}

	if !IsValidQuizType(q.Type) {
		return fmt.Errorf("%w: %s", ErrInvalidQuizType, q.Type)
	}

	if len(q.Questions) == 0 {
		return ErrUngroundedGeneration
	}

	for _, question := range q.Questions {
		if err := ValidateQuestion(question); err != nil {
			return err
		}
	}

	return nil
}

// IsValidQuestionType checks if a QuestionType is valid
func IsValidQuestionType(t QuestionType) bool {
	switch t {
	case QuestionTypeMCQ, QuestionTypeSAQ, QuestionTypeLAQ:
		return true
	}
	return false
}

// IsValidQuizType checks if a QuizType is valid
func IsValidQuizType(t QuizType) bool {
	switch t {
	case QuizTypeMCQ, QuizTypeSAQ, QuizTypeLAQ, QuizTypeMixed:
		return true
	}
	return false
}

// ParseDifficulty maps free text to a Difficulty, defaulting to medium.
func ParseDifficulty(s string) Difficulty {
	switch Difficulty(strings.ToLower(strings.TrimSpace(s))) {
	case DifficultyEasy:
		return DifficultyEasy
	case DifficultyHard:
		return DifficultyHard
	default:
		return DifficultyMedium
	}
}
