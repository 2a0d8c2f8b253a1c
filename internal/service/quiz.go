package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloo-solutions/studyrag/internal/domain"
	"github.com/cloo-solutions/studyrag/internal/telemetry"
	"github.com/rs/zerolog/log"
)

// QuizRepositoryInterface defines the repository interface for quiz persistence
type QuizRepositoryInterface interface {
	Create(ctx context.Context, q *domain.Quiz) error
	GetByID(ctx context.Context, id string) (*domain.Quiz, error)
	GetByIDs(ctx context.Context, ids []string) ([]*domain.Quiz, error)
	List(ctx context.Context) ([]*domain.Quiz, error)
}

// AttemptRepositoryInterface defines the repository interface for attempt persistence
type AttemptRepositoryInterface interface {
	Create(ctx context.Context, a *domain.Attempt) error
	GetByID(ctx context.Context, id string) (*domain.Attempt, error)
	ListByQuiz(ctx context.Context, quizID string) ([]*domain.Attempt, error)
	// ListAll returns every attempt, oldest first.
	ListAll(ctx context.Context) ([]*domain.Attempt, error)
}

const quizSystemPrompt = "You are an expert educational content creator specializing in creating high-quality quiz questions from textbook content."

var quizTypeInstructions = map[domain.QuizType]string{
	domain.QuizTypeMCQ:   "Create multiple choice questions with 4 options each. Mark the correct answer clearly.",
	domain.QuizTypeSAQ:   "Create short answer questions that can be answered in 2-3 sentences.",
	domain.QuizTypeLAQ:   "Create long answer questions that require detailed explanations (5-7 sentences).",
	domain.QuizTypeMixed: "Create a mix of MCQs, SAQs, and LAQs.",
}

// QuizConfig tunes quiz generation.
type QuizConfig struct {
	DefaultQuestions int
	MaxQuestions     int
	// ContentRunes bounds the source text placed in the generation prompt.
	ContentRunes int
}

func DefaultQuizConfig() QuizConfig {
	return QuizConfig{
		DefaultQuestions: 5,
		MaxQuestions:     20,
		ContentRunes:     4000,
	}
}

// QuizService generates grounded quizzes and grades attempts.
type QuizService struct {
	quizzes  QuizRepositoryInterface
	attempts AttemptRepositoryInterface
	builder  *CorpusBuilder
	pipeline *Pipeline
	model    LanguageModel
	uuidGen  UUIDGenerator
	cfg      QuizConfig
}

func NewQuizService(
	quizzes QuizRepositoryInterface,
	attempts AttemptRepositoryInterface,
	builder *CorpusBuilder,
	pipeline *Pipeline,
	model LanguageModel,
) *QuizService {
	return NewQuizServiceWithConfig(quizzes, attempts, builder, pipeline, model, DefaultQuizConfig())
}

func NewQuizServiceWithConfig(
	quizzes QuizRepositoryInterface,
	attempts AttemptRepositoryInterface,
	builder *CorpusBuilder,
	pipeline *Pipeline,
	model LanguageModel,
	cfg QuizConfig,
) *QuizService {
	return &QuizService{
		quizzes:  quizzes,
		attempts: attempts,
		builder:  builder,
		pipeline: pipeline,
		model:    model,
		uuidGen:  &DefaultUUIDGenerator{},
		cfg:      cfg,
	}
}

type GenerateQuizInput struct {
	DocumentIDs []string
	Type        domain.QuizType
	Questions   int
	Difficulty  domain.Difficulty
}

// generatedQuestion is the JSON shape the model is asked to return.
type generatedQuestion struct {
	Type          string   `json:"type"`
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
	Explanation   string   `json:"explanation"`
	Topic         string   `json:"topic"`
	Difficulty    string   `json:"difficulty"`
	PageReference int      `json:"pageReference"`
}

type generatedQuiz struct {
	Questions []generatedQuestion `json:"questions"`
}

// Generate asks the model for questions over the selected documents, keeps
// the ones that pass grounding, and persists the quiz. When nothing passes
// it returns domain.ErrUngroundedGeneration and persists nothing.
func (s *QuizService) Generate(ctx context.Context, input GenerateQuizInput) (*domain.Quiz, error) {
	ctx, span := telemetry.StartSpan(ctx, "QuizService.Generate", telemetry.SpanAttributes{
		Operation: "generate_quiz",
	})
	defer span.End()

	if !domain.IsValidQuizType(input.Type) {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidQuizType, input.Type)
	}
	count := input.Questions
	if count <= 0 {
		count = s.cfg.DefaultQuestions
	}
	if count > s.cfg.MaxQuestions {
		count = s.cfg.MaxQuestions
	}
	difficulty := domain.ParseDifficulty(string(input.Difficulty))

	corpus, err := s.builder.Build(ctx, input.DocumentIDs)
	if err != nil {
		return nil, err
	}
	if corpus.Empty() {
		return nil, domain.ErrExtractionEmpty
	}

	var out generatedQuiz
	prompt := buildQuizPrompt(corpus.Content(s.cfg.ContentRunes), input.Type, count, difficulty)
	if err := s.model.CompleteJSON(ctx, prompt, &out); err != nil {
		span.SetError(err)
		return nil, domain.ErrModelUnavailable.WithCause(err)
	}

	candidates := s.toQuestions(out.Questions, input.Type, difficulty, corpus)
	questions := make([]domain.Question, 0, len(candidates))
	for _, q := range candidates {
		if err := s.pipeline.Grounding.Check(q); err != nil {
			log.Debug().Err(err).Str("question", truncateRunes(q.Text, 60)).Msg("dropped ungrounded question")
			continue
		}
		q.Topic = s.pipeline.Topics.Normalize(q.Topic)
		questions = append(questions, q)
	}
	span.SetData("generated", len(out.Questions))
	span.SetData("kept", len(questions))
	if len(questions) == 0 {
		telemetry.CaptureMessage(ctx, fmt.Sprintf("quiz generation dropped all %d questions", len(out.Questions)))
		return nil, domain.ErrUngroundedGeneration
	}
	if len(questions) > count {
		questions = questions[:count]
	}

	quiz := &domain.Quiz{
		ID:          s.uuidGen.NewString(),
		DocumentIDs: corpus.DocumentIDs,
		Type:        input.Type,
		Questions:   questions,
		CreatedAt:   time.Now().UTC(),
	}
	if err := domain.ValidateQuiz(quiz); err != nil {
		return nil, err
	}
	if err := s.quizzes.Create(ctx, quiz); err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("failed to create quiz: %w", err)
	}

	log.Info().
		Str("quiz_id", quiz.ID).
		Int("generated", len(out.Questions)).
		Int("kept", len(questions)).
		Msg("quiz generated")
	return quiz, nil
}

// toQuestions maps model output onto typed questions. Items whose type does
// not fit the requested quiz type are dropped.
func (s *QuizService) toQuestions(items []generatedQuestion, quizType domain.QuizType, difficulty domain.Difficulty, corpus *Corpus) []domain.Question {
	out := make([]domain.Question, 0, len(items))
	for _, item := range items {
		qType := domain.QuestionType(strings.ToUpper(strings.TrimSpace(item.Type)))
		if quizType != domain.QuizTypeMixed {
			if qType != "" && qType != domain.QuestionType(quizType) {
				continue
			}
			qType = domain.QuestionType(quizType)
		}
		if !domain.IsValidQuestionType(qType) {
			continue
		}

		d := difficulty
		if item.Difficulty != "" {
			d = domain.ParseDifficulty(item.Difficulty)
		}

		var q domain.Question
		if qType == domain.QuestionTypeMCQ {
			q = domain.NewMCQ(s.uuidGen.NewString(), strings.TrimSpace(item.Question), domain.OptionsFromSlice(item.Options),
				strings.TrimSpace(item.CorrectAnswer), strings.TrimSpace(item.Explanation), strings.TrimSpace(item.Topic), d)
		} else {
			q = domain.NewOpenQuestion(s.uuidGen.NewString(), qType, strings.TrimSpace(item.Question),
				strings.TrimSpace(item.CorrectAnswer), strings.TrimSpace(item.Explanation), strings.TrimSpace(item.Topic), d)
		}

		if item.PageReference > 0 {
			q.PageReference = item.PageReference
			if snippet, ok := pageSnippet(corpus, item.PageReference); ok {
				q.SourceSnippet = snippet
			}
		}
		out = append(out, q)
	}
	return out
}

func pageSnippet(corpus *Corpus, page int) (string, bool) {
	for _, c := range corpus.Chunks {
		if c.Page == page {
			return fallbackSnippet(c.Content), true
		}
	}
	return "", false
}

func buildQuizPrompt(content string, quizType domain.QuizType, count int, difficulty domain.Difficulty) []domain.PromptMessage {
	var b strings.Builder
	fmt.Fprintf(&b, "Based on the following textbook content, generate %d %s difficulty %s questions.\n\n", count, difficulty, quizType)
	fmt.Fprintf(&b, "%s\n\n", quizTypeInstructions[quizType])
	fmt.Fprintf(&b, "Content:\n%s\n\n", content)
	b.WriteString(`Requirements:
1. Questions should test conceptual understanding, not just recall
2. Include the page reference from the [Page N] markers
3. Provide detailed explanations for each answer
4. Identify the topic or concept being tested in a few words
5. For MCQs, ensure distractors are plausible

Return the response as a JSON object with this structure:
{
  "questions": [
    {
      "type": "MCQ" | "SAQ" | "LAQ",
      "question": "question text",
      "options": ["A", "B", "C", "D"],
      "correctAnswer": "correct answer text",
      "explanation": "detailed explanation",
      "topic": "specific topic name",
      "difficulty": "`)
	b.WriteString(string(difficulty))
	b.WriteString(`",
      "pageReference": page_number
    }
  ]
}`)

	return []domain.PromptMessage{
		{Role: domain.PromptRoleSystem, Content: quizSystemPrompt},
		{Role: domain.PromptRoleUser, Content: b.String()},
	}
}

func (s *QuizService) GetByID(ctx context.Context, quizID string) (*domain.Quiz, error) {
	return s.quizzes.GetByID(ctx, quizID)
}

func (s *QuizService) List(ctx context.Context) ([]*domain.Quiz, error) {
	return s.quizzes.List(ctx)
}

func (s *QuizService) ListAttempts(ctx context.Context, quizID string) ([]*domain.Attempt, error) {
	if _, err := s.quizzes.GetByID(ctx, quizID); err != nil {
		return nil, err
	}
	return s.attempts.ListByQuiz(ctx, quizID)
}

type SubmitAttemptInput struct {
	QuizID    string
	Answers   map[string]string
	TimeSpent time.Duration
}

type AttemptResult struct {
	Attempt     *domain.Attempt
	Evaluations map[string]domain.AnswerEvaluation
}

// SubmitAttempt grades every question of the quiz. MCQ answers must match
// the correct option ignoring case and surrounding space; open answers go
// through the grader. Unanswered questions count as incorrect.
func (s *QuizService) SubmitAttempt(ctx context.Context, input SubmitAttemptInput) (*AttemptResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "QuizService.SubmitAttempt", telemetry.SpanAttributes{
		QuizID:    input.QuizID,
		Operation: "submit_attempt",
	})
	defer span.End()

	quiz, err := s.quizzes.GetByID(ctx, input.QuizID)
	if err != nil {
		return nil, err
	}

	attempt := &domain.Attempt{
		ID:           s.uuidGen.NewString(),
		QuizID:       quiz.ID,
		Answers:      make(map[string]string, len(input.Answers)),
		MaxScore:     len(quiz.Questions),
		CorrectIDs:   []string{},
		IncorrectIDs: []string{},
		TimeSpent:    input.TimeSpent,
		CompletedAt:  time.Now().UTC(),
	}
	evaluations := make(map[string]domain.AnswerEvaluation, len(quiz.Questions))

	for _, q := range quiz.Questions {
		answer := strings.TrimSpace(input.Answers[q.ID])
		attempt.Answers[q.ID] = answer

		eval := s.gradeQuestion(q, answer)
		evaluations[q.ID] = eval
		if eval.IsCorrect {
			attempt.Score++
			attempt.CorrectIDs = append(attempt.CorrectIDs, q.ID)
		} else {
			attempt.IncorrectIDs = append(attempt.IncorrectIDs, q.ID)
		}
	}

	if err := domain.ValidateAttempt(attempt); err != nil {
		return nil, err
	}
	if err := s.attempts.Create(ctx, attempt); err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("failed to save attempt: %w", err)
	}

	return &AttemptResult{Attempt: attempt, Evaluations: evaluations}, nil
}

func (s *QuizService) gradeQuestion(q domain.Question, answer string) domain.AnswerEvaluation {
	if answer == "" {
		return domain.AnswerEvaluation{}
	}
	if q.IsOpen() {
		return s.pipeline.Grader.Evaluate(answer, q.CorrectAnswer, q.Explanation)
	}
	if strings.EqualFold(answer, strings.TrimSpace(q.CorrectAnswer)) {
		return domain.AnswerEvaluation{IsCorrect: true, Similarity: 1}
	}
	return domain.AnswerEvaluation{}
}

type GradeAnswerInput struct {
	UserAnswer    string
	CorrectAnswer string
	Explanation   string
}

// GradeAnswer scores one free-text answer without persisting anything.
func (s *QuizService) GradeAnswer(input GradeAnswerInput) (domain.AnswerEvaluation, error) {
	if strings.TrimSpace(input.CorrectAnswer) == "" {
		return domain.AnswerEvaluation{}, fmt.Errorf("%w: correct_answer", domain.ErrMissingRequiredField)
	}
	return s.pipeline.Grader.Evaluate(input.UserAnswer, input.CorrectAnswer, input.Explanation), nil
}
