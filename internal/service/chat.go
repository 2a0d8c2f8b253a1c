package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloo-solutions/studyrag/internal/domain"
	"github.com/cloo-solutions/studyrag/internal/telemetry"
)

// LanguageModel is the text generation collaborator.
type LanguageModel interface {
	Complete(ctx context.Context, messages []domain.PromptMessage) (string, error)
	// CompleteJSON asks for a JSON object and decodes it into out.
	CompleteJSON(ctx context.Context, messages []domain.PromptMessage, out any) error
}

// ChatSessionRepositoryInterface defines the repository interface for chat persistence
type ChatSessionRepositoryInterface interface {
	Create(ctx context.Context, s *domain.ChatSession) error
	GetByID(ctx context.Context, id string) (*domain.ChatSession, error)
	List(ctx context.Context) ([]*domain.ChatSession, error)
	UpdateDocuments(ctx context.Context, id string, documentIDs []string, updatedAt time.Time) error
	AppendMessages(ctx context.Context, sessionID string, title string, messages []domain.ChatMessage, updatedAt time.Time) error
	Delete(ctx context.Context, id string) error
}

const tutorSystemPrompt = `You are a knowledgeable tutor helping students understand their coursebook content.
Answer only from the excerpts provided. Always cite your sources by page number and quote the supporting sentence.
Format citations as: According to page X: 'quote'.
Be encouraging, clear, and educational in your responses.`

// ChatConfig tunes the chat service.
type ChatConfig struct {
	TopK            int
	HistoryMessages int
	TitleRunes      int
}

func DefaultChatConfig() ChatConfig {
	return ChatConfig{
		TopK:            5,
		HistoryMessages: 5,
		TitleRunes:      50,
	}
}

// ChatService answers questions from the evidence of a session's documents.
type ChatService struct {
	sessions ChatSessionRepositoryInterface
	corpora  *SessionCorpora
	ranker   *Ranker
	model    LanguageModel
	uuidGen  UUIDGenerator
	cfg      ChatConfig
	now      func() time.Time
}

func NewChatService(sessions ChatSessionRepositoryInterface, corpora *SessionCorpora, ranker *Ranker, model LanguageModel) *ChatService {
	return NewChatServiceWithConfig(sessions, corpora, ranker, model, DefaultChatConfig())
}

func NewChatServiceWithConfig(sessions ChatSessionRepositoryInterface, corpora *SessionCorpora, ranker *Ranker, model LanguageModel, cfg ChatConfig) *ChatService {
	return &ChatService{
		sessions: sessions,
		corpora:  corpora,
		ranker:   ranker,
		model:    model,
		uuidGen:  &DefaultUUIDGenerator{},
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type CreateSessionInput struct {
	Title       string
	DocumentIDs []string
}

// CreateSession starts a session and builds its corpus.
func (s *ChatService) CreateSession(ctx context.Context, input CreateSessionInput) (*domain.ChatSession, error) {
	session := domain.NewChatSession(s.uuidGen.NewString(), strings.TrimSpace(input.Title), input.DocumentIDs, s.now())
	if err := domain.ValidateChatSession(session); err != nil {
		return nil, err
	}

	if _, err := s.corpora.Rebuild(ctx, session.ID, session.DocumentIDs); err != nil {
		s.corpora.Drop(session.ID)
		return nil, err
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		s.corpora.Drop(session.ID)
		return nil, fmt.Errorf("failed to create chat session: %w", err)
	}
	return session, nil
}

// SetDocuments switches the session to a new document selection and
// rebuilds its corpus.
func (s *ChatService) SetDocuments(ctx context.Context, sessionID string, documentIDs []string) (*domain.ChatSession, error) {
	if len(documentIDs) == 0 {
		return nil, domain.ErrNoDocumentsSelected
	}
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if _, err := s.corpora.Rebuild(ctx, sessionID, documentIDs); err != nil {
		return nil, err
	}

	session.DocumentIDs = documentIDs
	session.UpdatedAt = s.now()
	if err := s.sessions.UpdateDocuments(ctx, sessionID, documentIDs, session.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to update session documents: %w", err)
	}
	return session, nil
}

func (s *ChatService) GetSession(ctx context.Context, sessionID string) (*domain.ChatSession, error) {
	return s.sessions.GetByID(ctx, sessionID)
}

func (s *ChatService) ListSessions(ctx context.Context) ([]*domain.ChatSession, error) {
	return s.sessions.List(ctx)
}

func (s *ChatService) DeleteSession(ctx context.Context, sessionID string) error {
	s.corpora.Drop(sessionID)
	return s.sessions.Delete(ctx, sessionID)
}

type AskInput struct {
	SessionID string
	Message   string
}

type AskResult struct {
	Question domain.ChatMessage
	Answer   domain.ChatMessage
	Evidence []domain.ScoredChunk
}

// Ask ranks the session corpus against the message, asks the model with the
// top evidence, and records both turns with the citations found in the
// answer. A query with no evidence is refused with domain.ErrNoEvidenceFound.
func (s *ChatService) Ask(ctx context.Context, input AskInput) (*AskResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "ChatService.Ask", telemetry.SpanAttributes{
		SessionID: input.SessionID,
		Operation: "ask",
	})
	defer span.End()

	message := strings.TrimSpace(input.Message)
	if message == "" {
		return nil, fmt.Errorf("%w: message", domain.ErrMissingRequiredField)
	}

	session, err := s.sessions.GetByID(ctx, input.SessionID)
	if err != nil {
		return nil, err
	}

	corpus, err := s.corpora.Get(ctx, session.ID, session.DocumentIDs)
	if err != nil {
		return nil, err
	}

	evidence := s.ranker.RankScored(message, corpus.Chunks, s.cfg.TopK)
	span.SetData("corpus_chunks", len(corpus.Chunks))
	span.SetData("evidence", len(evidence))
	if len(evidence) == 0 {
		return nil, domain.ErrNoEvidenceFound
	}
	chunks := make([]domain.Chunk, len(evidence))
	for i, sc := range evidence {
		chunks[i] = sc.Chunk
	}

	answer, citations, err := AnswerFromEvidence(ctx, s.model, message, chunks, session.Messages, s.cfg.HistoryMessages)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	now := s.now()
	question := domain.ChatMessage{ID: s.uuidGen.NewString(), Role: domain.ChatRoleUser, Content: message, CreatedAt: now}
	reply := domain.ChatMessage{
		ID:        s.uuidGen.NewString(),
		Role:      domain.ChatRoleAssistant,
		Content:   answer,
		Citations: citations,
		CreatedAt: now,
	}

	title := session.Title
	if title == "" {
		title = truncateRunes(message, s.cfg.TitleRunes)
	}
	if err := s.sessions.AppendMessages(ctx, session.ID, title, []domain.ChatMessage{question, reply}, now); err != nil {
		return nil, fmt.Errorf("failed to save chat messages: %w", err)
	}

	return &AskResult{Question: question, Answer: reply, Evidence: evidence}, nil
}

// AnswerFromEvidence has the model answer message from the evidence blocks
// and keeps the citations the answer actually supports.
func AnswerFromEvidence(ctx context.Context, model LanguageModel, message string, evidence []domain.Chunk, history []domain.ChatMessage, historyLimit int) (string, []domain.Citation, error) {
	answer, err := model.Complete(ctx, buildChatPrompt(message, evidence, history, historyLimit))
	if err != nil {
		return "", nil, domain.ErrModelUnavailable.WithCause(err)
	}
	return answer, ExtractCitations(answer, evidence), nil
}

func buildChatPrompt(message string, evidence []domain.Chunk, history []domain.ChatMessage, historyLimit int) []domain.PromptMessage {
	msgs := []domain.PromptMessage{{Role: domain.PromptRoleSystem, Content: tutorSystemPrompt}}

	if historyLimit > 0 && len(history) > historyLimit {
		history = history[len(history)-historyLimit:]
	}
	for _, h := range history {
		msgs = append(msgs, domain.PromptMessage{Role: string(h.Role), Content: h.Content})
	}

	blocks := make([]string, len(evidence))
	for i, c := range evidence {
		blocks[i] = formatEvidence(c)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "User Question: %s\n\n", message)
	fmt.Fprintf(&b, "Relevant Content from Textbook:\n%s\n\n", strings.Join(blocks, "\n\n"))
	b.WriteString("Please answer the question using the provided content. Always cite the page numbers and include short quotes to support your answer.")

	return append(msgs, domain.PromptMessage{Role: domain.PromptRoleUser, Content: b.String()})
}

func formatEvidence(c domain.Chunk) string {
	return fmt.Sprintf("[Page %d]\n%s", c.Page, c.Content)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}
