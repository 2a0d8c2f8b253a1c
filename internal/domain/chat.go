package domain

import (
	"fmt"
	"time"
)

// ChatRole is the author of a chat message
type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

// ChatMessage is one turn of a chat session
type ChatMessage struct {
	ID        string
	Role      ChatRole
	Content   string
	Citations []Citation
	CreatedAt time.Time
}

// ChatSession is a conversation grounded on a set of documents
type ChatSession struct {
	ID          string
	Title       string
	DocumentIDs []string
	Messages    []ChatMessage
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewChatSession creates an empty chat session
func NewChatSession(id, title string, documentIDs []string, createdAt time.Time) *ChatSession {
	return &ChatSession{
		ID:          id,
		Title:       title,
		DocumentIDs: documentIDs,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
}

// ValidateChatSession validates a ChatSession instance
func ValidateChatSession(s *ChatSession) error {
	if s == nil {
		return fmt.Errorf("chat session cannot be nil")
	}

	if s.ID == "" {
		return fmt.Errorf("chat session ID is required")
	}

	if len(s.DocumentIDs) == 0 {
		return ErrNoDocumentsSelected
	}

	return nil
}

// Prompt roles understood by the language model
const (
	PromptRoleSystem    = "system"
	PromptRoleUser      = "user"
	PromptRoleAssistant = "assistant"
)

// PromptMessage is one turn sent to the language model
type PromptMessage struct {
	Role    string
	Content string
}
