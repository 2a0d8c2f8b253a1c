package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/cloo-solutions/studyrag/internal/domain"
	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultChatModel is used when no model is configured
	DefaultChatModel = "llama-3.3-70b-versatile"
	// DefaultFallbackModel replaces DefaultChatModel once it is retired
	DefaultFallbackModel = "llama-3.1-8b-instant"
	// DefaultTemperature matches the tutoring and quiz prompts
	DefaultTemperature = 0.7
)

var (
	// ErrNoAPIKey is returned when OpenAI API key is not set
	ErrNoAPIKey = errors.New("OPENAI_API_KEY environment variable not set")
	// ErrNoChoices is returned when the API answers without a completion
	ErrNoChoices = errors.New("no completion choices returned")
)

// ChatAPI defines the interface for chat completion calls
type ChatAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type Config struct {
	APIKey string
	// BaseURL points the client at any OpenAI compatible endpoint.
	BaseURL       string
	Model         string
	FallbackModel string
	Temperature   float32
}

// Client implements the language model used by chat and quiz generation.
// A request that fails because the model is retired or unknown is repeated
// once against the fallback model.
type Client struct {
	api         ChatAPI
	model       string
	fallback    string
	temperature float32
}

// NewClient creates a new OpenAI client using defaults.
func NewClient(apiKey string) *Client {
	return NewClientWithConfig(Config{APIKey: apiKey})
}

// NewClientWithConfig creates a new OpenAI client with explicit configuration.
func NewClientWithConfig(cfg Config) *Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	return newClient(openai.NewClientWithConfig(oc), cfg)
}

func newClient(api ChatAPI, cfg Config) *Client {
	model := cfg.Model
	if model == "" {
		model = DefaultChatModel
	}
	fallback := cfg.FallbackModel
	if fallback == "" && model == DefaultChatModel {
		fallback = DefaultFallbackModel
	}
	temperature := cfg.Temperature
	if temperature <= 0 {
		temperature = DefaultTemperature
	}
	return &Client{api: api, model: model, fallback: fallback, temperature: temperature}
}

// NewClientFromEnv creates a new OpenAI client using OPENAI_API_KEY environment variable
func NewClientFromEnv() (*Client, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	return NewClientWithConfig(Config{APIKey: apiKey, BaseURL: os.Getenv("OPENAI_BASE_URL")}), nil
}

// Model returns the primary model name.
func (c *Client) Model() string {
	return c.model
}

// Complete returns the text of one chat completion.
func (c *Client) Complete(ctx context.Context, messages []domain.PromptMessage) (string, error) {
	return c.complete(ctx, messages, nil)
}

// CompleteJSON requests a JSON object response and decodes it into out.
func (c *Client) CompleteJSON(ctx context.Context, messages []domain.PromptMessage, out any) error {
	content, err := c.complete(ctx, messages, &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONObject,
	})
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(content), out); err != nil {
		return fmt.Errorf("failed to decode model JSON: %w", err)
	}
	return nil
}

func (c *Client) complete(ctx context.Context, messages []domain.PromptMessage, format *openai.ChatCompletionResponseFormat) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:          c.model,
		Messages:       toChatMessages(messages),
		Temperature:    c.temperature,
		ResponseFormat: format,
	}

	content, err := c.send(ctx, req)
	if err != nil && c.fallback != "" && c.fallback != c.model && isModelGone(err) {
		log.Warn().Err(err).Str("model", c.model).Str("fallback", c.fallback).Msg("model unavailable, trying fallback")
		req.Model = c.fallback
		content, err = c.send(ctx, req)
	}
	return content, err
}

func (c *Client) send(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion with %s: %w", req.Model, err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}
	return resp.Choices[0].Message.Content, nil
}

// isModelGone reports whether err says the requested model cannot serve.
func isModelGone(err error) bool {
	var apiErr *openai.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if code, ok := apiErr.Code.(string); ok && (code == "model_decommissioned" || code == "model_not_found") {
		return true
	}
	return apiErr.HTTPStatusCode == http.StatusNotFound
}

func toChatMessages(messages []domain.PromptMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		out[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	return out
}
