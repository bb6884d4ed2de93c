// Package genai wraps the OpenAI API for LobbyPipe.
//
// Its single consumer is speaker classification: deciding whether an
// inconclusive utterance came from an employee or a visitor.
package genai

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/openlobby/LobbyPipe/internal/models"
)

// ClientInterface abstracts chat completion for testability.
type ClientInterface interface {
	GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error)
}

// Opts holds configuration options for the OpenAI client.
type Opts struct {
	APIKey string
	Model  openai.ChatModel
}

// Option defines a configuration option for the OpenAI client.
type Option func(*Opts)

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel overrides the chat model.
func WithModel(model openai.ChatModel) Option {
	return func(o *Opts) { o.Model = model }
}

// Client wraps the OpenAI chat completion API.
type Client struct {
	client openai.Client
	model  openai.ChatModel
}

// NewClient creates an OpenAI client. The API key falls back to the
// OPENAI_API_KEY environment variable when not provided via options.
func NewClient(opts ...Option) (*Client, error) {
	cfg := Opts{Model: openai.ChatModelGPT4oMini}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key not set")
	}
	return &Client{
		client: openai.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:  cfg.Model,
	}, nil
}

// GenerateWithMessages runs one chat completion and returns the text content.
func (c *Client) GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		slog.Error("GenAI completion failed", "error", err)
		return "", fmt.Errorf("failed to generate completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

const classifySystemPrompt = `You classify one utterance spoken at an office front desk kiosk.
Answer with exactly one word: "employee" if the speaker works at this office,
"visitor" if they are visiting, or "unknown" if you cannot tell.`

// UserTypeClassifier resolves utterances the keyword matcher could not.
type UserTypeClassifier struct {
	client ClientInterface
}

// NewUserTypeClassifier creates a classifier over a completion client.
func NewUserTypeClassifier(client ClientInterface) *UserTypeClassifier {
	return &UserTypeClassifier{client: client}
}

// ClassifyUserType asks the model whether the speaker is an employee or a
// visitor. Unparseable answers come back as UserTypeUnknown, never an error.
func (c *UserTypeClassifier) ClassifyUserType(ctx context.Context, text string) (models.UserType, error) {
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(classifySystemPrompt),
		openai.UserMessage(text),
	}
	answer, err := c.client.GenerateWithMessages(ctx, messages)
	if err != nil {
		return models.UserTypeUnknown, err
	}

	switch {
	case strings.Contains(strings.ToLower(answer), "employee"):
		return models.UserTypeEmployee, nil
	case strings.Contains(strings.ToLower(answer), "visitor"):
		return models.UserTypeVisitor, nil
	default:
		slog.Debug("GenAI classifier inconclusive", "answer", answer)
		return models.UserTypeUnknown, nil
	}
}
