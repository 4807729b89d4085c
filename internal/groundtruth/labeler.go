package groundtruth

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sashabaranov/go-openai"

	"github.com/JS12540/evaluating-embedding-models/internal/config"
)

// Labeler sends a labelling prompt to a language model and returns its raw reply.
type Labeler interface {
	Label(ctx context.Context, system, user string) (string, error)
	Name() string
}

// NewLabeler builds the labeller selected by cfg.Provider.
func NewLabeler(cfg config.GroundTruthConfig) (Labeler, error) {
	switch cfg.Provider {
	case "", "openai":
		return NewOpenAILabeler(cfg)
	case "anthropic":
		return NewAnthropicLabeler(cfg)
	default:
		return nil, fmt.Errorf("unknown groundtruth provider %q", cfg.Provider)
	}
}

// OpenAILabeler labels with the OpenAI chat completions API.
type OpenAILabeler struct {
	client      *openai.Client
	model       string
	temperature float64
	maxTokens   int
}

// NewOpenAILabeler creates an OpenAI labeller. Default model: gpt-4o.
func NewOpenAILabeler(cfg config.GroundTruthConfig) (*OpenAILabeler, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("OpenAI API key is required for ground truth generation")
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o"
	}
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return &OpenAILabeler{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

// Name returns the provider name.
func (l *OpenAILabeler) Name() string {
	return "openai"
}

// Label sends one system and one user message.
func (l *OpenAILabeler) Label(ctx context.Context, system, user string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: l.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: openAITemperature(l.temperature),
	}
	if l.maxTokens > 0 {
		req.MaxCompletionTokens = l.maxTokens
	}

	resp, err := l.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// openAITemperature maps 0 to the smallest positive value because the client
// omits a zero temperature, which the API treats as its default of 1.
func openAITemperature(t float64) float32 {
	if t <= 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(t)
}

// AnthropicLabeler labels with the Anthropic Messages API.
type AnthropicLabeler struct {
	client      anthropic.Client
	model       string
	temperature float64
	maxTokens   int64
}

// NewAnthropicLabeler creates an Anthropic labeller. Default model: claude-sonnet-4-20250514.
func NewAnthropicLabeler(cfg config.GroundTruthConfig) (*AnthropicLabeler, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("Anthropic API key is required for ground truth generation")
	}
	if cfg.Model == "" {
		cfg.Model = "claude-sonnet-4-20250514"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 8192
	}
	options := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		options = append(options, option.WithBaseURL(cfg.BaseURL))
	}
	return &AnthropicLabeler{
		client:      anthropic.NewClient(options...),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   int64(cfg.MaxTokens),
	}, nil
}

// Name returns the provider name.
func (l *AnthropicLabeler) Name() string {
	return "anthropic"
}

// Label sends the system prompt and one user message and joins the text blocks of the reply.
func (l *AnthropicLabeler) Label(ctx context.Context, system, user string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(l.model),
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(user))},
		MaxTokens:   l.maxTokens,
		Temperature: anthropic.Float(l.temperature),
		System: []anthropic.TextBlockParam{
			{
				Type: "text",
				Text: system,
			},
		},
	}

	msg, err := l.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic messages: %w", err)
	}
	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return "", errors.New("anthropic returned no text content")
	}
	return b.String(), nil
}
