package completion

import (
	"context"
	"errors"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/pulsechat/pulsechat"
)

// DefaultOpenAIModel is used when no model is configured. Groq's
// OpenAI-compatible endpoint serves this model as well.
const DefaultOpenAIModel = "llama-3.3-70b-versatile"

// OpenAIOption configures the OpenAI client.
type OpenAIOption func(*OpenAI)

// WithOpenAIModel sets the model for requests.
func WithOpenAIModel(model string) OpenAIOption {
	return func(c *OpenAI) {
		c.model = model
	}
}

// WithOpenAIBaseURL points the client at an OpenAI-compatible endpoint,
// such as Groq's https://api.groq.com/openai/v1.
func WithOpenAIBaseURL(url string) OpenAIOption {
	return func(c *OpenAI) {
		c.baseURL = url
	}
}

// WithOpenAITemperature sets the sampling temperature.
func WithOpenAITemperature(t float64) OpenAIOption {
	return func(c *OpenAI) {
		c.temperature = &t
	}
}

// WithOpenAIMaxTokens caps the generated tokens per completion.
func WithOpenAIMaxTokens(n int) OpenAIOption {
	return func(c *OpenAI) {
		c.maxTokens = n
	}
}

// OpenAI wraps the OpenAI SDK to implement Client. With a custom base URL
// it also serves any OpenAI-compatible backend.
type OpenAI struct {
	client      *openai.Client
	model       string
	baseURL     string
	temperature *float64
	maxTokens   int
}

// NewOpenAI creates a new OpenAI-backed completion client.
func NewOpenAI(apiKey string, opts ...OpenAIOption) *OpenAI {
	c := &OpenAI{
		model:     DefaultOpenAIModel,
		maxTokens: 1024,
	}
	for _, opt := range opts {
		opt(c)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if c.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(c.baseURL))
	}
	client := openai.NewClient(reqOpts...)
	c.client = &client
	return c
}

// Complete implements Client.
func (c *OpenAI) Complete(ctx context.Context, messages []pulsechat.Message) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: toOpenAIMessages(messages),
	}
	if c.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(c.maxTokens))
	}
	if c.temperature != nil {
		params.Temperature = openai.Float(*c.temperature)
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", wrapErr("openai", err)
	}
	if len(resp.Choices) == 0 {
		return "", wrapErr("openai", errors.New("empty response"))
	}
	return resp.Choices[0].Message.Content, nil
}

func toOpenAIMessages(messages []pulsechat.Message) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		if msg.Content == "" {
			continue
		}
		switch msg.Role {
		case pulsechat.RoleSystem:
			result = append(result, openai.SystemMessage(msg.Content))
		case pulsechat.RoleAssistant:
			result = append(result, openai.AssistantMessage(msg.Content))
		default:
			result = append(result, openai.UserMessage(msg.Content))
		}
	}
	return result
}
