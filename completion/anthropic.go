package completion

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/pulsechat/pulsechat"
)

// DefaultAnthropicModel is used when no model is configured.
const DefaultAnthropicModel = "claude-sonnet-4-5"

// AnthropicOption configures the Anthropic client.
type AnthropicOption func(*Anthropic)

// WithAnthropicModel sets the model for requests.
func WithAnthropicModel(model string) AnthropicOption {
	return func(c *Anthropic) {
		c.model = model
	}
}

// WithAnthropicTemperature sets the sampling temperature.
func WithAnthropicTemperature(t float64) AnthropicOption {
	return func(c *Anthropic) {
		c.temperature = &t
	}
}

// WithAnthropicMaxTokens caps the generated tokens per completion.
func WithAnthropicMaxTokens(n int) AnthropicOption {
	return func(c *Anthropic) {
		c.maxTokens = n
	}
}

// Anthropic wraps the Anthropic SDK to implement Client.
type Anthropic struct {
	client      *anthropic.Client
	model       string
	temperature *float64
	maxTokens   int
}

// NewAnthropic creates a new Anthropic-backed completion client.
func NewAnthropic(apiKey string, opts ...AnthropicOption) *Anthropic {
	c := &Anthropic{
		model:     DefaultAnthropicModel,
		maxTokens: 1024,
	}
	for _, opt := range opts {
		opt(c)
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	c.client = &client
	return c
}

// Complete implements Client.
func (c *Anthropic) Complete(ctx context.Context, messages []pulsechat.Message) (string, error) {
	msgs, system := toAnthropicMessages(messages)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(c.maxTokens),
		Messages:  msgs,
	}
	if len(system) > 0 {
		params.System = system
	}
	if c.temperature != nil {
		params.Temperature = anthropic.Float(*c.temperature)
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", wrapErr("anthropic", err)
	}

	content := ""
	for _, block := range resp.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}
	return content, nil
}

func toAnthropicMessages(messages []pulsechat.Message) ([]anthropic.MessageParam, []anthropic.TextBlockParam) {
	var result []anthropic.MessageParam
	var system []anthropic.TextBlockParam

	for _, msg := range messages {
		if msg.Content == "" {
			continue
		}
		switch msg.Role {
		case pulsechat.RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: msg.Content})
		case pulsechat.RoleAssistant:
			result = append(result, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			result = append(result, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}
	return result, system
}
