package completion

import (
	"context"
	"errors"

	"google.golang.org/genai"

	"github.com/pulsechat/pulsechat"
)

// DefaultGoogleModel is used when no model is configured.
const DefaultGoogleModel = "gemini-2.5-flash"

// GoogleOption configures the Google client.
type GoogleOption func(*Google)

// WithGoogleModel sets the model for requests.
func WithGoogleModel(model string) GoogleOption {
	return func(c *Google) {
		c.model = model
	}
}

// WithGoogleTemperature sets the sampling temperature.
func WithGoogleTemperature(t float64) GoogleOption {
	return func(c *Google) {
		c.temperature = &t
	}
}

// WithGoogleMaxTokens caps the generated tokens per completion.
func WithGoogleMaxTokens(n int) GoogleOption {
	return func(c *Google) {
		c.maxTokens = n
	}
}

// Google wraps the Google GenAI SDK to implement Client.
type Google struct {
	client      *genai.Client
	model       string
	temperature *float64
	maxTokens   int
}

// NewGoogle creates a new Gemini-backed completion client.
func NewGoogle(ctx context.Context, apiKey string, opts ...GoogleOption) (*Google, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}

	c := &Google{
		client:    client,
		model:     DefaultGoogleModel,
		maxTokens: 1024,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Complete implements Client.
func (c *Google) Complete(ctx context.Context, messages []pulsechat.Message) (string, error) {
	config := &genai.GenerateContentConfig{}
	if c.maxTokens > 0 {
		config.MaxOutputTokens = int32(c.maxTokens)
	}
	if c.temperature != nil {
		temp := float32(*c.temperature)
		config.Temperature = &temp
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, toGoogleContents(messages), config)
	if err != nil {
		return "", wrapErr("google", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", wrapErr("google", errors.New("empty response"))
	}

	content := ""
	for _, part := range resp.Candidates[0].Content.Parts {
		content += part.Text
	}
	return content, nil
}

func toGoogleContents(messages []pulsechat.Message) []*genai.Content {
	var contents []*genai.Content
	for _, msg := range messages {
		if msg.Content == "" {
			continue
		}
		// Gemini has no system role in contents; system prompts ride along
		// as user turns.
		role := "user"
		if msg.Role == pulsechat.RoleAssistant {
			role = "model"
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: msg.Content}},
		})
	}
	return contents
}
