package generate

import (
	"context"
	"errors"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIConfig configures an OpenAI-compatible generator.
type OpenAIConfig struct {
	// APIKey falls back to OPENAI_API_KEY.
	APIKey string
	// BaseURL points at any OpenAI-compatible API; empty means api.openai.com.
	BaseURL string
	// Model defaults to gpt-4o-mini.
	Model string
}

// OpenAI generates text with the chat completions API.
type OpenAI struct {
	client  openai.Client
	model   string
	tracker TokenTracker
}

// NewOpenAI creates a new OpenAI generator.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, errors.New("OpenAI API key is required (set generation.api_key, LLM_API_KEY or OPENAI_API_KEY)")
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = openai.ChatModelGPT4oMini
	}

	return &OpenAI{client: openai.NewClient(opts...), model: model}, nil
}

// Generate implements Generator.
func (o *OpenAI) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: o.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", err
	}

	o.tracker.Add(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

// Tracker returns the token usage recorded by this generator.
func (o *OpenAI) Tracker() *TokenTracker {
	return &o.tracker
}
