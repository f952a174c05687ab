package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// OllamaConfig configures an Ollama generator.
type OllamaConfig struct {
	// URL is the /api/generate endpoint; empty means DefaultOllamaURL.
	URL   string
	Model string
	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client
}

// Ollama calls an Ollama-compatible generate endpoint with streaming off.
type Ollama struct {
	url        string
	model      string
	httpClient *http.Client
	tracker    TokenTracker
}

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaResponse struct {
	Response        string `json:"response"`
	Error           string `json:"error,omitempty"`
	PromptEvalCount int64  `json:"prompt_eval_count,omitempty"`
	EvalCount       int64  `json:"eval_count,omitempty"`
}

// NewOllama creates a new Ollama generator.
func NewOllama(cfg OllamaConfig) *Ollama {
	o := &Ollama{
		url:        cfg.URL,
		model:      cfg.Model,
		httpClient: cfg.HTTPClient,
	}
	if o.url == "" {
		o.url = DefaultOllamaURL
	}
	if o.model == "" {
		o.model = DefaultOllamaModel
	}
	if o.httpClient == nil {
		o.httpClient = http.DefaultClient
	}
	return o
}

// Generate implements Generator.
func (o *Ollama) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(ollamaRequest{Model: o.model, Prompt: prompt, Stream: false})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var out ollamaResponse
	if err := json.Unmarshal(data, &out); err != nil {
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("unexpected status %d: %s", resp.StatusCode, bytes.TrimSpace(data))
		}
		return "", fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if out.Error != "" {
			return "", fmt.Errorf("unexpected status %d: %s", resp.StatusCode, out.Error)
		}
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	o.tracker.Add(out.PromptEvalCount, out.EvalCount)
	return out.Response, nil
}

// Tracker returns the token usage recorded by this generator.
func (o *Ollama) Tracker() *TokenTracker {
	return &o.tracker
}
