// Package generate turns an operator instruction into candidate code by
// calling an external text-generation backend.
package generate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ShayCichocki/codegate/internal/config"
	"github.com/ShayCichocki/codegate/internal/logging"
)

const (
	// DefaultOllamaURL is the generate endpoint of a local Ollama server.
	DefaultOllamaURL = "http://localhost:11434/api/generate"
	// DefaultOllamaModel is used when no model is configured.
	DefaultOllamaModel = "mistral:latest"
)

// ErrEmptyResponse is returned when the backend answers with no text.
var ErrEmptyResponse = errors.New("empty response")

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GenerationError wraps any failure to obtain usable text from a backend.
type GenerationError struct {
	Provider string
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s generation failed: %v", e.Provider, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// New builds the Generator selected by cfg.Provider. The URL and model
// defaults in cfg belong to the ollama provider; other providers fall back
// to their own defaults when those are left unchanged.
func New(cfg config.GenerationConfig, timeout time.Duration, logger *logging.Logger) (Generator, error) {
	url, model := cfg.URL, cfg.Model
	if cfg.Provider != "ollama" {
		if url == DefaultOllamaURL {
			url = ""
		}
		if model == DefaultOllamaModel {
			model = ""
		}
	}

	var (
		gen Generator
		err error
	)
	switch cfg.Provider {
	case "", "ollama":
		gen = NewOllama(OllamaConfig{URL: url, Model: model})
	case "openai":
		gen, err = NewOpenAI(OpenAIConfig{APIKey: cfg.APIKey, BaseURL: url, Model: model})
	case "anthropic":
		gen, err = NewAnthropic(AnthropicConfig{
			APIKey:        cfg.APIKey,
			BaseURL:       url,
			Model:         model,
			MaxTokens:     int64(cfg.MaxTokens),
			UseAWSBedrock: cfg.UseBedrock,
			AWSRegion:     cfg.AWSRegion,
			AWSProfile:    cfg.AWSProfile,
		})
	default:
		return nil, fmt.Errorf("unknown generation provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	return &guarded{inner: gen, provider: providerName(cfg.Provider), timeout: timeout, log: logger.With("generate")}, nil
}

func providerName(p string) string {
	if p == "" {
		return "ollama"
	}
	return p
}

// guarded applies the generation timeout, rejects blank output, and wraps
// every failure in a GenerationError.
type guarded struct {
	inner    Generator
	provider string
	timeout  time.Duration
	log      *logging.Logger
}

func (g *guarded) Generate(ctx context.Context, prompt string) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := g.inner.Generate(ctx, prompt)
	if err == nil && strings.TrimSpace(text) == "" {
		err = ErrEmptyResponse
	}
	if err != nil {
		var genErr *GenerationError
		if !errors.As(err, &genErr) {
			err = &GenerationError{Provider: g.provider, Err: err}
		}
		g.log.Warnf("%v", err)
		return "", err
	}

	g.log.Debugf("%s returned %d bytes in %v", g.provider, len(text), time.Since(start).Round(time.Millisecond))
	return text, nil
}

// Tracker returns the wrapped generator's usage, or nil if it records none.
func (g *guarded) Tracker() *TokenTracker {
	if r, ok := g.inner.(UsageReporter); ok {
		return r.Tracker()
	}
	return nil
}

// UsageReporter is implemented by generators that record token usage.
type UsageReporter interface {
	Tracker() *TokenTracker
}

// TokenTracker tracks token usage across generation calls.
type TokenTracker struct {
	mu        sync.Mutex
	inputTok  int64
	outputTok int64
	calls     int
}

// Add records token usage from one call.
func (t *TokenTracker) Add(input, output int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inputTok += input
	t.outputTok += output
	t.calls++
}

// Total returns the total input and output tokens tracked. A nil tracker
// reports zero.
func (t *TokenTracker) Total() (input, output int64) {
	if t == nil {
		return 0, 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inputTok, t.outputTok
}

// Calls returns the number of calls recorded.
func (t *TokenTracker) Calls() int {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}
