// Package llm abstracts the external text-generation service behind Invoker.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Provider names accepted by New.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderEcho   = "echo"
)

var (
	// ErrEmptyResponse is returned when the service answers without any text.
	ErrEmptyResponse = errors.New("model returned an empty response")
	// ErrMissingAPIKey is returned when a remote provider has no credentials.
	ErrMissingAPIKey = errors.New("API key is required")
	// ErrUnknownProvider is returned by New for unsupported providers.
	ErrUnknownProvider = errors.New("unknown model provider")
)

// Params are the generation settings shared by every row of a run.
type Params struct {
	Model        string
	Temperature  float64
	TopP         float64
	SystemPrompt string
}

// System returns the trimmed system prompt and whether it should be sent.
func (p Params) System() (string, bool) {
	s := strings.TrimSpace(p.SystemPrompt)
	return s, s != ""
}

// Invoker sends one fully bound prompt to the generation service.
type Invoker interface {
	Invoke(ctx context.Context, prompt string, params Params) (string, error)
}

// Func adapts a plain function to Invoker.
type Func func(ctx context.Context, prompt string, params Params) (string, error)

// Invoke calls f.
func (f Func) Invoke(ctx context.Context, prompt string, params Params) (string, error) {
	return f(ctx, prompt, params)
}

// EchoInvoker returns the prompt unchanged. It backs the offline "echo"
// provider used to preview templates.
type EchoInvoker struct{}

// Invoke returns prompt.
func (EchoInvoker) Invoke(_ context.Context, prompt string, _ Params) (string, error) {
	return prompt, nil
}

// Options configure a provider built by New.
type Options struct {
	Provider string
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
}

// New builds the Invoker for opts.Provider.
func New(ctx context.Context, opts Options) (Invoker, error) {
	switch strings.ToLower(opts.Provider) {
	case ProviderOpenAI, "":
		inv, err := NewOpenAIInvoker(OpenAIConfig{APIKey: opts.APIKey, BaseURL: opts.BaseURL, Timeout: opts.Timeout})
		if err != nil {
			return nil, err
		}
		return inv, nil
	case ProviderGemini:
		inv, err := NewGeminiInvoker(ctx, GeminiConfig{APIKey: opts.APIKey, BaseURL: opts.BaseURL, Timeout: opts.Timeout})
		if err != nil {
			return nil, err
		}
		return inv, nil
	case ProviderEcho:
		return EchoInvoker{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, opts.Provider)
	}
}
