package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/rshade/rowprompt/internal/logging"
	"github.com/rshade/rowprompt/internal/metrics"
)

// GeminiConfig configures GeminiInvoker.
type GeminiConfig struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// GeminiInvoker calls the Gemini generateContent API.
type GeminiInvoker struct {
	client  *genai.Client
	timeout time.Duration
}

// NewGeminiInvoker creates an invoker backed by the Google GenAI SDK.
func NewGeminiInvoker(ctx context.Context, cfg GeminiConfig) (*GeminiInvoker, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("gemini: %w", ErrMissingAPIKey)
	}

	clientCfg := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &GeminiInvoker{client: client, timeout: timeout}, nil
}

// Invoke generates content for prompt. A non-blank system prompt is sent as
// the system instruction.
func (g *GeminiInvoker) Invoke(ctx context.Context, prompt string, params Params) (string, error) {
	genCfg := &genai.GenerateContentConfig{
		Temperature: ptr(float32(params.Temperature)),
		TopP:        ptr(float32(params.TopP)),
	}
	if system, ok := params.System(); ok {
		genCfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(callCtx, params.Model, genai.Text(prompt), genCfg)
	elapsed := time.Since(start)
	metrics.ObserveModelCall(ProviderGemini, params.Model, elapsed.Seconds(), err)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	if um := resp.UsageMetadata; um != nil {
		metrics.AddTokens(ProviderGemini, params.Model, int(um.PromptTokenCount), int(um.CandidatesTokenCount))
	}
	logging.FromContext(ctx).Debug().
		Str("component", "llm").
		Str("model", params.Model).
		Dur("duration", elapsed).
		Msg("gemini content received")

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func ptr[T any](v T) *T {
	return &v
}
