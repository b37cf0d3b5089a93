package llm

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/rshade/rowprompt/internal/logging"
	"github.com/rshade/rowprompt/internal/metrics"
)

// DefaultTimeout bounds a single generation request when none is configured.
const DefaultTimeout = 120 * time.Second

// OpenAIConfig configures OpenAIInvoker.
type OpenAIConfig struct {
	APIKey string
	// BaseURL overrides the API root, e.g. for OpenAI-compatible gateways.
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// OpenAIInvoker calls the chat completions endpoint of an OpenAI-compatible API.
type OpenAIInvoker struct {
	client  *openai.Client
	timeout time.Duration
}

// NewOpenAIInvoker creates an invoker backed by go-openai.
func NewOpenAIInvoker(cfg OpenAIConfig) (*OpenAIInvoker, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("openai: %w", ErrMissingAPIKey)
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.HTTPClient != nil {
		clientCfg.HTTPClient = cfg.HTTPClient
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &OpenAIInvoker{
		client:  openai.NewClientWithConfig(clientCfg),
		timeout: timeout,
	}, nil
}

// Invoke sends prompt as the user message. A non-blank system prompt is sent
// first as a separate system message.
func (o *OpenAIInvoker) Invoke(ctx context.Context, prompt string, params Params) (string, error) {
	log := logging.FromContext(ctx)

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if system, ok := params.System(); ok {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	start := time.Now()
	resp, err := o.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
		Model:       params.Model,
		Messages:    messages,
		Temperature: explicitFloat(params.Temperature),
		TopP:        explicitFloat(params.TopP),
	})
	elapsed := time.Since(start)
	metrics.ObserveModelCall(ProviderOpenAI, params.Model, elapsed.Seconds(), err)

	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	metrics.AddTokens(ProviderOpenAI, params.Model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	log.Debug().
		Str("component", "llm").
		Str("model", params.Model).
		Dur("duration", elapsed).
		Int("prompt_tokens", resp.Usage.PromptTokens).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Msg("chat completion received")

	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// explicitFloat converts v for a go-openai request field tagged omitempty.
// Zero becomes the smallest positive float32 so the field is still sent and
// the server does not substitute its own default.
func explicitFloat(v float64) float32 {
	if v == 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(v)
}
