package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
)

const (
	defaultModel      = "gpt-4o"
	defaultMaxRetries = 3
	defaultRetryDelay = time.Second
)

// OpenAIClient implements Backend over the OpenAI chat-completions API.
// Works against api.openai.com or any compatible endpoint via BaseURL.
type OpenAIClient struct {
	client     *openai.Client
	model      string
	maxRetries int
	retryDelay time.Duration
	log        zerolog.Logger
}

// OpenAIConfig configures the OpenAI backend
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string // optional, for compatible endpoints
	Model      string
	MaxRetries int
	RetryDelay time.Duration
	Logger     zerolog.Logger
}

// NewOpenAIClient creates a new OpenAI chat-completions backend.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = defaultRetryDelay
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIClient{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      cfg.Model,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		log:        cfg.Logger,
	}, nil
}

// ModelName returns the configured model identifier.
func (c *OpenAIClient) ModelName() string {
	return c.model
}

// Complete performs one chat completion with retry on rate limits and
// server errors. Client faults (4xx other than 429) return immediately.
func (c *OpenAIClient) Complete(ctx context.Context, req *CompletionRequest) (*Completion, error) {
	apiReq := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    toAPIMessages(req.Messages),
		Temperature: float32(req.Temperature),
	}
	for _, tool := range req.Tools {
		apiReq.Tools = append(apiReq.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		})
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay * time.Duration(attempt)
			c.log.Debug().Int("attempt", attempt+1).Dur("delay", delay).Msg("retrying model call")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		resp, err := c.client.CreateChatCompletion(ctx, apiReq)
		if err != nil {
			if !isRetryable(err) {
				return nil, fmt.Errorf("model call failed: %w", err)
			}
			lastErr = err
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = errors.New("model returned no choices")
			continue
		}

		return fromAPIResponse(resp), nil
	}
	return nil, fmt.Errorf("model call failed after %d attempts: %w", c.maxRetries+1, lastErr)
}

func toAPIMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		apiMsg := openai.ChatCompletionMessage{
			Role:       m.Role,
			Content:    m.Content,
			Name:       m.Name,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			apiMsg.ToolCalls = append(apiMsg.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		out = append(out, apiMsg)
	}
	return out
}

func fromAPIResponse(resp openai.ChatCompletionResponse) *Completion {
	choice := resp.Choices[0].Message
	completion := &Completion{
		Text:       choice.Content,
		TokensUsed: resp.Usage.TotalTokens,
	}
	for _, tc := range choice.ToolCalls {
		completion.ToolCalls = append(completion.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return completion
}

// isRetryable reports whether the error is worth another attempt:
// rate limits, server errors, and transport failures.
func isRetryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	// Transport-level failure with no HTTP status.
	return true
}
