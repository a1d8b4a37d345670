package llm

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/medreports/backend/internal/metrics"
	"github.com/medreports/backend/pkg/circuitbreaker"
	"github.com/medreports/backend/pkg/logger"
	"github.com/medreports/backend/pkg/retry"
)

type Client struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
	cb          *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
}

type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  float32
	MaxTokens    int
}

type CompletionResponse struct {
	Content string
	Usage   Usage
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

func NewClient(apiKey, model string, temperature float32, maxTokens, timeoutSec int) *Client {
	client := openai.NewClient(apiKey)

	cb := circuitbreaker.New("llm", circuitbreaker.Config{
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    3,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         logger.GetLogger(),
	}

	timeout := 30 * time.Second
	if timeoutSec > 0 {
		timeout = time.Duration(timeoutSec) * time.Second
	}

	logger.Info("LLM client initialized", zap.String("model", model))

	return &Client{
		client:      client,
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
		timeout:     timeout,
		cb:          cb,
		retryConfig: retryConfig,
	}
}

// Complete runs one system+user chat completion. The call is bounded by the
// configured timeout on top of whatever deadline the caller's context
// carries, retried with backoff, and guarded by the circuit breaker.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}

	messages := []openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		},
		{
			Role:    openai.ChatMessageRoleUser,
			Content: req.UserPrompt,
		},
	}

	var result *CompletionResponse

	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			resp, err := c.client.CreateChatCompletion(
				ctx,
				openai.ChatCompletionRequest{
					Model:       c.model,
					Messages:    messages,
					Temperature: req.Temperature,
					MaxTokens:   maxTokens,
				},
			)

			if err != nil {
				return fmt.Errorf("failed to create completion: %w", err)
			}

			if len(resp.Choices) == 0 {
				return fmt.Errorf("completion returned no choices")
			}

			metrics.LLMTokensUsed.WithLabelValues(c.model, "prompt").Add(float64(resp.Usage.PromptTokens))
			metrics.LLMTokensUsed.WithLabelValues(c.model, "completion").Add(float64(resp.Usage.CompletionTokens))

			logger.Debug("LLM completion generated",
				zap.Int("prompt_tokens", resp.Usage.PromptTokens),
				zap.Int("completion_tokens", resp.Usage.CompletionTokens),
			)

			result = &CompletionResponse{
				Content: resp.Choices[0].Message.Content,
				Usage: Usage{
					PromptTokens:     resp.Usage.PromptTokens,
					CompletionTokens: resp.Usage.CompletionTokens,
					TotalTokens:      resp.Usage.TotalTokens,
				},
			}

			return nil
		})
	})

	if err != nil {
		return nil, err
	}

	return result, nil
}

const translateSystemPrompt = "You are a helpful assistant for medical search query parsing."

const translateUserPromptFormat = `You are an assistant that translates natural language medical queries into structured JSON filters.

Given the following user query:
"%s"

Respond ONLY in the following JSON format:

{
  "parameter": "<medical parameter name>",
  "operator": "<comparison operator like '=', '<', '>', '<=', '>='>",
  "value": "<number or value, e.g., '13'>",
  "category": "<optional category, like 'CBC (Complete Blood Count)'>",
  "timeframeMonths": "<optional number of months to filter by date>"
}

Only include the fields that are relevant to the query. For example, if there is no mention of a timeframe, omit the timeframeMonths field.`

// TranslateSearchQuery asks the model to turn queryText into the structured
// filter JSON and returns the raw reply. Parsing and validation happen in
// the nlquery translator.
func (c *Client) TranslateSearchQuery(ctx context.Context, queryText string) (string, error) {
	resp, err := c.Complete(ctx, CompletionRequest{
		SystemPrompt: translateSystemPrompt,
		UserPrompt:   fmt.Sprintf(translateUserPromptFormat, queryText),
		Temperature:  c.temperature,
		MaxTokens:    c.maxTokens,
	})

	if err != nil {
		return "", fmt.Errorf("failed to translate query: %w", err)
	}

	return resp.Content, nil
}
