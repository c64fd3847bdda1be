package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/genetics-tutor/backend/pkg/circuitbreaker"
	"github.com/genetics-tutor/backend/pkg/logger"
	"github.com/genetics-tutor/backend/pkg/retry"
)

const DefaultAnthropicModel = "claude-3-5-haiku-latest"

// AnthropicClient is the Messages API completion collaborator.
type AnthropicClient struct {
	client      anthropic.Client
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
	cb          *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
}

func NewAnthropicClient(opts Options) *AnthropicClient {
	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}
	// retries are handled by pkg/retry
	clientOpts = append(clientOpts, option.WithMaxRetries(0))

	if opts.Model == "" {
		opts.Model = DefaultAnthropicModel
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 1024
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	logger.Info("LLM client initialized",
		zap.String("provider", "anthropic"),
		zap.String("model", opts.Model),
	)

	return &AnthropicClient{
		client:      anthropic.NewClient(clientOpts...),
		model:       opts.Model,
		temperature: opts.Temperature,
		maxTokens:   opts.MaxTokens,
		timeout:     opts.Timeout,
		cb:          newBreaker("anthropic"),
		retryConfig: defaultRetryConfig(),
	}
}

func (c *AnthropicClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = c.temperature
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.UserPrompt)),
		},
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}
	if temperature > 0 {
		params.Temperature = anthropic.Float(float64(temperature))
	}

	var result *CompletionResponse

	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			resp, err := c.client.Messages.New(ctx, params)
			if err != nil {
				return classifyAnthropicError(fmt.Errorf("failed to create message: %w", err))
			}

			var text strings.Builder
			for _, block := range resp.Content {
				switch b := block.AsAny().(type) {
				case anthropic.TextBlock:
					text.WriteString(b.Text)
				}
			}
			if text.Len() == 0 {
				return retry.Stop(ErrEmptyCompletion)
			}

			logger.Debug("LLM completion generated",
				zap.Int64("input_tokens", resp.Usage.InputTokens),
				zap.Int64("output_tokens", resp.Usage.OutputTokens),
			)

			result = &CompletionResponse{
				Content: text.String(),
				Model:   string(resp.Model),
				Usage: Usage{
					PromptTokens:     int(resp.Usage.InputTokens),
					CompletionTokens: int(resp.Usage.OutputTokens),
					TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
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

func classifyAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		code := apiErr.StatusCode
		if code >= 400 && code < 500 && code != http.StatusTooManyRequests {
			return retry.Stop(err)
		}
	}
	return err
}
