package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/benvon/smart-coach/internal/models"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"go.uber.org/zap"
)

const (
	// DefaultOpenAIModel is the default model to use
	DefaultOpenAIModel = "gpt-4o-mini"
	// DefaultOpenAIBaseURL is the default OpenAI API base URL
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	// DefaultTimeout is the default timeout for API calls
	DefaultTimeout = 30 * time.Second

	// ErrNoChoicesInResponse is returned when the API response has no choices
	ErrNoChoicesInResponse = "no choices in response"

	defaultSystemMessage = "You are an experienced, safety-conscious fitness coach. Be concise and practical."
)

// OpenAIBackend implements Backend using OpenAI chat completions
type OpenAIBackend struct {
	client       openai.Client
	name         string
	model        string
	costPerToken float64
	logger       *zap.Logger
	debugMode    bool
}

// OpenAIOptions configures an OpenAIBackend
type OpenAIOptions struct {
	Name         string
	APIKey       string
	BaseURL      string
	Model        string
	CostPerToken float64
	Timeout      time.Duration
	DebugMode    bool
}

// NewOpenAIBackend creates a new OpenAI backend
func NewOpenAIBackend(opts OpenAIOptions, logger *zap.Logger) *OpenAIBackend {
	if opts.Model == "" {
		opts.Model = DefaultOpenAIModel
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultOpenAIBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := openai.NewClient(
		option.WithAPIKey(opts.APIKey),
		option.WithBaseURL(opts.BaseURL),
		option.WithHTTPClient(&http.Client{Timeout: opts.Timeout}),
	)

	return &OpenAIBackend{
		client:       client,
		name:         opts.Name,
		model:        opts.Model,
		costPerToken: opts.CostPerToken,
		logger:       logger,
		debugMode:    opts.DebugMode,
	}
}

// NewOpenAIBackendFromConfig is the BackendFactory for the openai kind.
// Settings read: api_key, base_url, timeout, debug.
func NewOpenAIBackendFromConfig(cfg models.AIServiceConfig, logger *zap.Logger) (Backend, error) {
	opts := OpenAIOptions{
		Name:         cfg.Name,
		APIKey:       cfg.Settings["api_key"],
		BaseURL:      cfg.Settings["base_url"],
		Model:        cfg.Model,
		CostPerToken: cfg.CostPerToken,
	}
	if opts.APIKey == "" {
		return nil, models.NewValidationError("Settings.api_key", "is required for openai services")
	}
	if raw := cfg.Settings["timeout"]; raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, models.NewValidationError("Settings.timeout", err.Error())
		}
		opts.Timeout = d
	}
	if raw := cfg.Settings["debug"]; raw != "" {
		debug, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, models.NewValidationError("Settings.debug", err.Error())
		}
		opts.DebugMode = debug
	}
	return NewOpenAIBackend(opts, logger), nil
}

// Execute implements Backend
func (b *OpenAIBackend) Execute(ctx context.Context, prompt, systemMessage string) (*Result, error) {
	if systemMessage == "" {
		systemMessage = defaultSystemMessage
	}
	requestID := ExtractRequestID(ctx)
	userID := ExtractUserID(ctx)

	req := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(b.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemMessage),
			openai.UserMessage(prompt),
		},
		// Temperature omitted; some models only accept their default
	}

	if b.debugMode {
		b.logger.Debug("llm_api_request",
			zap.String("service", b.name),
			zap.String("model", b.model),
			zap.Int("prompt_length", len(prompt)),
			zap.String("prompt_preview", SanitizePrompt(prompt, true)),
			zap.String("user_id", HashUserID(userID)),
			zap.String("request_id", requestID),
		)
	}

	start := time.Now()
	resp, err := b.client.Chat.Completions.New(ctx, req)
	latency := time.Since(start)
	if err != nil {
		b.logger.Debug("llm_api_error",
			zap.String("service", b.name),
			zap.String("model", b.model),
			zap.Error(err),
			zap.String("request_id", requestID),
			zap.Int64("latency_ms", latency.Milliseconds()),
		)
		if apiErr := ExtractAPIError(err); apiErr != nil {
			return nil, fmt.Errorf("openai completion failed: %w", apiErr)
		}
		return nil, fmt.Errorf("openai completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New(ErrNoChoicesInResponse)
	}

	choice := resp.Choices[0]
	tokens := int(resp.Usage.TotalTokens)
	result := &Result{
		Content:    choice.Message.Content,
		TokensUsed: tokens,
		Cost:       float64(tokens) * b.costPerToken,
		Confidence: confidenceForFinish(string(choice.FinishReason)),
		Model:      resp.Model,
	}

	if b.debugMode {
		b.logger.Debug("llm_api_response",
			zap.String("service", b.name),
			zap.String("model", b.model),
			zap.Int("response_length", len(result.Content)),
			zap.String("response_preview", SanitizeResponse(result.Content, true)),
			zap.Int("tokens", tokens),
			zap.String("request_id", requestID),
			zap.Int64("latency_ms", latency.Milliseconds()),
		)
	}
	return result, nil
}

// confidenceForFinish maps the completion finish reason to a confidence
func confidenceForFinish(reason string) float64 {
	switch reason {
	case "stop":
		return 0.9
	case "length":
		return 0.6
	case "content_filter":
		return 0.3
	default:
		return 0.7
	}
}
