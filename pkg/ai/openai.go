package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	aiDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "essaypilot",
		Subsystem: "ai",
		Name:      "feedback_duration_seconds",
		Help:      "Duration of AI feedback generation requests",
	}, []string{"model"})

	aiFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "essaypilot",
		Subsystem: "ai",
		Name:      "feedback_failures_total",
		Help:      "Number of AI feedback generation failures",
	}, []string{"model"})

	aiRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "essaypilot",
		Subsystem: "ai",
		Name:      "feedback_retries_total",
		Help:      "Number of retried AI feedback generation attempts",
	}, []string{"model"})
)

// maxRetries is the number of additional attempts made after a rate-limit or
// server-error response; the backoff doubles from retryBaseDelay each time.
const (
	maxRetries     = 3
	retryBaseDelay = time.Second
)

// OpenAIConfig defines configuration options for the OpenAI feedback generator.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
	Logger      zerolog.Logger
}

// completionClient is the slice of the OpenAI client the generator uses.
type completionClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIGenerator implements Generator against the OpenAI chat completion API.
type OpenAIGenerator struct {
	client    completionClient
	cfg       OpenAIConfig
	tracer    trace.Tracer
	logger    zerolog.Logger
	baseDelay time.Duration
}

// NewOpenAIGenerator builds a new generator using the provided configuration.
func NewOpenAIGenerator(cfg OpenAIConfig) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = "gpt-4o"
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1600
	}

	if cfg.Temperature == 0 {
		cfg.Temperature = 0.7
	}

	tracer := otel.Tracer("github.com/essaypilot/essaypilot-api/pkg/ai/openai")
	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	config := openai.DefaultConfig(cfg.APIKey)
	client := openai.NewClientWithConfig(config)

	return &OpenAIGenerator{
		client:    client,
		cfg:       cfg,
		tracer:    tracer,
		logger:    logger,
		baseDelay: retryBaseDelay,
	}, nil
}

// Generate sends the essay to OpenAI and returns the feedback text. Rate-limit
// and server-error responses are retried with exponential backoff before the
// error propagates to the caller.
func (g *OpenAIGenerator) Generate(parent context.Context, input FeedbackInput) (string, error) {
	ctx, span := g.tracer.Start(parent, "openai.generate_feedback", trace.WithAttributes(
		attribute.String("model", g.cfg.Model),
		attribute.Bool("essay.personal_statement", input.PersonalStatement),
		attribute.Int("essay.word_count", input.WordCount),
		attribute.Int("essay.word_limit", input.WordLimit),
	))
	defer span.End()

	request := openai.ChatCompletionRequest{
		Model:       g.cfg.Model,
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: buildSystemPrompt(input.PersonalStatement, input.WordLimit),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildUserPrompt(input),
			},
		},
	}

	start := time.Now()
	resp, err := g.completeWithRetry(ctx, request)
	aiDuration.WithLabelValues(g.cfg.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		aiFailures.WithLabelValues(g.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("openai generate feedback: %w", err)
	}

	if len(resp.Choices) == 0 {
		g.logger.Warn().Msg("completion returned no choices, using fallback feedback")
		return fallbackFeedback, nil
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		g.logger.Warn().Msg("completion returned empty content, using fallback feedback")
		return fallbackFeedback, nil
	}

	return content, nil
}

func (g *OpenAIGenerator) completeWithRetry(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	var resp openai.ChatCompletionResponse
	var err error

	delay := g.baseDelay
	if delay <= 0 {
		delay = retryBaseDelay
	}
	for attempt := 0; ; attempt++ {
		resp, err = g.client.CreateChatCompletion(ctx, request)
		if err == nil || attempt >= maxRetries || !isRetryable(err) {
			return resp, err
		}

		aiRetries.WithLabelValues(g.cfg.Model).Inc()
		g.logger.Warn().
			Err(err).
			Int("attempt", attempt+1).
			Dur("backoff", delay).
			Msg("completion request failed, retrying")

		select {
		case <-ctx.Done():
			return resp, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
}

// isRetryable reports whether the completion error is a rate-limit or
// server-side failure worth another attempt.
func isRetryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == 429 || reqErr.HTTPStatusCode >= 500
	}

	return false
}
