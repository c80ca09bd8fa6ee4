package textgen

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"learnanalytics/internal/config"
	"learnanalytics/internal/observability"
	contextutils "learnanalytics/internal/utils"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.opentelemetry.io/otel/attribute"
)

const defaultAnthropicModel = "claude-haiku-4-5-20251001"

// AnthropicGenerator talks to the Anthropic messages API
type AnthropicGenerator struct {
	client      *anthropic.Client
	model       string
	maxTokens   int
	temperature float32
	logger      *observability.Logger
}

// NewAnthropicGenerator creates a generator backed by the messages API.
// SDK retries are disabled so each analysis makes at most one request.
func NewAnthropicGenerator(cfg config.TextGenConfig, logger *observability.Logger) (*AnthropicGenerator, error) {
	if cfg.APIKey == "" {
		return nil, contextutils.WrapError(contextutils.ErrAIConfigInvalid, "anthropic api key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(newHTTPClient(cfg)),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = defaultAnthropicModel
	}

	client := anthropic.NewClient(opts...)
	return &AnthropicGenerator{
		client:      &client,
		model:       model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		logger:      logger,
	}, nil
}

// Generate sends prompt as a single user message and joins the returned text blocks
func (g *AnthropicGenerator) Generate(ctx context.Context, prompt string) (result0 string, err error) {
	ctx, span := observability.TraceTextGenFunction(ctx, "anthropic_generate",
		attribute.String("textgen.provider", ProviderAnthropic),
		attribute.String("textgen.model", g.model),
		attribute.Int("textgen.prompt_length", len(prompt)),
	)
	defer observability.FinishSpan(span, &err)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model),
		MaxTokens: int64(g.maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if g.temperature > 0 {
		params.Temperature = anthropic.Float(float64(g.temperature))
	}

	msg, err := g.client.Messages.New(ctx, params)
	if err != nil {
		return "", mapAnthropicError(err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	span.SetAttributes(
		attribute.Int64("textgen.input_tokens", msg.Usage.InputTokens),
		attribute.Int64("textgen.output_tokens", msg.Usage.OutputTokens),
	)
	return cleanOutput(sb.String()), nil
}

func mapAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode >= http.StatusInternalServerError {
		return contextutils.WrapErrorf(contextutils.ErrAIProviderUnavailable, "anthropic request failed: %v", err)
	}
	return contextutils.WrapErrorf(contextutils.ErrAIRequestFailed, "anthropic request failed: %v", err)
}
