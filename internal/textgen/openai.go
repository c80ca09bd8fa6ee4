package textgen

import (
	"context"
	"errors"
	"net/http"

	"learnanalytics/internal/config"
	"learnanalytics/internal/observability"
	contextutils "learnanalytics/internal/utils"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/attribute"
)

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAIGenerator talks to OpenAI or any OpenAI-compatible endpoint set through BaseURL
type OpenAIGenerator struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	logger      *observability.Logger
}

// NewOpenAIGenerator creates a generator backed by the chat completions API
func NewOpenAIGenerator(cfg config.TextGenConfig, logger *observability.Logger) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, contextutils.WrapError(contextutils.ErrAIConfigInvalid, "openai api key is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	clientConfig.HTTPClient = newHTTPClient(cfg)

	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}

	return &OpenAIGenerator{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		logger:      logger,
	}, nil
}

// Generate sends prompt as a single user message
func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (result0 string, err error) {
	ctx, span := observability.TraceTextGenFunction(ctx, "openai_generate",
		attribute.String("textgen.provider", ProviderOpenAI),
		attribute.String("textgen.model", g.model),
		attribute.Int("textgen.prompt_length", len(prompt)),
	)
	defer observability.FinishSpan(span, &err)

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxCompletionTokens: g.maxTokens,
		Temperature:         g.temperature,
	})
	if err != nil {
		return "", mapOpenAIError(err)
	}

	if len(resp.Choices) == 0 {
		return "", contextutils.WrapError(contextutils.ErrAIRequestFailed, "no choices in openai response")
	}

	span.SetAttributes(
		attribute.Int("textgen.prompt_tokens", resp.Usage.PromptTokens),
		attribute.Int("textgen.completion_tokens", resp.Usage.CompletionTokens),
	)
	return cleanOutput(resp.Choices[0].Message.Content), nil
}

func mapOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode >= http.StatusInternalServerError {
		return contextutils.WrapErrorf(contextutils.ErrAIProviderUnavailable, "openai request failed: %v", err)
	}
	return contextutils.WrapErrorf(contextutils.ErrAIRequestFailed, "openai request failed: %v", err)
}
