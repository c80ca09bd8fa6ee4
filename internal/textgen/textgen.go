// Package textgen provides the optional text generator that explains incorrect answers.
package textgen

import (
	"context"
	"net/http"
	"strings"

	"learnanalytics/internal/config"
	"learnanalytics/internal/observability"
	contextutils "learnanalytics/internal/utils"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Provider names accepted in textgen.provider
const (
	ProviderNone      = "none"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderMock      = "mock"
)

// Generator turns a prompt into text. An empty result means nothing useful was produced.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// New builds the generator selected by cfg. It returns (nil, nil) when generation is disabled.
func New(cfg config.TextGenConfig, logger *observability.Logger) (Generator, error) {
	if !cfg.Enabled() {
		return nil, nil
	}

	var (
		gen Generator
		err error
	)
	switch cfg.Provider {
	case ProviderOpenAI:
		gen, err = NewOpenAIGenerator(cfg, logger)
	case ProviderAnthropic:
		gen, err = NewAnthropicGenerator(cfg, logger)
	case ProviderMock:
		gen = NewMockGenerator()
	default:
		return nil, contextutils.WrapErrorf(contextutils.ErrAIConfigInvalid, "unknown text generation provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	logger.Info(context.Background(), "Text generation enabled", map[string]interface{}{
		"provider": cfg.Provider,
		"model":    cfg.Model,
		"api_key":  contextutils.MaskSecret(cfg.APIKey),
	})
	return gen, nil
}

// newHTTPClient returns a client whose outbound calls are traced
func newHTTPClient(cfg config.TextGenConfig) *http.Client {
	return &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		Timeout:   cfg.Timeout,
	}
}

func cleanOutput(text string) string {
	return strings.TrimSpace(text)
}
