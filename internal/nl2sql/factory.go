package nl2sql

import (
	"context"
	"fmt"

	"github.com/tigel-agm/NL-SQL/internal/config"
)

// KeyResolver fetches a secret by name, e.g. from a parameter store.
type KeyResolver interface {
	Resolve(ctx context.Context, name string) (string, error)
}

// NewFromConfig builds the translator for the resolved provider. It returns
// ErrNotConfigured when no provider has credentials.
func NewFromConfig(ctx context.Context, cfg config.LLMConfig, keys KeyResolver) (*Service, error) {
	var (
		completer Completer
		err       error
	)
	switch provider := cfg.ResolveProvider(); provider {
	case config.ProviderOpenAI:
		apiKey := cfg.APIKey
		if apiKey == "" && cfg.APIKeyParam != "" {
			if keys == nil {
				return nil, fmt.Errorf("api key parameter %q set without a key resolver", cfg.APIKeyParam)
			}
			apiKey, err = keys.Resolve(ctx, cfg.APIKeyParam)
			if err != nil {
				return nil, fmt.Errorf("resolve llm api key: %w", err)
			}
		}
		completer, err = NewOpenAIClient(OpenAIConfig{
			BaseURL:     cfg.BaseURL,
			APIKey:      apiKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Timeout:     cfg.Timeout,
		})
	case config.ProviderAzure:
		completer, err = NewAzureClient(AzureConfig{
			Endpoint:    cfg.AzureEndpoint,
			APIKey:      cfg.AzureAPIKey,
			Deployment:  cfg.AzureDeployment,
			APIVersion:  cfg.AzureAPIVersion,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Timeout:     cfg.Timeout,
		})
	case config.ProviderGemini:
		completer, err = NewGeminiClient(ctx, GeminiConfig{
			APIKey:      cfg.GeminiAPIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		})
	case config.ProviderNone:
		return nil, ErrNotConfigured
	default:
		return nil, fmt.Errorf("unknown llm provider %q", provider)
	}
	if err != nil {
		return nil, err
	}
	return NewService(completer)
}
