package nl2sql

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultAzureAPIVersion = "2024-02-01"

type AzureConfig struct {
	Endpoint    string
	APIKey      string
	Deployment  string
	APIVersion  string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// AzureClient calls an Azure OpenAI deployment. The deployment name doubles as the model.
type AzureClient struct {
	endpoint    string
	apiKey      string
	deployment  string
	apiVersion  string
	temperature float64
	maxTokens   int
	client      *http.Client
}

func NewAzureClient(cfg AzureConfig) (*AzureClient, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, fmt.Errorf("azure endpoint is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("azure api key is required")
	}
	if strings.TrimSpace(cfg.Deployment) == "" {
		return nil, fmt.Errorf("azure deployment is required")
	}
	version := strings.TrimSpace(cfg.APIVersion)
	if version == "" {
		version = defaultAzureAPIVersion
	}
	return &AzureClient{
		endpoint:    strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/"),
		apiKey:      strings.TrimSpace(cfg.APIKey),
		deployment:  strings.TrimSpace(cfg.Deployment),
		apiVersion:  version,
		temperature: cfg.Temperature,
		maxTokens:   maxTokensOrDefault(cfg.MaxTokens),
		client:      &http.Client{Timeout: timeoutOrDefault(cfg.Timeout)},
	}, nil
}

func (c *AzureClient) Name() string { return "azure" }

func (c *AzureClient) Complete(ctx context.Context, prompt Prompt) (Completion, error) {
	endpoint := fmt.Sprintf(
		"%s/openai/deployments/%s/chat/completions?api-version=%s",
		c.endpoint,
		url.PathEscape(c.deployment),
		url.QueryEscape(c.apiVersion),
	)
	header := http.Header{}
	header.Set("api-key", c.apiKey)

	text, err := postChatCompletion(ctx, c.client, endpoint, header, chatPayload(prompt, c.temperature, c.maxTokens))
	if err != nil {
		return Completion{}, err
	}
	return Completion{Text: text, Model: c.deployment}, nil
}
