package nl2sql

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultMaxTokens = 512
	defaultTimeout   = 30 * time.Second
)

type OpenAIConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// OpenAIClient talks to any OpenAI-compatible chat completions endpoint.
type OpenAIClient struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	client      *http.Client
}

func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("api key is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gpt-4o"
	}
	return &OpenAIClient{
		baseURL:     strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:      strings.TrimSpace(cfg.APIKey),
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   maxTokensOrDefault(cfg.MaxTokens),
		client:      &http.Client{Timeout: timeoutOrDefault(cfg.Timeout)},
	}, nil
}

func (c *OpenAIClient) Name() string { return "openai" }

func (c *OpenAIClient) Complete(ctx context.Context, prompt Prompt) (Completion, error) {
	payload := chatPayload(prompt, c.temperature, c.maxTokens)
	payload["model"] = c.model
	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.apiKey)

	text, err := postChatCompletion(ctx, c.client, c.baseURL+"/v1/chat/completions", header, payload)
	if err != nil {
		return Completion{}, err
	}
	return Completion{Text: text, Model: c.model}, nil
}

func chatPayload(prompt Prompt, temperature float64, maxTokens int) map[string]any {
	return map[string]any{
		"messages": []map[string]string{
			{"role": "system", "content": prompt.System},
			{"role": "user", "content": prompt.User},
		},
		"temperature": temperature,
		"max_tokens":  maxTokens,
	}
}

func postChatCompletion(ctx context.Context, client *http.Client, endpoint string, header http.Header, payload map[string]any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal chat payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	for key, values := range header {
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("request chat completion: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	rawRespBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read chat response body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("chat completion failed status=%d body=%s", resp.StatusCode, string(rawRespBody))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(rawRespBody, &parsed); err != nil {
		return "", fmt.Errorf("decode chat completion response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("empty chat completion choices")
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

func maxTokensOrDefault(value int) int {
	if value <= 0 {
		return defaultMaxTokens
	}
	return value
}

func timeoutOrDefault(value time.Duration) time.Duration {
	if value <= 0 {
		return defaultTimeout
	}
	return value
}
