package nl2sql

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const defaultGeminiModel = "gemini-1.5-flash"

type GeminiConfig struct {
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
}

type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

type GeminiClient struct {
	model       string
	temperature float32
	maxTokens   int32
	newModel    func(system string) contentGenerator
	closeFn     func() error
}

func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(strings.TrimSpace(cfg.APIKey)))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	g := newGeminiClient(cfg, nil)
	g.closeFn = client.Close
	g.newModel = func(system string) contentGenerator {
		model := client.GenerativeModel(g.model)
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
		model.SetTemperature(g.temperature)
		model.SetMaxOutputTokens(g.maxTokens)
		return model
	}
	return g, nil
}

func newGeminiClient(cfg GeminiConfig, newModel func(system string) contentGenerator) *GeminiClient {
	model := strings.TrimSpace(cfg.Model)
	if model == "" || strings.HasPrefix(model, "gpt-") {
		model = defaultGeminiModel
	}
	return &GeminiClient{
		model:       model,
		temperature: float32(cfg.Temperature),
		maxTokens:   int32(maxTokensOrDefault(cfg.MaxTokens)),
		newModel:    newModel,
	}
}

func (c *GeminiClient) Name() string { return "gemini" }

func (c *GeminiClient) Complete(ctx context.Context, prompt Prompt) (Completion, error) {
	resp, err := c.newModel(prompt.System).GenerateContent(ctx, genai.Text(prompt.User))
	if err != nil {
		return Completion{}, fmt.Errorf("gemini generate content: %w", err)
	}
	text := geminiText(resp)
	if text == "" {
		return Completion{}, fmt.Errorf("empty gemini response")
	}
	return Completion{Text: text, Model: c.model}, nil
}

func (c *GeminiClient) Close() error {
	if c.closeFn == nil {
		return nil
	}
	return c.closeFn()
}

func geminiText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var b strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				b.WriteString(string(text))
			}
		}
		if b.Len() > 0 {
			break
		}
	}
	return strings.TrimSpace(b.String())
}
