package services

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"job-matcher/internal/config"
)

// ContentGenerator is the narrow surface the validator needs from the LLM
// scoring service.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

type GeminiService interface {
	ContentGenerator
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

type geminiService struct {
	client     *genai.Client
	modelName  string
	embedModel string
}

func NewGeminiService(ctx context.Context, cfg *config.GeminiConfig) (GeminiService, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	model := cfg.Model
	if strings.TrimSpace(model) == "" {
		model = "gemini-2.5-flash"
	}

	return &geminiService{
		client:     client,
		modelName:  model,
		embedModel: "text-embedding-004",
	}, nil
}

// GenerateContent implements ContentGenerator. Transient failures (rate
// limits, timeouts, outages) come back tagged retryable; anything else is
// assumed deterministic for this input.
func (g *geminiService) GenerateContent(ctx context.Context, prompt string) (string, error) {
	temperature := float32(0.2)
	cfg := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: 4096,
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.modelName, genai.Text(prompt), cfg)
	if err != nil {
		if isTransient(err) {
			return "", NewRetryable(fmt.Errorf("generate content: %w", err))
		}
		return "", fmt.Errorf("generate content: %w", err)
	}
	if resp == nil {
		return "", NewRetryable(fmt.Errorf("nil response from gemini"))
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", NewRetryable(fmt.Errorf("empty response from gemini"))
	}
	return text, nil
}

// GenerateEmbedding is used by the ingestion script, not the engine.
func (g *geminiService) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	// Truncate text if too long for the embedding model
	if len(text) > 40000 {
		text = text[:40000]
	}

	result, err := g.client.Models.EmbedContent(ctx, g.embedModel, genai.Text(text), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}
	if result == nil || len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return result.Embeddings[0].Values, nil
}
