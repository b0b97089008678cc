package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiConfig configures the hosted Gemini backend.
type GeminiConfig struct {
	APIKey         string
	EmbeddingModel string
	ChatModel      string
	MaxTokens      int
	Temperature    float64
}

// GeminiBackend serves both oracle roles through the Google generative AI
// API.
type GeminiBackend struct {
	config GeminiConfig
	client *genai.Client
}

func NewGeminiBackend(ctx context.Context, config GeminiConfig) (*GeminiBackend, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if config.EmbeddingModel == "" {
		config.EmbeddingModel = "text-embedding-004"
	}
	if config.ChatModel == "" {
		config.ChatModel = "gemini-1.5-flash-latest"
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = 2000
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(config.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GeminiBackend{config: config, client: client}, nil
}

func (b *GeminiBackend) Close() error {
	return b.client.Close()
}

func (b *GeminiBackend) Embed(ctx context.Context, text string) ([]float32, error) {
	em := b.client.EmbeddingModel(b.config.EmbeddingModel)
	res, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("gemini embedding request failed: %w", err)
	}
	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("no embedding data received from gemini")
	}
	return res.Embedding.Values, nil
}

func (b *GeminiBackend) Generate(ctx context.Context, prompt string) (string, error) {
	model := b.client.GenerativeModel(b.config.ChatModel)

	maxTokens := int32(b.config.MaxTokens)
	temp := float32(b.config.Temperature)
	model.GenerationConfig = genai.GenerationConfig{
		MaxOutputTokens: &maxTokens,
		Temperature:     &temp,
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generation request failed: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("gemini returned an empty response")
	}

	var out strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			out.WriteString(string(txt))
		}
	}
	if out.Len() == 0 {
		return "", fmt.Errorf("gemini response contained no text parts")
	}

	return out.String(), nil
}
