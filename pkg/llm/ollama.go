package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/schema"
)

// OllamaConfig configures the local Ollama backend.
type OllamaConfig struct {
	BaseURL        string
	EmbeddingModel string
	ChatModel      string
	MaxTokens      int
	Temperature    float64
}

// OllamaBackend serves both oracle roles against a local Ollama server:
// embeddings through the embedding model, generation through the chat model.
type OllamaBackend struct {
	config OllamaConfig
	embed  *ollama.LLM
	chat   *ollama.LLM
}

func NewOllamaBackend(config OllamaConfig) (*OllamaBackend, error) {
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}
	if config.EmbeddingModel == "" {
		config.EmbeddingModel = "nomic-embed-text:latest"
	}
	if config.ChatModel == "" {
		config.ChatModel = "mistral"
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = 2000
	}

	embed, err := ollama.New(
		ollama.WithModel(config.EmbeddingModel),
		ollama.WithServerURL(config.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding model: %w", err)
	}

	chat, err := ollama.New(
		ollama.WithModel(config.ChatModel),
		ollama.WithServerURL(config.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat model: %w", err)
	}

	return &OllamaBackend{config: config, embed: embed, chat: chat}, nil
}

func (b *OllamaBackend) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := b.embed.CreateEmbedding(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("ollama embedding request failed: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("ollama returned no embedding data")
	}
	return embeddings[0], nil
}

func (b *OllamaBackend) Generate(ctx context.Context, prompt string) (string, error) {
	content := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeHuman, prompt),
	}

	resp, err := b.chat.GenerateContent(ctx, content,
		llms.WithMaxTokens(b.config.MaxTokens),
		llms.WithTemperature(b.config.Temperature))
	if err != nil {
		return "", fmt.Errorf("ollama generation failed: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", fmt.Errorf("ollama returned no response choices")
	}

	return resp.Choices[0].Content, nil
}
