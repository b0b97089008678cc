package config

import (
	"fmt"
	"net/url"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	switch c.LLM.Provider {
	case "ollama", "gemini":
	default:
		errors = append(errors, ValidationError{
			Field:   "llm.provider",
			Message: fmt.Sprintf("unknown provider %q, must be ollama or gemini", c.LLM.Provider),
		})
	}

	if c.LLM.Provider == "gemini" && c.LLM.APIKey == "" {
		errors = append(errors, ValidationError{
			Field:   "llm.api_key",
			Message: "API key is required for the gemini provider",
		})
	}

	if c.LLM.Provider == "ollama" {
		if _, err := url.Parse(c.LLM.BaseURL); err != nil || c.LLM.BaseURL == "" {
			errors = append(errors, ValidationError{
				Field:   "llm.base_url",
				Message: "invalid Ollama base URL",
			})
		}
	}

	if c.LLM.MaxTokens < 1 || c.LLM.MaxTokens > 8192 {
		errors = append(errors, ValidationError{
			Field:   "llm.max_tokens",
			Message: "max_tokens must be between 1 and 8192",
		})
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errors = append(errors, ValidationError{
			Field:   "llm.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	if c.Database.URL == "" {
		errors = append(errors, ValidationError{
			Field:   "database.url",
			Message: "PostgreSQL connection string is required",
		})
	} else if _, err := url.Parse(c.Database.URL); err != nil {
		errors = append(errors, ValidationError{
			Field:   "database.url",
			Message: "invalid database URL",
		})
	}

	if c.Database.VectorDim < 1 {
		errors = append(errors, ValidationError{
			Field:   "database.vector_dim",
			Message: "vector_dim must be positive",
		})
	}

	if c.Pipeline.MaxConcurrent < 1 {
		errors = append(errors, ValidationError{
			Field:   "pipeline.max_concurrent",
			Message: "max_concurrent must be positive",
		})
	}

	if c.Pipeline.EmbedRate < 0 {
		errors = append(errors, ValidationError{
			Field:   "pipeline.embed_rate",
			Message: "embed_rate cannot be negative",
		})
	}

	if c.Retrieval.TopK < 1 {
		errors = append(errors, ValidationError{
			Field:   "retrieval.top_k",
			Message: "top_k must be positive",
		})
	}

	if c.Retrieval.SimilarityThreshold < 0 || c.Retrieval.SimilarityThreshold > 1 {
		errors = append(errors, ValidationError{
			Field:   "retrieval.similarity_threshold",
			Message: "similarity_threshold must be between 0 and 1",
		})
	}

	if c.Retrieval.WindowRadius < 0 {
		errors = append(errors, ValidationError{
			Field:   "retrieval.window_radius",
			Message: "window_radius cannot be negative",
		})
	}

	switch c.Retrieval.OnNoMatch {
	case "answer", "refuse":
	default:
		errors = append(errors, ValidationError{
			Field:   "retrieval.on_no_match",
			Message: fmt.Sprintf("unknown policy %q, must be answer or refuse", c.Retrieval.OnNoMatch),
		})
	}

	return errors
}
