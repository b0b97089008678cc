package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	LLM struct {
		Provider       string  `yaml:"provider"` // "ollama" or "gemini"
		BaseURL        string  `yaml:"base_url"`
		APIKey         string  `yaml:"api_key"`
		ChatModel      string  `yaml:"chat_model"`
		EmbeddingModel string  `yaml:"embedding_model"`
		MaxTokens      int     `yaml:"max_tokens"`
		Temperature    float64 `yaml:"temperature"`
	} `yaml:"llm"`

	Database struct {
		URL       string `yaml:"url"`
		VectorDim int    `yaml:"vector_dim"`
	} `yaml:"database"`

	Extraction struct {
		APIURL string `yaml:"api_url"`
		APIKey string `yaml:"api_key"`
	} `yaml:"extraction"`

	Pipeline struct {
		MaxConcurrent int     `yaml:"max_concurrent"`
		EmbedRate     float64 `yaml:"embed_rate"` // embedding calls per second, 0 = unlimited
	} `yaml:"pipeline"`

	Retrieval struct {
		TopK                int     `yaml:"top_k"`
		SimilarityThreshold float32 `yaml:"similarity_threshold"`
		WindowRadius        int     `yaml:"window_radius"`
		OnNoMatch           string  `yaml:"on_no_match"` // "answer" or "refuse"
	} `yaml:"retrieval"`

	Log struct {
		Mode string `yaml:"mode"`
	} `yaml:"log"`
}

func LoadConfig(path string) (*Config, error) {
	// .env is optional; the real environment wins either way
	_ = godotenv.Load()

	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/finlens/config.yaml"),
			"/etc/finlens/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %v", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %v", err)
	}

	mergeWithEnv(&config)
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	mergeWithEnv(config)
	applyDefaults(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.LLM.Provider == "" {
		config.LLM.Provider = "gemini"
	}
	if config.LLM.ChatModel == "" {
		switch config.LLM.Provider {
		case "ollama":
			config.LLM.ChatModel = "mistral"
		default:
			config.LLM.ChatModel = "gemini-1.5-flash-latest"
		}
	}
	if config.LLM.EmbeddingModel == "" {
		switch config.LLM.Provider {
		case "ollama":
			config.LLM.EmbeddingModel = "nomic-embed-text:latest"
		default:
			config.LLM.EmbeddingModel = "text-embedding-004"
		}
	}
	if config.LLM.BaseURL == "" {
		config.LLM.BaseURL = "http://localhost:11434"
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 2000
	}
	if config.LLM.Temperature == 0 {
		config.LLM.Temperature = 0.7
	}

	if config.Database.VectorDim == 0 {
		config.Database.VectorDim = 768
	}

	if config.Pipeline.MaxConcurrent == 0 {
		config.Pipeline.MaxConcurrent = 3
	}

	if config.Retrieval.TopK == 0 {
		config.Retrieval.TopK = 5
	}
	if config.Retrieval.SimilarityThreshold == 0 {
		config.Retrieval.SimilarityThreshold = 0.5
	}
	if config.Retrieval.WindowRadius == 0 {
		config.Retrieval.WindowRadius = 5
	}
	if config.Retrieval.OnNoMatch == "" {
		config.Retrieval.OnNoMatch = "answer"
	}

	if config.Log.Mode == "" {
		config.Log.Mode = "dev"
	}
}

func mergeWithEnv(config *Config) {
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.LLM.BaseURL = baseURL
	}
	if apiKey := os.Getenv("GOOGLE_API_KEY"); apiKey != "" {
		config.LLM.APIKey = apiKey
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.URL = dbURL
	}
	if extURL := os.Getenv("UNSTRUCTURED_API_URL"); extURL != "" {
		config.Extraction.APIURL = extURL
	}
	if extKey := os.Getenv("UNSTRUCTURED_API_KEY"); extKey != "" {
		config.Extraction.APIKey = extKey
	}
}
