// Package config provides configuration management for the application.
package config

import (
	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	Server      ServerConfig
	AI          AIConfig
	Ollama      OllamaConfig
	OpenAI      OpenAIConfig
	Anthropic   AnthropicConfig
	Gemini      GeminiConfig
	Azure       AzureConfig
	HuggingFace HuggingFaceConfig
	Storage     StorageConfig
	Metrics     MetricsConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string
}

// AIConfig holds gateway-level provider selection
type AIConfig struct {
	DefaultProvider string
	UseFallback     bool
}

// OllamaConfig holds the local provider configuration
type OllamaConfig struct {
	URL string
}

// OpenAIConfig holds OpenAI-specific configuration
type OpenAIConfig struct {
	APIKey string
}

// AnthropicConfig holds Anthropic-specific configuration
type AnthropicConfig struct {
	APIKey string
}

// GeminiConfig holds Google Gemini-specific configuration
type GeminiConfig struct {
	APIKey string
}

// AzureConfig holds Azure OpenAI-specific configuration
type AzureConfig struct {
	APIKey     string
	Endpoint   string
	APIVersion string
}

// HuggingFaceConfig holds Hugging Face-specific configuration
type HuggingFaceConfig struct {
	APIKey string
}

// StorageConfig holds database configuration
type StorageConfig struct {
	SQLitePath string
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool
}

// Load reads configuration from an optional .env file and the environment
func Load() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	_ = viper.ReadInConfig() // Ignore error if .env file doesn't exist

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("DEFAULT_AI_PROVIDER", "ollama")
	viper.SetDefault("USE_FALLBACK", true)
	viper.SetDefault("OLLAMA_API_URL", "http://localhost:11434")
	viper.SetDefault("SQLITE_PATH", ".cache/opsgate.db")
	viper.SetDefault("METRICS_ENABLED", true)

	viper.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Port: viper.GetString("PORT"),
		},
		AI: AIConfig{
			DefaultProvider: viper.GetString("DEFAULT_AI_PROVIDER"),
			UseFallback:     viper.GetBool("USE_FALLBACK"),
		},
		Ollama: OllamaConfig{
			URL: viper.GetString("OLLAMA_API_URL"),
		},
		OpenAI: OpenAIConfig{
			APIKey: viper.GetString("OPENAI_API_KEY"),
		},
		Anthropic: AnthropicConfig{
			APIKey: viper.GetString("ANTHROPIC_API_KEY"),
		},
		Gemini: GeminiConfig{
			APIKey: viper.GetString("GEMINI_API_KEY"),
		},
		Azure: AzureConfig{
			APIKey:     viper.GetString("AZURE_OPENAI_API_KEY"),
			Endpoint:   viper.GetString("AZURE_OPENAI_ENDPOINT"),
			APIVersion: viper.GetString("AZURE_OPENAI_API_VERSION"),
		},
		HuggingFace: HuggingFaceConfig{
			APIKey: viper.GetString("HUGGINGFACE_API_KEY"),
		},
		Storage: StorageConfig{
			SQLitePath: viper.GetString("SQLITE_PATH"),
		},
		Metrics: MetricsConfig{
			Enabled: viper.GetBool("METRICS_ENABLED"),
		},
	}

	return cfg, nil
}
