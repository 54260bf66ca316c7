package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"
)

func TestLoad_Defaults(t *testing.T) {
	viper.Reset()
	for _, key := range []string{"PORT", "DEFAULT_AI_PROVIDER", "USE_FALLBACK", "OLLAMA_API_URL", "OPENAI_API_KEY"} {
		_ = os.Unsetenv(key)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.AI.DefaultProvider != "ollama" {
		t.Errorf("expected default provider ollama, got %s", cfg.AI.DefaultProvider)
	}
	if !cfg.AI.UseFallback {
		t.Error("expected fallback cascade enabled by default")
	}
	if cfg.Ollama.URL != "http://localhost:11434" {
		t.Errorf("expected default ollama url, got %s", cfg.Ollama.URL)
	}
	if !cfg.Metrics.Enabled {
		t.Error("expected metrics enabled by default")
	}
	if cfg.OpenAI.APIKey != "" {
		t.Errorf("expected empty OpenAI key, got %s", cfg.OpenAI.APIKey)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	viper.Reset()

	_ = os.Setenv("PORT", "9090")
	_ = os.Setenv("DEFAULT_AI_PROVIDER", "openai")
	_ = os.Setenv("USE_FALLBACK", "false")
	_ = os.Setenv("OPENAI_API_KEY", "sk-test")
	_ = os.Setenv("AZURE_OPENAI_ENDPOINT", "https://example.openai.azure.com")
	defer func() {
		for _, key := range []string{"PORT", "DEFAULT_AI_PROVIDER", "USE_FALLBACK", "OPENAI_API_KEY", "AZURE_OPENAI_ENDPOINT"} {
			_ = os.Unsetenv(key)
		}
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.AI.DefaultProvider != "openai" {
		t.Errorf("expected provider openai, got %s", cfg.AI.DefaultProvider)
	}
	if cfg.AI.UseFallback {
		t.Error("expected fallback cascade disabled")
	}
	if cfg.OpenAI.APIKey != "sk-test" {
		t.Errorf("expected OpenAI key from env, got %s", cfg.OpenAI.APIKey)
	}
	if cfg.Azure.Endpoint != "https://example.openai.azure.com" {
		t.Errorf("expected Azure endpoint from env, got %s", cfg.Azure.Endpoint)
	}
}
