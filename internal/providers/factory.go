// Package providers provides a factory and shared streaming helpers for the
// AI backend variants.
package providers

import (
	"fmt"
	"time"

	"opsgate/internal/core"
)

// Registry keys for the known provider variants
const (
	NameOllama      = "ollama"
	NameOpenAI      = "openai"
	NameAnthropic   = "anthropic"
	NameGemini      = "gemini"
	NameAzureOpenAI = "azure_openai"
	NameHuggingFace = "huggingface"
	NameFallback    = "fallback"
)

// Shared timeout bounds. The connectivity probe is a liveness check and stays
// short; generation calls get the standard bound, and the slow inference
// vendor (HuggingFace) gets an extended one.
const (
	ProbeTimeout        = 2 * time.Second
	ListTimeout         = 5 * time.Second
	GenerateTimeout     = 30 * time.Second
	LongGenerateTimeout = 60 * time.Second
)

// Config holds the resolved configuration for creating one provider instance
type Config struct {
	// APIKey is the credential for cloud providers; empty means not configured
	APIKey string

	// BaseURL overrides the vendor default endpoint (used by the local
	// provider and by tests)
	BaseURL string

	// Endpoint is the account-specific service endpoint (Azure only)
	Endpoint string

	// APIVersion selects the vendor API version (Azure only)
	APIVersion string
}

// Builder creates a provider instance from configuration
type Builder func(cfg Config) core.Provider

// registry holds all registered provider builders
var registry = make(map[string]Builder)

// Register allows provider packages to register themselves.
// This should be called from init() functions in provider packages.
func Register(name string, builder Builder) {
	registry[name] = builder
}

// Create instantiates a provider by registry name
func Create(name string, cfg Config) (core.Provider, error) {
	builder, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider type: %s", name)
	}
	return builder(cfg), nil
}

// ListRegistered returns all registered provider type names
func ListRegistered() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	return names
}
