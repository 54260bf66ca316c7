// Package gateway holds the provider registry and the fallback cascade. It
// is the single entry point the transport layer talks to.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"opsgate/internal/core"
	"opsgate/internal/providers"
)

// Settings selects which providers the gateway registers. Cloud providers
// are only registered when their credentials are present.
type Settings struct {
	DefaultProvider string
	UseFallback     bool

	OllamaURL       string
	OpenAIKey       string
	AnthropicKey    string
	GeminiKey       string
	AzureKey        string
	AzureEndpoint   string
	AzureAPIVersion string
	HuggingFaceKey  string
}

// Service routes completion calls to the registered providers and
// substitutes the fallback provider when a backend is unreachable.
type Service struct {
	providers       map[string]core.Provider
	defaultProvider string
	useFallback     bool
}

// New builds the provider registry from settings. The local provider and the
// fallback provider are always registered; cloud providers require
// credentials.
func New(s Settings) *Service {
	svc := &Service{
		providers:       make(map[string]core.Provider),
		defaultProvider: s.DefaultProvider,
		useFallback:     s.UseFallback,
	}
	if svc.defaultProvider == "" {
		svc.defaultProvider = providers.NameOllama
	}

	svc.register(providers.NameOllama, providers.Config{BaseURL: s.OllamaURL})
	if s.OpenAIKey != "" {
		svc.register(providers.NameOpenAI, providers.Config{APIKey: s.OpenAIKey})
	}
	if s.AnthropicKey != "" {
		svc.register(providers.NameAnthropic, providers.Config{APIKey: s.AnthropicKey})
	}
	if s.GeminiKey != "" {
		svc.register(providers.NameGemini, providers.Config{APIKey: s.GeminiKey})
	}
	if s.AzureKey != "" && s.AzureEndpoint != "" {
		svc.register(providers.NameAzureOpenAI, providers.Config{
			APIKey:     s.AzureKey,
			Endpoint:   s.AzureEndpoint,
			APIVersion: s.AzureAPIVersion,
		})
	}
	if s.HuggingFaceKey != "" {
		svc.register(providers.NameHuggingFace, providers.Config{APIKey: s.HuggingFaceKey})
	}
	svc.register(providers.NameFallback, providers.Config{})

	return svc
}

// NewWithProviders builds a gateway over an explicit provider map
func NewWithProviders(provs map[string]core.Provider, defaultProvider string, useFallback bool) *Service {
	return &Service{
		providers:       provs,
		defaultProvider: defaultProvider,
		useFallback:     useFallback,
	}
}

func (s *Service) register(name string, cfg providers.Config) {
	p, err := providers.Create(name, cfg)
	if err != nil {
		slog.Warn("skipping provider", "provider", name, "error", err)
		return
	}
	s.providers[name] = p
}

// DefaultProvider returns the configured default provider name
func (s *Service) DefaultProvider() string {
	return s.defaultProvider
}

// Names returns the registered provider names in sorted order
func (s *Service) Names() []string {
	names := make([]string, 0, len(s.providers))
	for n := range s.providers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Provider returns the registered provider by name
func (s *Service) Provider(name string) (core.Provider, bool) {
	p, ok := s.providers[name]
	return p, ok
}

// resolve maps a requested provider name to a registered provider. Unknown
// names fall back to the default; a missing default is a configuration error.
func (s *Service) resolve(name string) (core.Provider, string, error) {
	if name == "" {
		name = s.defaultProvider
	}
	if _, ok := s.providers[name]; !ok {
		slog.Warn("provider not found, using default", "provider", name, "default", s.defaultProvider)
		name = s.defaultProvider
	}
	p, ok := s.providers[name]
	if !ok {
		return nil, "", core.NewConfigurationError(fmt.Sprintf("default provider '%s' is not configured", s.defaultProvider))
	}
	return p, name, nil
}

func (s *Service) fallback() (core.Provider, bool) {
	p, ok := s.providers[providers.NameFallback]
	return p, ok && s.useFallback
}

// ProviderStatus is one entry of the provider availability listing. Model
// details are only filled in for reachable providers.
type ProviderStatus struct {
	Name         string `json:"name"`
	DisplayName  string `json:"display_name"`
	Available    bool   `json:"available"`
	DefaultModel string `json:"default_model,omitempty"`
	ModelsCount  int    `json:"models_count,omitempty"`
}

var displayNames = map[string]string{
	providers.NameOllama:      "Ollama (local)",
	providers.NameOpenAI:      "OpenAI",
	providers.NameAnthropic:   "Anthropic Claude",
	providers.NameGemini:      "Google Gemini",
	providers.NameAzureOpenAI: "Azure OpenAI",
	providers.NameHuggingFace: "Hugging Face",
	providers.NameFallback:    "Built-in Assistant",
}

// ListAvailableProviders probes every registered provider and reports its
// reachability, sorted by name for stable output.
func (s *Service) ListAvailableProviders(ctx context.Context) []ProviderStatus {
	statuses := make([]ProviderStatus, 0, len(s.providers))
	for _, name := range s.Names() {
		display := displayNames[name]
		if display == "" {
			display = name
		}
		status := ProviderStatus{
			Name:        name,
			DisplayName: display,
			Available:   s.providers[name].CheckConnection(ctx),
		}
		if status.Available {
			models := s.providers[name].ListModels(ctx)
			status.ModelsCount = len(models)
			if len(models) > 0 {
				status.DefaultModel = models[0].Name
			}
		}
		statuses = append(statuses, status)
	}
	return statuses
}

// ListModels lists the models of the named provider. An unreachable provider
// or an empty catalogue is substituted with the fallback catalogue when the
// fallback cascade is enabled.
func (s *Service) ListModels(ctx context.Context, provider string) ([]core.ModelInfo, error) {
	p, name, err := s.resolve(provider)
	if err != nil {
		return nil, err
	}

	if !p.CheckConnection(ctx) {
		slog.Warn("provider not available", "provider", name)
		if fb, ok := s.fallback(); ok {
			return fb.ListModels(ctx), nil
		}
		return []core.ModelInfo{}, nil
	}

	models := p.ListModels(ctx)
	if len(models) == 0 {
		slog.Warn("no models found for provider", "provider", name)
		if fb, ok := s.fallback(); ok {
			return fb.ListModels(ctx), nil
		}
		return []core.ModelInfo{}, nil
	}
	return models, nil
}

// Complete generates one completion through the named provider, cascading to
// the fallback provider if the backend is unreachable. Provider failures come
// back as data, not as errors.
func (s *Service) Complete(ctx context.Context, provider string, req *core.CompletionRequest) (string, error) {
	p, name, err := s.resolve(provider)
	if err != nil {
		return "", err
	}

	if !p.CheckConnection(ctx) {
		slog.Warn("provider not available", "provider", name)
		if fb, ok := s.fallback(); ok {
			return fb.Complete(ctx, req), nil
		}
		return fmt.Sprintf("Error: Provider '%s' is not available and fallback is disabled.", name), nil
	}

	return p.Complete(ctx, req), nil
}

// Stream opens an event stream through the named provider, with the same
// fallback cascade as Complete.
func (s *Service) Stream(ctx context.Context, provider string, req *core.CompletionRequest) (<-chan core.CompletionEvent, error) {
	p, name, err := s.resolve(provider)
	if err != nil {
		return nil, err
	}

	if !p.CheckConnection(ctx) {
		slog.Warn("provider not available", "provider", name)
		if fb, ok := s.fallback(); ok {
			return fb.StreamCompletion(ctx, req), nil
		}
		ch := make(chan core.CompletionEvent, 1)
		ch <- core.CompletionEvent{
			Model: req.Model,
			Error: fmt.Sprintf("Provider '%s' is not available and fallback is disabled.", name),
		}
		close(ch)
		return ch, nil
	}

	return p.StreamCompletion(ctx, req), nil
}
