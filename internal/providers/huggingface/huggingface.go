// Package huggingface provides the Hugging Face Inference API integration.
// The inference endpoint has no token-level streaming, so streamed calls are
// emulated by re-chunking a buffered response.
package huggingface

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"opsgate/internal/core"
	"opsgate/internal/pkg/httpclient"
	"opsgate/internal/providers"
)

const (
	defaultBaseURL = "https://api-inference.huggingface.co/models"
	probeModel     = "mistralai/Mistral-7B-Instruct-v0.2"

	// pacing between emulated stream chunks
	chunkDelay = 50 * time.Millisecond
)

func init() {
	providers.Register(providers.NameHuggingFace, func(cfg providers.Config) core.Provider {
		p := New(cfg.APIKey)
		if cfg.BaseURL != "" {
			p.baseURL = cfg.BaseURL
		}
		return p
	})
}

// Provider implements the core.Provider interface for Hugging Face
type Provider struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	chunkDelay time.Duration
}

// New creates a new Hugging Face provider
func New(apiKey string) *Provider {
	if apiKey == "" {
		slog.Warn("hugging face api key not provided, provider will not function")
	}
	return &Provider{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: httpclient.NewDefault(),
		chunkDelay: chunkDelay,
	}
}

// NewWithHTTPClient creates a new Hugging Face provider with a custom HTTP client
func NewWithHTTPClient(apiKey, baseURL string, client *http.Client) *Provider {
	p := New(apiKey)
	if baseURL != "" {
		p.baseURL = baseURL
	}
	if client != nil {
		p.httpClient = client
	}
	// tests should not wait out the emulation pacing
	p.chunkDelay = 0
	return p
}

// Descriptor returns the provider's static capability descriptor
func (p *Provider) Descriptor() core.ProviderDescriptor {
	return core.ProviderDescriptor{
		Name:                    providers.NameHuggingFace,
		RequiresCredential:      true,
		SupportsNativeStreaming: false,
	}
}

// CheckConnection probes the default instruct model endpoint
func (p *Provider) CheckConnection(ctx context.Context) bool {
	if p.apiKey == "" {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, providers.ProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/"+probeModel, nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		slog.Error("error connecting to hugging face", "error", err)
		return false
	}
	defer func() {
		_ = resp.Body.Close() //nolint:errcheck
	}()

	return resp.StatusCode == http.StatusOK
}

// ListModels returns a curated set of popular instruct models. The hub hosts
// far too many models to enumerate.
func (p *Provider) ListModels(ctx context.Context) []core.ModelInfo {
	return []core.ModelInfo{
		{Name: "mistralai/Mistral-7B-Instruct-v0.2", Description: "Mistral 7B Instruct"},
		{Name: "meta-llama/Llama-2-7b-chat-hf", Description: "Meta Llama 2 7B Chat"},
		{Name: "tiiuae/falcon-7b-instruct", Description: "Falcon 7B Instruct"},
		{Name: "codellama/CodeLlama-7b-instruct-hf", Description: "CodeLlama 7B Instruct"},
		{Name: "google/gemma-7b-it", Description: "Google Gemma 7B Instruct"},
	}
}

// inferenceRequest is the Inference API request body. The prompt is wrapped
// in the instruction format most instruct models expect.
type inferenceRequest struct {
	Inputs     string              `json:"inputs"`
	Parameters inferenceParameters `json:"parameters"`
}

type inferenceParameters struct {
	Temperature    float64 `json:"temperature"`
	MaxNewTokens   int     `json:"max_new_tokens"`
	ReturnFullText bool    `json:"return_full_text"`
}

// generate runs one buffered inference call and returns the generated text
func (p *Provider) generate(ctx context.Context, req *core.CompletionRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, providers.LongGenerateTimeout)
	defer cancel()

	body, err := json.Marshal(inferenceRequest{
		Inputs: "<s>[INST] " + req.Prompt + " [/INST]",
		Parameters: inferenceParameters{
			Temperature:    req.Temperature,
			MaxNewTokens:   1024,
			ReturnFullText: false,
		},
	})
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/"+req.Model, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = resp.Body.Close() //nolint:errcheck
	}()

	if resp.StatusCode != http.StatusOK {
		slog.Warn("error generating completion from hugging face", "status", resp.StatusCode)
		return "", nil
	}

	respBody, _ := io.ReadAll(resp.Body) //nolint:errcheck
	if !gjson.ValidBytes(respBody) {
		return "Error: invalid JSON in response", nil
	}
	return gjson.GetBytes(respBody, "0.generated_text").String(), nil
}

// Complete issues one buffered inference call
func (p *Provider) Complete(ctx context.Context, req *core.CompletionRequest) string {
	if p.apiKey == "" {
		return "Error: Hugging Face API key not provided"
	}

	text, err := p.generate(ctx, req)
	if err != nil {
		slog.Error("error generating completion from hugging face", "error", err)
		return "Error: " + err.Error()
	}
	return text
}

// StreamCompletion emulates streaming: the full response is fetched first,
// then replayed in paced chunks.
func (p *Provider) StreamCompletion(ctx context.Context, req *core.CompletionRequest) <-chan core.CompletionEvent {
	ch := make(chan core.CompletionEvent)

	go func() {
		defer close(ch)

		if p.apiKey == "" {
			providers.EmitError(ctx, ch, req.Model, "Hugging Face API key not provided")
			return
		}

		slog.Info("sending request to hugging face", "model", req.Model)
		text, err := p.generate(ctx, req)
		if err != nil {
			providers.EmitError(ctx, ch, req.Model, err.Error())
			return
		}
		if text == "" {
			providers.EmitError(ctx, ch, req.Model, "failed to connect to Hugging Face API")
			return
		}

		chunks := providers.Chunks(text)
		for i, chunk := range chunks {
			ev := core.CompletionEvent{
				Model:    req.Model,
				Response: chunk,
				Done:     i == len(chunks)-1,
			}
			if !providers.Emit(ctx, ch, ev) {
				return
			}
			if ev.Done {
				return
			}
			select {
			case <-time.After(p.chunkDelay):
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch
}
