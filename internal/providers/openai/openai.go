// Package openai provides the OpenAI chat completions integration.
package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"opsgate/internal/core"
	"opsgate/internal/pkg/httpclient"
	"opsgate/internal/providers"
)

const defaultBaseURL = "https://api.openai.com/v1"

func init() {
	providers.Register(providers.NameOpenAI, func(cfg providers.Config) core.Provider {
		p := New(cfg.APIKey)
		if cfg.BaseURL != "" {
			p.baseURL = cfg.BaseURL
		}
		return p
	})
}

// Provider implements the core.Provider interface for OpenAI
type Provider struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
}

// New creates a new OpenAI provider
func New(apiKey string) *Provider {
	if apiKey == "" {
		slog.Warn("openai api key not provided, provider will not function")
	}
	return &Provider{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: httpclient.NewDefault(),
	}
}

// NewWithHTTPClient creates a new OpenAI provider with a custom HTTP client
func NewWithHTTPClient(apiKey, baseURL string, client *http.Client) *Provider {
	p := New(apiKey)
	if baseURL != "" {
		p.baseURL = baseURL
	}
	if client != nil {
		p.httpClient = client
	}
	return p
}

// Descriptor returns the provider's static capability descriptor
func (p *Provider) Descriptor() core.ProviderDescriptor {
	return core.ProviderDescriptor{
		Name:                    providers.NameOpenAI,
		RequiresCredential:      true,
		SupportsNativeStreaming: true,
	}
}

func (p *Provider) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")
}

// CheckConnection verifies the API key against the models endpoint
func (p *Provider) CheckConnection(ctx context.Context) bool {
	if p.apiKey == "" {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, providers.ProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/models", nil)
	if err != nil {
		return false
	}
	p.setHeaders(req)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		slog.Error("error connecting to openai", "error", err)
		return false
	}
	defer func() {
		_ = resp.Body.Close() //nolint:errcheck
	}()

	return resp.StatusCode == http.StatusOK
}

// ListModels returns the GPT chat models available to the account
func (p *Provider) ListModels(ctx context.Context) []core.ModelInfo {
	if p.apiKey == "" {
		slog.Warn("openai api key not provided, cannot list models")
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, providers.ListTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/models", nil)
	if err != nil {
		return nil
	}
	p.setHeaders(req)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		slog.Error("error listing openai models", "error", err)
		return nil
	}
	defer func() {
		_ = resp.Body.Close() //nolint:errcheck
	}()

	if resp.StatusCode != http.StatusOK {
		slog.Warn("error fetching models from openai", "status", resp.StatusCode)
		return nil
	}

	body, _ := io.ReadAll(resp.Body) //nolint:errcheck
	var models []core.ModelInfo
	for _, m := range gjson.GetBytes(body, "data").Array() {
		id := m.Get("id").String()
		// only chat-capable GPT models are useful here
		if !strings.Contains(strings.ToLower(id), "gpt") {
			continue
		}
		models = append(models, core.ModelInfo{
			Name:        id,
			Description: m.Get("owned_by").String(),
		})
	}
	return models
}

// chatRequest is the OpenAI /chat/completions request body
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func buildBody(req *core.CompletionRequest, stream bool) ([]byte, error) {
	return json.Marshal(chatRequest{
		Model:       req.Model,
		Messages:    []chatMessage{{Role: "user", Content: req.Prompt}},
		Temperature: req.Temperature,
		Stream:      stream,
	})
}

// Complete issues one non-streaming chat completion
func (p *Provider) Complete(ctx context.Context, req *core.CompletionRequest) string {
	if p.apiKey == "" {
		return "Error: OpenAI API key not provided"
	}

	ctx, cancel := context.WithTimeout(ctx, providers.GenerateTimeout)
	defer cancel()

	body, err := buildBody(req, false)
	if err != nil {
		return "Error: " + err.Error()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "Error: " + err.Error()
	}
	p.setHeaders(httpReq)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		slog.Error("error generating completion from openai", "error", err)
		return "Error: " + err.Error()
	}
	defer func() {
		_ = resp.Body.Close() //nolint:errcheck
	}()

	if resp.StatusCode != http.StatusOK {
		slog.Warn("error generating completion from openai", "status", resp.StatusCode)
		return ""
	}

	respBody, _ := io.ReadAll(resp.Body) //nolint:errcheck
	if !gjson.ValidBytes(respBody) {
		return "Error: invalid JSON in response"
	}
	return gjson.GetBytes(respBody, "choices.0.message.content").String()
}

// StreamCompletion normalizes the server-sent event stream into canonical
// events. Each "data: " line carries a delta; "[DONE]" terminates the stream.
func (p *Provider) StreamCompletion(ctx context.Context, req *core.CompletionRequest) <-chan core.CompletionEvent {
	ch := make(chan core.CompletionEvent)

	go func() {
		defer close(ch)

		if p.apiKey == "" {
			providers.EmitError(ctx, ch, req.Model, "OpenAI API key not provided")
			return
		}

		body, err := buildBody(req, true)
		if err != nil {
			providers.EmitError(ctx, ch, req.Model, err.Error())
			return
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			providers.EmitError(ctx, ch, req.Model, err.Error())
			return
		}
		p.setHeaders(httpReq)

		resp, err := p.httpClient.Do(httpReq)
		if err != nil {
			slog.Error("error streaming completion from openai", "error", err)
			providers.EmitError(ctx, ch, req.Model, err.Error())
			return
		}
		defer func() {
			_ = resp.Body.Close() //nolint:errcheck
		}()

		if resp.StatusCode != http.StatusOK {
			slog.Warn("error streaming completion from openai", "status", resp.StatusCode)
			providers.EmitError(ctx, ch, req.Model, "failed to connect to OpenAI API")
			return
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			payload := strings.TrimPrefix(line, "data: ")

			if payload == "[DONE]" {
				providers.EmitDone(ctx, ch, req.Model)
				return
			}

			if !gjson.Valid(payload) {
				if !providers.EmitError(ctx, ch, req.Model, "invalid JSON in stream") {
					return
				}
				continue
			}

			delta := gjson.Get(payload, "choices.0.delta.content")
			if !delta.Exists() {
				continue
			}
			if !providers.Emit(ctx, ch, core.CompletionEvent{Model: req.Model, Response: delta.String()}) {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			providers.EmitError(ctx, ch, req.Model, err.Error())
			return
		}
		// stream ended without [DONE]; close it out ourselves
		providers.EmitDone(ctx, ch, req.Model)
	}()

	return ch
}
