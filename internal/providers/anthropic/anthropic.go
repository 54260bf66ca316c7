// Package anthropic provides the Anthropic messages API integration.
package anthropic

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

const (
	defaultBaseURL = "https://api.anthropic.com/v1"
	apiVersion     = "2023-06-01"
	probeModel     = "claude-3-sonnet-20240229"
	maxTokens      = 4000
)

func init() {
	providers.Register(providers.NameAnthropic, func(cfg providers.Config) core.Provider {
		p := New(cfg.APIKey)
		if cfg.BaseURL != "" {
			p.baseURL = cfg.BaseURL
		}
		return p
	})
}

// Provider implements the core.Provider interface for Anthropic
type Provider struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
}

// New creates a new Anthropic provider
func New(apiKey string) *Provider {
	if apiKey == "" {
		slog.Warn("anthropic api key not provided, provider will not function")
	}
	return &Provider{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: httpclient.NewDefault(),
	}
}

// NewWithHTTPClient creates a new Anthropic provider with a custom HTTP client
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
		Name:                    providers.NameAnthropic,
		RequiresCredential:      true,
		SupportsNativeStreaming: true,
	}
}

func (p *Provider) setHeaders(req *http.Request) {
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", apiVersion)
	req.Header.Set("Content-Type", "application/json")
}

// CheckConnection probes the API with a minimal message. There is no
// dedicated liveness endpoint, so a tiny completion doubles as one.
func (p *Provider) CheckConnection(ctx context.Context) bool {
	if p.apiKey == "" {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, providers.ProbeTimeout)
	defer cancel()

	body, err := json.Marshal(messagesRequest{
		Model:     probeModel,
		MaxTokens: 10,
		Messages:  []message{{Role: "user", Content: "hello"}},
	})
	if err != nil {
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return false
	}
	p.setHeaders(req)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		slog.Error("error connecting to anthropic", "error", err)
		return false
	}
	defer func() {
		_ = resp.Body.Close() //nolint:errcheck
	}()

	return resp.StatusCode == http.StatusOK
}

// ListModels returns the fixed model catalogue. Anthropic has no public
// model listing endpoint.
func (p *Provider) ListModels(ctx context.Context) []core.ModelInfo {
	if p.apiKey == "" {
		slog.Warn("anthropic api key not provided, cannot list models")
		return nil
	}

	return []core.ModelInfo{
		{Name: "claude-3-opus-20240229", Description: "Claude 3 Opus - Most powerful Claude model"},
		{Name: "claude-3-sonnet-20240229", Description: "Claude 3 Sonnet - Balanced performance and cost"},
		{Name: "claude-3-haiku-20240307", Description: "Claude 3 Haiku - Fastest Claude model"},
		{Name: "claude-2.1", Description: "Claude 2.1 - Legacy model"},
	}
}

// messagesRequest is the Anthropic /messages request body
type messagesRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature,omitempty"`
	Stream      bool      `json:"stream,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func buildBody(req *core.CompletionRequest, stream bool) ([]byte, error) {
	return json.Marshal(messagesRequest{
		Model:       req.Model,
		Messages:    []message{{Role: "user", Content: req.Prompt}},
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
		Stream:      stream,
	})
}

// Complete issues one non-streaming message call
func (p *Provider) Complete(ctx context.Context, req *core.CompletionRequest) string {
	if p.apiKey == "" {
		return "Error: Anthropic API key not provided"
	}

	ctx, cancel := context.WithTimeout(ctx, providers.GenerateTimeout)
	defer cancel()

	body, err := buildBody(req, false)
	if err != nil {
		return "Error: " + err.Error()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return "Error: " + err.Error()
	}
	p.setHeaders(httpReq)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		slog.Error("error generating completion from anthropic", "error", err)
		return "Error: " + err.Error()
	}
	defer func() {
		_ = resp.Body.Close() //nolint:errcheck
	}()

	if resp.StatusCode != http.StatusOK {
		slog.Warn("error generating completion from anthropic", "status", resp.StatusCode)
		return ""
	}

	respBody, _ := io.ReadAll(resp.Body) //nolint:errcheck
	if !gjson.ValidBytes(respBody) {
		return "Error: invalid JSON in response"
	}
	return gjson.GetBytes(respBody, "content.0.text").String()
}

// StreamCompletion normalizes Anthropic's event stream. The stream ends on a
// "[DONE]" marker or a message_stop event, whichever arrives first.
func (p *Provider) StreamCompletion(ctx context.Context, req *core.CompletionRequest) <-chan core.CompletionEvent {
	ch := make(chan core.CompletionEvent)

	go func() {
		defer close(ch)

		if p.apiKey == "" {
			providers.EmitError(ctx, ch, req.Model, "Anthropic API key not provided")
			return
		}

		body, err := buildBody(req, true)
		if err != nil {
			providers.EmitError(ctx, ch, req.Model, err.Error())
			return
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/messages", bytes.NewReader(body))
		if err != nil {
			providers.EmitError(ctx, ch, req.Model, err.Error())
			return
		}
		p.setHeaders(httpReq)

		resp, err := p.httpClient.Do(httpReq)
		if err != nil {
			slog.Error("error streaming completion from anthropic", "error", err)
			providers.EmitError(ctx, ch, req.Model, err.Error())
			return
		}
		defer func() {
			_ = resp.Body.Close() //nolint:errcheck
		}()

		if resp.StatusCode != http.StatusOK {
			slog.Warn("error streaming completion from anthropic", "status", resp.StatusCode)
			providers.EmitError(ctx, ch, req.Model, "failed to connect to Anthropic API")
			return
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))

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

			if text := gjson.Get(payload, "content.0.text"); text.Exists() {
				if !providers.Emit(ctx, ch, core.CompletionEvent{Model: req.Model, Response: text.String()}) {
					return
				}
			}

			if gjson.Get(payload, "type").String() == "message_stop" {
				providers.EmitDone(ctx, ch, req.Model)
				return
			}
		}
		if err := scanner.Err(); err != nil {
			providers.EmitError(ctx, ch, req.Model, err.Error())
			return
		}
		// stream ended without a terminal marker; close it out ourselves
		providers.EmitDone(ctx, ch, req.Model)
	}()

	return ch
}
