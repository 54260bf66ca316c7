// Package azure provides the Azure OpenAI Service integration. Unlike the
// OpenAI variant it addresses account-scoped deployments, not global models.
package azure

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

const defaultAPIVersion = "2023-07-01-preview"

func init() {
	providers.Register(providers.NameAzureOpenAI, func(cfg providers.Config) core.Provider {
		return New(cfg.APIKey, cfg.Endpoint, cfg.APIVersion)
	})
}

// Provider implements the core.Provider interface for Azure OpenAI
type Provider struct {
	httpClient *http.Client
	apiKey     string
	endpoint   string
	apiVersion string
}

// New creates a new Azure OpenAI provider. Both the key and the
// account endpoint are required for the provider to function.
func New(apiKey, endpoint, apiVersion string) *Provider {
	if apiVersion == "" {
		apiVersion = defaultAPIVersion
	}
	if apiKey == "" || endpoint == "" {
		slog.Warn("azure openai credentials not provided, provider will not function")
	}
	return &Provider{
		apiKey:     apiKey,
		endpoint:   strings.TrimSuffix(endpoint, "/"),
		apiVersion: apiVersion,
		httpClient: httpclient.NewDefault(),
	}
}

// NewWithHTTPClient creates a new Azure OpenAI provider with a custom HTTP client
func NewWithHTTPClient(apiKey, endpoint, apiVersion string, client *http.Client) *Provider {
	p := New(apiKey, endpoint, apiVersion)
	if client != nil {
		p.httpClient = client
	}
	return p
}

// Descriptor returns the provider's static capability descriptor
func (p *Provider) Descriptor() core.ProviderDescriptor {
	return core.ProviderDescriptor{
		Name:                    providers.NameAzureOpenAI,
		RequiresCredential:      true,
		SupportsNativeStreaming: true,
	}
}

func (p *Provider) configured() bool {
	return p.apiKey != "" && p.endpoint != ""
}

func (p *Provider) setHeaders(req *http.Request) {
	req.Header.Set("api-key", p.apiKey)
	req.Header.Set("Content-Type", "application/json")
}

func (p *Provider) deploymentsURL() string {
	return p.endpoint + "/openai/deployments?api-version=" + p.apiVersion
}

func (p *Provider) chatURL(deployment string) string {
	return p.endpoint + "/openai/deployments/" + deployment + "/chat/completions?api-version=" + p.apiVersion
}

// CheckConnection verifies the credentials against the deployments endpoint
func (p *Provider) CheckConnection(ctx context.Context) bool {
	if !p.configured() {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, providers.ProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.deploymentsURL(), nil)
	if err != nil {
		return false
	}
	p.setHeaders(req)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		slog.Error("error connecting to azure openai", "error", err)
		return false
	}
	defer func() {
		_ = resp.Body.Close() //nolint:errcheck
	}()

	return resp.StatusCode == http.StatusOK
}

// ListModels returns the account's deployments. The deployment id is the
// value callers pass as the model name.
func (p *Provider) ListModels(ctx context.Context) []core.ModelInfo {
	if !p.configured() {
		slog.Warn("azure openai credentials not provided, cannot list models")
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, providers.ListTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.deploymentsURL(), nil)
	if err != nil {
		return nil
	}
	p.setHeaders(req)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		slog.Error("error listing azure openai deployments", "error", err)
		return nil
	}
	defer func() {
		_ = resp.Body.Close() //nolint:errcheck
	}()

	if resp.StatusCode != http.StatusOK {
		slog.Warn("error fetching deployments from azure openai", "status", resp.StatusCode)
		return nil
	}

	body, _ := io.ReadAll(resp.Body) //nolint:errcheck
	var models []core.ModelInfo
	for _, d := range gjson.GetBytes(body, "data").Array() {
		model := d.Get("model").String()
		if model == "" {
			model = "Unknown"
		}
		models = append(models, core.ModelInfo{
			Name:        d.Get("id").String(),
			Description: "Model: " + model,
		})
	}
	return models
}

// chatRequest is the chat completions request body. The deployment is
// addressed through the URL, so the body carries no model field.
type chatRequest struct {
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
		Messages:    []chatMessage{{Role: "user", Content: req.Prompt}},
		Temperature: req.Temperature,
		Stream:      stream,
	})
}

// Complete issues one non-streaming chat completion against a deployment
func (p *Provider) Complete(ctx context.Context, req *core.CompletionRequest) string {
	if !p.configured() {
		return "Error: Azure OpenAI credentials not provided"
	}

	ctx, cancel := context.WithTimeout(ctx, providers.GenerateTimeout)
	defer cancel()

	body, err := buildBody(req, false)
	if err != nil {
		return "Error: " + err.Error()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.chatURL(req.Model), bytes.NewReader(body))
	if err != nil {
		return "Error: " + err.Error()
	}
	p.setHeaders(httpReq)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		slog.Error("error generating completion from azure openai", "error", err)
		return "Error: " + err.Error()
	}
	defer func() {
		_ = resp.Body.Close() //nolint:errcheck
	}()

	if resp.StatusCode != http.StatusOK {
		slog.Warn("error generating completion from azure openai", "status", resp.StatusCode)
		return ""
	}

	respBody, _ := io.ReadAll(resp.Body) //nolint:errcheck
	if !gjson.ValidBytes(respBody) {
		return "Error: invalid JSON in response"
	}
	return gjson.GetBytes(respBody, "choices.0.message.content").String()
}

// StreamCompletion normalizes the deployment's server-sent event stream
func (p *Provider) StreamCompletion(ctx context.Context, req *core.CompletionRequest) <-chan core.CompletionEvent {
	ch := make(chan core.CompletionEvent)

	go func() {
		defer close(ch)

		if !p.configured() {
			providers.EmitError(ctx, ch, req.Model, "Azure OpenAI credentials not provided")
			return
		}

		body, err := buildBody(req, true)
		if err != nil {
			providers.EmitError(ctx, ch, req.Model, err.Error())
			return
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.chatURL(req.Model), bytes.NewReader(body))
		if err != nil {
			providers.EmitError(ctx, ch, req.Model, err.Error())
			return
		}
		p.setHeaders(httpReq)

		resp, err := p.httpClient.Do(httpReq)
		if err != nil {
			slog.Error("error streaming completion from azure openai", "error", err)
			providers.EmitError(ctx, ch, req.Model, err.Error())
			return
		}
		defer func() {
			_ = resp.Body.Close() //nolint:errcheck
		}()

		if resp.StatusCode != http.StatusOK {
			slog.Warn("error streaming completion from azure openai", "status", resp.StatusCode)
			providers.EmitError(ctx, ch, req.Model, "failed to connect to Azure OpenAI API")
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
