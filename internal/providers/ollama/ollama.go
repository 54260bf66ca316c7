// Package ollama provides the local Ollama model server integration.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/tidwall/gjson"

	"opsgate/internal/core"
	"opsgate/internal/pkg/httpclient"
	"opsgate/internal/prompts"
	"opsgate/internal/providers"
)

const defaultBaseURL = "http://localhost:11434"

func init() {
	providers.Register(providers.NameOllama, func(cfg providers.Config) core.Provider {
		return New(cfg.BaseURL)
	})
}

// Provider implements the core.Provider interface for a local Ollama server
type Provider struct {
	httpClient *http.Client
	baseURL    string
}

// New creates a new Ollama provider. An empty baseURL selects the default
// local endpoint.
func New(baseURL string) *Provider {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Provider{
		baseURL:    baseURL,
		httpClient: httpclient.NewDefault(),
	}
}

// NewWithHTTPClient creates a new Ollama provider with a custom HTTP client
func NewWithHTTPClient(baseURL string, client *http.Client) *Provider {
	p := New(baseURL)
	if client != nil {
		p.httpClient = client
	}
	return p
}

// SetBaseURL allows configuring a custom base URL for the provider
func (p *Provider) SetBaseURL(url string) {
	p.baseURL = url
}

// Descriptor returns the provider's static capability descriptor
func (p *Provider) Descriptor() core.ProviderDescriptor {
	return core.ProviderDescriptor{
		Name:                    providers.NameOllama,
		RequiresCredential:      false,
		SupportsNativeStreaming: true,
	}
}

// CheckConnection verifies that the local server is running and accessible
func (p *Provider) CheckConnection(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, providers.ProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		slog.Error("error connecting to ollama", "error", err)
		return false
	}
	defer func() {
		_ = resp.Body.Close() //nolint:errcheck
	}()

	return resp.StatusCode == http.StatusOK
}

// ListModels retrieves the list of locally installed models
func (p *Provider) ListModels(ctx context.Context) []core.ModelInfo {
	ctx, cancel := context.WithTimeout(ctx, providers.ListTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/tags", nil)
	if err != nil {
		return nil
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		slog.Error("error listing ollama models", "error", err)
		return nil
	}
	defer func() {
		_ = resp.Body.Close() //nolint:errcheck
	}()

	if resp.StatusCode != http.StatusOK {
		slog.Warn("error fetching models from ollama", "status", resp.StatusCode)
		return nil
	}

	body := readBody(resp)
	var models []core.ModelInfo
	for _, m := range gjson.GetBytes(body, "models").Array() {
		models = append(models, core.ModelInfo{
			Name:        m.Get("name").String(),
			Description: m.Get("details.family").String(),
		})
	}
	return models
}

// generateRequest is the Ollama /api/generate request body
type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	System      string  `json:"system,omitempty"`
}

func (p *Provider) buildBody(req *core.CompletionRequest, stream bool) ([]byte, error) {
	// A topic-specific system prompt steers the local model per request
	return json.Marshal(generateRequest{
		Model:  req.Model,
		Prompt: req.Prompt,
		Stream: stream,
		Options: generateOptions{
			Temperature: req.Temperature,
			System:      prompts.Specialized(req.Prompt),
		},
	})
}

// Complete issues one non-streaming generation call
func (p *Provider) Complete(ctx context.Context, req *core.CompletionRequest) string {
	ctx, cancel := context.WithTimeout(ctx, providers.GenerateTimeout)
	defer cancel()

	body, err := p.buildBody(req, false)
	if err != nil {
		return "Error: " + err.Error()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "Error: " + err.Error()
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		slog.Error("error generating completion from ollama", "error", err)
		return "Error: " + err.Error()
	}
	defer func() {
		_ = resp.Body.Close() //nolint:errcheck
	}()

	if resp.StatusCode != http.StatusOK {
		slog.Warn("error generating completion from ollama", "status", resp.StatusCode)
		return ""
	}

	respBody := readBody(resp)
	if !gjson.ValidBytes(respBody) {
		return "Error: invalid JSON in response"
	}
	return gjson.GetBytes(respBody, "response").String()
}

// StreamCompletion streams newline-delimited JSON objects from the local
// server and normalizes each one into a canonical event. The final object
// carries done=true and terminates the stream.
func (p *Provider) StreamCompletion(ctx context.Context, req *core.CompletionRequest) <-chan core.CompletionEvent {
	ch := make(chan core.CompletionEvent)

	go func() {
		defer close(ch)

		body, err := p.buildBody(req, true)
		if err != nil {
			providers.EmitError(ctx, ch, req.Model, err.Error())
			return
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/generate", bytes.NewReader(body))
		if err != nil {
			providers.EmitError(ctx, ch, req.Model, err.Error())
			return
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := p.httpClient.Do(httpReq)
		if err != nil {
			slog.Error("error streaming completion from ollama", "error", err)
			providers.EmitError(ctx, ch, req.Model, err.Error())
			return
		}
		defer func() {
			_ = resp.Body.Close() //nolint:errcheck
		}()

		if resp.StatusCode != http.StatusOK {
			slog.Warn("error streaming completion from ollama", "status", resp.StatusCode)
			providers.EmitError(ctx, ch, req.Model, "failed to connect to Ollama API")
			return
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}

			if !gjson.ValidBytes(line) {
				if !providers.EmitError(ctx, ch, req.Model, "invalid JSON in response") {
					return
				}
				continue
			}

			ev := core.CompletionEvent{
				Model:    req.Model,
				Response: gjson.GetBytes(line, "response").String(),
				Done:     gjson.GetBytes(line, "done").Bool(),
			}
			if !providers.Emit(ctx, ch, ev) {
				return
			}
			if ev.Done {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			providers.EmitError(ctx, ch, req.Model, err.Error())
			return
		}
		// stream ended without a terminal object; close it out ourselves
		providers.EmitDone(ctx, ch, req.Model)
	}()

	return ch
}

func readBody(resp *http.Response) []byte {
	buf := new(bytes.Buffer)
	_, _ = buf.ReadFrom(resp.Body) //nolint:errcheck
	return buf.Bytes()
}
