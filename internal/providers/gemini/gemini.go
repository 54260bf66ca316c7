// Package gemini provides the Google Gemini generative language integration.
package gemini

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

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1"

func init() {
	providers.Register(providers.NameGemini, func(cfg providers.Config) core.Provider {
		p := New(cfg.APIKey)
		if cfg.BaseURL != "" {
			p.baseURL = cfg.BaseURL
		}
		return p
	})
}

// Provider implements the core.Provider interface for Google Gemini.
// The credential travels as a query parameter, not a header.
type Provider struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
}

// New creates a new Gemini provider
func New(apiKey string) *Provider {
	if apiKey == "" {
		slog.Warn("gemini api key not provided, provider will not function")
	}
	return &Provider{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: httpclient.NewDefault(),
	}
}

// NewWithHTTPClient creates a new Gemini provider with a custom HTTP client
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
		Name:                    providers.NameGemini,
		RequiresCredential:      true,
		SupportsNativeStreaming: true,
	}
}

func (p *Provider) withKey(path string) string {
	return p.baseURL + path + "?key=" + p.apiKey
}

// CheckConnection verifies the API key against the models endpoint
func (p *Provider) CheckConnection(ctx context.Context) bool {
	if p.apiKey == "" {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, providers.ProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.withKey("/models"), nil)
	if err != nil {
		return false
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		slog.Error("error connecting to gemini", "error", err)
		return false
	}
	defer func() {
		_ = resp.Body.Close() //nolint:errcheck
	}()

	return resp.StatusCode == http.StatusOK
}

// ListModels returns the Gemini model family. Model names come back as full
// resource paths; only the last path segment is kept.
func (p *Provider) ListModels(ctx context.Context) []core.ModelInfo {
	if p.apiKey == "" {
		slog.Warn("gemini api key not provided, cannot list models")
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, providers.ListTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.withKey("/models"), nil)
	if err != nil {
		return nil
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		slog.Error("error listing gemini models", "error", err)
		return nil
	}
	defer func() {
		_ = resp.Body.Close() //nolint:errcheck
	}()

	if resp.StatusCode != http.StatusOK {
		slog.Warn("error fetching models from gemini", "status", resp.StatusCode)
		return nil
	}

	body, _ := io.ReadAll(resp.Body) //nolint:errcheck
	var models []core.ModelInfo
	for _, m := range gjson.GetBytes(body, "models").Array() {
		full := m.Get("name").String()
		if !strings.Contains(strings.ToLower(full), "gemini") {
			continue
		}
		name := full
		if idx := strings.LastIndex(full, "/"); idx >= 0 {
			name = full[idx+1:]
		}
		desc := m.Get("displayName").String()
		if desc == "" {
			desc = full
		}
		models = append(models, core.ModelInfo{Name: name, Description: desc})
	}
	return models
}

// generateBody is the generateContent request body
type generateBody struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature float64 `json:"temperature"`
}

func buildBody(req *core.CompletionRequest) ([]byte, error) {
	return json.Marshal(generateBody{
		Contents:         []content{{Parts: []part{{Text: req.Prompt}}}},
		GenerationConfig: generationConfig{Temperature: req.Temperature},
	})
}

// Complete issues one non-streaming generateContent call
func (p *Provider) Complete(ctx context.Context, req *core.CompletionRequest) string {
	if p.apiKey == "" {
		return "Error: Google Gemini API key not provided"
	}

	ctx, cancel := context.WithTimeout(ctx, providers.GenerateTimeout)
	defer cancel()

	body, err := buildBody(req)
	if err != nil {
		return "Error: " + err.Error()
	}

	url := p.withKey("/models/" + req.Model + ":generateContent")
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "Error: " + err.Error()
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		slog.Error("error generating completion from gemini", "error", err)
		return "Error: " + err.Error()
	}
	defer func() {
		_ = resp.Body.Close() //nolint:errcheck
	}()

	if resp.StatusCode != http.StatusOK {
		slog.Warn("error generating completion from gemini", "status", resp.StatusCode)
		return ""
	}

	respBody, _ := io.ReadAll(resp.Body) //nolint:errcheck
	if !gjson.ValidBytes(respBody) {
		return "Error: invalid JSON in response"
	}
	return gjson.GetBytes(respBody, "candidates.0.content.parts.0.text").String()
}

// StreamCompletion normalizes the streamGenerateContent SSE stream
func (p *Provider) StreamCompletion(ctx context.Context, req *core.CompletionRequest) <-chan core.CompletionEvent {
	ch := make(chan core.CompletionEvent)

	go func() {
		defer close(ch)

		if p.apiKey == "" {
			providers.EmitError(ctx, ch, req.Model, "Google Gemini API key not provided")
			return
		}

		body, err := buildBody(req)
		if err != nil {
			providers.EmitError(ctx, ch, req.Model, err.Error())
			return
		}

		url := p.withKey("/models/" + req.Model + ":streamGenerateContent")
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			providers.EmitError(ctx, ch, req.Model, err.Error())
			return
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := p.httpClient.Do(httpReq)
		if err != nil {
			slog.Error("error streaming completion from gemini", "error", err)
			providers.EmitError(ctx, ch, req.Model, err.Error())
			return
		}
		defer func() {
			_ = resp.Body.Close() //nolint:errcheck
		}()

		if resp.StatusCode != http.StatusOK {
			slog.Warn("error streaming completion from gemini", "status", resp.StatusCode)
			providers.EmitError(ctx, ch, req.Model, "failed to connect to Google Gemini API")
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

			if text := gjson.Get(payload, "candidates.0.content.parts.0.text"); text.Exists() {
				if !providers.Emit(ctx, ch, core.CompletionEvent{Model: req.Model, Response: text.String()}) {
					return
				}
			}
		}
		if err := scanner.Err(); err != nil {
			providers.EmitError(ctx, ch, req.Model, err.Error())
			return
		}
		// some transports end the stream without an explicit marker
		providers.EmitDone(ctx, ch, req.Model)
	}()

	return ch
}
