// Package server provides HTTP handlers and server setup for the AI gateway.
package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/tidwall/gjson"

	"opsgate/internal/core"
	"opsgate/internal/gateway"
	"opsgate/internal/store"
	"opsgate/internal/team"
)

const (
	defaultModel       = "llama3"
	defaultTemperature = 0.7

	// Config generation runs cooler than chat so the output stays literal
	configTemperature = 0.3
)

// Handler holds the HTTP handlers
type Handler struct {
	gateway *gateway.Service
	team    *team.Team
	store   *store.Store
}

// NewHandler creates a new handler over the gateway, the collaboration
// layer and the snippet store
func NewHandler(svc *gateway.Service, tm *team.Team, st *store.Store) *Handler {
	return &Handler{
		gateway: svc,
		team:    tm,
		store:   st,
	}
}

// Overview handles GET /api/ and lists the available endpoints
func (h *Handler) Overview(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"Tasks":           "/api/tasks",
		"Task Detail":     "/api/tasks/:id",
		"Models":          "/api/ai/models",
		"Generate":        "/api/ai/generate",
		"Stream":          "/api/ai/stream",
		"Providers":       "/api/ai/providers",
		"Team Generate":   "/api/ai/team/generate",
		"Generate Config": "/api/config/generate",
		"Save Config":     "/api/config/save",
		"Config Snippets": "/api/config-snippets",
	})
}

// Health handles GET /health
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// ListModels handles GET /api/ai/models
func (h *Handler) ListModels(c echo.Context) error {
	provider := c.QueryParam("provider")
	models, err := h.gateway.ListModels(c.Request().Context(), provider)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, models)
}

// ListProviders handles GET /api/ai/providers
func (h *Handler) ListProviders(c echo.Context) error {
	return c.JSON(http.StatusOK, h.gateway.ListAvailableProviders(c.Request().Context()))
}

type generateRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	Provider    string  `json:"provider"`
	Temperature float64 `json:"temperature"`
}

func (r *generateRequest) applyDefaults() {
	if r.Model == "" {
		r.Model = defaultModel
	}
	if r.Temperature == 0 {
		r.Temperature = defaultTemperature
	}
}

// Generate handles POST /api/ai/generate
func (h *Handler) Generate(c echo.Context) error {
	var req generateRequest
	if err := c.Bind(&req); err != nil {
		return handleError(c, core.NewInvalidRequestError("invalid request body: "+err.Error(), err))
	}
	if req.Prompt == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Prompt is required"})
	}
	req.applyDefaults()

	response, err := h.gateway.Complete(c.Request().Context(), req.Provider, &core.CompletionRequest{
		Model:       req.Model,
		Prompt:      req.Prompt,
		Temperature: req.Temperature,
	})
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"response": response})
}

// Stream handles POST /api/ai/stream. Events are written as newline-delimited
// JSON and flushed one at a time so clients see tokens as they arrive.
func (h *Handler) Stream(c echo.Context) error {
	var req generateRequest
	if err := c.Bind(&req); err != nil {
		return handleError(c, core.NewInvalidRequestError("invalid request body: "+err.Error(), err))
	}
	if req.Prompt == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Prompt is required"})
	}
	req.applyDefaults()

	events, err := h.gateway.Stream(c.Request().Context(), req.Provider, &core.CompletionRequest{
		Model:       req.Model,
		Prompt:      req.Prompt,
		Temperature: req.Temperature,
		Stream:      true,
	})
	if err != nil {
		return handleError(c, err)
	}

	c.Response().Header().Set(echo.HeaderContentType, "application/x-ndjson")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().WriteHeader(http.StatusOK)

	enc := json.NewEncoder(c.Response().Writer)
	for ev := range events {
		if err := enc.Encode(ev); err != nil {
			// Client went away, drain handled by the provider's context check
			return nil
		}
		c.Response().Flush()
	}
	return nil
}

type teamRequest struct {
	Prompt      string   `json:"prompt"`
	Providers   []string `json:"providers"`
	Models      []string `json:"models"`
	Temperature float64  `json:"temperature"`
}

// TeamGenerate handles POST /api/ai/team/generate
func (h *Handler) TeamGenerate(c echo.Context) error {
	var req teamRequest
	if err := c.Bind(&req); err != nil {
		return handleError(c, core.NewInvalidRequestError("invalid request body: "+err.Error(), err))
	}
	if req.Prompt == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Prompt is required"})
	}
	if req.Temperature == 0 {
		req.Temperature = defaultTemperature
	}

	response, err := h.team.Collaborate(c.Request().Context(), req.Prompt, req.Providers, req.Models, req.Temperature)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"response": response})
}

type configGenerateRequest struct {
	Model      string          `json:"model"`
	ConfigType string          `json:"config_type"`
	Parameters json.RawMessage `json:"parameters"`
	Language   string          `json:"language"`
	Provider   string          `json:"provider"`
}

// GenerateConfig handles POST /api/config/generate
func (h *Handler) GenerateConfig(c echo.Context) error {
	var req configGenerateRequest
	if err := c.Bind(&req); err != nil {
		return handleError(c, core.NewInvalidRequestError("invalid request body: "+err.Error(), err))
	}
	if req.Model == "" || req.ConfigType == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "model and config_type are required"})
	}
	if req.Language == "" {
		req.Language = "english"
	}

	prompt := buildConfigPrompt(req.ConfigType, req.Parameters, req.Language)
	response, err := h.gateway.Complete(c.Request().Context(), req.Provider, &core.CompletionRequest{
		Model:       req.Model,
		Prompt:      prompt,
		Temperature: configTemperature,
	})
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]string{
		"config":      strings.TrimSpace(response),
		"config_type": req.ConfigType,
		"language":    req.Language,
	})
}

func buildConfigPrompt(configType string, parameters json.RawMessage, language string) string {
	params := "{}"
	if len(parameters) > 0 {
		var buf bytes.Buffer
		if err := json.Indent(&buf, parameters, "", "  "); err == nil {
			params = buf.String()
		}
	}
	return fmt.Sprintf(`Create a configuration file for %s with the following parameters:
%s

Language for comments and documentation: %s

Please provide only the configuration code without additional explanations.`, configType, params, language)
}

type configSaveRequest struct {
	Model      string          `json:"model"`
	ConfigType string          `json:"config_type"`
	Content    string          `json:"content"`
	Parameters json.RawMessage `json:"parameters"`
	Language   string          `json:"language"`
	Category   string          `json:"category"`
	Provider   string          `json:"provider"`
}

// SaveConfig handles POST /api/config/save. A title and description for the
// snippet are generated by the model before the record is stored.
func (h *Handler) SaveConfig(c echo.Context) error {
	var req configSaveRequest
	if err := c.Bind(&req); err != nil {
		return handleError(c, core.NewInvalidRequestError("invalid request body: "+err.Error(), err))
	}
	if req.Model == "" || req.Content == "" || req.ConfigType == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "model, content and config_type are required"})
	}
	if req.Language == "" {
		req.Language = "english"
	}
	if req.Category == "" {
		req.Category = store.CategoryOther
	}

	descResponse, err := h.gateway.Complete(c.Request().Context(), req.Provider, &core.CompletionRequest{
		Model:       req.Model,
		Prompt:      buildDescriptionPrompt(req.ConfigType, req.Content, req.Language),
		Temperature: configTemperature,
	})
	if err != nil {
		return handleError(c, err)
	}

	title, description := parseSnippetDescription(descResponse, req.ConfigType)
	snippet := &store.ConfigSnippet{
		Title:       title,
		Description: description,
		ConfigType:  req.ConfigType,
		Content:     req.Content,
		Category:    req.Category,
		Language:    req.Language,
		Parameters:  req.Parameters,
	}
	if err := h.store.CreateSnippet(c.Request().Context(), snippet); err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, snippet)
}

func buildDescriptionPrompt(configType, content, language string) string {
	return fmt.Sprintf(`Analyze the following %s configuration file and provide:
1. A short title (no more than 5-7 words)
2. A detailed description (3-5 sentences) explaining what this config does, which problems it solves and why it is useful

Configuration:
`+"```"+`
%s
`+"```"+`

Please return the answer as JSON:
{
  "title": "Short title",
  "description": "Detailed description..."
}

Language for the title and description: %s`, configType, content, language)
}

// parseSnippetDescription extracts the generated title and description,
// falling back to generic values when the model returned malformed JSON
func parseSnippetDescription(response, configType string) (title, description string) {
	title = capitalize(configType) + " Configuration"
	description = "Configuration for " + configType

	body := strings.TrimSpace(response)
	if !gjson.Valid(body) {
		// Models often wrap the JSON in a fenced block
		if start := strings.Index(body, "{"); start >= 0 {
			if end := strings.LastIndex(body, "}"); end > start {
				body = body[start : end+1]
			}
		}
	}
	if !gjson.Valid(body) {
		return title, description
	}
	if t := gjson.Get(body, "title"); t.Exists() && t.String() != "" {
		title = t.String()
	}
	if d := gjson.Get(body, "description"); d.Exists() && d.String() != "" {
		description = d.String()
	}
	return title, description
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

type taskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Completed   bool   `json:"completed"`
}

// ListTasks handles GET /api/tasks
func (h *Handler) ListTasks(c echo.Context) error {
	tasks, err := h.store.ListTasks(c.Request().Context())
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, tasks)
}

// CreateTask handles POST /api/tasks
func (h *Handler) CreateTask(c echo.Context) error {
	var req taskRequest
	if err := c.Bind(&req); err != nil {
		return handleError(c, core.NewInvalidRequestError("invalid request body: "+err.Error(), err))
	}
	if req.Title == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "title is required"})
	}
	task := &store.Task{
		Title:       req.Title,
		Description: req.Description,
		Completed:   req.Completed,
	}
	if err := h.store.CreateTask(c.Request().Context(), task); err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusCreated, task)
}

// GetTask handles GET /api/tasks/:id
func (h *Handler) GetTask(c echo.Context) error {
	task, err := h.store.GetTask(c.Request().Context(), c.Param("id"))
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, task)
}

// UpdateTask handles PUT /api/tasks/:id
func (h *Handler) UpdateTask(c echo.Context) error {
	var req taskRequest
	if err := c.Bind(&req); err != nil {
		return handleError(c, core.NewInvalidRequestError("invalid request body: "+err.Error(), err))
	}
	if req.Title == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "title is required"})
	}
	task := &store.Task{
		ID:          c.Param("id"),
		Title:       req.Title,
		Description: req.Description,
		Completed:   req.Completed,
	}
	if err := h.store.UpdateTask(c.Request().Context(), task); err != nil {
		return handleError(c, err)
	}
	updated, err := h.store.GetTask(c.Request().Context(), task.ID)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, updated)
}

// DeleteTask handles DELETE /api/tasks/:id
func (h *Handler) DeleteTask(c echo.Context) error {
	if err := h.store.DeleteTask(c.Request().Context(), c.Param("id")); err != nil {
		return handleError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ListSnippets handles GET /api/config-snippets with an optional category filter
func (h *Handler) ListSnippets(c echo.Context) error {
	snippets, err := h.store.ListSnippets(c.Request().Context(), c.QueryParam("category"))
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, snippets)
}

// GetSnippet handles GET /api/config-snippets/:id
func (h *Handler) GetSnippet(c echo.Context) error {
	snippet, err := h.store.GetSnippet(c.Request().Context(), c.Param("id"))
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, snippet)
}

// DeleteSnippet handles DELETE /api/config-snippets/:id
func (h *Handler) DeleteSnippet(c echo.Context) error {
	if err := h.store.DeleteSnippet(c.Request().Context(), c.Param("id")); err != nil {
		return handleError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// handleError converts gateway errors to appropriate HTTP responses
func handleError(c echo.Context, err error) error {
	var gatewayErr *core.GatewayError
	if errors.As(err, &gatewayErr) {
		return c.JSON(gatewayErr.HTTPStatusCode(), gatewayErr.ToJSON())
	}
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "record not found"})
	}

	// Fallback for unexpected errors
	return c.JSON(http.StatusInternalServerError, map[string]interface{}{
		"error": map[string]interface{}{
			"type":    "internal_error",
			"message": "an unexpected error occurred",
		},
	})
}
