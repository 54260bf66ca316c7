package gemini

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"opsgate/internal/core"
)

func TestDescriptor(t *testing.T) {
	d := New("key").Descriptor()
	if d.Name != "gemini" {
		t.Errorf("Name = %q, want %q", d.Name, "gemini")
	}
	if !d.RequiresCredential {
		t.Error("gemini should require a credential")
	}
}

func TestCheckConnection_KeyInQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("key"); got != "test-key" {
			t.Errorf("key query param = %q, want %q", got, "test-key")
		}
		if r.Header.Get("Authorization") != "" {
			t.Error("gemini must not send an Authorization header")
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	provider := NewWithHTTPClient("test-key", server.URL, nil)
	if !provider.CheckConnection(context.Background()) {
		t.Error("CheckConnection() = false, want true")
	}

	if New("").CheckConnection(context.Background()) {
		t.Error("CheckConnection() should be false without an API key")
	}
}

func TestListModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"models": [
			{"name": "models/gemini-pro", "displayName": "Gemini Pro"},
			{"name": "models/embedding-001", "displayName": "Embedding"},
			{"name": "models/gemini-1.5-flash", "displayName": "Gemini 1.5 Flash"}
		]}`))
	}))
	defer server.Close()

	provider := NewWithHTTPClient("test-key", server.URL, nil)
	models := provider.ListModels(context.Background())

	if len(models) != 2 {
		t.Fatalf("len(models) = %d, want 2", len(models))
	}
	if models[0].Name != "gemini-pro" {
		t.Errorf("models[0].Name = %q, want gemini-pro (short form)", models[0].Name)
	}
	if models[0].Description != "Gemini Pro" {
		t.Errorf("models[0].Description = %q, want Gemini Pro", models[0].Description)
	}
	if models[1].Name != "gemini-1.5-flash" {
		t.Errorf("models[1].Name = %q, want gemini-1.5-flash", models[1].Name)
	}
}

func TestComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/gemini-pro:generateContent" {
			t.Errorf("path = %q, want /models/gemini-pro:generateContent", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"candidates": [{"content": {"parts": [{"text": "Answer text"}]}}]}`))
	}))
	defer server.Close()

	provider := NewWithHTTPClient("test-key", server.URL, nil)
	got := provider.Complete(context.Background(), &core.CompletionRequest{
		Model:       "gemini-pro",
		Prompt:      "hi",
		Temperature: 0.7,
	})
	if got != "Answer text" {
		t.Errorf("Complete() = %q, want %q", got, "Answer text")
	}
}

func TestComplete_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	provider := NewWithHTTPClient("test-key", server.URL, nil)
	got := provider.Complete(context.Background(), &core.CompletionRequest{Model: "gemini-pro", Prompt: "hi"})
	if got != "" {
		t.Errorf("Complete() = %q, want empty string on upstream error", got)
	}
}

func TestStreamCompletion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/gemini-pro:streamGenerateContent" {
			t.Errorf("path = %q, want /models/gemini-pro:streamGenerateContent", r.URL.Path)
		}
		lines := []string{
			`data: {"candidates": [{"content": {"parts": [{"text": "Hel"}]}}]}`,
			`data: {"candidates": [{"content": {"parts": [{"text": "lo"}]}}]}`,
			`data: [DONE]`,
		}
		for _, line := range lines {
			_, _ = w.Write([]byte(line + "\n"))
		}
	}))
	defer server.Close()

	provider := NewWithHTTPClient("test-key", server.URL, nil)
	ch := provider.StreamCompletion(context.Background(), &core.CompletionRequest{Model: "gemini-pro", Prompt: "hi"})

	var events []core.CompletionEvent
	for ev := range ch {
		events = append(events, ev)
	}

	if len(events) != 3 {
		t.Fatalf("len(events) = %d, want 3", len(events))
	}
	if events[0].Response != "Hel" || events[1].Response != "lo" {
		t.Errorf("chunks = %q, %q, want Hel, lo", events[0].Response, events[1].Response)
	}
	if !events[2].Done {
		t.Error("final event should have Done set")
	}
}

func TestStreamCompletion_EOFWithoutMarker(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`data: {"candidates": [{"content": {"parts": [{"text": "only"}]}}]}` + "\n"))
	}))
	defer server.Close()

	provider := NewWithHTTPClient("test-key", server.URL, nil)
	ch := provider.StreamCompletion(context.Background(), &core.CompletionRequest{Model: "gemini-pro", Prompt: "hi"})

	var events []core.CompletionEvent
	for ev := range ch {
		events = append(events, ev)
	}

	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(events))
	}
	if !events[1].Done {
		t.Error("stream must still terminate with a done event")
	}
}
