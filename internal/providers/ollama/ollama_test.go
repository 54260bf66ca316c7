package ollama

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"opsgate/internal/core"
)

func TestNew(t *testing.T) {
	provider := New("")
	if provider.baseURL != defaultBaseURL {
		t.Errorf("baseURL = %q, want %q", provider.baseURL, defaultBaseURL)
	}
	if provider.httpClient == nil {
		t.Error("httpClient should not be nil")
	}

	provider = New("http://example.com:11434")
	if provider.baseURL != "http://example.com:11434" {
		t.Errorf("baseURL = %q, want %q", provider.baseURL, "http://example.com:11434")
	}
}

func TestDescriptor(t *testing.T) {
	d := New("").Descriptor()
	if d.Name != "ollama" {
		t.Errorf("Name = %q, want %q", d.Name, "ollama")
	}
	if d.RequiresCredential {
		t.Error("ollama should not require a credential")
	}
	if !d.SupportsNativeStreaming {
		t.Error("ollama should support native streaming")
	}
}

func TestCheckConnection(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		want       bool
	}{
		{name: "server up", statusCode: http.StatusOK, want: true},
		{name: "server error", statusCode: http.StatusInternalServerError, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/tags" {
					t.Errorf("path = %q, want %q", r.URL.Path, "/api/tags")
				}
				w.WriteHeader(tt.statusCode)
			}))
			defer server.Close()

			provider := New(server.URL)
			if got := provider.CheckConnection(context.Background()); got != tt.want {
				t.Errorf("CheckConnection() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCheckConnection_ServerDown(t *testing.T) {
	provider := New("http://127.0.0.1:1")
	if provider.CheckConnection(context.Background()) {
		t.Error("CheckConnection() should be false for an unreachable server")
	}
}

func TestListModels(t *testing.T) {
	tests := []struct {
		name         string
		statusCode   int
		responseBody string
		wantCount    int
		wantFirst    string
	}{
		{
			name:         "two models",
			statusCode:   http.StatusOK,
			responseBody: `{"models": [{"name": "llama3:latest", "details": {"family": "llama"}}, {"name": "mistral:7b", "details": {"family": "mistral"}}]}`,
			wantCount:    2,
			wantFirst:    "llama3:latest",
		},
		{
			name:         "empty list",
			statusCode:   http.StatusOK,
			responseBody: `{"models": []}`,
			wantCount:    0,
		},
		{
			name:         "server error",
			statusCode:   http.StatusInternalServerError,
			responseBody: `{"error": "boom"}`,
			wantCount:    0,
		},
		{
			name:         "malformed body",
			statusCode:   http.StatusOK,
			responseBody: `not json`,
			wantCount:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
				_, _ = w.Write([]byte(tt.responseBody))
			}))
			defer server.Close()

			provider := New(server.URL)
			models := provider.ListModels(context.Background())
			if len(models) != tt.wantCount {
				t.Fatalf("len(models) = %d, want %d", len(models), tt.wantCount)
			}
			if tt.wantCount > 0 && models[0].Name != tt.wantFirst {
				t.Errorf("models[0].Name = %q, want %q", models[0].Name, tt.wantFirst)
			}
		})
	}
}

func TestComplete(t *testing.T) {
	tests := []struct {
		name         string
		statusCode   int
		responseBody string
		want         string
	}{
		{
			name:         "successful completion",
			statusCode:   http.StatusOK,
			responseBody: `{"model": "llama3", "response": "Use systemctl restart nginx", "done": true}`,
			want:         "Use systemctl restart nginx",
		},
		{
			name:         "server error returns empty",
			statusCode:   http.StatusInternalServerError,
			responseBody: `{"error": "model not found"}`,
			want:         "",
		},
		{
			name:         "invalid json",
			statusCode:   http.StatusOK,
			responseBody: `garbage`,
			want:         "Error: invalid JSON in response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/generate" {
					t.Errorf("path = %q, want %q", r.URL.Path, "/api/generate")
				}
				if r.Header.Get("Content-Type") != "application/json" {
					t.Errorf("Content-Type = %q, want application/json", r.Header.Get("Content-Type"))
				}
				w.WriteHeader(tt.statusCode)
				_, _ = w.Write([]byte(tt.responseBody))
			}))
			defer server.Close()

			provider := New(server.URL)
			got := provider.Complete(context.Background(), &core.CompletionRequest{
				Model:       "llama3",
				Prompt:      "how do I restart nginx",
				Temperature: 0.7,
			})
			if got != tt.want {
				t.Errorf("Complete() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestComplete_ServerDown(t *testing.T) {
	provider := New("http://127.0.0.1:1")
	got := provider.Complete(context.Background(), &core.CompletionRequest{Model: "llama3", Prompt: "hi"})
	if !strings.HasPrefix(got, "Error: ") {
		t.Errorf("Complete() = %q, want Error: prefix", got)
	}
}

func TestStreamCompletion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lines := []string{
			`{"model": "llama3", "response": "Hel", "done": false}`,
			`{"model": "llama3", "response": "lo", "done": false}`,
			`{"model": "llama3", "response": "", "done": true}`,
		}
		for _, line := range lines {
			_, _ = w.Write([]byte(line + "\n"))
		}
	}))
	defer server.Close()

	provider := New(server.URL)
	ch := provider.StreamCompletion(context.Background(), &core.CompletionRequest{Model: "llama3", Prompt: "hi"})

	var events []core.CompletionEvent
	for ev := range ch {
		events = append(events, ev)
	}

	if len(events) != 3 {
		t.Fatalf("len(events) = %d, want 3", len(events))
	}
	if events[0].Response != "Hel" || events[1].Response != "lo" {
		t.Errorf("chunk responses = %q, %q, want Hel, lo", events[0].Response, events[1].Response)
	}
	if events[0].Done || events[1].Done {
		t.Error("non-terminal events should not have Done set")
	}
	if !events[2].Done {
		t.Error("final event should have Done set")
	}
}

func TestStreamCompletion_SkipsBadLines(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json\n"))
		_, _ = w.Write([]byte(`{"response": "ok", "done": true}` + "\n"))
	}))
	defer server.Close()

	provider := New(server.URL)
	ch := provider.StreamCompletion(context.Background(), &core.CompletionRequest{Model: "llama3", Prompt: "hi"})

	var events []core.CompletionEvent
	for ev := range ch {
		events = append(events, ev)
	}

	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(events))
	}
	if events[0].Error == "" {
		t.Error("first event should carry a parse error")
	}
	if !events[1].Done || events[1].Response != "ok" {
		t.Errorf("final event = %+v, want done with response ok", events[1])
	}
}

func TestStreamCompletion_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	provider := New(server.URL)
	ch := provider.StreamCompletion(context.Background(), &core.CompletionRequest{Model: "llama3", Prompt: "hi"})

	var events []core.CompletionEvent
	for ev := range ch {
		events = append(events, ev)
	}

	if len(events) != 1 {
		t.Fatalf("len(events) = %d, want 1", len(events))
	}
	if events[0].Error == "" {
		t.Error("event should carry an error")
	}
}

func TestStreamCompletion_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		_, _ = w.Write([]byte(`{"response": "first", "done": false}` + "\n"))
		flusher.Flush()
		<-r.Context().Done()
	}))
	defer server.Close()

	provider := New(server.URL)
	ch := provider.StreamCompletion(ctx, &core.CompletionRequest{Model: "llama3", Prompt: "hi"})

	ev, ok := <-ch
	if !ok || ev.Response != "first" {
		t.Fatalf("first event = %+v ok=%v, want first chunk", ev, ok)
	}

	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			// a second event may already be in flight; the channel must
			// still close promptly after it
			select {
			case _, ok = <-ch:
				if ok {
					t.Error("stream should close after cancellation")
				}
			case <-time.After(2 * time.Second):
				t.Error("stream did not close after cancellation")
			}
		}
	case <-time.After(2 * time.Second):
		t.Error("stream did not close after cancellation")
	}
}
