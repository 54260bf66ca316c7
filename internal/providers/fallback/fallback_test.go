package fallback

import (
	"context"
	"strings"
	"testing"

	"opsgate/internal/core"
)

func TestDescriptor(t *testing.T) {
	d := New().Descriptor()
	if d.Name != "fallback" {
		t.Errorf("Name = %q, want %q", d.Name, "fallback")
	}
	if d.RequiresCredential {
		t.Error("fallback must not require a credential")
	}
	if d.SupportsNativeStreaming {
		t.Error("fallback streaming is emulated")
	}
}

func TestCheckConnection_AlwaysTrue(t *testing.T) {
	if !New().CheckConnection(context.Background()) {
		t.Error("CheckConnection() = false, want true")
	}
}

func TestListModels(t *testing.T) {
	models := New().ListModels(context.Background())
	if len(models) != 4 {
		t.Fatalf("len(models) = %d, want 4", len(models))
	}
	for _, m := range models {
		if !strings.HasPrefix(m.Name, "fallback-") {
			t.Errorf("model name %q should carry the fallback- prefix", m.Name)
		}
	}
}

func TestComplete_TopicRouting(t *testing.T) {
	tests := []struct {
		name   string
		prompt string
		want   string
	}{
		{
			name:   "unix topic",
			prompt: "how do I manage files on linux",
			want:   "UNIX/Linux systems",
		},
		{
			name:   "network commands topic",
			prompt: "set up a vpn between two offices",
			want:   "networking commands",
		},
		{
			name:   "tor topic",
			prompt: "how do I set up tor",
			want:   "onion routing",
		},
		{
			name:   "russian tor topic",
			prompt: "настрой луковичный vpn",
			want:   "onion routing",
		},
		{
			name:   "kubernetes topic",
			prompt: "install kubernetes on my servers",
			want:   "Kubernetes",
		},
		{
			name:   "general menu",
			prompt: "what can you do",
			want:   "DevOps reference",
		},
	}

	p := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.Complete(context.Background(), &core.CompletionRequest{Model: "fallback-unix", Prompt: tt.prompt})
			if !strings.Contains(got, tt.want) {
				t.Errorf("Complete(%q) should mention %q", tt.prompt, tt.want)
			}
		})
	}
}

func TestComplete_ConfigAudit(t *testing.T) {
	p := New()

	prompt := "проверь конфигурацию nginx ```server { listen 80 }```"
	got := p.Complete(context.Background(), &core.CompletionRequest{Model: "fallback-analyzer", Prompt: prompt})

	if !strings.Contains(got, "NGINX configuration analysis") {
		t.Errorf("response should be an analysis report, got %q", got)
	}
	if !strings.Contains(got, "missing semicolon") {
		t.Error("report should flag the missing semicolon on the listen directive")
	}
}

func TestComplete_ConfigAuditWithoutSnippet(t *testing.T) {
	p := New()

	// an audit request with no fenced snippet gets the fencing instruction,
	// not a topic-routed answer
	got := p.Complete(context.Background(), &core.CompletionRequest{Model: "fallback-analyzer", Prompt: "check my nginx config please"})
	if !strings.Contains(got, "triple backticks") {
		t.Errorf("expected instruction to fence the configuration, got %q", got)
	}
	if strings.Contains(got, "configuration analysis") || strings.Contains(got, "DevOps reference") {
		t.Errorf("no snippet should mean no report and no topic menu, got %q", got)
	}
}

func TestStreamCompletion(t *testing.T) {
	p := New()
	ch := p.StreamCompletion(context.Background(), &core.CompletionRequest{Model: "fallback-unix", Prompt: "linux basics"})

	var events []core.CompletionEvent
	for ev := range ch {
		events = append(events, ev)
	}

	if len(events) < 2 {
		t.Fatalf("len(events) = %d, want several chunks", len(events))
	}

	var rebuilt strings.Builder
	for _, ev := range events {
		rebuilt.WriteString(ev.Response)
		if ev.Model != "fallback" {
			t.Errorf("event model = %q, want fallback", ev.Model)
		}
	}
	if !strings.Contains(rebuilt.String(), "UNIX/Linux systems") {
		t.Error("concatenated chunks should rebuild the canned response")
	}
	if !events[len(events)-1].Done {
		t.Error("final event should have Done set")
	}
	for _, ev := range events[:len(events)-1] {
		if ev.Done {
			t.Error("only the final event may have Done set")
		}
	}
}
