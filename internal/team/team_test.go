package team

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opsgate/internal/core"
	"opsgate/internal/gateway"
)

// stubProvider records prompts and returns a fixed reply
type stubProvider struct {
	mu        sync.Mutex
	name      string
	reachable bool
	models    []core.ModelInfo
	reply     string
	prompts   []string
}

func (s *stubProvider) Descriptor() core.ProviderDescriptor {
	return core.ProviderDescriptor{Name: s.name}
}

func (s *stubProvider) CheckConnection(ctx context.Context) bool { return s.reachable }

func (s *stubProvider) ListModels(ctx context.Context) []core.ModelInfo { return s.models }

func (s *stubProvider) Complete(ctx context.Context, req *core.CompletionRequest) string {
	s.mu.Lock()
	s.prompts = append(s.prompts, req.Prompt)
	s.mu.Unlock()
	return s.reply
}

func (s *stubProvider) StreamCompletion(ctx context.Context, req *core.CompletionRequest) <-chan core.CompletionEvent {
	ch := make(chan core.CompletionEvent, 1)
	ch <- core.CompletionEvent{Model: req.Model, Response: s.reply, Done: true}
	close(ch)
	return ch
}

func (s *stubProvider) seenPrompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.prompts...)
}

func TestCollaborate_LengthMismatch(t *testing.T) {
	svc := gateway.NewWithProviders(map[string]core.Provider{
		"ollama": &stubProvider{name: "ollama", reachable: true, models: []core.ModelInfo{{Name: "llama3"}}},
	}, "ollama", false)

	_, err := New(svc).Collaborate(context.Background(), "question",
		[]string{"ollama", "openai"}, []string{"llama3"}, 0.7)
	require.Error(t, err)

	var gwErr *core.GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, core.ErrorKindCollaborationInput, gwErr.Kind)
}

func TestCollaborate_NoProvidersAvailable(t *testing.T) {
	svc := gateway.NewWithProviders(map[string]core.Provider{
		"ollama": &stubProvider{name: "ollama", reachable: false},
	}, "ollama", false)

	_, err := New(svc).Collaborate(context.Background(), "question", nil, nil, 0.7)
	require.Error(t, err)

	var gwErr *core.GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, core.ErrorKindCollaborationInput, gwErr.Kind)
}

func TestCollaborate_SynthesisByPriorityProvider(t *testing.T) {
	ollama := &stubProvider{name: "ollama", reachable: true,
		models: []core.ModelInfo{{Name: "llama3"}}, reply: "local answer"}
	openai := &stubProvider{name: "openai", reachable: true,
		models: []core.ModelInfo{{Name: "gpt-4o"}}, reply: "cloud answer"}

	svc := gateway.NewWithProviders(map[string]core.Provider{
		"ollama": ollama,
		"openai": openai,
	}, "ollama", false)

	got, err := New(svc).Collaborate(context.Background(), "how do I restart nginx", nil, nil, 0.7)
	require.NoError(t, err)

	// openai outranks ollama for synthesis, so its reply is the final answer
	assert.Equal(t, "cloud answer", got)

	// both members answered the original prompt
	require.NotEmpty(t, ollama.seenPrompts())
	assert.Equal(t, "how do I restart nginx", ollama.seenPrompts()[0])

	// the synthesizer got a meta prompt carrying every member answer
	prompts := openai.seenPrompts()
	meta := prompts[len(prompts)-1]
	assert.Contains(t, meta, "meta-analyzer")
	assert.Contains(t, meta, "Original request: how do I restart nginx")
	assert.Contains(t, meta, "local answer")
	assert.Contains(t, meta, "cloud answer")
	assert.True(t, strings.Contains(meta, "### Model 1 (") && strings.Contains(meta, "### Model 2 ("))
}

func TestCollaborate_LongestAnswerFallback(t *testing.T) {
	// neither registered name is a synthesis candidate, so the longest
	// member answer wins
	short := &stubProvider{name: "fallback", reachable: true,
		models: []core.ModelInfo{{Name: "fallback-unix"}}, reply: "short"}
	long := &stubProvider{name: "custom", reachable: true,
		models: []core.ModelInfo{{Name: "custom-model"}}, reply: "a much longer and more detailed answer"}

	svc := gateway.NewWithProviders(map[string]core.Provider{
		"fallback": short,
		"custom":   long,
	}, "fallback", false)

	got, err := New(svc).Collaborate(context.Background(), "question", nil, nil, 0.7)
	require.NoError(t, err)
	assert.Equal(t, "a much longer and more detailed answer", got)
}

func TestCollaborate_ExplicitMembers(t *testing.T) {
	ollama := &stubProvider{name: "ollama", reachable: true,
		models: []core.ModelInfo{{Name: "llama3"}}, reply: "answer"}

	svc := gateway.NewWithProviders(map[string]core.Provider{
		"ollama": ollama,
	}, "ollama", false)

	got, err := New(svc).Collaborate(context.Background(), "question",
		[]string{"ollama"}, []string{"llama3:custom"}, 0.2)
	require.NoError(t, err)
	assert.Equal(t, "answer", got)
}

func TestCollaborate_DropsProvidersWithoutModels(t *testing.T) {
	empty := &stubProvider{name: "custom", reachable: true, models: nil, reply: "never"}
	full := &stubProvider{name: "fallback", reachable: true,
		models: []core.ModelInfo{{Name: "fallback-unix"}}, reply: "kept"}

	svc := gateway.NewWithProviders(map[string]core.Provider{
		"custom":   empty,
		"fallback": full,
	}, "fallback", false)

	got, err := New(svc).Collaborate(context.Background(), "question", nil, nil, 0.7)
	require.NoError(t, err)
	assert.Equal(t, "kept", got)
	assert.Empty(t, empty.seenPrompts(), "a provider without models must not be queried")
}

func TestBuildMetaPrompt(t *testing.T) {
	meta := buildMetaPrompt("the question", []core.TeamAnswer{
		{Provider: "ollama", Model: "llama3", Response: "first"},
		{Provider: "openai", Model: "gpt-4o", Response: "second"},
	})

	assert.Contains(t, meta, "Original request: the question")
	assert.Contains(t, meta, "### Model 1 (ollama/llama3):\nfirst")
	assert.Contains(t, meta, "### Model 2 (openai/gpt-4o):\nsecond")
}
