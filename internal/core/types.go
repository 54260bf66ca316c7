package core

// ProviderDescriptor describes the static capabilities of a provider.
// Descriptors are created once at gateway construction and never change.
type ProviderDescriptor struct {
	// Name is the unique registry key for the provider ("ollama", "openai", ...)
	Name string `json:"name"`

	// RequiresCredential is true when the provider cannot operate without an API key
	RequiresCredential bool `json:"requires_credential"`

	// SupportsNativeStreaming is false for backends whose streaming is emulated locally
	SupportsNativeStreaming bool `json:"supports_native_streaming"`
}

// ModelInfo describes a single model offered by a provider
type ModelInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CompletionRequest is the normalized completion request every provider accepts.
// It is constructed per call and never mutated afterwards.
type CompletionRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	Temperature float64 `json:"temperature"`
	Stream      bool    `json:"stream,omitempty"`
}

// CompletionEvent is the canonical unit of the streaming contract.
// A stream carries at most one event with Done set, and no event follows it.
type CompletionEvent struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Model    string `json:"model,omitempty"`
	Error    string `json:"error,omitempty"`
}

// TeamAnswer holds one provider's contribution to a collaboration round.
// It lives only for the duration of a single Collaborate call.
type TeamAnswer struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Response string `json:"response"`
}
