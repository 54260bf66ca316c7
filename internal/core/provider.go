// Package core defines the core interfaces and types for the AI gateway.
package core

import "context"

// Provider is the capability set every backend variant implements.
//
// The contract trades errors for data: CheckConnection never fails, ListModels
// returns an empty slice on any failure, and Complete returns an empty or
// "Error: ..." string instead of an error. Only the streaming path reports
// failures, and it does so in-band through CompletionEvent.Error.
type Provider interface {
	// Descriptor returns the provider's static capability descriptor
	Descriptor() ProviderDescriptor

	// CheckConnection probes backend reachability. It is a liveness check
	// bounded to roughly two seconds and never returns an error.
	CheckConnection(ctx context.Context) bool

	// ListModels returns the models the backend offers, or an empty slice on
	// any failure (missing credential, bad status, malformed body).
	ListModels(ctx context.Context) []ModelInfo

	// Complete issues one non-streaming completion. On failure it returns an
	// empty string or a string prefixed with "Error: "; it never panics and
	// never returns an error value.
	Complete(ctx context.Context, req *CompletionRequest) string

	// StreamCompletion returns a single-pass event stream. The channel is
	// closed after the terminal event: either the single Done event or, on an
	// unrecoverable failure, a single Error event. Cancelling ctx stops the
	// producer; no events are delivered after cancellation.
	StreamCompletion(ctx context.Context, req *CompletionRequest) <-chan CompletionEvent
}
