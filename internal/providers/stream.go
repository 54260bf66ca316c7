package providers

import (
	"context"

	"opsgate/internal/core"
)

// Emit delivers one event to the stream channel, honoring cancellation.
// Returns false when the consumer is gone; producers must stop on false.
func Emit(ctx context.Context, ch chan<- core.CompletionEvent, ev core.CompletionEvent) bool {
	select {
	case ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// EmitError sends a single error event. The caller decides whether the
// stream continues (per-chunk parse failure) or ends (first-byte failure).
func EmitError(ctx context.Context, ch chan<- core.CompletionEvent, model, msg string) bool {
	return Emit(ctx, ch, core.CompletionEvent{Model: model, Error: msg})
}

// EmitDone sends the terminal event of a stream
func EmitDone(ctx context.Context, ch chan<- core.CompletionEvent, model string) bool {
	return Emit(ctx, ch, core.CompletionEvent{Model: model, Done: true})
}

// Chunks splits text into roughly ten pieces of at least five characters
// each, preserving rune boundaries. Used by the providers that emulate
// streaming over a fully buffered response.
func Chunks(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	size := len(runes) / 10
	if size < 5 {
		size = 5
	}

	chunks := make([]string, 0, len(runes)/size+1)
	for i := 0; i < len(runes); i += size {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
	}
	return chunks
}

// EmitChunked replays a buffered response as an emulated stream: one event
// per chunk, Done set only on the last. Returns false if the consumer
// cancelled before the final chunk.
func EmitChunked(ctx context.Context, ch chan<- core.CompletionEvent, model, text string) bool {
	chunks := Chunks(text)
	for i, chunk := range chunks {
		ev := core.CompletionEvent{
			Model:    model,
			Response: chunk,
			Done:     i == len(chunks)-1,
		}
		if !Emit(ctx, ch, ev) {
			return false
		}
	}
	return true
}
