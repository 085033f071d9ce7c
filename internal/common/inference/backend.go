// Package inference talks to the text-generation backend that every
// extraction stage depends on.
package inference

import "context"

// Request is one stage call: a fixed system prompt plus the stage input.
type Request struct {
	Stage        string
	SystemPrompt string
	UserContent  string
	// MaxRetries overrides the backend's retry count when set.
	MaxRetries *int
}

// Backend returns free-form text for a request. Implementations must honor
// ctx cancellation.
type Backend interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// BackendFunc adapts a function to Backend.
type BackendFunc func(ctx context.Context, req Request) (string, error)

func (f BackendFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}
