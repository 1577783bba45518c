package provider

import (
	"context"

	"github.com/slidewise/modelgate/internal/backend"
)

// Options are the generation parameters forwarded to a backend.
type Options struct {
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	TopP        float64 `json:"top_p,omitempty"`
	TopK        int     `json:"top_k,omitempty"`
	System      string  `json:"system,omitempty"`
}

// Result is one completed generation.
type Result struct {
	Text       string `json:"text"`
	TokensUsed int    `json:"tokens_used,omitempty"`
}

// Invoker is the synchronous-request contract every backend transport
// implements.
type Invoker interface {
	// Invoke sends the prompt to the backend and returns the generated text.
	// Transport failures surface as taxonomy errors: *aierrors.Error with
	// KindTimeout on deadline, KindAIService on connection or non-2xx.
	Invoke(ctx context.Context, b *backend.Backend, prompt string, opts Options) (*Result, error)

	// Probe checks reachability and that the backend's model is available.
	// A probe failure is a configuration signal, not a transient fault.
	Probe(ctx context.Context, b *backend.Backend) error
}
