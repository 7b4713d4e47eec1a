// Package llm adapts the supported model providers to a single JSON-generation
// interface and holds the helpers shared by every call site: schema
// generation, lenient JSON decoding, error-payload recovery and the
// transcript token budget.
package llm

import (
	"context"
	"errors"
)

var (
	ErrUnknownModel  = errors.New("unknown model")
	ErrEmptyResponse = errors.New("empty model response")
)

// Request is a single schema-constrained generation call.
type Request struct {
	System      string
	Prompt      string
	SchemaName  string
	Schema      map[string]any
	MaxTokens   int
	Temperature float64
}

// Provider generates a JSON document for a request.
type Provider interface {
	Name() string
	GenerateJSON(ctx context.Context, req Request) (string, error)
}
