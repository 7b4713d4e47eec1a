package llm

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/MikeSquared-Agency/yarning/internal/anthropic"
)

// AnthropicProvider has no native schema enforcement, so the schema is
// appended to the system prompt.
type AnthropicProvider struct {
	client *anthropic.Client
}

func NewAnthropicProvider(client *anthropic.Client) *AnthropicProvider {
	return &AnthropicProvider{client: client}
}

func (p *AnthropicProvider) Name() string { return "anthropic:" + p.client.Model() }

func (p *AnthropicProvider) GenerateJSON(ctx context.Context, req Request) (string, error) {
	system := req.System
	if req.Schema != nil {
		schema, err := json.Marshal(req.Schema)
		if err == nil {
			system += "\n\nRespond with a single JSON object matching this JSON schema. Return ONLY the JSON object, no markdown fences or other text.\n" + string(schema)
		}
	}

	out, err := p.client.Complete(ctx, anthropic.Request{
		System:      system,
		Messages:    []anthropic.Message{{Role: "user", Content: req.Prompt}},
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(out) == "" {
		return "", ErrEmptyResponse
	}
	return out, nil
}
