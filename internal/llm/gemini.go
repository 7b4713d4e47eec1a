package llm

import (
	"context"
	"encoding/json"
	"strings"

	genai "google.golang.org/genai"
)

// GeminiProvider asks for application/json and carries the schema in the
// system instruction.
type GeminiProvider struct {
	cli   *genai.Client
	model string
}

func NewGeminiProvider(ctx context.Context, apiKey, model string) (*GeminiProvider, error) {
	return newGeminiProvider(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}, model)
}

func newGeminiProvider(ctx context.Context, cfg *genai.ClientConfig, model string) (*GeminiProvider, error) {
	cli, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &GeminiProvider{cli: cli, model: model}, nil
}

func (g *GeminiProvider) Name() string { return "gemini:" + g.model }

func (g *GeminiProvider) GenerateJSON(ctx context.Context, req Request) (string, error) {
	system := req.System
	if req.Schema != nil {
		if schema, err := json.Marshal(req.Schema); err == nil {
			system += "\n\nThe response must match this JSON schema:\n" + string(schema)
		}
	}

	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType:  "application/json",
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: system}}},
	}
	if req.Temperature > 0 {
		cfg.Temperature = genai.Ptr(float32(req.Temperature))
	}

	resp, err := g.cli.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: req.Prompt}}}},
		cfg,
	)
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", ErrEmptyResponse
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", ErrEmptyResponse
	}
	return sb.String(), nil
}
