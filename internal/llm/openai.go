package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
)

// OpenAIProvider uses the Responses API with a strict JSON schema.
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

func NewOpenAIProvider(apiKey, model string, opts ...option.RequestOption) *OpenAIProvider {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	client := openai.NewClient(opts...)
	return &OpenAIProvider{client: &client, model: model}
}

func (p *OpenAIProvider) Name() string { return "openai:" + p.model }

func (p *OpenAIProvider) GenerateJSON(ctx context.Context, req Request) (string, error) {
	if p.client == nil {
		return "", errors.New("openai provider: client is nil")
	}

	params := responses.ResponseNewParams{
		Model:           p.model,
		MaxOutputTokens: openai.Int(int64(req.MaxTokens)),
		Instructions:    openai.String(req.System),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: []responses.ResponseInputItemUnionParam{
				responses.ResponseInputItemParamOfMessage(req.Prompt, responses.EasyInputMessageRoleUser),
			},
		},
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.Schema != nil {
		name := req.SchemaName
		if name == "" {
			name = "Response"
		}
		params.Text = responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Name:   name,
					Schema: req.Schema,
					Strict: openai.Bool(true),
					Type:   "json_schema",
				},
			},
		}
	}

	resp, err := p.client.Responses.New(ctx, params)
	if err != nil {
		return "", err
	}
	out := resp.OutputText()
	if strings.TrimSpace(out) == "" {
		return "", ErrEmptyResponse
	}
	return out, nil
}
