package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// OpenAI calls an OpenAI chat model in JSON mode through langchaingo. The
// response schema is rendered into the system prompt; images are sent as
// data URLs.
type OpenAI struct {
	llm llms.Model
}

// NewOpenAI creates an OpenAI backend. baseURL may be empty.
func NewOpenAI(apiKey, model, baseURL string) (*OpenAI, error) {
	if model == "" {
		model = DefaultOpenAIModel
	}
	opts := []openai.Option{
		openai.WithModel(model),
		openai.WithToken(apiKey),
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("NewOpenAI: creating client: %w", err)
	}
	return &OpenAI{llm: client}, nil
}

// NewOpenAIWithLLM wraps an existing langchaingo model.
func NewOpenAIWithLLM(model llms.Model) *OpenAI {
	return &OpenAI{llm: model}
}

// Generate implements Model.
func (o *OpenAI) Generate(ctx context.Context, req Request) (string, error) {
	messages, err := openAIMessages(req)
	if err != nil {
		return "", fmt.Errorf("OpenAI.Generate: %w", err)
	}

	resp, err := o.llm.GenerateContent(ctx, messages,
		llms.WithJSONMode(),
		llms.WithTemperature(0),
	)
	if err != nil {
		return "", fmt.Errorf("OpenAI.Generate: generate content: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0].Content == "" {
		return "", fmt.Errorf("OpenAI.Generate: %w", ErrEmptyResponse)
	}
	return resp.Choices[0].Content, nil
}

func openAIMessages(req Request) ([]llms.MessageContent, error) {
	system := req.System
	if req.Schema != nil {
		schemaJSON, err := json.Marshal(req.Schema)
		if err != nil {
			return nil, fmt.Errorf("marshal response schema: %w", err)
		}
		system += "\n\nRespond with a single JSON object that matches this JSON schema:\n" + string(schemaJSON)
	}

	human := []llms.ContentPart{llms.TextPart(req.Input)}
	if req.Media != nil {
		dataURL := "data:" + req.Media.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(req.Media.Data)
		human = append(human, llms.ImageURLPart(dataURL))
	}

	return []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		{Role: llms.ChatMessageTypeHuman, Parts: human},
	}, nil
}
