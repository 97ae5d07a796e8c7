package llm

import (
	"context"
	"errors"
	"os"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// openaiProvider implements Provider using the OpenAI SDK.
type openaiProvider struct {
	client openai.Client
	model  string
}

func newOpenAIProvider(model string) (Provider, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, &ProviderError{
			Provider: "openai",
			Kind:     ErrAuth,
			Message:  "OPENAI_API_KEY environment variable not set",
		}
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &openaiProvider{client: client, model: model}, nil
}

func (p *openaiProvider) Name() string  { return "openai" }
func (p *openaiProvider) Model() string { return p.model }

func (p *openaiProvider) SupportsInstructionRepair() bool { return true }

func (p *openaiProvider) Complete(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error) {
	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(p.model),
		MaxTokens:   openai.Int(int64(maxTokens)),
		Temperature: openai.Float(temperature),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", p.mapError(err)
	}

	if len(resp.Choices) == 0 {
		return "", emptyResponseError("openai")
	}
	content := resp.Choices[0].Message.Content
	if content == "" {
		return "", emptyResponseError("openai")
	}
	return content, nil
}

func (p *openaiProvider) mapError(err error) error {
	if ce := ctxError("openai", err); ce != nil {
		return ce
	}
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		return statusError("openai", apierr.StatusCode, err.Error())
	}
	return networkError("openai", err)
}
