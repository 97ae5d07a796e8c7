package llm

import (
	"context"
	"errors"
	"os"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// anthropicProvider implements Provider using the Anthropic SDK.
// anthropic.Client is a value type; the SDK's NewClient returns it by value.
type anthropicProvider struct {
	client anthropic.Client
	model  string
}

func newAnthropicProvider(model string) (Provider, error) {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		return nil, &ProviderError{
			Provider: "anthropic",
			Kind:     ErrAuth,
			Message:  "ANTHROPIC_API_KEY environment variable not set",
		}
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &anthropicProvider{client: client, model: model}, nil
}

func (p *anthropicProvider) Name() string  { return "anthropic" }
func (p *anthropicProvider) Model() string { return p.model }

// SupportsInstructionRepair opts into the one-shot validation-repair
// re-prompt.
func (p *anthropicProvider) SupportsInstructionRepair() bool { return true }

func (p *anthropicProvider) Complete(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error) {
	msg, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(p.model),
		MaxTokens:   int64(maxTokens),
		Temperature: anthropic.Float(temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", p.mapError(err)
	}

	var parts []string
	for _, block := range msg.Content {
		// "text" is the only content type carrying assistant text output.
		if block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	if len(parts) == 0 {
		return "", emptyResponseError("anthropic")
	}
	return strings.Join(parts, ""), nil
}

func (p *anthropicProvider) mapError(err error) error {
	if ce := ctxError("anthropic", err); ce != nil {
		return ce
	}
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		return statusError("anthropic", apierr.StatusCode, err.Error())
	}
	return networkError("anthropic", err)
}
