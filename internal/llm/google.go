package llm

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	googleoption "google.golang.org/api/option"
)

// googleProvider implements Provider using the Google Generative AI SDK.
// The API key is stored at construction time; a new genai.Client is created
// per Complete call so that the caller's context governs the connection and
// the client is always closed after use.
type googleProvider struct {
	apiKey string
	model  string
}

func newGoogleProvider(model string) (Provider, error) {
	apiKey := os.Getenv("GOOGLE_API_KEY")
	if apiKey == "" {
		return nil, &ProviderError{
			Provider: "google",
			Kind:     ErrAuth,
			Message:  "GOOGLE_API_KEY environment variable not set",
		}
	}
	return &googleProvider{apiKey: apiKey, model: model}, nil
}

func (p *googleProvider) Name() string  { return "google" }
func (p *googleProvider) Model() string { return p.model }

func (p *googleProvider) Complete(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error) {
	client, err := genai.NewClient(ctx, googleoption.WithAPIKey(p.apiKey))
	if err != nil {
		return "", p.mapError(err)
	}
	defer client.Close()

	m := client.GenerativeModel(p.model)
	maxOut := int32(maxTokens)
	m.MaxOutputTokens = &maxOut
	temp32 := float32(temperature)
	m.Temperature = &temp32
	// Force JSON output mode to prevent the model from wrapping the response
	// in markdown code fences.
	m.ResponseMIMEType = "application/json"

	resp, err := m.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", p.mapError(err)
	}

	var parts []string
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				parts = append(parts, string(t))
			}
		}
	}
	if len(parts) == 0 {
		return "", emptyResponseError("google")
	}
	return strings.Join(parts, ""), nil
}

func (p *googleProvider) mapError(err error) error {
	if ce := ctxError("google", err); ce != nil {
		return ce
	}
	var apierr *googleapi.Error
	if errors.As(err, &apierr) {
		return statusError("google", apierr.Code, err.Error())
	}
	return networkError("google", err)
}
