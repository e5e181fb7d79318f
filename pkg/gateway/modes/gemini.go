package modes

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GeminiBackend generates mode configurations through the Gemini API
// in JSON mode.
type GeminiBackend struct {
	client *genai.Client
	model  string
}

// NewGeminiBackend returns a backend using the given key and model.
func NewGeminiBackend(ctx context.Context, apiKey, model string) (*GeminiBackend, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return &GeminiBackend{client: client, model: model}, nil
}

// Provider implements Backend.
func (b *GeminiBackend) Provider() string {
	return "gemini"
}

// Complete implements Backend.
func (b *GeminiBackend) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := b.client.Models.GenerateContent(ctx, b.model, genai.Text(user), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		ResponseMIMEType:  "application/json",
	})
	if err != nil {
		return "", err
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("model returned no text")
	}
	return text, nil
}
