package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GoogleProvider serves the gemini-2.5-flash chat model.
type GoogleProvider struct {
	client *genai.Client
}

func NewGoogleProvider(ctx context.Context, apiKey string) (*GoogleProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("google: no API key configured")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("google: client init failed: %w", err)
	}
	return &GoogleProvider{client: client}, nil
}

func (p *GoogleProvider) Models() []string {
	return []string{ModelGeminiFlash}
}

func (p *GoogleProvider) Complete(ctx context.Context, model, system, user string) (string, error) {
	var cfg *genai.GenerateContentConfig
	if system != "" {
		cfg = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		}
	}

	resp, err := p.client.Models.GenerateContent(ctx, model, genai.Text(user), cfg)
	if err != nil {
		return "", fmt.Errorf("google completion failed: %w", err)
	}
	content := strings.TrimSpace(resp.Text())
	if content == "" {
		return "", ErrEmptyResponse
	}
	return content, nil
}
