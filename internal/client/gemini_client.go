package client

import (
	"context"
	"errors"

	"google.golang.org/genai"

	"github.com/songforge/api/internal/config"
)

// TextGenerator defines the interface for the text-generation collaborator
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
	IsConfigured() bool
}

// GeminiClient implements TextGenerator using the official Gemini SDK
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient creates a Gemini client for lyrics generation
func NewGeminiClient(ctx context.Context, cfg *config.GeminiConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return &GeminiClient{client: c, model: cfg.Model}, nil
}

// GenerateText sends a single-turn prompt and returns the model's text reply
func (g *GeminiClient) GenerateText(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(
		ctx,
		g.model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{
			Temperature: genai.Ptr[float32](0.1),
		},
	)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

// IsConfigured returns true if the client has valid configuration
func (g *GeminiClient) IsConfigured() bool {
	return g != nil && g.client != nil
}
