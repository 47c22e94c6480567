// Package gemini adapts Google's Gemini API (google.golang.org/genai) to
// ports.AIProvider.
package gemini

import (
	"context"
	"strings"

	"google.golang.org/genai"

	"github.com/flapboard/contentcore/pkg/apperrors"
	"github.com/flapboard/contentcore/pkg/ports"
)

const defaultModel = "gemini-2.0-flash"

// Provider adapts a genai client to ports.AIProvider.
type Provider struct {
	client *genai.Client
}

// New builds a Provider authenticated with apiKey against the public
// Gemini API backend (not Vertex AI).
func New(ctx context.Context, apiKey string) (*Provider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindTransient, "gemini.New", "failed to build client", err)
	}
	return &Provider{client: client}, nil
}

// Name identifies this provider for tier selection and breaker circuit ids.
func (p *Provider) Name() string { return "gemini" }

// Generate sends req to the Gemini API and returns the completion.
func (p *Provider) Generate(ctx context.Context, req ports.GenerateRequest) (*ports.GenerateResponse, error) {
	model := req.Model
	if model == "" {
		model = defaultModel
	}

	config := &genai.GenerateContentConfig{}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.Temperature > 0 {
		t := float32(req.Temperature)
		config.Temperature = &t
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}

	resp, err := p.client.Models.GenerateContent(ctx, model, genai.Text(req.User), config)
	if err != nil {
		return nil, classifyError(err)
	}

	text := resp.Text()
	if text == "" {
		return nil, apperrors.New(apperrors.KindTransient, "gemini.Generate", "empty completion returned")
	}

	var tokens int
	var finishReason string
	if resp.UsageMetadata != nil {
		tokens = int(resp.UsageMetadata.TotalTokenCount)
	}
	if len(resp.Candidates) > 0 {
		finishReason = string(resp.Candidates[0].FinishReason)
	}

	return &ports.GenerateResponse{
		Text:         text,
		Model:        model,
		TokensUsed:   tokens,
		FinishReason: finishReason,
	}, nil
}

// ValidateConnection makes a minimal call to confirm the API key works.
func (p *Provider) ValidateConnection(ctx context.Context) bool {
	_, err := p.client.Models.GenerateContent(ctx, defaultModel, genai.Text("ping"), nil)
	return err == nil
}

func classifyError(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "RESOURCE_EXHAUSTED"):
		return apperrors.Wrap(apperrors.KindRateLimit, "gemini.Generate", "rate limited", err)
	case strings.Contains(msg, "401") || strings.Contains(msg, "403") || strings.Contains(msg, "PERMISSION_DENIED"):
		return apperrors.Wrap(apperrors.KindAuthentication, "gemini.Generate", "authentication failed", err)
	case strings.Contains(msg, "400") || strings.Contains(msg, "INVALID_ARGUMENT"):
		return apperrors.Wrap(apperrors.KindInvalidRequest, "gemini.Generate", "invalid request", err)
	case strings.Contains(msg, "503") || strings.Contains(msg, "UNAVAILABLE"):
		return apperrors.Wrap(apperrors.KindOverloaded, "gemini.Generate", "provider overloaded", err)
	default:
		return apperrors.Wrap(apperrors.KindTransient, "gemini.Generate", "request failed", err)
	}
}
