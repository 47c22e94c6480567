// Package anthropic adapts the Anthropic Messages API to ports.AIProvider.
package anthropic

import (
	"context"
	"errors"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/flapboard/contentcore/pkg/apperrors"
	"github.com/flapboard/contentcore/pkg/ports"
)

// Provider adapts an Anthropic client to ports.AIProvider.
type Provider struct {
	client anthropic.Client
}

// New builds a Provider authenticated with apiKey.
func New(apiKey string) *Provider {
	return &Provider{client: anthropic.NewClient(option.WithAPIKey(apiKey))}
}

// Name identifies this provider for tier selection and breaker circuit ids.
func (p *Provider) Name() string { return "anthropic" }

// Generate sends req to the Messages API and returns the completion.
func (p *Provider) Generate(ctx context.Context, req ports.GenerateRequest) (*ports.GenerateResponse, error) {
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	model := req.Model
	if model == "" {
		model = string(anthropic.ModelClaude3_5HaikuLatest)
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.User)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, classifyError(err)
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	return &ports.GenerateResponse{
		Text:         text,
		Model:        string(msg.Model),
		TokensUsed:   int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		FinishReason: string(msg.StopReason),
	}, nil
}

// ValidateConnection makes a minimal call to confirm the API key works.
func (p *Provider) ValidateConnection(ctx context.Context) bool {
	_, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.ModelClaude3_5HaikuLatest,
		MaxTokens: 1,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock("ping")),
		},
	})
	return err == nil
}

func classifyError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 429:
			return apperrors.Wrap(apperrors.KindRateLimit, "anthropic.Generate", "rate limited", err)
		case 401, 403:
			return apperrors.Wrap(apperrors.KindAuthentication, "anthropic.Generate", "authentication failed", err)
		case 400, 422:
			return apperrors.Wrap(apperrors.KindInvalidRequest, "anthropic.Generate", "invalid request", err)
		case 529, 503:
			return apperrors.Wrap(apperrors.KindOverloaded, "anthropic.Generate", "provider overloaded", err)
		}
	}
	return apperrors.Wrap(apperrors.KindTransient, "anthropic.Generate", "request failed", err)
}
