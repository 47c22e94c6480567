// Package openai adapts the OpenAI Chat Completions API to ports.AIProvider
// (openai.NewClient(option.WithAPIKey(...))).
package openai

import (
	"context"
	"errors"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/flapboard/contentcore/pkg/apperrors"
	"github.com/flapboard/contentcore/pkg/ports"
)

const defaultModel = openai.ChatModelGPT4o

// Provider adapts an OpenAI client to ports.AIProvider.
type Provider struct {
	client openai.Client
}

// New builds a Provider authenticated with apiKey.
func New(apiKey string) *Provider {
	return &Provider{client: openai.NewClient(option.WithAPIKey(apiKey))}
}

// Name identifies this provider for tier selection and breaker circuit ids.
func (p *Provider) Name() string { return "openai" }

// Generate sends req to the Chat Completions API and returns the result.
func (p *Provider) Generate(ctx context.Context, req ports.GenerateRequest) (*ports.GenerateResponse, error) {
	model := req.Model
	if model == "" {
		model = defaultModel
	}

	messages := []openai.ChatCompletionMessageParamUnion{}
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.User))

	params := openai.ChatCompletionNewParams{
		Model:    model,
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, classifyError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, apperrors.New(apperrors.KindTransient, "openai.Generate", "no completion choices returned")
	}

	choice := resp.Choices[0]
	return &ports.GenerateResponse{
		Text:         choice.Message.Content,
		Model:        resp.Model,
		TokensUsed:   int(resp.Usage.TotalTokens),
		FinishReason: choice.FinishReason,
	}, nil
}

// ValidateConnection makes a minimal call to confirm the API key works.
func (p *Provider) ValidateConnection(ctx context.Context) bool {
	_, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               openai.ChatModelGPT4oMini,
		MaxCompletionTokens: openai.Int(1),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage("ping"),
		},
	})
	return err == nil
}

func classifyError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 429:
			return apperrors.Wrap(apperrors.KindRateLimit, "openai.Generate", "rate limited", err)
		case 401, 403:
			return apperrors.Wrap(apperrors.KindAuthentication, "openai.Generate", "authentication failed", err)
		case 400, 422:
			return apperrors.Wrap(apperrors.KindInvalidRequest, "openai.Generate", "invalid request", err)
		case 503:
			return apperrors.Wrap(apperrors.KindOverloaded, "openai.Generate", "provider overloaded", err)
		}
	}
	return apperrors.Wrap(apperrors.KindTransient, "openai.Generate", "request failed", err)
}
