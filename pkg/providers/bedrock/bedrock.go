// Package bedrock adapts Amazon Bedrock's Converse API to ports.AIProvider
// (aws-sdk-go-v2 config loading, bedrockruntime.Converse request/response
// shape).
package bedrock

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/flapboard/contentcore/pkg/apperrors"
	"github.com/flapboard/contentcore/pkg/ports"
)

const defaultModelID = "anthropic.claude-3-7-sonnet-20250219-v1:0"

// Provider adapts a bedrockruntime client to ports.AIProvider.
type Provider struct {
	client *bedrockruntime.Client
}

// New builds a Provider using the default AWS credential chain for region.
func New(ctx context.Context, region string) (*Provider, error) {
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindTransient, "bedrock.New", "failed to load AWS config", err)
	}
	return &Provider{client: bedrockruntime.NewFromConfig(awsCfg)}, nil
}

// Name identifies this provider for tier selection and breaker circuit ids.
func (p *Provider) Name() string { return "bedrock" }

// Generate sends req through the Converse API and returns the completion.
func (p *Provider) Generate(ctx context.Context, req ports.GenerateRequest) (*ports.GenerateResponse, error) {
	modelID := req.Model
	if modelID == "" {
		modelID = defaultModelID
	}

	maxTokens := int32(1024)
	if req.MaxTokens > 0 {
		maxTokens = int32(req.MaxTokens)
	}
	inferenceConfig := &types.InferenceConfiguration{MaxTokens: aws.Int32(maxTokens)}
	if req.Temperature > 0 {
		inferenceConfig.Temperature = aws.Float32(float32(req.Temperature))
	}

	input := &bedrockruntime.ConverseInput{
		ModelId: aws.String(modelID),
		Messages: []types.Message{
			{
				Role:    types.ConversationRoleUser,
				Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: req.User}},
			},
		},
		InferenceConfig: inferenceConfig,
	}
	if req.System != "" {
		input.System = []types.SystemContentBlock{&types.SystemContentBlockMemberText{Value: req.System}}
	}

	output, err := p.client.Converse(ctx, input)
	if err != nil {
		return nil, classifyError(err)
	}

	var text string
	if msg, ok := output.Output.(*types.ConverseOutputMemberMessage); ok {
		for _, block := range msg.Value.Content {
			if tb, ok := block.(*types.ContentBlockMemberText); ok {
				text += tb.Value
			}
		}
	}
	if text == "" {
		return nil, apperrors.New(apperrors.KindTransient, "bedrock.Generate", "empty completion returned")
	}

	var tokens int
	if output.Usage != nil {
		tokens = int(aws.ToInt32(output.Usage.TotalTokens))
	}

	return &ports.GenerateResponse{
		Text:         text,
		Model:        modelID,
		TokensUsed:   tokens,
		FinishReason: string(output.StopReason),
	}, nil
}

// ValidateConnection makes a minimal call to confirm credentials and the
// model id are usable.
func (p *Provider) ValidateConnection(ctx context.Context) bool {
	_, err := p.client.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId: aws.String(defaultModelID),
		Messages: []types.Message{
			{Role: types.ConversationRoleUser, Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: "ping"}}},
		},
		InferenceConfig: &types.InferenceConfiguration{MaxTokens: aws.Int32(1)},
	})
	return err == nil
}

func classifyError(err error) error {
	var throttled *types.ThrottlingException
	if errors.As(err, &throttled) {
		return apperrors.Wrap(apperrors.KindRateLimit, "bedrock.Generate", "rate limited", err)
	}
	var denied *types.AccessDeniedException
	if errors.As(err, &denied) {
		return apperrors.Wrap(apperrors.KindAuthentication, "bedrock.Generate", "access denied", err)
	}
	var validation *types.ValidationException
	if errors.As(err, &validation) {
		return apperrors.Wrap(apperrors.KindInvalidRequest, "bedrock.Generate", "invalid request", err)
	}
	var unavailable *types.ServiceUnavailableException
	if errors.As(err, &unavailable) {
		return apperrors.Wrap(apperrors.KindOverloaded, "bedrock.Generate", "provider overloaded", err)
	}
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == 503 {
		return apperrors.Wrap(apperrors.KindOverloaded, "bedrock.Generate", "provider overloaded", err)
	}
	return apperrors.Wrap(apperrors.KindTransient, "bedrock.Generate", "request failed", err)
}
