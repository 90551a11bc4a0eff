// Package bedrock provides a synth.Client backed by the AWS Bedrock Converse
// API via github.com/aws/aws-sdk-go-v2/service/bedrockruntime.
package bedrock

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	smithy "github.com/aws/smithy-go"

	"goa.design/toolforge/features/synth"
)

type (
	// RuntimeClient captures the subset of the Bedrock runtime client used
	// by the adapter. It is satisfied by *bedrockruntime.Client so tests can
	// pass a mock.
	RuntimeClient interface {
		Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
	}

	// Options configures the adapter.
	Options struct {
		// ModelID is the Bedrock model identifier. Required.
		ModelID string
		// MaxTokens caps the completion. Defaults to 8192.
		MaxTokens int32
	}

	// Client implements synth.Client on top of Bedrock Converse.
	Client struct {
		runtime   RuntimeClient
		modelID   string
		maxTokens int32
	}
)

const defaultMaxTokens = 8192

// New builds a Bedrock-backed synth client.
func New(runtime RuntimeClient, opts Options) (*Client, error) {
	if runtime == nil {
		return nil, errors.New("bedrock runtime client is required")
	}
	if opts.ModelID == "" {
		return nil, errors.New("model identifier is required")
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &Client{runtime: runtime, modelID: opts.ModelID, maxTokens: maxTokens}, nil
}

// Complete implements synth.Client.
func (c *Client) Complete(ctx context.Context, system, prompt string) (string, error) {
	input := &bedrockruntime.ConverseInput{
		ModelId: aws.String(c.modelID),
		Messages: []brtypes.Message{{
			Role:    brtypes.ConversationRoleUser,
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: prompt}},
		}},
		InferenceConfig: &brtypes.InferenceConfiguration{
			MaxTokens: aws.Int32(c.maxTokens),
		},
	}
	if system != "" {
		input.System = []brtypes.SystemContentBlock{&brtypes.SystemContentBlockMemberText{Value: system}}
	}
	output, err := c.runtime.Converse(ctx, input)
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("bedrock: converse: %s: %s: %w", apiErr.ErrorCode(), apiErr.ErrorMessage(), err)
		}
		return "", fmt.Errorf("bedrock: converse: %w", err)
	}
	if output == nil {
		return "", errors.New("bedrock: response is nil")
	}
	msg, ok := output.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return "", fmt.Errorf("bedrock: unexpected output type %T", output.Output)
	}
	var sb strings.Builder
	for _, block := range msg.Value.Content {
		if v, ok := block.(*brtypes.ContentBlockMemberText); ok {
			sb.WriteString(v.Value)
		}
	}
	return sb.String(), nil
}

var _ synth.Client = (*Client)(nil)
