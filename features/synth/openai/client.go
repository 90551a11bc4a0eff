// Package openai provides a synth.Client backed by the OpenAI Chat
// Completions API via github.com/openai/openai-go.
package openai

import (
	"context"
	"errors"
	"fmt"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"goa.design/toolforge/features/synth"
)

type (
	// CompletionsClient captures the subset of the OpenAI SDK used by the
	// adapter. It is satisfied by the SDK's chat completion service so tests
	// can pass a mock.
	CompletionsClient interface {
		New(ctx context.Context, body sdk.ChatCompletionNewParams, opts ...option.RequestOption) (*sdk.ChatCompletion, error)
	}

	// Options configures the adapter.
	Options struct {
		// Model is the chat model identifier. Required.
		Model string
		// MaxTokens caps the completion. Defaults to 8192.
		MaxTokens int64
	}

	// Client implements synth.Client on top of Chat Completions.
	Client struct {
		chat      CompletionsClient
		model     string
		maxTokens int64
	}
)

const defaultMaxTokens = 8192

// New builds an OpenAI-backed synth client.
func New(chat CompletionsClient, opts Options) (*Client, error) {
	if chat == nil {
		return nil, errors.New("openai completions client is required")
	}
	if opts.Model == "" {
		return nil, errors.New("model identifier is required")
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &Client{chat: chat, model: opts.Model, maxTokens: maxTokens}, nil
}

// NewFromAPIKey constructs a client using the default OpenAI HTTP client.
func NewFromAPIKey(apiKey, model string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("api key is required")
	}
	oc := sdk.NewClient(option.WithAPIKey(apiKey))
	return New(&oc.Chat.Completions, Options{Model: model})
}

// Complete implements synth.Client.
func (c *Client) Complete(ctx context.Context, system, prompt string) (string, error) {
	messages := make([]sdk.ChatCompletionMessageParamUnion, 0, 2)
	if system != "" {
		messages = append(messages, sdk.SystemMessage(system))
	}
	messages = append(messages, sdk.UserMessage(prompt))
	resp, err := c.chat.New(ctx, sdk.ChatCompletionNewParams{
		Model:               sdk.ChatModel(c.model),
		Messages:            messages,
		MaxCompletionTokens: sdk.Int(c.maxTokens),
	})
	if err != nil {
		return "", fmt.Errorf("openai: complete: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", errors.New("openai: response has no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

var _ synth.Client = (*Client)(nil)
