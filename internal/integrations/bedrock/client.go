// Package bedrock adapts the Bedrock Converse API to the chat-completion
// shape used by the assistant.
package bedrock

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"sales-assistant/internal/domain"
)

// converseAPI is the subset of *bedrockruntime.Client used here.
type converseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

type Client struct {
	api         converseAPI
	maxTokens   int32
	temperature *float32
}

type Option func(*Client)

func WithMaxTokens(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxTokens = int32(n)
		}
	}
}

func WithTemperature(t float64) Option {
	return func(c *Client) {
		c.temperature = aws.Float32(float32(t))
	}
}

func NewClient(api converseAPI, opts ...Option) (*Client, error) {
	if api == nil {
		return nil, errors.New("bedrock: converse api must not be nil")
	}
	c := &Client{api: api}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Chat sends messages to model and returns the concatenated text output.
// System messages become system blocks; empty messages are skipped.
func (c *Client) Chat(ctx context.Context, model string, messages []domain.ChatMessage) (string, error) {
	if strings.TrimSpace(model) == "" {
		return "", errors.New("bedrock: model id must not be empty")
	}

	var system []brtypes.SystemContentBlock
	turns := make([]brtypes.Message, 0, len(messages))
	for _, msg := range messages {
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			continue
		}
		switch msg.Role {
		case domain.RoleSystem:
			system = append(system, &brtypes.SystemContentBlockMemberText{Value: content})
		case domain.RoleUser:
			turns = appendTurn(turns, brtypes.ConversationRoleUser, content)
		case domain.RoleAssistant:
			turns = appendTurn(turns, brtypes.ConversationRoleAssistant, content)
		default:
			return "", fmt.Errorf("bedrock: unsupported role %q", msg.Role)
		}
	}
	// Converse requires the conversation to open with a user turn.
	for len(turns) > 0 && turns[0].Role != brtypes.ConversationRoleUser {
		turns = turns[1:]
	}
	if len(turns) == 0 {
		return "", errors.New("bedrock: no user message to send")
	}

	var inference *brtypes.InferenceConfiguration
	if c.maxTokens > 0 || c.temperature != nil {
		inference = &brtypes.InferenceConfiguration{Temperature: c.temperature}
		if c.maxTokens > 0 {
			inference.MaxTokens = aws.Int32(c.maxTokens)
		}
	}

	out, err := c.api.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId:         aws.String(model),
		System:          system,
		Messages:        turns,
		InferenceConfig: inference,
	})
	if err != nil {
		return "", fmt.Errorf("bedrock: converse: %w", err)
	}
	return outputText(out)
}

// appendTurn merges consecutive messages of the same role, which Converse
// rejects.
func appendTurn(turns []brtypes.Message, role brtypes.ConversationRole, content string) []brtypes.Message {
	if n := len(turns); n > 0 && turns[n-1].Role == role {
		turns[n-1].Content = append(turns[n-1].Content, &brtypes.ContentBlockMemberText{Value: content})
		return turns
	}
	return append(turns, brtypes.Message{
		Role:    role,
		Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: content}},
	})
}

func outputText(out *bedrockruntime.ConverseOutput) (string, error) {
	if out == nil {
		return "", errors.New("bedrock: response is nil")
	}
	msg, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return "", errors.New("bedrock: response did not include a message")
	}
	var b strings.Builder
	for _, block := range msg.Value.Content {
		if text, ok := block.(*brtypes.ContentBlockMemberText); ok {
			b.WriteString(text.Value)
		}
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", errors.New("bedrock: response contained no text")
	}
	return b.String(), nil
}
