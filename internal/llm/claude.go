package llm

import (
	"context"
	"fmt"

	"github.com/liushuangls/go-anthropic/v2"

	"github.com/agenthands/inkwell/internal/core/model"
)

const defaultClaudeMaxTokens = 4096

type ClaudeClient struct {
	client    *anthropic.Client
	model     string
	maxTokens int
}

func NewClaudeClient(apiKey, model, baseURL string, maxTokens int) *ClaudeClient {
	var opts []anthropic.ClientOption
	if baseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(baseURL))
	}
	if maxTokens <= 0 {
		maxTokens = defaultClaudeMaxTokens
	}

	return &ClaudeClient{
		client:    anthropic.NewClient(apiKey, opts...),
		model:     model,
		maxTokens: maxTokens,
	}
}

func (c *ClaudeClient) request(messages []model.Message) anthropic.MessagesRequest {
	system, rest := splitSystem(messages)
	msgs := make([]anthropic.Message, 0, len(rest))
	for _, m := range rest {
		role := anthropic.RoleUser
		if m.Role == model.RoleAssistant {
			role = anthropic.RoleAssistant
		}
		msgs = append(msgs, anthropic.Message{
			Role:    role,
			Content: []anthropic.MessageContent{anthropic.NewTextMessageContent(m.Content)},
		})
	}
	return anthropic.MessagesRequest{
		Model:     anthropic.Model(c.model),
		System:    system,
		Messages:  msgs,
		MaxTokens: c.maxTokens,
	}
}

func (c *ClaudeClient) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateMessages(ctx, c.request([]model.Message{{Role: model.RoleUser, Content: prompt}}))
	if err != nil {
		return "", err
	}

	if len(resp.Content) > 0 && resp.Content[0].Text != nil {
		return *resp.Content[0].Text, nil
	}
	return "", fmt.Errorf("no response content")
}

// Stream runs the blocking SSE call in its own goroutine and forwards text deltas.
func (c *ClaudeClient) Stream(ctx context.Context, messages []model.Message) (<-chan Chunk, error) {
	req := c.request(messages)
	e := newEmitter(ctx)

	go func() {
		_, err := c.client.CreateMessagesStream(ctx, anthropic.MessagesStreamRequest{
			MessagesRequest: req,
			OnContentBlockDelta: func(data anthropic.MessagesEventContentBlockDeltaData) {
				if data.Delta.Text != nil {
					e.text(*data.Delta.Text)
				}
			},
		})
		if err == nil && ctx.Err() != nil {
			err = ctx.Err()
		}
		e.finish(err)
	}()
	return e.ch, nil
}
