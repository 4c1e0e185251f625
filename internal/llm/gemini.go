package llm

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/agenthands/inkwell/internal/core/model"
)

type GeminiClient struct {
	client *genai.Client
	model  string
}

func NewGeminiClient(ctx context.Context, apiKey string, model string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &GeminiClient{
		client: client,
		model:  model,
	}, nil
}

func (c *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	gm := c.client.GenerativeModel(c.model)
	resp, err := gm.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}

	if text := responseText(resp); text != "" {
		return text, nil
	}
	return "", fmt.Errorf("no response candidates or content")
}

func (c *GeminiClient) Stream(ctx context.Context, messages []model.Message) (<-chan Chunk, error) {
	system, rest := splitSystem(messages)
	if len(rest) == 0 {
		return nil, fmt.Errorf("no message to send")
	}

	gm := c.client.GenerativeModel(c.model)
	if system != "" {
		gm.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	cs := gm.StartChat()
	for _, m := range rest[:len(rest)-1] {
		role := "user"
		if m.Role == model.RoleAssistant {
			role = "model"
		}
		cs.History = append(cs.History, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(m.Content)}})
	}

	iter := cs.SendMessageStream(ctx, genai.Text(rest[len(rest)-1].Content))
	e := newEmitter(ctx)
	go func() {
		for {
			resp, err := iter.Next()
			if err == iterator.Done {
				e.finish(nil)
				return
			}
			if err != nil {
				e.finish(err)
				return
			}
			if !e.text(responseText(resp)) {
				e.finish(ctx.Err())
				return
			}
		}
	}()
	return e.ch, nil
}

func (c *GeminiClient) Close() error {
	return c.client.Close()
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var out string
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			out += string(txt)
		}
	}
	return out
}
