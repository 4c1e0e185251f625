package server

import (
	"context"
	"sync"

	"github.com/agenthands/inkwell/internal/core/model"
	"github.com/agenthands/inkwell/internal/llm"
)

// MockLLM answers Generate with Response and streams Chunks.
type MockLLM struct {
	mu sync.Mutex

	Response    string
	GenerateErr error
	Chunks      []llm.Chunk
	StreamErr   error

	Prompts  []string
	Messages [][]model.Message
}

func (m *MockLLM) Generate(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Prompts = append(m.Prompts, prompt)
	if m.GenerateErr != nil {
		return "", m.GenerateErr
	}
	return m.Response, nil
}

func (m *MockLLM) Stream(ctx context.Context, messages []model.Message) (<-chan llm.Chunk, error) {
	m.mu.Lock()
	m.Messages = append(m.Messages, messages)
	chunks, err := m.Chunks, m.StreamErr
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}

	ch := make(chan llm.Chunk)
	go func() {
		defer close(ch)
		for _, c := range chunks {
			select {
			case ch <- c:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

func (m *MockLLM) calls() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Prompts), len(m.Messages)
}

func textChunks(parts ...string) []llm.Chunk {
	var out []llm.Chunk
	for _, p := range parts {
		out = append(out, llm.Chunk{Text: p})
	}
	return append(out, llm.Chunk{Done: true})
}
