package mindmap

import (
	"context"
	"fmt"

	"github.com/agenthands/inkwell/internal/core/model"
)

type MockStore struct {
	Graphs  map[string]model.Graph
	Saves   int
	SaveErr error
	LoadErr error
}

func NewMockStore() *MockStore {
	return &MockStore{Graphs: make(map[string]model.Graph)}
}

func (m *MockStore) LoadMindMap(ctx context.Context, storyID string) (model.Graph, error) {
	if m.LoadErr != nil {
		return model.Graph{}, m.LoadErr
	}
	g, ok := m.Graphs[storyID]
	if !ok {
		return model.EmptyGraph(), nil
	}
	return g, nil
}

func (m *MockStore) SaveMindMap(ctx context.Context, storyID string, g model.Graph) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.Saves++
	m.Graphs[storyID] = g
	return nil
}

type MockGenerator struct {
	Graph model.Graph
	Err   error
	Calls int
}

func (m *MockGenerator) GenerateGraph(ctx context.Context, gc model.GenerationContext) (model.Graph, error) {
	m.Calls++
	if m.Err != nil {
		return model.Graph{}, m.Err
	}
	return m.Graph, nil
}

type MockLLM struct {
	Response string
	Err      error
	Prompts  []string
}

func (m *MockLLM) Generate(ctx context.Context, prompt string) (string, error) {
	m.Prompts = append(m.Prompts, prompt)
	if m.Err != nil {
		return "", m.Err
	}
	return m.Response, nil
}

// sequentialIDs makes ids predictable: id-1, id-2, ...
func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}
