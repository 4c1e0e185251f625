package mindmap

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agenthands/inkwell/internal/core/common"
	"github.com/agenthands/inkwell/internal/core/model"
	"github.com/agenthands/inkwell/internal/llm"
)

// LLMGenerator asks a language model for a mind map and validates its shape.
type LLMGenerator struct {
	LLM    llm.LLMClient
	Prompt string
	Logger *zap.Logger
	NewID  func() string
}

func NewLLMGenerator(client llm.LLMClient, prompt string, logger *zap.Logger) *LLMGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMGenerator{
		LLM:    client,
		Prompt: prompt,
		Logger: logger,
		NewID:  func() string { return uuid.New().String() },
	}
}

func (g *LLMGenerator) GenerateGraph(ctx context.Context, gc model.GenerationContext) (model.Graph, error) {
	if err := ValidateContext(gc); err != nil {
		return model.Graph{}, err
	}

	prompt, err := common.Render("mind_map", g.Prompt, gc)
	if err != nil {
		return model.Graph{}, err
	}

	resp, err := g.LLM.Generate(ctx, prompt)
	if err != nil {
		return model.Graph{}, fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	graph, err := DecodeGraph(resp)
	if err != nil {
		g.Logger.Warn("model returned an unusable mind map", zap.Error(err))
		return model.Graph{}, err
	}

	graph.Edges = CleanEdges(graph.Edges, g.NewID)

	g.Logger.Info("mind map generated", zap.Int("nodes", len(graph.Nodes)), zap.Int("edges", len(graph.Edges)))
	return graph, nil
}

// DecodeGraph validates and decodes a generated graph. The object must carry
// "nodes" and "edges" arrays; every node needs a unique id and every edge a
// source and a target.
func DecodeGraph(response string) (model.Graph, error) {
	fields, err := common.ParseJSON[map[string]json.RawMessage](response)
	if err != nil {
		return model.Graph{}, fmt.Errorf("%w: %w", ErrMalformedGraph, err)
	}

	for _, key := range []string{"nodes", "edges"} {
		raw, ok := fields[key]
		if !ok {
			return model.Graph{}, fmt.Errorf("%w: missing %q", ErrMalformedGraph, key)
		}
		if trimmed := bytes.TrimSpace(raw); len(trimmed) == 0 || trimmed[0] != '[' {
			return model.Graph{}, fmt.Errorf("%w: %q is not an array", ErrMalformedGraph, key)
		}
	}

	g := model.EmptyGraph()
	if err := json.Unmarshal(fields["nodes"], &g.Nodes); err != nil {
		return model.Graph{}, fmt.Errorf("%w: nodes: %w", ErrMalformedGraph, err)
	}
	if err := json.Unmarshal(fields["edges"], &g.Edges); err != nil {
		return model.Graph{}, fmt.Errorf("%w: edges: %w", ErrMalformedGraph, err)
	}

	if err := CheckGraph(g); err != nil {
		return model.Graph{}, fmt.Errorf("%w: %w", ErrMalformedGraph, err)
	}
	return g, nil
}
