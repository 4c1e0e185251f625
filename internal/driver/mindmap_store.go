package driver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/agenthands/inkwell/internal/core/model"
)

// MindMapStore keeps mind maps in Memgraph. Nodes and edges are stored as
// elements of a :MindMap node carrying their full JSON, so edges whose
// endpoints are missing survive a round trip.
type MindMapStore struct {
	Driver GraphDriver
}

func NewMindMapStore(d GraphDriver) *MindMapStore {
	return &MindMapStore{Driver: d}
}

func (s *MindMapStore) SaveMindMap(ctx context.Context, storyID string, g model.Graph) error {
	nodes := make([]map[string]interface{}, 0, len(g.Nodes))
	for i, n := range g.Nodes {
		data, err := json.Marshal(n)
		if err != nil {
			return fmt.Errorf("failed to encode node %s: %w", n.ID, err)
		}
		nodes = append(nodes, map[string]interface{}{
			"ord":   i,
			"id":    n.ID,
			"label": n.Data.Label,
			"json":  string(data),
		})
	}

	edges := make([]map[string]interface{}, 0, len(g.Edges))
	for i, e := range g.Edges {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to encode edge %s: %w", e.ID, err)
		}
		edges = append(edges, map[string]interface{}{
			"ord":    i,
			"id":     e.ID,
			"source": e.Source,
			"target": e.Target,
			"json":   string(data),
		})
	}

	var viewport interface{}
	if g.Viewport != nil {
		data, err := json.Marshal(g.Viewport)
		if err != nil {
			return fmt.Errorf("failed to encode viewport: %w", err)
		}
		viewport = string(data)
	}

	params := map[string]interface{}{
		"story_id":   storyID,
		"viewport":   viewport,
		"updated_at": time.Now().UTC().Format(time.RFC3339),
		"nodes":      nodes,
		"edges":      edges,
	}
	if _, err := s.Driver.ExecuteQuery(ctx, SaveMindMapQuery, params); err != nil {
		return fmt.Errorf("failed to save mind map: %w", err)
	}
	return nil
}

func (s *MindMapStore) LoadMindMap(ctx context.Context, storyID string) (model.Graph, error) {
	params := map[string]interface{}{"story_id": storyID}

	head, err := s.Driver.ExecuteQuery(ctx, GetMindMapQuery, params)
	if err != nil {
		return model.Graph{}, fmt.Errorf("failed to load mind map: %w", err)
	}
	g := model.EmptyGraph()
	if len(head.Records) == 0 {
		return g, nil
	}

	if raw, ok := head.Records[0].Get("viewport"); ok {
		if str, ok := raw.(string); ok && str != "" {
			var v model.Viewport
			if err := json.Unmarshal([]byte(str), &v); err != nil {
				return model.Graph{}, fmt.Errorf("failed to decode viewport: %w", err)
			}
			g.Viewport = &v
		}
	}

	res, err := s.Driver.ExecuteQuery(ctx, GetMindMapElementsQuery, params)
	if err != nil {
		return model.Graph{}, fmt.Errorf("failed to load mind map elements: %w", err)
	}
	for _, rec := range res.Records {
		kind, _ := rec.Get("kind")
		raw, _ := rec.Get("json")
		str, _ := raw.(string)

		switch kind {
		case "node":
			var n model.Node
			if err := json.Unmarshal([]byte(str), &n); err != nil {
				return model.Graph{}, fmt.Errorf("failed to decode node: %w", err)
			}
			g.Nodes = append(g.Nodes, n)
		case "edge":
			var e model.Edge
			if err := json.Unmarshal([]byte(str), &e); err != nil {
				return model.Graph{}, fmt.Errorf("failed to decode edge: %w", err)
			}
			g.Edges = append(g.Edges, e)
		}
	}
	return g, nil
}
