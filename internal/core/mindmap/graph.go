package mindmap

import (
	"fmt"

	"github.com/agenthands/inkwell/internal/core/model"
)

// CheckGraph reports the first node without a unique id or edge without both
// endpoints. Edges pointing at missing nodes are allowed.
func CheckGraph(g model.Graph) error {
	seen := make(map[string]struct{}, len(g.Nodes))
	for i, n := range g.Nodes {
		if n.ID == "" {
			return fmt.Errorf("node %d has no id", i)
		}
		if _, dup := seen[n.ID]; dup {
			return fmt.Errorf("duplicate node id %q", n.ID)
		}
		seen[n.ID] = struct{}{}
	}
	for i, e := range g.Edges {
		if e.Source == "" || e.Target == "" {
			return fmt.Errorf("edge %d needs a source and a target", i)
		}
	}
	return nil
}

// CleanEdges drops self-edges and gives every edge whose id is empty or
// already taken a fresh one.
func CleanEdges(edges []model.Edge, newID func() string) []model.Edge {
	kept := make([]model.Edge, 0, len(edges))
	seen := make(map[string]struct{}, len(edges))
	for _, e := range edges {
		if e.Source == e.Target {
			continue
		}
		if _, dup := seen[e.ID]; e.ID == "" || dup {
			e.ID = newID()
		}
		seen[e.ID] = struct{}{}
		kept = append(kept, e)
	}
	return kept
}
