package mindmap

import "github.com/agenthands/inkwell/internal/core/model"

type ChangeType string

const (
	ChangePosition ChangeType = "position"
	ChangeSelect   ChangeType = "select"
	ChangeRemove   ChangeType = "remove"
)

type ChangeTarget string

const (
	TargetNode ChangeTarget = "node"
	TargetEdge ChangeTarget = "edge"
)

// Change is one update reported by the diagram surface. Changes are applied
// as-is: removing a node does not remove its edges.
type Change struct {
	Type     ChangeType      `json:"type"`
	Target   ChangeTarget    `json:"target"`
	ID       string          `json:"id"`
	Position *model.Position `json:"position,omitempty"`
	Selected bool            `json:"selected,omitempty"`
}

// ApplyChanges applies a change set and returns how many changes took effect.
// Unknown ids and unsupported combinations are skipped.
func (e *Editor) ApplyChanges(changes []Change) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	applied := 0
	for _, c := range changes {
		if e.apply(c) {
			applied++
		}
	}
	return applied
}

func (e *Editor) apply(c Change) bool {
	if c.Target == TargetEdge {
		i := -1
		for j := range e.edges {
			if e.edges[j].ID == c.ID {
				i = j
				break
			}
		}
		if i < 0 {
			return false
		}
		switch c.Type {
		case ChangeSelect:
			e.edges[i].Selected = c.Selected
		case ChangeRemove:
			e.edges = append(e.edges[:i], e.edges[i+1:]...)
		default:
			return false
		}
		return true
	}

	i := e.indexOfNode(c.ID)
	if i < 0 {
		return false
	}
	switch c.Type {
	case ChangePosition:
		if c.Position == nil {
			return false
		}
		p := *c.Position
		e.nodes[i].Position = &p
	case ChangeSelect:
		e.nodes[i].Selected = c.Selected
	case ChangeRemove:
		if e.source == c.ID {
			e.mode = Idle
			e.source = ""
		}
		e.nodes = append(e.nodes[:i], e.nodes[i+1:]...)
	default:
		return false
	}
	return true
}
