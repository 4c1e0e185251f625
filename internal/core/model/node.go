package model

// Position is a free-form canvas coordinate.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type NodeData struct {
	Label string `json:"label"`
}

// Node is a mind-map node as the diagram surface expects it.
// Position is nil when a generated or persisted node arrives without one.
type Node struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type,omitempty"`
	Position  *Position              `json:"position,omitempty"`
	Data      NodeData               `json:"data"`
	Style     map[string]interface{} `json:"style,omitempty"`
	ClassName string                 `json:"className,omitempty"`
	Selected  bool                   `json:"selected,omitempty"`
}

type Viewport struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Zoom float64 `json:"zoom"`
}

// Graph is the unit persisted for one story's mind map.
type Graph struct {
	Nodes    []Node    `json:"nodes"`
	Edges    []Edge    `json:"edges"`
	Viewport *Viewport `json:"viewport,omitempty"`
}

// EmptyGraph returns a graph with non-nil, empty node and edge lists so it encodes as
// {"nodes":[],"edges":[]}.
func EmptyGraph() Graph {
	return Graph{Nodes: []Node{}, Edges: []Edge{}}
}
