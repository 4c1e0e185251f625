package mindmap

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agenthands/inkwell/internal/core/model"
)

// Mode is the state of the two-click add-edge interaction.
type Mode int

const (
	Idle Mode = iota
	AwaitingSource
	AwaitingTarget
)

func (m Mode) String() string {
	switch m {
	case AwaitingSource:
		return "awaiting_source"
	case AwaitingTarget:
		return "awaiting_target"
	default:
		return "idle"
	}
}

const (
	PlaceholderLabel = "New Node"
	// Random positions for nodes that arrive without one fall in [0, RandomRegion).
	RandomRegion = 500.0
)

var (
	FallbackPosition = model.Position{X: 250, Y: 250}
	DefaultCanvas    = Canvas{Width: 800, Height: 600}
)

// Canvas is the on-screen size of the diagram surface in pixels.
type Canvas struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Store persists one story's graph as a single unit.
type Store interface {
	LoadMindMap(ctx context.Context, storyID string) (model.Graph, error)
	SaveMindMap(ctx context.Context, storyID string, g model.Graph) error
}

// Generator draws a whole graph from story context.
type Generator interface {
	GenerateGraph(ctx context.Context, gc model.GenerationContext) (model.Graph, error)
}

// Editor owns the in-memory graph of one editing session. All methods are safe
// for concurrent use; mutations are serialised.
type Editor struct {
	mu sync.Mutex

	StoryID   string
	Store     Store
	Generator Generator
	Logger    *zap.Logger

	NewID  func() string
	Random func() float64

	nodes    []model.Node
	edges    []model.Edge
	viewport *model.Viewport
	canvas   Canvas
	mode     Mode
	source   string
}

func NewEditor(storyID string, store Store, gen Generator, logger *zap.Logger) *Editor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Editor{
		StoryID:   storyID,
		Store:     store,
		Generator: gen,
		Logger:    logger.With(zap.String("story_id", storyID)),
		NewID:     func() string { return uuid.New().String() },
		Random:    rand.Float64,
		nodes:     []model.Node{},
		edges:     []model.Edge{},
		canvas:    DefaultCanvas,
	}
}

// Mode returns the add-edge state and the remembered source node, if any.
func (e *Editor) Mode() (Mode, string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode, e.source
}

// Highlighted reports whether id is the remembered source of an add-edge interaction.
func (e *Editor) Highlighted(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode != Idle && e.source != "" && e.source == id
}

func (e *Editor) SetViewport(v model.Viewport) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.viewport = &v
}

func (e *Editor) SetCanvas(c Canvas) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if c.Width > 0 && c.Height > 0 {
		e.canvas = c
	}
}

// AddNode places a placeholder node in the middle of the viewport. It does nothing
// while an add-edge interaction is in progress.
func (e *Editor) AddNode() (model.Node, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.mode != Idle {
		return model.Node{}, false
	}

	pos := FallbackPosition
	if v := e.viewport; v != nil {
		zoom := v.Zoom
		if zoom <= 0 {
			zoom = 1
		}
		pos = model.Position{
			X: (-v.X + e.canvas.Width/2) / zoom,
			Y: (-v.Y + e.canvas.Height/2) / zoom,
		}
	}

	n := model.Node{
		ID:       e.NewID(),
		Position: &pos,
		Data:     model.NodeData{Label: PlaceholderLabel},
	}
	e.nodes = append(e.nodes, n)
	return n, true
}

// RelabelNode replaces a node's label. Empty or unchanged labels are ignored.
func (e *Editor) RelabelNode(id, label string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.relabel(id, label)
}

func (e *Editor) relabel(id, label string) bool {
	if strings.TrimSpace(label) == "" {
		return false
	}
	i := e.indexOfNode(id)
	if i < 0 || e.nodes[i].Data.Label == label {
		return false
	}
	e.nodes[i].Data.Label = label
	return true
}

// UpdateNode relabels and moves a node in one step. Nil arguments are left alone.
func (e *Editor) UpdateNode(id string, label *string, pos *model.Position) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	changed := false
	if label != nil && e.relabel(id, *label) {
		changed = true
	}
	if pos != nil && e.apply(Change{Type: ChangePosition, Target: TargetNode, ID: id, Position: pos}) {
		changed = true
	}
	return changed
}

func (e *Editor) MoveNode(id string, pos model.Position) bool {
	return e.ApplyChanges([]Change{{Type: ChangePosition, Target: TargetNode, ID: id, Position: &pos}}) > 0
}

// Connect adds an edge from source to target. Self-edges, unknown endpoints and
// an already existing source→target edge are rejected without error.
func (e *Editor) Connect(source, target string) (model.Edge, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.connect(source, target)
}

func (e *Editor) connect(source, target string) (model.Edge, bool) {
	if source == "" || source == target {
		return model.Edge{}, false
	}
	if e.indexOfNode(source) < 0 || e.indexOfNode(target) < 0 {
		return model.Edge{}, false
	}
	for _, ed := range e.edges {
		if ed.Source == source && ed.Target == target {
			return model.Edge{}, false
		}
	}
	ed := model.Edge{ID: e.NewID(), Source: source, Target: target}
	e.edges = append(e.edges, ed)
	return ed, true
}

// StartAddEdge enters the two-click add-edge interaction.
func (e *Editor) StartAddEdge() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.mode == Idle {
		e.mode = AwaitingSource
		e.source = ""
	}
}

// ClickNode feeds a node click into the add-edge interaction. Clicking a node
// other than the source returns the editor to Idle, with the created edge if
// the two were not already connected.
func (e *Editor) ClickNode(id string) (model.Edge, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.mode {
	case AwaitingSource:
		if e.indexOfNode(id) < 0 {
			return model.Edge{}, false
		}
		e.source = id
		e.mode = AwaitingTarget
	case AwaitingTarget:
		if id == e.source || e.indexOfNode(id) < 0 {
			return model.Edge{}, false
		}
		// Any other node ends the interaction, even when the edge already exists.
		ed, ok := e.connect(e.source, id)
		e.mode = Idle
		e.source = ""
		return ed, ok
	}
	return model.Edge{}, false
}

// Cancel leaves the add-edge interaction and forgets the remembered source.
func (e *Editor) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mode = Idle
	e.source = ""
}

// ReplaceGraph swaps in a whole new graph and resets the add-edge interaction.
// Nodes without a position get a random one.
func (e *Editor) ReplaceGraph(nodes []model.Node, edges []model.Edge) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.replace(nodes, edges)
}

func (e *Editor) replace(nodes []model.Node, edges []model.Edge) {
	e.nodes = make([]model.Node, len(nodes))
	copy(e.nodes, nodes)
	for i := range e.nodes {
		if e.nodes[i].Position == nil {
			e.nodes[i].Position = &model.Position{
				X: e.Random() * RandomRegion,
				Y: e.Random() * RandomRegion,
			}
		}
	}
	e.edges = make([]model.Edge, len(edges))
	copy(e.edges, edges)
	e.mode = Idle
	e.source = ""
}

// Snapshot returns a copy of the current graph.
func (e *Editor) Snapshot() model.Graph {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot()
}

func (e *Editor) snapshot() model.Graph {
	g := model.Graph{
		Nodes: make([]model.Node, len(e.nodes)),
		Edges: make([]model.Edge, len(e.edges)),
	}
	for i, n := range e.nodes {
		if n.Position != nil {
			p := *n.Position
			n.Position = &p
		}
		if n.Style != nil {
			style := make(map[string]interface{}, len(n.Style))
			for k, v := range n.Style {
				style[k] = v
			}
			n.Style = style
		}
		g.Nodes[i] = n
	}
	copy(g.Edges, e.edges)
	if e.viewport != nil {
		v := *e.viewport
		g.Viewport = &v
	}
	return g
}

// State is a consistent view of an editor at one moment.
type State struct {
	Graph    model.Graph
	Mode     Mode
	Source   string
	Dangling []model.Edge
}

func (e *Editor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return State{
		Graph:    e.snapshot(),
		Mode:     e.mode,
		Source:   e.source,
		Dangling: e.danglingLocked(),
	}
}

// DanglingEdges lists edges whose source or target is not a current node.
// Persisted graphs are loaded as they are; this is for diagnostics only.
func (e *Editor) DanglingEdges() []model.Edge {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.danglingLocked()
}

// Load replaces the in-memory graph and viewport with the persisted copy.
func (e *Editor) Load(ctx context.Context) error {
	g, err := e.Store.LoadMindMap(ctx, e.StoryID)
	if err != nil {
		return fmt.Errorf("failed to load mind map: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.replace(g.Nodes, g.Edges)
	e.viewport = g.Viewport

	if n := len(e.danglingLocked()); n > 0 {
		e.Logger.Warn("loaded mind map has dangling edges", zap.Int("count", n))
	}
	return nil
}

func (e *Editor) danglingLocked() []model.Edge {
	var out []model.Edge
	for _, ed := range e.edges {
		if e.indexOfNode(ed.Source) < 0 || e.indexOfNode(ed.Target) < 0 {
			out = append(out, ed)
		}
	}
	return out
}

// Save persists nodes, edges and viewport as one unit. The in-memory graph is
// kept whether or not the save succeeds.
func (e *Editor) Save(ctx context.Context) error {
	g := e.Snapshot()
	if err := e.Store.SaveMindMap(ctx, e.StoryID, g); err != nil {
		e.Logger.Error("failed to save mind map", zap.Error(err))
		return fmt.Errorf("failed to save mind map: %w", err)
	}
	e.Logger.Info("mind map saved", zap.Int("nodes", len(g.Nodes)), zap.Int("edges", len(g.Edges)))
	return nil
}

// Generate asks the generator for a new graph and, on success, replaces the
// current one with it. On any failure the current graph is left untouched.
func (e *Editor) Generate(ctx context.Context, gc model.GenerationContext) (model.Graph, error) {
	if err := ValidateContext(gc); err != nil {
		return model.Graph{}, err
	}
	if e.Generator == nil {
		return model.Graph{}, fmt.Errorf("%w: no generator configured", ErrUpstream)
	}

	g, err := e.Generator.GenerateGraph(ctx, gc)
	if err != nil {
		e.Logger.Warn("mind map generation failed", zap.Error(err))
		return model.Graph{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.replace(g.Nodes, g.Edges)
	return e.snapshot(), nil
}

// ValidateContext checks that every generation context field is non-empty.
func ValidateContext(gc model.GenerationContext) error {
	if strings.TrimSpace(gc.WorldContext) == "" ||
		strings.TrimSpace(gc.CharacterContext) == "" ||
		strings.TrimSpace(gc.OutlineContext) == "" {
		return ErrMissingContext
	}
	return nil
}

func (e *Editor) indexOfNode(id string) int {
	for i := range e.nodes {
		if e.nodes[i].ID == id {
			return i
		}
	}
	return -1
}
