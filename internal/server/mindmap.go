package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agenthands/inkwell/internal/core/mindmap"
	"github.com/agenthands/inkwell/internal/core/model"
)

// MindMapPayload is the persisted mind map as the client exchanges it.
type MindMapPayload struct {
	MindMapData *model.Graph `json:"mindMapData" binding:"required"`
}

func (s *Server) GetMindMap(c *gin.Context) {
	g, err := s.MindMaps.LoadMindMap(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, MindMapPayload{MindMapData: &g})
}

func (s *Server) PutMindMap(c *gin.Context) {
	var req MindMapPayload
	if !s.bind(c, &req) {
		return
	}
	g := *req.MindMapData
	if g.Nodes == nil || g.Edges == nil {
		s.fail(c, fmt.Errorf("%w: mindMapData needs nodes and edges", errBadRequest))
		return
	}
	if err := s.MindMaps.SaveMindMap(c.Request.Context(), c.Param("id"), g); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, MindMapPayload{MindMapData: &g})
}

// GenerateMindMap produces a graph from the given context without touching any
// stored mind map.
func (s *Server) GenerateMindMap(c *gin.Context) {
	var gc model.GenerationContext
	if !s.bind(c, &gc) {
		return
	}
	if err := mindmap.ValidateContext(gc); err != nil {
		s.fail(c, err)
		return
	}
	g, err := s.Generator.GenerateGraph(c.Request.Context(), gc)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"nodes": g.Nodes, "edges": g.Edges})
}

// SessionState is what every session endpoint reports back.
type SessionState struct {
	SessionID string       `json:"sessionId"`
	StoryID   string       `json:"storyId"`
	Graph     model.Graph  `json:"graph"`
	Mode      string       `json:"mode"`
	Source    string       `json:"source,omitempty"`
	Dangling  []model.Edge `json:"dangling,omitempty"`
}

// SessionResult pairs the state after an operation with whether it changed anything.
type SessionResult struct {
	Changed bool         `json:"changed"`
	Node    *model.Node  `json:"node,omitempty"`
	Edge    *model.Edge  `json:"edge,omitempty"`
	Applied int          `json:"applied,omitempty"`
	State   SessionState `json:"state"`
}

func sessionState(id string, e *mindmap.Editor) SessionState {
	st := e.State()
	return SessionState{
		SessionID: id,
		StoryID:   e.StoryID,
		Graph:     st.Graph,
		Mode:      st.Mode.String(),
		Source:    st.Source,
		Dangling:  st.Dangling,
	}
}

// editor holds the session for the rest of the request; callers defer release.
func (s *Server) editor(c *gin.Context) (string, *mindmap.Editor, func(), bool) {
	id := c.Param("sid")
	e, release, err := s.Sessions.Acquire(id)
	if err != nil {
		s.fail(c, err)
		return "", nil, nil, false
	}
	return id, e, release, true
}

func (s *Server) OpenSession(c *gin.Context) {
	id, e, err := s.Sessions.Open(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, sessionState(id, e))
}

func (s *Server) GetSession(c *gin.Context) {
	id, e, release, ok := s.editor(c)
	if !ok {
		return
	}
	defer release()
	c.JSON(http.StatusOK, sessionState(id, e))
}

func (s *Server) CloseSession(c *gin.Context) {
	if err := s.Sessions.Close(c.Param("sid")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) AddNode(c *gin.Context) {
	id, e, release, ok := s.editor(c)
	if !ok {
		return
	}
	defer release()
	res := SessionResult{}
	if n, added := e.AddNode(); added {
		res.Changed, res.Node = true, &n
	}
	res.State = sessionState(id, e)
	c.JSON(http.StatusOK, res)
}

type UpdateNodeRequest struct {
	Label    *string         `json:"label"`
	Position *model.Position `json:"position"`
}

func (s *Server) UpdateNode(c *gin.Context) {
	id, e, release, ok := s.editor(c)
	if !ok {
		return
	}
	defer release()
	var req UpdateNodeRequest
	if !s.bind(c, &req) {
		return
	}
	changed := e.UpdateNode(c.Param("nid"), req.Label, req.Position)
	c.JSON(http.StatusOK, SessionResult{Changed: changed, State: sessionState(id, e)})
}

type ChangesRequest struct {
	Changes []mindmap.Change `json:"changes" binding:"required"`
}

func (s *Server) ApplyChanges(c *gin.Context) {
	id, e, release, ok := s.editor(c)
	if !ok {
		return
	}
	defer release()
	var req ChangesRequest
	if !s.bind(c, &req) {
		return
	}
	n := e.ApplyChanges(req.Changes)
	c.JSON(http.StatusOK, SessionResult{Changed: n > 0, Applied: n, State: sessionState(id, e)})
}

type ConnectRequest struct {
	Source string `json:"source" binding:"required"`
	Target string `json:"target" binding:"required"`
}

func (s *Server) Connect(c *gin.Context) {
	id, e, release, ok := s.editor(c)
	if !ok {
		return
	}
	defer release()
	var req ConnectRequest
	if !s.bind(c, &req) {
		return
	}
	res := SessionResult{}
	if ed, added := e.Connect(req.Source, req.Target); added {
		res.Changed, res.Edge = true, &ed
	}
	res.State = sessionState(id, e)
	c.JSON(http.StatusOK, res)
}

func (s *Server) StartAddEdge(c *gin.Context) {
	id, e, release, ok := s.editor(c)
	if !ok {
		return
	}
	defer release()
	e.StartAddEdge()
	c.JSON(http.StatusOK, SessionResult{Changed: true, State: sessionState(id, e)})
}

func (s *Server) ClickNode(c *gin.Context) {
	id, e, release, ok := s.editor(c)
	if !ok {
		return
	}
	defer release()
	res := SessionResult{}
	before, _ := e.Mode()
	if ed, added := e.ClickNode(c.Param("nid")); added {
		res.Edge = &ed
	}
	after, _ := e.Mode()
	res.Changed = res.Edge != nil || before != after
	res.State = sessionState(id, e)
	c.JSON(http.StatusOK, res)
}

func (s *Server) CancelEdge(c *gin.Context) {
	id, e, release, ok := s.editor(c)
	if !ok {
		return
	}
	defer release()
	e.Cancel()
	c.JSON(http.StatusOK, SessionResult{Changed: true, State: sessionState(id, e)})
}

type ViewportRequest struct {
	model.Viewport
	Canvas *mindmap.Canvas `json:"canvas,omitempty"`
}

func (s *Server) SetViewport(c *gin.Context) {
	id, e, release, ok := s.editor(c)
	if !ok {
		return
	}
	defer release()
	var req ViewportRequest
	if !s.bind(c, &req) {
		return
	}
	e.SetViewport(req.Viewport)
	if req.Canvas != nil {
		e.SetCanvas(*req.Canvas)
	}
	c.JSON(http.StatusOK, SessionResult{Changed: true, State: sessionState(id, e)})
}

func (s *Server) ReplaceGraph(c *gin.Context) {
	id, e, release, ok := s.editor(c)
	if !ok {
		return
	}
	defer release()
	var g model.Graph
	if !s.bind(c, &g) {
		return
	}
	if err := mindmap.CheckGraph(g); err != nil {
		s.fail(c, fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}
	e.ReplaceGraph(g.Nodes, mindmap.CleanEdges(g.Edges, e.NewID))
	c.JSON(http.StatusOK, SessionResult{Changed: true, State: sessionState(id, e)})
}

// GenerateSession regenerates the session's graph. Context fields left empty in
// the request are filled from the story's stored stages.
func (s *Server) GenerateSession(c *gin.Context) {
	id, e, release, ok := s.editor(c)
	if !ok {
		return
	}
	defer release()
	var gc model.GenerationContext
	if err := c.ShouldBindJSON(&gc); err != nil && !errors.Is(err, io.EOF) {
		s.fail(c, fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}
	if gc.WorldContext == "" || gc.CharacterContext == "" || gc.OutlineContext == "" {
		sc, err := s.Author.LoadContext(c.Request.Context(), e.StoryID)
		if err != nil {
			s.fail(c, err)
			return
		}
		gc = fillContext(gc, sc.World, sc.Characters, sc.Outline)
	}

	if _, err := e.Generate(c.Request.Context(), gc); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, SessionResult{Changed: true, State: sessionState(id, e)})
}

func fillContext(gc model.GenerationContext, world, characters, outline string) model.GenerationContext {
	if gc.WorldContext == "" {
		gc.WorldContext = world
	}
	if gc.CharacterContext == "" {
		gc.CharacterContext = characters
	}
	if gc.OutlineContext == "" {
		gc.OutlineContext = outline
	}
	return gc
}

func (s *Server) SaveSession(c *gin.Context) {
	id, e, release, ok := s.editor(c)
	if !ok {
		return
	}
	defer release()
	if err := e.Save(c.Request.Context()); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, SessionResult{Changed: false, State: sessionState(id, e)})
}
