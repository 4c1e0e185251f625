package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agenthands/inkwell/internal/config"
	"github.com/agenthands/inkwell/internal/core/mindmap"
	"github.com/agenthands/inkwell/internal/core/model"
	"github.com/agenthands/inkwell/internal/llm"
	"github.com/agenthands/inkwell/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	t      *testing.T
	srv    *Server
	router *gin.Engine
	llm    *MockLLM
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "inkwell.db"), filepath.Join(dir, "manuscripts"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	mock := &MockLLM{}
	srv := NewServer(st, st, mock, config.DefaultPrompts(), zap.NewNop())
	return &testServer{t: t, srv: srv, router: srv.SetupRouter(), llm: mock}
}

func (ts *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	ts.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(ts.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func (ts *testServer) story(title string) string {
	ts.t.Helper()
	w := ts.do(http.MethodPost, "/stories", CreateStoryRequest{Title: title})
	require.Equal(ts.t, http.StatusCreated, w.Code, w.Body.String())
	return decode[model.Story](ts.t, w).ID
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestStories(t *testing.T) {
	ts := newTestServer(t)
	id := ts.story("The Long Road")

	w := ts.do(http.MethodGet, "/stories/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "The Long Road", decode[model.Story](t, w).Title)

	w = ts.do(http.MethodGet, "/stories", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[struct {
		Stories []model.Story `json:"stories"`
	}](t, w)
	assert.Len(t, list.Stories, 1)

	w = ts.do(http.MethodDelete, "/stories/"+id, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = ts.do(http.MethodGet, "/stories/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", decode[errorBody](t, w).Kind)
}

func TestStagesAndOutline(t *testing.T) {
	ts := newTestServer(t)
	id := ts.story("Book")

	w := ts.do(http.MethodPut, "/stories/"+id+"/stages/world", StageText{Content: "A drowned city."})
	require.Equal(t, http.StatusOK, w.Code)
	w = ts.do(http.MethodGet, "/stories/"+id+"/stages/world", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "A drowned city.", decode[StageText](t, w).Content)

	w = ts.do(http.MethodGet, "/stories/"+id+"/stages/outline", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	doc := model.Outline{
		Outline:     "## Chapter 2: Flood\n**Summary:** Water rises.\n\n## Chapter 1: Calm\n**Summary:** Quiet.\n",
		NumChapters: 2,
	}
	w = ts.do(http.MethodPut, "/stories/"+id+"/outline", doc)
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(http.MethodGet, "/stories/"+id+"/outline", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, doc, decode[model.Outline](t, w))

	w = ts.do(http.MethodGet, "/stories/"+id+"/outline/chapters", nil)
	require.Equal(t, http.StatusOK, w.Code)
	parsed := decode[struct {
		Chapters []model.Chapter `json:"chapters"`
	}](t, w)
	require.Len(t, parsed.Chapters, 2)
	assert.Equal(t, 1, parsed.Chapters[0].ChapterNumber)
	assert.Equal(t, "Calm", parsed.Chapters[0].Title)
	require.NotNil(t, parsed.Chapters[1].Summary)
	assert.Equal(t, "Water rises.", *parsed.Chapters[1].Summary)

	w = ts.do(http.MethodGet, "/stories/missing/outline", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMindMapPersistence(t *testing.T) {
	ts := newTestServer(t)
	id := ts.story("Book")

	w := ts.do(http.MethodGet, "/stories/"+id+"/mindmap", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"mindMapData":{"nodes":[],"edges":[]}}`, w.Body.String())

	g := model.Graph{
		Nodes: []model.Node{
			{ID: "a", Position: &model.Position{X: 1, Y: 2}, Data: model.NodeData{Label: "Hero"}},
			{ID: "b", Position: &model.Position{X: 3, Y: 4}, Data: model.NodeData{Label: "Villain"}},
		},
		Edges:    []model.Edge{{ID: "e1", Source: "a", Target: "b"}},
		Viewport: &model.Viewport{X: 10, Y: 20, Zoom: 1.5},
	}
	w = ts.do(http.MethodPut, "/stories/"+id+"/mindmap", MindMapPayload{MindMapData: &g})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ts.do(http.MethodGet, "/stories/"+id+"/mindmap", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[MindMapPayload](t, w)
	require.NotNil(t, got.MindMapData)
	assert.Equal(t, g, *got.MindMapData)

	w = ts.do(http.MethodPut, "/stories/"+id+"/mindmap", map[string]any{"mindMapData": map[string]any{"nodes": []any{}}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(http.MethodPut, "/stories/"+id+"/mindmap", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(http.MethodGet, "/stories/missing/mindmap", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

var fullContext = model.GenerationContext{
	WorldContext:     "A drowned city.",
	CharacterContext: "Ana, a diver.",
	OutlineContext:   "## Chapter 1: Dive",
}

func TestGenerateMindMap(t *testing.T) {
	t.Run("missing context", func(t *testing.T) {
		ts := newTestServer(t)
		gc := fullContext
		gc.OutlineContext = "  "
		w := ts.do(http.MethodPost, "/mindmap/generate", gc)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		prompts, _ := ts.llm.calls()
		assert.Zero(t, prompts)
	})

	t.Run("success", func(t *testing.T) {
		ts := newTestServer(t)
		ts.llm.Response = "Here you go:\n```json\n" +
			`{"nodes":[{"id":"1","data":{"label":"Ana"}},{"id":"2","data":{"label":"City"}}],` +
			`"edges":[{"source":"1","target":"2","label":"lives in"},{"source":"2","target":"2"}]}` +
			"\n```"
		w := ts.do(http.MethodPost, "/mindmap/generate", fullContext)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		g := decode[model.Graph](t, w)
		assert.Len(t, g.Nodes, 2)
		require.Len(t, g.Edges, 1)
		assert.NotEmpty(t, g.Edges[0].ID)
		assert.Equal(t, "lives in", g.Edges[0].Label)
		assert.Contains(t, ts.llm.Prompts[0], "A drowned city.")
	})

	t.Run("malformed", func(t *testing.T) {
		ts := newTestServer(t)
		ts.llm.Response = `{"nodes":[{"id":"1","data":{"label":"Ana"}}]}`
		w := ts.do(http.MethodPost, "/mindmap/generate", fullContext)
		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Equal(t, "parse", decode[errorBody](t, w).Kind)
	})

	t.Run("upstream", func(t *testing.T) {
		ts := newTestServer(t)
		ts.llm.GenerateErr = errors.New("connection refused")
		w := ts.do(http.MethodPost, "/mindmap/generate", fullContext)
		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Equal(t, "upstream", decode[errorBody](t, w).Kind)
	})
}

func TestMindMapSession(t *testing.T) {
	ts := newTestServer(t)
	id := ts.story("Book")

	w := ts.do(http.MethodPost, "/stories/"+id+"/mindmap/sessions", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	state := decode[SessionState](t, w)
	assert.Equal(t, "idle", state.Mode)
	assert.Empty(t, state.Graph.Nodes)
	base := "/mindmap/sessions/" + state.SessionID

	addNode := func() model.Node {
		w := ts.do(http.MethodPost, base+"/nodes", nil)
		require.Equal(t, http.StatusOK, w.Code)
		res := decode[SessionResult](t, w)
		require.True(t, res.Changed)
		require.NotNil(t, res.Node)
		return *res.Node
	}
	a := addNode()
	assert.Equal(t, "New Node", a.Data.Label)
	require.NotNil(t, a.Position)
	assert.Equal(t, model.Position{X: 250, Y: 250}, *a.Position)

	w = ts.do(http.MethodPut, base+"/viewport", ViewportRequest{Viewport: model.Viewport{X: -100, Y: 0, Zoom: 2}})
	require.Equal(t, http.StatusOK, w.Code)
	b := addNode()
	assert.Equal(t, model.Position{X: 250, Y: 150}, *b.Position)

	w = ts.do(http.MethodPatch, base+"/nodes/"+b.ID, UpdateNodeRequest{Label: ptr("Villain")})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[SessionResult](t, w).Changed)

	w = ts.do(http.MethodPost, base+"/edge-mode", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "awaiting_source", decode[SessionResult](t, w).State.Mode)

	// Adding nodes is ignored while an edge is being drawn.
	w = ts.do(http.MethodPost, base+"/nodes", nil)
	assert.False(t, decode[SessionResult](t, w).Changed)

	w = ts.do(http.MethodPost, base+"/click/"+a.ID, nil)
	res := decode[SessionResult](t, w)
	assert.Equal(t, "awaiting_target", res.State.Mode)
	assert.Equal(t, a.ID, res.State.Source)

	w = ts.do(http.MethodPost, base+"/click/"+a.ID, nil)
	assert.False(t, decode[SessionResult](t, w).Changed)

	w = ts.do(http.MethodPost, base+"/click/"+b.ID, nil)
	res = decode[SessionResult](t, w)
	require.NotNil(t, res.Edge)
	assert.Equal(t, a.ID, res.Edge.Source)
	assert.Equal(t, b.ID, res.Edge.Target)
	assert.Equal(t, "idle", res.State.Mode)

	w = ts.do(http.MethodPost, base+"/connect", ConnectRequest{Source: a.ID, Target: b.ID})
	assert.False(t, decode[SessionResult](t, w).Changed)

	w = ts.do(http.MethodPost, base+"/save", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ts.do(http.MethodGet, "/stories/"+id+"/mindmap", nil)
	saved := decode[MindMapPayload](t, w).MindMapData
	require.NotNil(t, saved)
	assert.Len(t, saved.Nodes, 2)
	assert.Len(t, saved.Edges, 1)
	require.NotNil(t, saved.Viewport)
	assert.Equal(t, 2.0, saved.Viewport.Zoom)

	w = ts.do(http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = ts.do(http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMindMapSessionChangesAndGenerate(t *testing.T) {
	ts := newTestServer(t)
	id := ts.story("Book")

	w := ts.do(http.MethodPost, "/stories/"+id+"/mindmap/sessions", nil)
	base := "/mindmap/sessions/" + decode[SessionState](t, w).SessionID

	w = ts.do(http.MethodPut, base+"/graph", model.Graph{
		Nodes: []model.Node{{ID: "a", Data: model.NodeData{Label: "A"}}, {ID: "b", Data: model.NodeData{Label: "B"}}},
		Edges: []model.Edge{{ID: "e", Source: "a", Target: "b"}},
	})
	require.Equal(t, http.StatusOK, w.Code)
	for _, n := range decode[SessionResult](t, w).State.Graph.Nodes {
		require.NotNil(t, n.Position)
		assert.True(t, n.Position.X >= 0 && n.Position.X < 500)
	}

	w = ts.do(http.MethodPost, base+"/changes", ChangesRequest{Changes: []mindmap.Change{
		{Type: mindmap.ChangePosition, ID: "a", Position: &model.Position{X: 7, Y: 8}},
		{Type: mindmap.ChangeRemove, ID: "b"},
		{Type: mindmap.ChangeRemove, ID: "nope"},
	}})
	require.Equal(t, http.StatusOK, w.Code)
	res := decode[SessionResult](t, w)
	assert.Equal(t, 2, res.Applied)
	assert.Len(t, res.State.Graph.Nodes, 1)
	assert.Len(t, res.State.Dangling, 1)

	// Generation fills missing context from the stored stages.
	w = ts.do(http.MethodPost, base+"/generate", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	require.Equal(t, http.StatusOK, ts.do(http.MethodPut, "/stories/"+id+"/stages/world", StageText{Content: "World"}).Code)
	require.Equal(t, http.StatusOK, ts.do(http.MethodPut, "/stories/"+id+"/stages/characters", StageText{Content: "Cast"}).Code)
	require.Equal(t, http.StatusOK, ts.do(http.MethodPut, "/stories/"+id+"/outline", model.Outline{Outline: "## Chapter 1: Go", NumChapters: 1}).Code)

	ts.llm.Response = "nonsense"
	w = ts.do(http.MethodPost, base+"/generate", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	w = ts.do(http.MethodGet, base, nil)
	assert.Len(t, decode[SessionState](t, w).Graph.Nodes, 1)

	ts.llm.Response = `{"nodes":[{"id":"x","data":{"label":"X"}}],"edges":[]}`
	w = ts.do(http.MethodPost, base+"/generate", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	nodes := decode[SessionResult](t, w).State.Graph.Nodes
	require.Len(t, nodes, 1)
	assert.Equal(t, "x", nodes[0].ID)
	assert.Contains(t, ts.llm.Prompts[len(ts.llm.Prompts)-1], "Cast")
}

func TestReplaceGraphChecksIDs(t *testing.T) {
	ts := newTestServer(t)
	id := ts.story("Book")

	w := ts.do(http.MethodPost, "/stories/"+id+"/mindmap/sessions", nil)
	base := "/mindmap/sessions/" + decode[SessionState](t, w).SessionID

	w = ts.do(http.MethodPut, base+"/graph", model.Graph{
		Nodes: []model.Node{{ID: "a", Data: model.NodeData{Label: "A"}}, {ID: "a", Data: model.NodeData{Label: "Again"}}},
		Edges: []model.Edge{},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation", decode[errorBody](t, w).Kind)

	w = ts.do(http.MethodPut, base+"/graph", model.Graph{
		Nodes: []model.Node{{ID: "a", Data: model.NodeData{Label: "A"}}, {ID: "b", Data: model.NodeData{Label: "B"}}},
		Edges: []model.Edge{
			{ID: "e", Source: "a", Target: "b"},
			{ID: "e", Source: "b", Target: "a"},
			{ID: "loop", Source: "a", Target: "a"},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	edges := decode[SessionResult](t, w).State.Graph.Edges
	require.Len(t, edges, 2)
	assert.NotEqual(t, edges[0].ID, edges[1].ID)
	for _, e := range edges {
		assert.NotEqual(t, e.Source, e.Target)
	}
}

func TestServerAppliesSessionLimits(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Storage.DatabasePath = filepath.Join(dir, "inkwell.db")
	cfg.Storage.ManuscriptDir = filepath.Join(dir, "manuscripts")
	cfg.LLM.APIKey = "test"
	cfg.Server.SessionIdleMinutes = 5
	cfg.Server.MaxSessions = 3

	srv, err := New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { srv.Close(context.Background()) })

	assert.Equal(t, 5*time.Minute, srv.Sessions.MaxIdle)
	assert.Equal(t, 3, srv.Sessions.MaxSessions)
}

func TestChatStreamsAndStoresTranscript(t *testing.T) {
	ts := newTestServer(t)
	id := ts.story("Book")
	require.Equal(t, http.StatusOK, ts.do(http.MethodPut, "/stories/"+id+"/stages/world", StageText{Content: "A drowned city."}).Code)

	ts.llm.Chunks = textChunks("Ana, ", "a diver.")
	w := ts.do(http.MethodPost, "/stories/"+id+"/chat/characters", map[string]any{"message": "Who lives here?"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Ana, a diver.", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")

	w = ts.do(http.MethodGet, "/stories/"+id+"/transcripts/characters", nil)
	require.Equal(t, http.StatusOK, w.Code)
	msgs := decode[struct {
		Messages []model.Message `json:"messages"`
	}](t, w).Messages
	require.Len(t, msgs, 2)
	assert.Equal(t, model.Message{Role: model.RoleUser, Content: "Who lives here?"}, msgs[0])
	assert.Equal(t, model.Message{Role: model.RoleAssistant, Content: "Ana, a diver."}, msgs[1])

	w = ts.do(http.MethodDelete, "/stories/"+id+"/transcripts/characters", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = ts.do(http.MethodGet, "/stories/"+id+"/transcripts/characters", nil)
	assert.Empty(t, decode[struct {
		Messages []model.Message `json:"messages"`
	}](t, w).Messages)
}

func TestChatErrors(t *testing.T) {
	t.Run("missing context", func(t *testing.T) {
		ts := newTestServer(t)
		id := ts.story("Book")
		w := ts.do(http.MethodPost, "/stories/"+id+"/chat/characters", map[string]any{"message": "hi"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		_, streams := ts.llm.calls()
		assert.Zero(t, streams)
	})

	t.Run("invalid stage", func(t *testing.T) {
		ts := newTestServer(t)
		id := ts.story("Book")
		w := ts.do(http.MethodPost, "/stories/"+id+"/chat/epilogue", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("failure before first chunk", func(t *testing.T) {
		ts := newTestServer(t)
		id := ts.story("Book")
		ts.llm.Chunks = []llm.Chunk{{Err: errors.New("rate limited")}}
		w := ts.do(http.MethodPost, "/stories/"+id+"/chat/world", nil)
		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Equal(t, "upstream", decode[errorBody](t, w).Kind)
	})

	t.Run("failure mid stream", func(t *testing.T) {
		ts := newTestServer(t)
		id := ts.story("Book")
		ts.llm.Chunks = []llm.Chunk{{Text: "Once"}, {Err: errors.New("reset")}}
		w := ts.do(http.MethodPost, "/stories/"+id+"/chat/world", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Once", w.Body.String())
		assert.Equal(t, "reset", w.Header().Get(StreamErrorTrailer))

		w = ts.do(http.MethodGet, "/stories/"+id+"/transcripts/world", nil)
		assert.Empty(t, decode[struct {
			Messages []model.Message `json:"messages"`
		}](t, w).Messages)
	})
}

func TestChapters(t *testing.T) {
	ts := newTestServer(t)
	id := ts.story("Book")

	w := ts.do(http.MethodPut, "/stories/"+id+"/chapters/1", ChapterRequest{Title: "Calm", Content: "It was quiet."})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ts.do(http.MethodGet, "/stories/"+id+"/chapters/1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	d := decode[model.ChapterDraft](t, w)
	assert.Equal(t, "Calm", d.Title)
	assert.Equal(t, "It was quiet.", d.Content)

	w = ts.do(http.MethodGet, "/stories/"+id+"/chapters", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[struct {
		Chapters []model.ChapterDraft `json:"chapters"`
	}](t, w).Chapters
	require.Len(t, list, 1)
	assert.Equal(t, 1, list[0].Number)

	w = ts.do(http.MethodGet, "/stories/"+id+"/chapters/0", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = ts.do(http.MethodGet, "/stories/"+id+"/chapters/2", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func ptr[T any](v T) *T { return &v }
