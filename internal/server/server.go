package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/agenthands/inkwell/internal/config"
	"github.com/agenthands/inkwell/internal/core/author"
	"github.com/agenthands/inkwell/internal/core/mindmap"
	"github.com/agenthands/inkwell/internal/core/model"
	"github.com/agenthands/inkwell/internal/driver"
	"github.com/agenthands/inkwell/internal/llm"
	"github.com/agenthands/inkwell/internal/logging"
	"github.com/agenthands/inkwell/internal/store"
)

type Server struct {
	Store     *store.Store
	MindMaps  mindmap.Store
	Generator mindmap.Generator
	Sessions  *mindmap.Sessions
	Author    *author.Author
	Logger    *zap.Logger

	closers []func(context.Context) error
}

// NewServer wires the handlers around already opened dependencies.
func NewServer(st *store.Store, mindMaps mindmap.Store, client llm.Client, prompts config.Prompts, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	gen := mindmap.NewLLMGenerator(client, prompts.MindMap, logger)
	return &Server{
		Store:     st,
		MindMaps:  mindMaps,
		Generator: gen,
		Sessions:  mindmap.NewSessions(mindMaps, gen, logger),
		Author:    author.New(st, client, prompts, logger),
		Logger:    logger,
	}
}

// New opens the store, the language model client and, when configured, the
// Memgraph mind-map backend.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Server, error) {
	st, err := store.Open(cfg.Storage.DatabasePath, cfg.Storage.ManuscriptDir, logger)
	if err != nil {
		return nil, err
	}
	closers := []func(context.Context) error{func(context.Context) error { return st.Close() }}

	client, err := llm.NewClient(ctx, cfg.LLM, logger)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}
	if c, ok := client.(interface{ Close() error }); ok {
		closers = append(closers, func(context.Context) error { return c.Close() })
	}

	var mindMaps mindmap.Store = st
	if strings.EqualFold(cfg.Storage.MindMapBackend, "memgraph") {
		d, err := driver.NewMemgraphDriver(ctx, cfg.Memgraph.URI, cfg.Memgraph.User, cfg.Memgraph.Password, logger)
		if err != nil {
			runClosers(ctx, closers, logger)
			return nil, fmt.Errorf("failed to connect to Memgraph: %w", err)
		}
		if err := d.BuildIndices(ctx); err != nil {
			logger.Warn("failed to build Memgraph indices", zap.Error(err))
		}
		closers = append(closers, d.Close)
		mindMaps = storyChecked{stories: st, Store: driver.NewMindMapStore(d)}
	}

	s := NewServer(st, mindMaps, client, cfg.Prompts, logger)
	s.Sessions.MaxIdle = time.Duration(cfg.Server.SessionIdleMinutes) * time.Minute
	s.Sessions.MaxSessions = cfg.Server.MaxSessions
	s.closers = closers
	return s, nil
}

// Close releases everything New opened.
func (s *Server) Close(ctx context.Context) error {
	return runClosers(ctx, s.closers, s.Logger)
}

func runClosers(ctx context.Context, closers []func(context.Context) error, logger *zap.Logger) error {
	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](ctx); err != nil {
			logger.Warn("failed to close resource", zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// storyChecked rejects mind-map access for stories the relational store does
// not know about.
type storyChecked struct {
	stories *store.Store
	mindmap.Store
}

func (s storyChecked) LoadMindMap(ctx context.Context, storyID string) (model.Graph, error) {
	if _, err := s.stories.GetStory(ctx, storyID); err != nil {
		return model.Graph{}, err
	}
	return s.Store.LoadMindMap(ctx, storyID)
}

func (s storyChecked) SaveMindMap(ctx context.Context, storyID string, g model.Graph) error {
	if _, err := s.stories.GetStory(ctx, storyID); err != nil {
		return err
	}
	return s.Store.SaveMindMap(ctx, storyID, g)
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.New()
	r.Use(logging.Middleware(s.Logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/stories", s.ListStories)
	r.POST("/stories", s.CreateStory)

	story := r.Group("/stories/:id")
	story.GET("", s.GetStory)
	story.DELETE("", s.DeleteStory)

	story.GET("/stages/:stage", s.GetStage)
	story.PUT("/stages/:stage", s.PutStage)

	story.GET("/outline", s.GetOutline)
	story.PUT("/outline", s.PutOutline)
	story.GET("/outline/chapters", s.OutlineChapters)

	story.GET("/mindmap", s.GetMindMap)
	story.PUT("/mindmap", s.PutMindMap)
	story.POST("/mindmap/sessions", s.OpenSession)

	story.POST("/chat/:stage", s.Chat)
	story.GET("/transcripts/:stage", s.GetTranscript)
	story.DELETE("/transcripts/:stage", s.ClearTranscript)

	story.GET("/chapters", s.ListChapters)
	story.GET("/chapters/:num", s.GetChapter)
	story.PUT("/chapters/:num", s.PutChapter)

	r.POST("/mindmap/generate", s.GenerateMindMap)

	sessions := r.Group("/mindmap/sessions/:sid")
	sessions.GET("", s.GetSession)
	sessions.DELETE("", s.CloseSession)
	sessions.POST("/nodes", s.AddNode)
	sessions.PATCH("/nodes/:nid", s.UpdateNode)
	sessions.POST("/changes", s.ApplyChanges)
	sessions.POST("/connect", s.Connect)
	sessions.POST("/edge-mode", s.StartAddEdge)
	sessions.POST("/click/:nid", s.ClickNode)
	sessions.POST("/cancel", s.CancelEdge)
	sessions.PUT("/viewport", s.SetViewport)
	sessions.PUT("/graph", s.ReplaceGraph)
	sessions.POST("/generate", s.GenerateSession)
	sessions.POST("/save", s.SaveSession)

	return r
}

var errBadRequest = errors.New("invalid request")

// fail maps an error to its status code and a JSON body naming the error kind.
func (s *Server) fail(c *gin.Context, err error) {
	status, kind := http.StatusInternalServerError, "storage"
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, mindmap.ErrSessionNotFound):
		status, kind = http.StatusNotFound, "not_found"
	case errors.Is(err, errBadRequest),
		errors.Is(err, mindmap.ErrMissingContext),
		errors.Is(err, author.ErrMissingContext),
		errors.Is(err, author.ErrInvalidStage):
		status, kind = http.StatusBadRequest, "validation"
	case errors.Is(err, mindmap.ErrMalformedGraph):
		status, kind = http.StatusBadGateway, "parse"
	case errors.Is(err, mindmap.ErrUpstream), errors.Is(err, author.ErrUpstream):
		status, kind = http.StatusBadGateway, "upstream"
	}

	_ = c.Error(err)
	if status >= http.StatusInternalServerError {
		s.Logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error(), "kind": kind})
}

func (s *Server) bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		s.fail(c, fmt.Errorf("%w: %w", errBadRequest, err))
		return false
	}
	return true
}
