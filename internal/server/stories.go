package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/agenthands/inkwell/internal/core/model"
	"github.com/agenthands/inkwell/internal/core/outline"
)

type CreateStoryRequest struct {
	Title string `json:"title"`
}

func (s *Server) ListStories(c *gin.Context) {
	stories, err := s.Store.ListStories(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stories": stories})
}

func (s *Server) CreateStory(c *gin.Context) {
	var req CreateStoryRequest
	if !s.bind(c, &req) {
		return
	}
	story, err := s.Store.CreateStory(c.Request.Context(), req.Title)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, story)
}

func (s *Server) GetStory(c *gin.Context) {
	story, err := s.Store.GetStory(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, story)
}

func (s *Server) DeleteStory(c *gin.Context) {
	id := c.Param("id")
	if err := s.Store.DeleteStory(c.Request.Context(), id); err != nil {
		s.fail(c, err)
		return
	}
	s.Sessions.CloseStory(id)
	s.Logger.Info("story deleted", zap.String("story_id", id))
	c.Status(http.StatusNoContent)
}

type StageText struct {
	Content string `json:"content"`
}

// textStage resolves the :stage parameter to a stage stored as free text.
func (s *Server) textStage(c *gin.Context) (model.Stage, bool) {
	stage := model.Stage(c.Param("stage"))
	if !stage.HasText() {
		s.fail(c, fmt.Errorf("%w: stage %q has no text", errBadRequest, stage))
		return "", false
	}
	return stage, true
}

func (s *Server) GetStage(c *gin.Context) {
	stage, ok := s.textStage(c)
	if !ok {
		return
	}
	text, err := s.Store.GetStageText(c.Request.Context(), c.Param("id"), stage)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, StageText{Content: text})
}

func (s *Server) PutStage(c *gin.Context) {
	stage, ok := s.textStage(c)
	if !ok {
		return
	}
	var req StageText
	if !s.bind(c, &req) {
		return
	}
	if err := s.Store.PutStageText(c.Request.Context(), c.Param("id"), stage, req.Content); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (s *Server) GetOutline(c *gin.Context) {
	o, err := s.Store.GetOutline(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (s *Server) PutOutline(c *gin.Context) {
	var o model.Outline
	if !s.bind(c, &o) {
		return
	}
	if o.NumChapters < 0 {
		s.fail(c, fmt.Errorf("%w: numChapters must not be negative", errBadRequest))
		return
	}
	if err := s.Store.PutOutline(c.Request.Context(), c.Param("id"), o); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

// OutlineChapters returns the stored outline parsed into chapter records.
func (s *Server) OutlineChapters(c *gin.Context) {
	o, err := s.Store.GetOutline(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chapters": outline.Parse(o.Outline)})
}

func (s *Server) ListChapters(c *gin.Context) {
	chapters, err := s.Store.ListChapters(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chapters": chapters})
}

func chapterNumber(c *gin.Context) (int, error) {
	n, err := strconv.Atoi(c.Param("num"))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: chapter number must be a positive integer", errBadRequest)
	}
	return n, nil
}

func (s *Server) GetChapter(c *gin.Context) {
	n, err := chapterNumber(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	d, err := s.Store.GetChapter(c.Request.Context(), c.Param("id"), n)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

type ChapterRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func (s *Server) PutChapter(c *gin.Context) {
	n, err := chapterNumber(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	var req ChapterRequest
	if !s.bind(c, &req) {
		return
	}
	d, err := s.Store.SaveChapter(c.Request.Context(), c.Param("id"), model.ChapterDraft{
		Number:  n,
		Title:   req.Title,
		Content: req.Content,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}
