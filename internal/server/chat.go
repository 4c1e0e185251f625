package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/agenthands/inkwell/internal/core/author"
	"github.com/agenthands/inkwell/internal/core/model"
	"github.com/agenthands/inkwell/internal/llm"
)

// StreamErrorTrailer carries a failure that happens after the response has started.
const StreamErrorTrailer = "X-Stream-Error"

// Chat streams one stage turn as chunked plain text. Failures before the first
// chunk are reported as a JSON error; later ones end the body and set the
// X-Stream-Error trailer.
func (s *Server) Chat(c *gin.Context) {
	var req author.Request
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		s.fail(c, fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}
	req.Stage = model.Stage(c.Param("stage"))
	storyID := c.Param("id")

	ch, err := s.Author.Chat(c.Request.Context(), storyID, req)
	if err != nil {
		s.fail(c, err)
		return
	}

	first, ok := <-ch
	if !ok {
		s.fail(c, fmt.Errorf("%w: %w", author.ErrUpstream, llm.ErrInterrupted))
		return
	}
	if first.Err != nil {
		s.fail(c, fmt.Errorf("%w: %w", author.ErrUpstream, first.Err))
		return
	}

	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Header("Cache-Control", "no-cache")
	c.Header("Trailer", StreamErrorTrailer)
	c.Status(http.StatusOK)

	chunk := first
	for {
		if chunk.Err != nil {
			s.Logger.Warn("stream failed", zap.String("story_id", storyID),
				zap.String("stage", string(req.Stage)), zap.Error(chunk.Err))
			c.Writer.Header().Set(StreamErrorTrailer, chunk.Err.Error())
			return
		}
		if chunk.Text != "" {
			if _, err := io.WriteString(c.Writer, chunk.Text); err != nil {
				return
			}
			c.Writer.Flush()
		}
		if chunk.Done {
			return
		}
		if chunk, ok = <-ch; !ok {
			return
		}
	}
}

func (s *Server) transcriptStage(c *gin.Context) (model.Stage, bool) {
	stage := model.Stage(c.Param("stage"))
	if !stage.Valid() {
		s.fail(c, fmt.Errorf("%w: %q", author.ErrInvalidStage, stage))
		return "", false
	}
	return stage, true
}

func (s *Server) GetTranscript(c *gin.Context) {
	stage, ok := s.transcriptStage(c)
	if !ok {
		return
	}
	msgs, err := s.Store.GetTranscript(c.Request.Context(), c.Param("id"), stage)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (s *Server) ClearTranscript(c *gin.Context) {
	stage, ok := s.transcriptStage(c)
	if !ok {
		return
	}
	if err := s.Store.ClearTranscript(c.Request.Context(), c.Param("id"), stage); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
