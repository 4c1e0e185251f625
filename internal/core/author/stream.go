package author

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/agenthands/inkwell/internal/core/model"
	"github.com/agenthands/inkwell/internal/core/outline"
	"github.com/agenthands/inkwell/internal/llm"
)

// Chat runs one stage chat turn and streams the model's answer. When the
// stream completes, the user message and the answer are appended to the
// stage transcript (and, on request, a chapter answer is saved as the chapter
// draft) before the final Done chunk is delivered. A cancelled stream stores
// nothing.
func (a *Author) Chat(ctx context.Context, storyID string, req Request) (<-chan llm.Chunk, error) {
	msgs, err := a.Prepare(ctx, storyID, req)
	if err != nil {
		return nil, err
	}

	upstream, err := a.LLM.Stream(ctx, msgs)
	if err != nil {
		return nil, fmt.Errorf("failed to start %s generation: %w: %w", req.Stage, ErrUpstream, err)
	}

	out := make(chan llm.Chunk)
	go func() {
		defer close(out)
		send := func(c llm.Chunk) bool {
			select {
			case out <- c:
				return true
			case <-ctx.Done():
				return false
			}
		}

		var answer strings.Builder
		for c := range upstream {
			switch {
			case c.Err != nil:
				a.Logger.Warn("generation failed", zap.String("story_id", storyID),
					zap.String("stage", string(req.Stage)), zap.Error(c.Err))
				send(c)
				return
			case c.Done:
				answer.WriteString(c.Text)
				if ctx.Err() != nil {
					return
				}
				if err := a.finish(ctx, storyID, req, msgs[len(msgs)-1], answer.String()); err != nil {
					send(llm.Chunk{Err: err})
					return
				}
				send(c)
				return
			default:
				answer.WriteString(c.Text)
				if !send(c) {
					// Drain so the upstream goroutine can exit.
					for range upstream {
					}
					return
				}
			}
		}
	}()
	return out, nil
}

func (a *Author) finish(ctx context.Context, storyID string, req Request, user model.Message, answer string) error {
	err := a.Store.AppendTranscript(ctx, storyID, req.Stage,
		user, model.Message{Role: model.RoleAssistant, Content: answer})
	if err != nil {
		return fmt.Errorf("failed to store transcript: %w", err)
	}

	if req.Stage == model.StageChapter && req.SaveDraft {
		sc, err := a.LoadContext(ctx, storyID)
		if err != nil {
			return err
		}
		ch, _ := outline.Find(sc.Chapters, req.ChapterNumber)
		_, err = a.Store.SaveChapter(ctx, storyID, model.ChapterDraft{
			Number:  req.ChapterNumber,
			Title:   ch.Title,
			Content: answer,
		})
		if err != nil {
			return fmt.Errorf("failed to save chapter draft: %w", err)
		}
	}

	a.Logger.Info("stage turn completed", zap.String("story_id", storyID),
		zap.String("stage", string(req.Stage)), zap.Int("chars", len(answer)))
	return nil
}
