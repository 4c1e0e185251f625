package author

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/agenthands/inkwell/internal/config"
	"github.com/agenthands/inkwell/internal/core/common"
	"github.com/agenthands/inkwell/internal/core/model"
	"github.com/agenthands/inkwell/internal/core/outline"
	"github.com/agenthands/inkwell/internal/llm"
	"github.com/agenthands/inkwell/internal/store"
)

var (
	ErrMissingContext = errors.New("missing required context")
	ErrInvalidStage   = errors.New("invalid stage")
	ErrUpstream       = errors.New("language model request failed")
)

// previousChapterTail bounds how much of the previous chapter goes into a prompt.
const previousChapterTail = 3000

// Store is the part of the story store the author reads and writes.
type Store interface {
	GetStory(ctx context.Context, id string) (model.Story, error)
	GetStageText(ctx context.Context, storyID string, stage model.Stage) (string, error)
	GetOutline(ctx context.Context, storyID string) (model.Outline, error)
	GetChapter(ctx context.Context, storyID string, number int) (model.ChapterDraft, error)
	SaveChapter(ctx context.Context, storyID string, d model.ChapterDraft) (model.ChapterDraft, error)
	GetTranscript(ctx context.Context, storyID string, stage model.Stage) ([]model.Message, error)
	AppendTranscript(ctx context.Context, storyID string, stage model.Stage, msgs ...model.Message) error
}

// Request is one user turn in a stage chat.
type Request struct {
	Stage         model.Stage `json:"-"`
	Message       string      `json:"message"`
	NumChapters   int         `json:"numChapters,omitempty"`
	ChapterNumber int         `json:"chapterNumber,omitempty"`
	Scene         string      `json:"scene,omitempty"`
	// SaveDraft stores a completed chapter response in the manuscript.
	SaveDraft bool `json:"saveDraft,omitempty"`
}

// StoryContext is what prompt templates can refer to.
type StoryContext struct {
	Title           string
	World           string
	Characters      string
	Outline         string
	NumChapters     int
	Chapters        []model.Chapter
	Chapter         model.Chapter
	PreviousChapter string
	Scene           string
}

type Author struct {
	Store   Store
	LLM     llm.Streamer
	Prompts config.Prompts
	Logger  *zap.Logger
}

func New(s Store, streamer llm.Streamer, prompts config.Prompts, logger *zap.Logger) *Author {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Author{Store: s, LLM: streamer, Prompts: prompts, Logger: logger.Named("author")}
}

// LoadContext fetches the story, world, characters and outline concurrently and
// parses the outline once all of them have arrived.
func (a *Author) LoadContext(ctx context.Context, storyID string) (StoryContext, error) {
	var (
		sc         StoryContext
		story      model.Story
		outlineDoc model.Outline
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		story, err = a.Store.GetStory(egCtx, storyID)
		return err
	})
	eg.Go(func() error {
		var err error
		sc.World, err = a.Store.GetStageText(egCtx, storyID, model.StageWorld)
		return err
	})
	eg.Go(func() error {
		var err error
		sc.Characters, err = a.Store.GetStageText(egCtx, storyID, model.StageCharacters)
		return err
	})
	eg.Go(func() error {
		var err error
		outlineDoc, err = a.Store.GetOutline(egCtx, storyID)
		return err
	})
	if err := eg.Wait(); err != nil {
		return StoryContext{}, fmt.Errorf("failed to load story context: %w", err)
	}

	sc.Title = story.Title
	sc.Outline = outlineDoc.Outline
	sc.NumChapters = outlineDoc.NumChapters
	sc.Chapters = outline.Parse(outlineDoc.Outline)
	return sc, nil
}

// Prepare builds the message list for a stage chat turn without calling the
// model. Missing context is reported before anything is sent.
func (a *Author) Prepare(ctx context.Context, storyID string, req Request) ([]model.Message, error) {
	if !req.Stage.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStage, req.Stage)
	}

	sc, err := a.LoadContext(ctx, storyID)
	if err != nil {
		return nil, err
	}

	tmpl, err := a.stageContext(ctx, storyID, req, &sc)
	if err != nil {
		return nil, err
	}

	system, err := common.Render(string(req.Stage), tmpl, sc)
	if err != nil {
		return nil, err
	}

	history, err := a.Store.GetTranscript(ctx, storyID, req.Stage)
	if err != nil {
		return nil, err
	}

	msgs := make([]model.Message, 0, len(history)+2)
	msgs = append(msgs, model.Message{Role: model.RoleSystem, Content: system})
	msgs = append(msgs, history...)
	msgs = append(msgs, model.Message{Role: model.RoleUser, Content: userMessage(req)})
	return msgs, nil
}

// stageContext checks the stage's required inputs, fills in the stage-specific
// parts of sc and returns the prompt template to use.
func (a *Author) stageContext(ctx context.Context, storyID string, req Request, sc *StoryContext) (string, error) {
	switch req.Stage {
	case model.StageWorld:
		return a.Prompts.World, nil

	case model.StageCharacters:
		if blank(sc.World) {
			return "", fmt.Errorf("%w: describe the world before the characters", ErrMissingContext)
		}
		return a.Prompts.Characters, nil

	case model.StageOutline:
		if blank(sc.World) || blank(sc.Characters) {
			return "", fmt.Errorf("%w: the outline needs the world and the characters", ErrMissingContext)
		}
		if req.NumChapters > 0 {
			sc.NumChapters = req.NumChapters
		}
		if sc.NumChapters <= 0 {
			return "", fmt.Errorf("%w: number of chapters", ErrMissingContext)
		}
		return a.Prompts.Outline, nil

	case model.StageChapter, model.StageScene:
		ch, ok := outline.Find(sc.Chapters, req.ChapterNumber)
		if !ok {
			return "", fmt.Errorf("%w: chapter %d is not in the outline", ErrMissingContext, req.ChapterNumber)
		}
		sc.Chapter = ch

		prev, err := a.Store.GetChapter(ctx, storyID, req.ChapterNumber-1)
		switch {
		case err == nil:
			sc.PreviousChapter = tail(prev.Content, previousChapterTail)
		case !errors.Is(err, store.ErrNotFound):
			return "", err
		}

		if req.Stage == model.StageScene {
			if blank(req.Scene) {
				return "", fmt.Errorf("%w: scene description", ErrMissingContext)
			}
			sc.Scene = req.Scene
			return a.Prompts.Scene, nil
		}
		return a.Prompts.Chapter, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStage, req.Stage)
}

func userMessage(req Request) string {
	if !blank(req.Message) {
		return req.Message
	}
	switch req.Stage {
	case model.StageChapter:
		return fmt.Sprintf("Write chapter %d.", req.ChapterNumber)
	case model.StageScene:
		return "Write the scene."
	case model.StageOutline:
		return "Write the outline."
	}
	return "Let's begin."
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func tail(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}
