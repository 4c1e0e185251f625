package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/agenthands/inkwell/internal/core/model"
)

// ErrInterrupted is returned by Collect when a stream ends without a completion
// or failure event, which happens when its context is cancelled.
var ErrInterrupted = errors.New("stream interrupted")

type LLMClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Streamer produces a model response incrementally. The returned channel yields
// text chunks followed by exactly one chunk with Done or Err set, then closes.
// Cancelling ctx stops the upstream call; the channel is still closed.
type Streamer interface {
	Stream(ctx context.Context, messages []model.Message) (<-chan Chunk, error)
}

type Client interface {
	LLMClient
	Streamer
}

type Chunk struct {
	Text string
	Done bool
	Err  error
}

// Collect drains a stream into one string.
func Collect(ch <-chan Chunk) (string, error) {
	var b strings.Builder
	for c := range ch {
		if c.Err != nil {
			return b.String(), c.Err
		}
		b.WriteString(c.Text)
		if c.Done {
			return b.String(), nil
		}
	}
	return b.String(), ErrInterrupted
}

const streamBuffer = 16

// emitter sends chunks unless the consumer's context is gone.
type emitter struct {
	ctx context.Context
	ch  chan Chunk
}

func newEmitter(ctx context.Context) *emitter {
	return &emitter{ctx: ctx, ch: make(chan Chunk, streamBuffer)}
}

func (e *emitter) send(c Chunk) bool {
	select {
	case e.ch <- c:
		return true
	case <-e.ctx.Done():
		return false
	}
}

func (e *emitter) text(s string) bool {
	if s == "" {
		return true
	}
	return e.send(Chunk{Text: s})
}

func (e *emitter) finish(err error) {
	if err != nil {
		e.send(Chunk{Err: err})
	} else {
		e.send(Chunk{Done: true})
	}
	close(e.ch)
}

// splitSystem separates leading system messages from the conversation, for
// providers that take the system prompt out of band.
func splitSystem(messages []model.Message) (string, []model.Message) {
	var system []string
	rest := make([]model.Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == model.RoleSystem {
			system = append(system, m.Content)
			continue
		}
		rest = append(rest, m)
	}
	return strings.Join(system, "\n\n"), rest
}
