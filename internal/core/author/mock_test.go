package author

import (
	"context"
	"fmt"
	"sync"

	"github.com/agenthands/inkwell/internal/core/model"
	"github.com/agenthands/inkwell/internal/llm"
	"github.com/agenthands/inkwell/internal/store"
)

type MockStore struct {
	mu          sync.Mutex
	Story       model.Story
	Stages      map[model.Stage]string
	Outline     model.Outline
	Chapters    map[int]model.ChapterDraft
	Transcripts map[model.Stage][]model.Message
	AppendErr   error
}

func NewMockStore() *MockStore {
	return &MockStore{
		Story:       model.Story{ID: "story-1", Title: "The Salt Road"},
		Stages:      make(map[model.Stage]string),
		Chapters:    make(map[int]model.ChapterDraft),
		Transcripts: make(map[model.Stage][]model.Message),
	}
}

func (m *MockStore) GetStory(ctx context.Context, id string) (model.Story, error) {
	if id != m.Story.ID {
		return model.Story{}, fmt.Errorf("story %s: %w", id, store.ErrNotFound)
	}
	return m.Story, nil
}

func (m *MockStore) GetStageText(ctx context.Context, storyID string, stage model.Stage) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Stages[stage], nil
}

func (m *MockStore) GetOutline(ctx context.Context, storyID string) (model.Outline, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Outline, nil
}

func (m *MockStore) GetChapter(ctx context.Context, storyID string, number int) (model.ChapterDraft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.Chapters[number]
	if !ok {
		return model.ChapterDraft{}, store.ErrNotFound
	}
	return d, nil
}

func (m *MockStore) SaveChapter(ctx context.Context, storyID string, d model.ChapterDraft) (model.ChapterDraft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Chapters[d.Number] = d
	return d, nil
}

func (m *MockStore) GetTranscript(ctx context.Context, storyID string, stage model.Stage) ([]model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Message{}, m.Transcripts[stage]...), nil
}

func (m *MockStore) AppendTranscript(ctx context.Context, storyID string, stage model.Stage, msgs ...model.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AppendErr != nil {
		return m.AppendErr
	}
	m.Transcripts[stage] = append(m.Transcripts[stage], msgs...)
	return nil
}

// MockStreamer replays Chunks and records the messages it was given.
type MockStreamer struct {
	Chunks   []llm.Chunk
	Err      error
	Messages [][]model.Message
}

func (m *MockStreamer) Stream(ctx context.Context, messages []model.Message) (<-chan llm.Chunk, error) {
	m.Messages = append(m.Messages, messages)
	if m.Err != nil {
		return nil, m.Err
	}
	ch := make(chan llm.Chunk)
	go func() {
		defer close(ch)
		for _, c := range m.Chunks {
			select {
			case ch <- c:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

func textChunks(parts ...string) []llm.Chunk {
	var out []llm.Chunk
	for _, p := range parts {
		out = append(out, llm.Chunk{Text: p})
	}
	return append(out, llm.Chunk{Done: true})
}
