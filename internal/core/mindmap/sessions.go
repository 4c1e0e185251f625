package mindmap

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultMaxIdle     = 2 * time.Hour
	DefaultMaxSessions = 1000
)

type session struct {
	editor   *Editor
	storyID  string
	turn     sync.Mutex
	lastUsed time.Time
}

// Sessions tracks open editors by session id. A session lives until it is
// closed or sits unused for longer than MaxIdle; nothing is saved when it goes.
// When MaxSessions are open, opening another evicts the least recently used.
type Sessions struct {
	mu       sync.Mutex
	sessions map[string]*session

	Store       Store
	Generator   Generator
	Logger      *zap.Logger
	NewID       func() string
	Now         func() time.Time
	MaxIdle     time.Duration
	MaxSessions int
}

func NewSessions(store Store, gen Generator, logger *zap.Logger) *Sessions {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sessions{
		sessions:    make(map[string]*session),
		Store:       store,
		Generator:   gen,
		Logger:      logger,
		NewID:       func() string { return uuid.New().String() },
		Now:         time.Now,
		MaxIdle:     DefaultMaxIdle,
		MaxSessions: DefaultMaxSessions,
	}
}

// Open loads the story's saved graph into a new editor.
func (s *Sessions) Open(ctx context.Context, storyID string) (string, *Editor, error) {
	e := NewEditor(storyID, s.Store, s.Generator, s.Logger)
	if err := e.Load(ctx); err != nil {
		return "", nil, err
	}

	id := s.NewID()
	s.mu.Lock()
	now := s.Now()
	s.expireLocked(now)
	s.evictLocked()
	s.sessions[id] = &session{editor: e, storyID: storyID, lastUsed: now}
	s.mu.Unlock()

	s.Logger.Debug("mind map session opened", zap.String("session_id", id), zap.String("story_id", storyID))
	return id, e, nil
}

func (s *Sessions) Get(id string) (*Editor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.lookupLocked(id)
	if err != nil {
		return nil, err
	}
	return sess.editor, nil
}

// Acquire returns the session's editor and holds the session until release is
// called, so requests on one session run one at a time.
func (s *Sessions) Acquire(id string) (*Editor, func(), error) {
	s.mu.Lock()
	sess, err := s.lookupLocked(id)
	s.mu.Unlock()
	if err != nil {
		return nil, nil, err
	}

	sess.turn.Lock()
	release := func() {
		s.mu.Lock()
		sess.lastUsed = s.Now()
		s.mu.Unlock()
		sess.turn.Unlock()
	}
	return sess.editor, release, nil
}

func (s *Sessions) lookupLocked(id string) (*session, error) {
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	now := s.Now()
	if s.MaxIdle > 0 && now.Sub(sess.lastUsed) > s.MaxIdle {
		delete(s.sessions, id)
		s.Logger.Debug("mind map session expired", zap.String("session_id", id))
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	sess.lastUsed = now
	return sess, nil
}

func (s *Sessions) expireLocked(now time.Time) {
	if s.MaxIdle <= 0 {
		return
	}
	for id, sess := range s.sessions {
		if now.Sub(sess.lastUsed) > s.MaxIdle {
			delete(s.sessions, id)
			s.Logger.Debug("mind map session expired", zap.String("session_id", id))
		}
	}
}

// evictLocked makes room for one more session.
func (s *Sessions) evictLocked() {
	if s.MaxSessions <= 0 || len(s.sessions) < s.MaxSessions {
		return
	}
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return s.sessions[ids[i]].lastUsed.Before(s.sessions[ids[j]].lastUsed)
	})
	for _, id := range ids[:len(ids)-s.MaxSessions+1] {
		delete(s.sessions, id)
		s.Logger.Info("mind map session evicted", zap.String("session_id", id))
	}
}

func (s *Sessions) Close(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	delete(s.sessions, id)
	return nil
}

// CloseStory drops every session editing the given story.
func (s *Sessions) CloseStory(storyID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.sessions {
		if sess.storyID == storyID {
			delete(s.sessions, id)
		}
	}
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
