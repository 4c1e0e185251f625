package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agenthands/inkwell/internal/core/model"
)

func (s *Store) CreateStory(ctx context.Context, title string) (model.Story, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = "Untitled"
	}
	now := time.Now().UTC()
	st := model.Story{
		ID:        uuid.New().String(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO stories (id, title, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		st.ID, st.Title, st.CreatedAt, st.UpdatedAt)
	if err != nil {
		return model.Story{}, fmt.Errorf("failed to create story: %w", err)
	}

	s.log.Info("story created", zap.String("story_id", st.ID))
	return st, nil
}

func (s *Store) GetStory(ctx context.Context, id string) (model.Story, error) {
	var st model.Story
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, created_at, updated_at FROM stories WHERE id = ?`, id,
	).Scan(&st.ID, &st.Title, &st.CreatedAt, &st.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Story{}, fmt.Errorf("story %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Story{}, fmt.Errorf("failed to get story: %w", err)
	}
	return st, nil
}

func (s *Store) ListStories(ctx context.Context) ([]model.Story, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, created_at, updated_at FROM stories ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list stories: %w", err)
	}
	defer rows.Close()

	stories := []model.Story{}
	for rows.Next() {
		var st model.Story
		if err := rows.Scan(&st.ID, &st.Title, &st.CreatedAt, &st.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan story: %w", err)
		}
		stories = append(stories, st)
	}
	return stories, rows.Err()
}

// DeleteStory removes the story, everything keyed by it, and its manuscript files.
func (s *Store) DeleteStory(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM stories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete story: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("story %s: %w", id, ErrNotFound)
	}
	if err := s.manuscript.RemoveStory(id); err != nil {
		s.log.Warn("failed to remove manuscript files", zap.String("story_id", id), zap.Error(err))
	}
	return nil
}

func touchStory(ctx context.Context, tx *sql.Tx, id string) error {
	_, err := tx.ExecContext(ctx, `UPDATE stories SET updated_at = ? WHERE id = ?`, time.Now().UTC(), id)
	return err
}
