package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/agenthands/inkwell/internal/core/model"
)

// GetStageText returns the stored document of a text stage (world, characters),
// or "" if nothing has been saved yet.
func (s *Store) GetStageText(ctx context.Context, storyID string, stage model.Stage) (string, error) {
	if err := requireStory(ctx, s.db, storyID); err != nil {
		return "", err
	}
	var content string
	err := s.db.QueryRowContext(ctx,
		`SELECT content FROM story_stages WHERE story_id = ? AND stage = ?`, storyID, string(stage),
	).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get %s: %w", stage, err)
	}
	return content, nil
}

func (s *Store) PutStageText(ctx context.Context, storyID string, stage model.Stage, content string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireStory(ctx, tx, storyID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO story_stages (story_id, stage, content) VALUES (?, ?, ?)
			ON CONFLICT (story_id, stage) DO UPDATE SET content = excluded.content`,
			storyID, string(stage), content)
		if err != nil {
			return fmt.Errorf("failed to save %s: %w", stage, err)
		}
		return touchStory(ctx, tx, storyID)
	})
}

func (s *Store) GetOutline(ctx context.Context, storyID string) (model.Outline, error) {
	if err := requireStory(ctx, s.db, storyID); err != nil {
		return model.Outline{}, err
	}
	var o model.Outline
	err := s.db.QueryRowContext(ctx,
		`SELECT outline, num_chapters FROM outlines WHERE story_id = ?`, storyID,
	).Scan(&o.Outline, &o.NumChapters)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Outline{}, nil
	}
	if err != nil {
		return model.Outline{}, fmt.Errorf("failed to get outline: %w", err)
	}
	return o, nil
}

func (s *Store) PutOutline(ctx context.Context, storyID string, o model.Outline) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireStory(ctx, tx, storyID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO outlines (story_id, outline, num_chapters) VALUES (?, ?, ?)
			ON CONFLICT (story_id) DO UPDATE SET outline = excluded.outline, num_chapters = excluded.num_chapters`,
			storyID, o.Outline, o.NumChapters)
		if err != nil {
			return fmt.Errorf("failed to save outline: %w", err)
		}
		return touchStory(ctx, tx, storyID)
	})
}
