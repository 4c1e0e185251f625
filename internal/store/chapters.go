package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/agenthands/inkwell/internal/core/model"
)

// ListChapters returns chapter metadata in order; Content is left empty.
func (s *Store) ListChapters(ctx context.Context, storyID string) ([]model.ChapterDraft, error) {
	if err := requireStory(ctx, s.db, storyID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT number, title, updated_at FROM chapters WHERE story_id = ? ORDER BY number`, storyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chapters: %w", err)
	}
	defer rows.Close()

	drafts := []model.ChapterDraft{}
	for rows.Next() {
		var d model.ChapterDraft
		if err := rows.Scan(&d.Number, &d.Title, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chapter: %w", err)
		}
		drafts = append(drafts, d)
	}
	return drafts, rows.Err()
}

func (s *Store) GetChapter(ctx context.Context, storyID string, number int) (model.ChapterDraft, error) {
	d := model.ChapterDraft{Number: number}
	var path string
	err := s.db.QueryRowContext(ctx,
		`SELECT title, content_path, updated_at FROM chapters WHERE story_id = ? AND number = ?`,
		storyID, number,
	).Scan(&d.Title, &path, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ChapterDraft{}, fmt.Errorf("chapter %d: %w", number, ErrNotFound)
	}
	if err != nil {
		return model.ChapterDraft{}, fmt.Errorf("failed to get chapter: %w", err)
	}

	d.Content, err = s.manuscript.Read(path)
	if err != nil {
		return model.ChapterDraft{}, err
	}
	return d, nil
}

// SaveChapter writes the prose file first and then records it.
func (s *Store) SaveChapter(ctx context.Context, storyID string, d model.ChapterDraft) (model.ChapterDraft, error) {
	if d.Number <= 0 {
		return model.ChapterDraft{}, fmt.Errorf("chapter number must be positive, got %d", d.Number)
	}
	if err := requireStory(ctx, s.db, storyID); err != nil {
		return model.ChapterDraft{}, err
	}

	path, err := s.manuscript.Write(storyID, d.Number, d.Content)
	if err != nil {
		return model.ChapterDraft{}, err
	}
	d.UpdatedAt = time.Now().UTC()

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO chapters (story_id, number, title, content_path, updated_at) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (story_id, number) DO UPDATE SET
				title = excluded.title, content_path = excluded.content_path, updated_at = excluded.updated_at`,
			storyID, d.Number, d.Title, path, d.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to save chapter: %w", err)
		}
		return touchStory(ctx, tx, storyID)
	})
	if err != nil {
		return model.ChapterDraft{}, err
	}
	return d, nil
}
