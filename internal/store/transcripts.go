package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/agenthands/inkwell/internal/core/model"
)

func (s *Store) GetTranscript(ctx context.Context, storyID string, stage model.Stage) ([]model.Message, error) {
	if err := requireStory(ctx, s.db, storyID); err != nil {
		return nil, err
	}
	return getTranscript(ctx, s.db, storyID, stage)
}

func getTranscript(ctx context.Context, q queryer, storyID string, stage model.Stage) ([]model.Message, error) {
	var data string
	err := q.QueryRowContext(ctx,
		`SELECT messages FROM transcripts WHERE story_id = ? AND stage = ?`, storyID, string(stage),
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return []model.Message{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transcript: %w", err)
	}

	msgs := []model.Message{}
	if err := json.Unmarshal([]byte(data), &msgs); err != nil {
		return nil, fmt.Errorf("failed to decode transcript: %w", err)
	}
	return msgs, nil
}

// AppendTranscript adds messages to the end of a stage transcript.
func (s *Store) AppendTranscript(ctx context.Context, storyID string, stage model.Stage, msgs ...model.Message) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireStory(ctx, tx, storyID); err != nil {
			return err
		}
		existing, err := getTranscript(ctx, tx, storyID, stage)
		if err != nil {
			return err
		}
		return putTranscript(ctx, tx, storyID, stage, append(existing, msgs...))
	})
}

func (s *Store) PutTranscript(ctx context.Context, storyID string, stage model.Stage, msgs []model.Message) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireStory(ctx, tx, storyID); err != nil {
			return err
		}
		return putTranscript(ctx, tx, storyID, stage, msgs)
	})
}

func putTranscript(ctx context.Context, tx *sql.Tx, storyID string, stage model.Stage, msgs []model.Message) error {
	if msgs == nil {
		msgs = []model.Message{}
	}
	data, err := json.Marshal(msgs)
	if err != nil {
		return fmt.Errorf("failed to encode transcript: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO transcripts (story_id, stage, messages) VALUES (?, ?, ?)
		ON CONFLICT (story_id, stage) DO UPDATE SET messages = excluded.messages`,
		storyID, string(stage), string(data))
	if err != nil {
		return fmt.Errorf("failed to save transcript: %w", err)
	}
	return nil
}

func (s *Store) ClearTranscript(ctx context.Context, storyID string, stage model.Stage) error {
	if err := requireStory(ctx, s.db, storyID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM transcripts WHERE story_id = ? AND stage = ?`, storyID, string(stage))
	if err != nil {
		return fmt.Errorf("failed to clear transcript: %w", err)
	}
	return nil
}
