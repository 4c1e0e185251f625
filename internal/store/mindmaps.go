package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/agenthands/inkwell/internal/core/model"
)

// LoadMindMap returns the saved graph, or an empty one if none was saved.
// Edges are returned as stored, dangling endpoints included.
func (s *Store) LoadMindMap(ctx context.Context, storyID string) (model.Graph, error) {
	if err := requireStory(ctx, s.db, storyID); err != nil {
		return model.Graph{}, err
	}
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM mind_maps WHERE story_id = ?`, storyID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return model.EmptyGraph(), nil
	}
	if err != nil {
		return model.Graph{}, fmt.Errorf("failed to get mind map: %w", err)
	}

	var g model.Graph
	if err := json.Unmarshal([]byte(data), &g); err != nil {
		return model.Graph{}, fmt.Errorf("failed to decode mind map: %w", err)
	}
	if g.Nodes == nil {
		g.Nodes = []model.Node{}
	}
	if g.Edges == nil {
		g.Edges = []model.Edge{}
	}
	return g, nil
}

// SaveMindMap stores the graph as one row, so a save is all or nothing.
func (s *Store) SaveMindMap(ctx context.Context, storyID string, g model.Graph) error {
	if g.Nodes == nil {
		g.Nodes = []model.Node{}
	}
	if g.Edges == nil {
		g.Edges = []model.Edge{}
	}
	data, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("failed to encode mind map: %w", err)
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireStory(ctx, tx, storyID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO mind_maps (story_id, data) VALUES (?, ?)
			ON CONFLICT (story_id) DO UPDATE SET data = excluded.data`,
			storyID, string(data))
		if err != nil {
			return fmt.Errorf("failed to save mind map: %w", err)
		}
		return touchStory(ctx, tx, storyID)
	})
}
