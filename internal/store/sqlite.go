package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

var ErrNotFound = errors.New("not found")

// Store keeps every story's data in one SQLite database. Chapter prose lives
// in the manuscript directory and is referenced from the chapters table.
type Store struct {
	db         *sql.DB
	manuscript *Manuscript
	log        *zap.Logger
}

func Open(dbPath, manuscriptDir string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows one writer; a single connection avoids "database is locked".
	db.SetMaxOpenConns(1)

	ms, err := NewManuscript(manuscriptDir)
	if err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db, manuscript: ms, log: logger.Named("store")}
	if err := s.initSchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	s.log.Info("database opened", zap.String("path", dbPath))
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Manuscript() *Manuscript {
	return s.manuscript
}

func (s *Store) initSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS stories (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);

		CREATE TABLE IF NOT EXISTS story_stages (
			story_id TEXT NOT NULL REFERENCES stories(id) ON DELETE CASCADE,
			stage TEXT NOT NULL,
			content TEXT NOT NULL,
			PRIMARY KEY (story_id, stage)
		);

		CREATE TABLE IF NOT EXISTS outlines (
			story_id TEXT PRIMARY KEY REFERENCES stories(id) ON DELETE CASCADE,
			outline TEXT NOT NULL,
			num_chapters INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS mind_maps (
			story_id TEXT PRIMARY KEY REFERENCES stories(id) ON DELETE CASCADE,
			data TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS transcripts (
			story_id TEXT NOT NULL REFERENCES stories(id) ON DELETE CASCADE,
			stage TEXT NOT NULL,
			messages TEXT NOT NULL,
			PRIMARY KEY (story_id, stage)
		);

		CREATE TABLE IF NOT EXISTS chapters (
			story_id TEXT NOT NULL REFERENCES stories(id) ON DELETE CASCADE,
			number INTEGER NOT NULL,
			title TEXT NOT NULL,
			content_path TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			PRIMARY KEY (story_id, number)
		);
	`)
	return err
}

// withTx runs fn in a transaction, committing only if fn succeeds.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func requireStory(ctx context.Context, q queryer, storyID string) error {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM stories WHERE id = ?`, storyID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("story %s: %w", storyID, ErrNotFound)
	}
	return err
}
