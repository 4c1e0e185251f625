package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Manuscript stores chapter prose as markdown files, one directory per story.
type Manuscript struct {
	root string
}

func NewManuscript(root string) (*Manuscript, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create manuscript directory: %w", err)
	}
	return &Manuscript{root: root}, nil
}

func (m *Manuscript) storyDir(storyID string) (string, error) {
	if storyID == "" || storyID != filepath.Base(storyID) || strings.HasPrefix(storyID, ".") {
		return "", fmt.Errorf("invalid story id %q", storyID)
	}
	return filepath.Join(m.root, storyID), nil
}

// ChapterPath is the file a chapter is written to, relative to the root.
func ChapterPath(storyID string, number int) string {
	return filepath.Join(storyID, fmt.Sprintf("chapter-%03d.md", number))
}

// Write replaces a chapter file atomically and returns its relative path.
func (m *Manuscript) Write(storyID string, number int, content string) (string, error) {
	dir, err := m.storyDir(storyID)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create story directory: %w", err)
	}

	rel := ChapterPath(storyID, number)
	tmp, err := os.CreateTemp(dir, ".chapter-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write chapter: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write chapter: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(m.root, rel)); err != nil {
		return "", fmt.Errorf("failed to move chapter into place: %w", err)
	}
	return rel, nil
}

func (m *Manuscript) Read(rel string) (string, error) {
	data, err := os.ReadFile(filepath.Join(m.root, filepath.Clean(rel)))
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("chapter file %s: %w", rel, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read chapter: %w", err)
	}
	return string(data), nil
}

func (m *Manuscript) RemoveStory(storyID string) error {
	dir, err := m.storyDir(storyID)
	if err != nil {
		return err
	}
	return os.RemoveAll(dir)
}
