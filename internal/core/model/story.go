package model

import "time"

type Story struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Stage names one authoring phase. Chat transcripts are keyed by story and stage.
type Stage string

const (
	StageWorld      Stage = "world"
	StageCharacters Stage = "characters"
	StageOutline    Stage = "outline"
	StageChapter    Stage = "chapter"
	StageScene      Stage = "scene"
)

var stages = map[Stage]bool{
	StageWorld:      true,
	StageCharacters: true,
	StageOutline:    true,
	StageChapter:    true,
	StageScene:      true,
}

func (s Stage) Valid() bool {
	return stages[s]
}

// HasText reports whether the stage keeps a free-text document of its own
// (the outline and chapters have dedicated storage).
func (s Stage) HasText() bool {
	return s == StageWorld || s == StageCharacters
}

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type Outline struct {
	Outline     string `json:"outline"`
	NumChapters int    `json:"numChapters"`
}
