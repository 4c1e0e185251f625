package model

import "time"

// Chapter is one structured record derived from outline text. RawContent is
// authoritative; Summary and KeyEvents are nil when the block does not carry them.
type Chapter struct {
	ChapterNumber int      `json:"chapterNumber"`
	Title         string   `json:"title"`
	Summary       *string  `json:"summary,omitempty"`
	KeyEvents     []string `json:"keyEvents,omitempty"`
	RawContent    string   `json:"rawContent"`
}

// ChapterDraft is the manuscript text written for one chapter.
type ChapterDraft struct {
	Number    int       `json:"number"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	UpdatedAt time.Time `json:"updated_at"`
}
