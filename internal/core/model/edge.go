package model

// Edge connects two mind-map nodes. Source and Target are node ids.
type Edge struct {
	ID       string `json:"id"`
	Source   string `json:"source"`
	Target   string `json:"target"`
	Label    string `json:"label,omitempty"`
	Type     string `json:"type,omitempty"`
	Animated bool   `json:"animated,omitempty"`
	Selected bool   `json:"selected,omitempty"`
}

// GenerationContext is what the mind-map generator needs to draw a story graph.
type GenerationContext struct {
	WorldContext     string `json:"worldContext"`
	CharacterContext string `json:"characterContext"`
	OutlineContext   string `json:"outlineContext"`
}
