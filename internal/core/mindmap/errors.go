package mindmap

import "errors"

var (
	// ErrMalformedGraph is returned when a generated graph does not carry
	// "nodes" and "edges" arrays of well-formed entries.
	ErrMalformedGraph = errors.New("malformed mind map graph")
	// ErrMissingContext is returned before any generation call when one of the
	// world, character or outline contexts is empty.
	ErrMissingContext  = errors.New("world, character and outline context are all required")
	ErrUpstream        = errors.New("mind map generation failed")
	ErrSessionNotFound = errors.New("mind map session not found")
)
