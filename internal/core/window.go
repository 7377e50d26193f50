package core

import "wellness-chat/pkg"

// DefaultMaxTurns bounds the history sent with each completion request.
const DefaultMaxTurns = 10

// BuildContextWindow returns the last maxTurns messages of transcript, in
// order, reduced to role and content.  A non-positive maxTurns selects
// DefaultMaxTurns.
func BuildContextWindow(transcript []pkg.Message, maxTurns int) []pkg.Turn {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	start := 0
	if len(transcript) > maxTurns {
		start = len(transcript) - maxTurns
	}
	window := make([]pkg.Turn, 0, len(transcript)-start)
	for _, m := range transcript[start:] {
		window = append(window, pkg.Turn{Role: m.Role, Content: m.Content})
	}
	return window
}
