package orchestrate

// Sequencer hands out per-conversation sequence indices starting at 0.
// A conversation split across several documents keeps counting where it left off,
// so indices within one conversation directory never repeat. Not safe for concurrent use;
// it is driven only by the dispatching goroutine.
type Sequencer struct {
	next map[string]int
}

// NewSequencer creates an empty Sequencer
func NewSequencer() *Sequencer {
	return &Sequencer{next: make(map[string]int)}
}

// Next returns the next index for conversationID
func (s *Sequencer) Next(conversationID string) int {
	idx := s.next[conversationID]
	s.next[conversationID] = idx + 1
	return idx
}
