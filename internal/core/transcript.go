package core

import (
	"sync"

	"wellness-chat/pkg"
)

// Transcript is the client-side ordered message log of one session.  It is
// append-only: entries are never reordered, edited or removed, except that
// Reset drops everything when the session is terminated.
//
// Messages that failed to reach the remote store stay visible and are
// tracked as unsynced until a later write succeeds.
type Transcript struct {
	mu       sync.RWMutex
	messages []pkg.Message
	unsynced map[string]struct{}
}

// NewTranscript returns an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{unsynced: make(map[string]struct{})}
}

// Initialize replaces the contents with seed.  It is used once, at session
// start.
func (t *Transcript) Initialize(seed []pkg.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = append(make([]pkg.Message, 0, len(seed)), seed...)
	t.unsynced = make(map[string]struct{})
}

// Append adds m to the end and returns a snapshot of the updated transcript.
func (t *Transcript) Append(m pkg.Message) []pkg.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = append(t.messages, m)
	return t.snapshot()
}

// All returns a copy of the transcript that is safe to use while other
// goroutines append.
func (t *Transcript) All() []pkg.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snapshot()
}

// Len reports the number of messages.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

// MarkUnsynced flags the message with the given id as not mirrored remotely.
func (t *Transcript) MarkUnsynced(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.unsynced[id] = struct{}{}
}

// MarkSynced clears the unsynced flag of the given ids.
func (t *Transcript) MarkSynced(ids ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, id := range ids {
		delete(t.unsynced, id)
	}
}

// Unsynced returns the unsynced messages in transcript order.
func (t *Transcript) Unsynced() []pkg.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []pkg.Message
	for _, m := range t.messages {
		if _, ok := t.unsynced[m.ID]; ok {
			out = append(out, m)
		}
	}
	return out
}

// Reset discards every message.  Only termination calls it.
func (t *Transcript) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = nil
	t.unsynced = make(map[string]struct{})
}

func (t *Transcript) snapshot() []pkg.Message {
	out := make([]pkg.Message, len(t.messages))
	copy(out, t.messages)
	return out
}
