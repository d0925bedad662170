package council

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// TurnLog is the ordered conversation record. It has a single writer (the
// active run) and arbitrarily many readers; readers always work on
// snapshots, never on the live slice.
type TurnLog struct {
	mu    sync.RWMutex
	turns []*Turn
}

// NewTurnLog creates an empty turn log.
func NewTurnLog() *TurnLog {
	return &TurnLog{}
}

// Append adds a turn and returns its ID, assigning one if absent.
func (l *TurnLog) Append(t Turn) string {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	l.mu.Lock()
	l.turns = append(l.turns, &t)
	l.mu.Unlock()
	return t.ID
}

// SetText replaces the text of a non-finalized turn. Used by the synthesis
// stage to publish the growing answer after each delta.
func (l *TurnLog) SetText(id, text string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	t := l.find(id)
	if t == nil {
		return fmt.Errorf("turn %s not found", id)
	}
	if t.Final {
		return fmt.Errorf("turn %s is finalized", id)
	}
	t.Parts = []string{text}
	return nil
}

// Finalize attaches sources and the work trace to a turn and freezes it.
// Sources and work become visible together, never separately.
func (l *TurnLog) Finalize(id string, sources []Source, work *WorkTrace) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	t := l.find(id)
	if t == nil {
		return fmt.Errorf("turn %s not found", id)
	}
	if t.Final {
		return fmt.Errorf("turn %s is finalized", id)
	}
	t.Sources = sources
	t.Work = work
	t.Final = true
	return nil
}

// Remove deletes a turn. Used to discard the in-flight draft when a run
// fails mid-stream.
func (l *TurnLog) Remove(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, t := range l.turns {
		if t.ID == id {
			l.turns = append(l.turns[:i], l.turns[i+1:]...)
			return
		}
	}
}

// Len returns the number of turns.
func (l *TurnLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.turns)
}

// Snapshot returns a copy of the log safe for concurrent readers.
func (l *TurnLog) Snapshot() []Turn {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Turn, 0, len(l.turns))
	for _, t := range l.turns {
		c := *t
		c.Parts = append([]string(nil), t.Parts...)
		c.Sources = append([]Source(nil), t.Sources...)
		out = append(out, c)
	}
	return out
}

// find must be called with the lock held.
func (l *TurnLog) find(id string) *Turn {
	for _, t := range l.turns {
		if t.ID == id {
			return t
		}
	}
	return nil
}
