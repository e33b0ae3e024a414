package chat

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jobmate/backend/internal/model/chat"
)

// Window is the in-memory conversation of one session, newest turn last.
//
// A summary turn, when present, is always at index 0 and does not count
// toward the limit: once folded the window holds the summary plus the last
// limit turns.
type Window struct {
	mu    sync.RWMutex
	limit int
	turns []chat.Turn
}

func NewWindow(limit int) *Window {
	if limit < 1 {
		limit = 1
	}
	return &Window{limit: limit, turns: make([]chat.Turn, 0, limit+2)}
}

// Append adds a turn at the tail. Summary turns are rejected; use Fold.
func (w *Window) Append(role chat.Role, content string) chat.Turn {
	turn := chat.Turn{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if role == chat.RoleSummary {
		return turn
	}
	w.mu.Lock()
	w.turns = append(w.turns, turn)
	w.mu.Unlock()
	return turn
}

// Turns returns a copy of the window.
func (w *Window) Turns() []chat.Turn {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]chat.Turn, len(w.turns))
	copy(out, w.turns)
	return out
}

func (w *Window) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.turns)
}

// Summary returns the head summary turn, if any.
func (w *Window) Summary() (chat.Turn, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if len(w.turns) > 0 && w.turns[0].IsSummary() {
		return w.turns[0], true
	}
	return chat.Turn{}, false
}

// Overflow returns the oldest non-summary turns beyond the limit.
func (w *Window) Overflow() []chat.Turn {
	w.mu.RLock()
	defer w.mu.RUnlock()
	start, n := w.overflowBounds()
	out := make([]chat.Turn, n)
	copy(out, w.turns[start:start+n])
	return out
}

// Fold replaces any existing summary and the overflow turns with a single
// summary turn at the head.
func (w *Window) Fold(summary string) chat.Turn {
	w.mu.Lock()
	defer w.mu.Unlock()

	start, n := w.overflowBounds()
	turn := chat.Turn{
		ID:        uuid.NewString(),
		Role:      chat.RoleSummary,
		Content:   summary,
		CreatedAt: time.Now().UTC(),
	}
	rest := w.turns[start+n:]
	turns := make([]chat.Turn, 0, len(rest)+1)
	turns = append(turns, turn)
	turns = append(turns, rest...)
	w.turns = turns
	return turn
}

// Truncate drops the overflow turns, keeping any existing summary, and
// returns how many turns were dropped.
func (w *Window) Truncate() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	start, n := w.overflowBounds()
	if n == 0 {
		return 0
	}
	turns := make([]chat.Turn, 0, len(w.turns)-n)
	turns = append(turns, w.turns[:start]...)
	turns = append(turns, w.turns[start+n:]...)
	w.turns = turns
	return n
}

// overflowBounds returns where the non-summary turns start and how many of
// them exceed the limit. Callers hold the lock.
func (w *Window) overflowBounds() (start, n int) {
	if len(w.turns) > 0 && w.turns[0].IsSummary() {
		start = 1
	}
	if excess := len(w.turns) - start - w.limit; excess > 0 {
		n = excess
	}
	return start, n
}
