// Package onboarding tracks cold-start preference collection: the set of
// games liked before the main application unlocks.
package onboarding

import (
	"sync"

	"nextplay/internal/constants"
)

// Tracker accumulates liked game ids during one onboarding pass. The set
// only grows; unliking is not part of this surface, so completion is
// monotonic.
type Tracker struct {
	mu    sync.Mutex
	liked map[string]struct{}
}

func NewTracker() *Tracker {
	return &Tracker{liked: make(map[string]struct{})}
}

// RecordLike inserts gameID into the liked set. Liking the same game twice
// has no additional effect. It reports whether the id was newly added.
func (t *Tracker) RecordLike(gameID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.liked[gameID]; ok {
		return false
	}
	t.liked[gameID] = struct{}{}
	return true
}

// Count returns the number of distinct liked games.
func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.liked)
}

// IsComplete reports whether enough distinct games have been liked to leave
// onboarding.
func (t *Tracker) IsComplete() bool {
	return t.Count() >= constants.LikeTarget
}

// Contains reports whether gameID is already liked, for rendering the
// selected state in the picker.
func (t *Tracker) Contains(gameID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.liked[gameID]
	return ok
}
