package construction

import (
	"sync"
	"time"
)

// Tracker remembers the idempotency fingerprints of transactions this
// gateway has handed to the ledger, so an ambiguous submission can be
// re-checked instead of blindly resubmitted. Entries age out with the
// ledger's own dedup window.
type Tracker struct {
	mu        sync.RWMutex
	submitted map[string]time.Time
	window    time.Duration
}

func NewTracker(window time.Duration) *Tracker {
	if window <= 0 {
		window = 24 * time.Hour
	}
	return &Tracker{
		submitted: make(map[string]time.Time),
		window:    window,
	}
}

func (t *Tracker) Add(fingerprint string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.submitted[fingerprint] = time.Now()
	t.pruneLocked()
}

func (t *Tracker) Seen(fingerprint string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.submitted[fingerprint]
	return ok
}

func (t *Tracker) pruneLocked() {
	horizon := time.Now().Add(-t.window)
	for fp, at := range t.submitted {
		if at.Before(horizon) {
			delete(t.submitted, fp)
		}
	}
}
