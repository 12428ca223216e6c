package sync

import (
	"sort"
	"sync"
	"time"
)

// Pending tracks the repositories that have changed but have not been
// flushed yet.
type Pending struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

// NewPending returns an empty Pending.
func NewPending() *Pending {
	return &Pending{entries: map[string]time.Time{}}
}

// RecordEvent notes that root changed at `at`. Repeated events for the same
// root only move its timestamp forward.
func (p *Pending) RecordEvent(root string, at time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if last, ok := p.entries[root]; !ok || at.After(last) {
		p.entries[root] = at
	}
}

// Readmit puts a drained root back. It has the same semantics as
// RecordEvent, so a newer event recorded since the drain wins.
func (p *Pending) Readmit(root string, at time.Time) {
	p.RecordEvent(root, at)
}

// DrainExpired removes and returns every root whose last event is at least
// `window` before `now`. The roots are sorted.
func (p *Pending) DrainExpired(now time.Time, window time.Duration) []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	var expired []string
	for root, last := range p.entries {
		if now.Sub(last) >= window {
			expired = append(expired, root)
			delete(p.entries, root)
		}
	}
	sort.Strings(expired)
	return expired
}

// Len returns the number of roots waiting to be flushed.
func (p *Pending) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// LastEvent returns the time of the most recent event recorded for root.
func (p *Pending) LastEvent(root string) (time.Time, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	at, ok := p.entries[root]
	return at, ok
}
