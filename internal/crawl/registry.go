package crawl

import "sync"

// Registry tracks which URLs have been scraped or failed within a run. Both
// sets only ever grow: once a URL lands in either set it is never removed or
// moved, which is what gives the at-most-once-fetch guarantee. Safe for
// concurrent use by all fetch workers.
type Registry struct {
	mu      sync.RWMutex
	scraped map[string]struct{}
	failed  map[string]struct{}
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		scraped: make(map[string]struct{}),
		failed:  make(map[string]struct{}),
	}
}

// MarkScraped records a successful fetch. Idempotent.
func (r *Registry) MarkScraped(url string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scraped[url] = struct{}{}
}

// MarkFailed records a terminal fetch failure. Idempotent.
func (r *Registry) MarkFailed(url string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed[url] = struct{}{}
}

// Seen reports whether the URL is already in either set. The check is
// advisory: the orchestrator re-filters the dispatch list against the
// registry immediately before each round so concurrently-completing fetches
// cannot cause duplicate work on the next round.
func (r *Registry) Seen(url string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.scraped[url]; ok {
		return true
	}
	_, ok := r.failed[url]
	return ok
}

// CountScraped returns the current scraped count.
func (r *Registry) CountScraped() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.scraped)
}

// CountFailed returns the current failed count.
func (r *Registry) CountFailed() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.failed)
}

// Reset empties both sets. Called by the orchestrator at run start so state
// never leaks between runs.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scraped = make(map[string]struct{})
	r.failed = make(map[string]struct{})
}
