package crawl

import "sync"

// Status is the shared run status record. All reads and writes go through
// the same mutex so no observer ever sees a half-applied update.
type Status struct {
	mu        sync.Mutex
	scraping  bool
	upserting bool
	completed bool
	message   string
}

// NewStatus returns a Status in its initial waiting state.
func NewStatus() *Status {
	return &Status{message: "Waiting to start"}
}

// StatusOption mutates one field inside an atomic Update.
type StatusOption func(*Status)

// WithScraping sets the scraping flag.
func WithScraping(v bool) StatusOption {
	return func(s *Status) { s.scraping = v }
}

// WithUpserting sets the upserting flag.
func WithUpserting(v bool) StatusOption {
	return func(s *Status) { s.upserting = v }
}

// WithCompleted sets the completed flag.
func WithCompleted(v bool) StatusOption {
	return func(s *Status) { s.completed = v }
}

// WithMessage sets the progress message.
func WithMessage(msg string) StatusOption {
	return func(s *Status) { s.message = msg }
}

// Update applies the supplied options as one atomic read-modify-write.
// Fields without an option keep their prior value.
func (s *Status) Update(opts ...StatusOption) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, opt := range opts {
		opt(s)
	}
}

// Completed reports whether the run has finished: completed is set and
// neither scraping nor upserting is still in progress.
func (s *Status) Completed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completed && !(s.scraping || s.upserting)
}

// Snapshot returns a consistent copy of all fields.
func (s *Status) Snapshot() StatusSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StatusSnapshot{
		Scraping:  s.scraping,
		Upserting: s.upserting,
		Completed: s.completed,
		Message:   s.message,
	}
}
