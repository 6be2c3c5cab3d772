// Package crawl implements the concurrent crawl orchestrator: the bounded
// frontier-expansion loop, the shared dedup/status registry, the page fetcher,
// and the batched ingestion hand-off to the vector index.
package crawl

// Document is the unit persisted for each successfully scraped page.
// It is written once to the document store and never mutated afterwards.
type Document struct {
	URL       string `json:"url"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	SessionID string `json:"session_id"`
}

// Result summarizes one crawl run.
type Result struct {
	Success      bool
	Scraped      int
	Failed       int
	LimitReached bool
	Err          error
}

// FetchRequest captures everything needed to fetch one page.
type FetchRequest struct {
	URL       string
	Domain    string
	SessionID string
}

// FetchResult is the outcome of a single page fetch. A terminal per-URL
// failure is recorded in the registry by the fetcher and reported here; it
// never aborts the run.
type FetchResult struct {
	Links []string
	Err   error
}

// Point is one embedded document ready for index upsert. IDs are sequential
// integers assigned per ingestion run; the index is recreated before each run
// so they never collide observably.
type Point struct {
	ID      uint64
	Vector  []float32
	Payload Document
}

// SearchHit is one retrieval result returned by the vector index.
type SearchHit struct {
	URL     string
	Content string
	Score   float32
}

// StatusSnapshot is a consistent read of the run status record.
type StatusSnapshot struct {
	Scraping  bool
	Upserting bool
	Completed bool
	Message   string
}
