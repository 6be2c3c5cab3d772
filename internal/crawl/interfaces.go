package crawl

import (
	"context"
	"io"
)

// DocumentStore persists scraped documents for later read-back by ingestion.
type DocumentStore interface {
	Insert(ctx context.Context, doc Document) error
	All(ctx context.Context) ([]Document, error)
	Clear(ctx context.Context) error
}

// VectorIndex is the vector collection fed by the ingestion pipeline.
// Recreate drops and recreates the collection so every run starts clean.
type VectorIndex interface {
	Recreate(ctx context.Context) error
	Upsert(ctx context.Context, points []Point) error
	Search(ctx context.Context, vector []float32, sessionID string, limit int) ([]SearchHit, error)
}

// Embedder returns one vector per input text, aligned by index.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Fetcher fetches one URL and returns the same-domain links it found.
type Fetcher interface {
	Fetch(ctx context.Context, req FetchRequest) FetchResult
}

// BlobStore writes raw page snapshots and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// Publisher pushes run-summary events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher computes digests used to key page snapshots.
type Hasher interface {
	Hash(data []byte) (string, error)
}
