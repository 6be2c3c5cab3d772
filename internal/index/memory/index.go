// Package memory provides an in-memory vector index for development.
package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/crawlchat/crawlchat/internal/crawl"
)

// Index implements crawl.VectorIndex in memory with brute-force cosine
// similarity search.
type Index struct {
	mu     sync.RWMutex
	points []crawl.Point
}

// NewIndex creates an empty Index.
func NewIndex() *Index {
	return &Index{}
}

// Recreate drops all points.
func (ix *Index) Recreate(_ context.Context) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.points = nil
	return nil
}

// Upsert appends or replaces points by id.
func (ix *Index) Upsert(_ context.Context, points []crawl.Point) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	for _, p := range points {
		replaced := false
		for i := range ix.points {
			if ix.points[i].ID == p.ID {
				ix.points[i] = p
				replaced = true
				break
			}
		}
		if !replaced {
			ix.points = append(ix.points, p)
		}
	}
	return nil
}

// Search scores every point of the session against the query vector and
// returns the top matches by cosine similarity.
func (ix *Index) Search(
	_ context.Context,
	vector []float32,
	sessionID string,
	limit int,
) ([]crawl.SearchHit, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var hits []crawl.SearchHit
	for _, p := range ix.points {
		if p.Payload.SessionID != sessionID {
			continue
		}
		hits = append(hits, crawl.SearchHit{
			URL:     p.Payload.URL,
			Content: p.Payload.Content,
			Score:   cosine(vector, p.Vector),
		})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// Len returns the number of stored points.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.points)
}

func cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
