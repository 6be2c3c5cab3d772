package crawl

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

type fakeStore struct {
	mu        sync.Mutex
	docs      []Document
	insertErr error
	allErr    error
	clearErr  error
	cleared   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{}
}

func (s *fakeStore) Insert(_ context.Context, doc Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	s.docs = append(s.docs, doc)
	return nil
}

func (s *fakeStore) All(_ context.Context) ([]Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.allErr != nil {
		return nil, s.allErr
	}
	out := make([]Document, len(s.docs))
	copy(out, s.docs)
	return out, nil
}

func (s *fakeStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clearErr != nil {
		return s.clearErr
	}
	s.cleared++
	s.docs = nil
	return nil
}

type fakeIndex struct {
	mu           sync.Mutex
	recreated    int
	recreateErr  error
	upserts      [][]Point
	failUpsert   map[int]error // 1-based upsert call number -> error
	searchHits   []SearchHit
	searchErr    error
	lastSession  string
	upsertCalls  int
	searchVector []float32
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{failUpsert: map[int]error{}}
}

func (ix *fakeIndex) Recreate(_ context.Context) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.recreateErr != nil {
		return ix.recreateErr
	}
	ix.recreated++
	ix.upserts = nil
	return nil
}

func (ix *fakeIndex) Upsert(_ context.Context, points []Point) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.upsertCalls++
	if err, ok := ix.failUpsert[ix.upsertCalls]; ok {
		return err
	}
	cp := make([]Point, len(points))
	copy(cp, points)
	ix.upserts = append(ix.upserts, cp)
	return nil
}

func (ix *fakeIndex) Search(_ context.Context, vector []float32, sessionID string, _ int) ([]SearchHit, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.searchVector = vector
	ix.lastSession = sessionID
	if ix.searchErr != nil {
		return nil, ix.searchErr
	}
	return ix.searchHits, nil
}

func (ix *fakeIndex) points() []Point {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	var all []Point
	for _, batch := range ix.upserts {
		all = append(all, batch...)
	}
	return all
}

type fakeEmbedder struct {
	mu        sync.Mutex
	calls     int
	failCalls map[int]error // 1-based call number -> error
	dim       int
}

func newFakeEmbedder() *fakeEmbedder {
	return &fakeEmbedder{failCalls: map[int]error{}, dim: 3}
}

func (e *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if err, ok := e.failCalls[e.calls]; ok {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		vec := make([]float32, e.dim)
		vec[0] = float32(len(texts[i]))
		out[i] = vec
	}
	return out, nil
}

// fakeFetcher mimics the real fetcher's contract: it records success or
// failure in the registry itself and returns outbound links.
type fakeFetcher struct {
	mu       sync.Mutex
	registry *Registry
	store    *fakeStore
	links    map[string][]string
	failURLs map[string]struct{}
	fetched  []string
}

func newFakeFetcher(registry *Registry, store *fakeStore) *fakeFetcher {
	return &fakeFetcher{
		registry: registry,
		store:    store,
		links:    map[string][]string{},
		failURLs: map[string]struct{}{},
	}
}

func (f *fakeFetcher) Fetch(ctx context.Context, req FetchRequest) FetchResult {
	f.mu.Lock()
	f.fetched = append(f.fetched, req.URL)
	f.mu.Unlock()

	if f.registry.Seen(req.URL) {
		return FetchResult{}
	}
	if _, bad := f.failURLs[req.URL]; bad {
		f.registry.MarkFailed(req.URL)
		return FetchResult{Err: errors.New("boom")}
	}
	if f.store != nil {
		_ = f.store.Insert(ctx, Document{URL: req.URL, Title: "t", Content: "c", SessionID: req.SessionID})
	}
	f.registry.MarkScraped(req.URL)
	return FetchResult{Links: f.links[req.URL]}
}

func (f *fakeFetcher) fetchedURLs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.fetched))
	copy(out, f.fetched)
	return out
}

type fakePublisher struct {
	mu       sync.Mutex
	topics   []string
	payloads []any
	err      error
}

func (p *fakePublisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	p.topics = append(p.topics, topic)
	p.payloads = append(p.payloads, payload)
	return fmt.Sprintf("msg-%d", len(p.payloads)), nil
}
