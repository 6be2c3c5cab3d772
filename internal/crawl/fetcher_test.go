package crawl

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestFetcher(store DocumentStore) (*PageFetcher, *Registry) {
	registry := NewRegistry()
	f := NewPageFetcher(
		FetcherConfig{Timeout: 5 * time.Second},
		registry,
		store,
		nil,
		nil,
		zap.NewNop(),
	)
	return f, registry
}

func TestPageFetcher_Success(t *testing.T) {
	t.Parallel()

	var page string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, page)
	}))
	defer srv.Close()

	host := mustHost(t, srv.URL)
	page = fmt.Sprintf(`<html><head><title>Test Page</title></head><body>
		<p>para one</p>
		<div><p>para two</p></div>
		<a href="/a">rel</a>
		<a href="http://%s/b">abs same</a>
		<a href="https://other.example.com/x">offsite</a>
	</body></html>`, host)

	store := newFakeStore()
	f, registry := newTestFetcher(store)

	res := f.Fetch(context.Background(), FetchRequest{
		URL:       srv.URL,
		Domain:    host,
		SessionID: "sess-1",
	})

	require.NoError(t, res.Err)
	require.True(t, registry.Seen(srv.URL))
	require.Equal(t, 1, registry.CountScraped())
	require.Zero(t, registry.CountFailed())

	docs, err := store.All(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Equal(t, srv.URL, docs[0].URL)
	require.Equal(t, "Test Page", docs[0].Title)
	require.Equal(t, "para one\npara two", docs[0].Content)
	require.Equal(t, "sess-1", docs[0].SessionID)

	require.Equal(t, []string{
		fmt.Sprintf("http://%s/a", host),
		fmt.Sprintf("http://%s/b", host),
	}, res.Links)
}

func TestPageFetcher_AlreadySeen(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, "<html></html>")
	}))
	defer srv.Close()

	store := newFakeStore()
	f, registry := newTestFetcher(store)
	registry.MarkScraped(srv.URL)

	res := f.Fetch(context.Background(), FetchRequest{URL: srv.URL, Domain: mustHost(t, srv.URL)})

	require.NoError(t, res.Err)
	require.Empty(t, res.Links)
	require.Zero(t, hits.Load(), "duplicate URL must not hit the network")
	require.Equal(t, 1, registry.CountScraped())
	require.Zero(t, registry.CountFailed())
}

func TestPageFetcher_MissingScheme(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	f, registry := newTestFetcher(store)

	res := f.Fetch(context.Background(), FetchRequest{URL: "example.com/page", Domain: "example.com"})

	require.Error(t, res.Err)
	require.Empty(t, res.Links)
	require.True(t, registry.Seen("example.com/page"))
	require.Equal(t, 1, registry.CountFailed())
	require.Zero(t, registry.CountScraped())
}

func TestPageFetcher_BadStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	store := newFakeStore()
	f, registry := newTestFetcher(store)

	res := f.Fetch(context.Background(), FetchRequest{URL: srv.URL, Domain: mustHost(t, srv.URL)})

	require.Error(t, res.Err)
	require.Empty(t, res.Links)
	require.Equal(t, 1, registry.CountFailed())

	docs, err := store.All(context.Background())
	require.NoError(t, err)
	require.Empty(t, docs)
}

func TestPageFetcher_StoreFailureDropsLinks(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><body><p>x</p><a href="/next">n</a></body></html>`)
	}))
	defer srv.Close()

	store := newFakeStore()
	store.insertErr = errors.New("insert refused")
	f, registry := newTestFetcher(store)

	res := f.Fetch(context.Background(), FetchRequest{URL: srv.URL, Domain: mustHost(t, srv.URL)})

	require.Error(t, res.Err)
	require.Empty(t, res.Links, "no partial link data on store failure")
	require.Equal(t, 1, registry.CountFailed())
	require.Zero(t, registry.CountScraped())
}

func TestPageFetcher_TitleFallback(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><body><p>text</p></body></html>`)
	}))
	defer srv.Close()

	store := newFakeStore()
	f, _ := newTestFetcher(store)

	res := f.Fetch(context.Background(), FetchRequest{URL: srv.URL, Domain: mustHost(t, srv.URL)})
	require.NoError(t, res.Err)

	docs, err := store.All(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Equal(t, "No Title", docs[0].Title)
}

func mustHost(t *testing.T, rawURL string) string {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	return u.Host
}
