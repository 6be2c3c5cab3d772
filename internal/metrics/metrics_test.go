package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func TestInit_Idempotent(t *testing.T) {
	Init()
	Init()
	require.NotNil(t, pagesScrapedTotal)
	require.NotNil(t, httpRequestsTotal)
}

func TestHelpers_SafeBeforeInit(t *testing.T) {
	// Helpers must not panic regardless of Init ordering.
	PageScraped()
	PageFailed()
	FetchStarted()
	FetchFinished()
	EmbedBatch("ok")
	UpsertBatch("error")
	CrawlRun("success")
	ObserveHTTPRequest(http.MethodGet, "/scraping-status", "200", time.Millisecond)
}

func TestMiddleware_RecordsStatus(t *testing.T) {
	Init()

	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/boom", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)
}
