package crawl

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func seedDocs(t *testing.T, store *fakeStore, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, store.Insert(context.Background(), Document{
			URL:       fmt.Sprintf("https://example.com/%d", i),
			Title:     fmt.Sprintf("title %d", i),
			Content:   fmt.Sprintf("content %d", i),
			SessionID: "sess-1",
		}))
	}
}

func TestIngest_SkipsFailedEmbeddingBatch(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	seedDocs(t, store, 6) // 3 batches of 2
	index := newFakeIndex()
	embedder := newFakeEmbedder()
	embedder.failCalls[2] = errors.New("embedding provider down")
	status := NewStatus()

	ing := NewIngestor(store, embedder, index, status, zap.NewNop())
	require.NoError(t, ing.Ingest(context.Background(), 2))

	// Batches 1 and 3 survive: docs 0,1,4,5.
	points := index.points()
	require.Len(t, points, 4)
	require.Equal(t, "https://example.com/0", points[0].Payload.URL)
	require.Equal(t, "https://example.com/1", points[1].Payload.URL)
	require.Equal(t, "https://example.com/4", points[2].Payload.URL)
	require.Equal(t, "https://example.com/5", points[3].Payload.URL)

	// IDs are sequential over the surviving list, not the original one.
	for i, p := range points {
		require.Equal(t, uint64(i), p.ID)
	}
}

func TestIngest_SkipsFailedUpsertBatch(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	seedDocs(t, store, 6)
	index := newFakeIndex()
	index.failUpsert[2] = errors.New("index write refused")
	status := NewStatus()

	ing := NewIngestor(store, newFakeEmbedder(), index, status, zap.NewNop())
	require.NoError(t, ing.Ingest(context.Background(), 2))

	// Batch 2 dropped, batches 1 and 3 landed.
	require.Len(t, index.points(), 4)
	require.Equal(t, "Upserting batch 3 of 3", status.Snapshot().Message)
}

func TestIngest_EmptyStore(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	index := newFakeIndex()
	status := NewStatus()

	ing := NewIngestor(store, newFakeEmbedder(), index, status, zap.NewNop())
	require.NoError(t, ing.Ingest(context.Background(), 5))

	require.Empty(t, index.points())
	// Message untouched by an empty run.
	require.Equal(t, "Waiting to start", status.Snapshot().Message)
}

func TestIngest_AllEmbeddingsFail(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	seedDocs(t, store, 3)
	index := newFakeIndex()
	embedder := newFakeEmbedder()
	embedder.failCalls[1] = errors.New("down")
	status := NewStatus()

	ing := NewIngestor(store, embedder, index, status, zap.NewNop())
	require.NoError(t, ing.Ingest(context.Background(), 5))
	require.Empty(t, index.points())
}

func TestIngest_StoreReadFailureIsFatal(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.allErr = errors.New("read refused")
	ing := NewIngestor(store, newFakeEmbedder(), newFakeIndex(), NewStatus(), zap.NewNop())

	err := ing.Ingest(context.Background(), 5)
	require.Error(t, err)
	require.Contains(t, err.Error(), "read documents")
}

func TestIngest_ProgressMessages(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	seedDocs(t, store, 5) // batchSize 2 -> 3 upsert batches
	status := NewStatus()

	ing := NewIngestor(store, newFakeEmbedder(), newFakeIndex(), status, zap.NewNop())
	require.NoError(t, ing.Ingest(context.Background(), 2))
	require.Equal(t, "Upserting batch 3 of 3", status.Snapshot().Message)
}
