package crawl

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/crawlchat/crawlchat/internal/metrics"
)

// Ingestor reads back crawled documents, embeds them in batches, and upserts
// the vectors into the index. Embedding and upsert failures are per-batch:
// the batch is logged and skipped, never aborting the run.
type Ingestor struct {
	store    DocumentStore
	embedder Embedder
	index    VectorIndex
	status   *Status
	logger   *zap.Logger
}

// NewIngestor constructs an Ingestor.
func NewIngestor(
	store DocumentStore,
	embedder Embedder,
	index VectorIndex,
	status *Status,
	logger *zap.Logger,
) *Ingestor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingestor{
		store:    store,
		embedder: embedder,
		index:    index,
		status:   status,
		logger:   logger,
	}
}

// Ingest runs the full pipeline. An empty store or zero surviving embeddings
// is not a failure; only the store read-back can return an error. Point ids
// are sequential from 0 over the surviving document list, assigned before the
// upsert batching pass, so they stay aligned with the embeddings regardless
// of which batches fail.
func (ing *Ingestor) Ingest(ctx context.Context, batchSize int) error {
	if batchSize <= 0 {
		batchSize = 5
	}

	docs, err := ing.store.All(ctx)
	if err != nil {
		return fmt.Errorf("read documents: %w", err)
	}
	if len(docs) == 0 {
		ing.logger.Warn("no documents found to ingest")
		return nil
	}

	validDocs, vectors := ing.embedBatches(ctx, docs, batchSize)
	if len(vectors) == 0 {
		ing.logger.Warn("no valid embeddings generated")
		return nil
	}

	ing.upsertBatches(ctx, validDocs, vectors, batchSize)
	ing.logger.Info("ingestion complete", zap.Int("documents", len(validDocs)))
	return nil
}

func (ing *Ingestor) embedBatches(
	ctx context.Context,
	docs []Document,
	batchSize int,
) ([]Document, [][]float32) {
	var (
		validDocs []Document
		vectors   [][]float32
	)
	for start := 0; start < len(docs); start += batchSize {
		end := min(start+batchSize, len(docs))
		batch := docs[start:end]
		batchNum := start/batchSize + 1

		texts := make([]string, len(batch))
		for i, d := range batch {
			texts[i] = d.Content
		}

		embs, err := ing.embedder.Embed(ctx, texts)
		if err == nil && len(embs) != len(batch) {
			err = fmt.Errorf("embedding count mismatch: got %d, want %d", len(embs), len(batch))
		}
		if err != nil {
			metrics.EmbedBatch("error")
			ing.logger.Error("embedding batch failed", zap.Int("batch", batchNum), zap.Error(err))
			continue
		}
		metrics.EmbedBatch("ok")
		validDocs = append(validDocs, batch...)
		vectors = append(vectors, embs...)
		ing.logger.Info("generated embeddings", zap.Int("batch", batchNum), zap.Int("texts", len(texts)))
	}
	return validDocs, vectors
}

func (ing *Ingestor) upsertBatches(
	ctx context.Context,
	docs []Document,
	vectors [][]float32,
	batchSize int,
) {
	total := len(docs)
	totalBatches := (total + batchSize - 1) / batchSize
	for start := 0; start < total; start += batchSize {
		end := min(start+batchSize, total)
		batchNum := start/batchSize + 1

		points := make([]Point, 0, end-start)
		for i := start; i < end; i++ {
			points = append(points, Point{
				ID:      uint64(i),
				Vector:  vectors[i],
				Payload: docs[i],
			})
		}

		if err := ing.index.Upsert(ctx, points); err != nil {
			metrics.UpsertBatch("error")
			ing.logger.Error("upsert batch failed", zap.Int("batch", batchNum), zap.Error(err))
			continue
		}
		metrics.UpsertBatch("ok")
		ing.status.Update(WithMessage(fmt.Sprintf("Upserting batch %d of %d", batchNum, totalBatches)))
		ing.logger.Info("upserted batch", zap.Int("batch", batchNum), zap.Int("points", len(points)))
	}
}
