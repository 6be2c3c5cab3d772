// Package qdrant implements the vector index on a Qdrant collection.
package qdrant

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"github.com/crawlchat/crawlchat/internal/crawl"
)

// Config captures connection and collection settings.
type Config struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
	VectorSize uint64
}

// Index implements crawl.VectorIndex against a Qdrant server.
type Index struct {
	client *qdrant.Client
	cfg    Config
}

// New connects to Qdrant and returns an Index.
func New(cfg Config) (*Index, error) {
	if cfg.Collection == "" {
		return nil, fmt.Errorf("collection name is required")
	}
	if cfg.VectorSize == 0 {
		return nil, fmt.Errorf("vector size is required")
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}
	return &Index{client: client, cfg: cfg}, nil
}

// Close releases the underlying gRPC connection.
func (ix *Index) Close() error {
	return ix.client.Close()
}

// Recreate drops the collection if present and creates it fresh with cosine
// distance, so ids from earlier runs can never collide observably.
func (ix *Index) Recreate(ctx context.Context) error {
	exists, err := ix.client.CollectionExists(ctx, ix.cfg.Collection)
	if err != nil {
		return fmt.Errorf("check collection: %w", err)
	}
	if exists {
		if err := ix.client.DeleteCollection(ctx, ix.cfg.Collection); err != nil {
			return fmt.Errorf("delete collection: %w", err)
		}
	}
	err = ix.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: ix.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     ix.cfg.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	return nil
}

// Upsert writes a batch of points, waiting for server-side completion.
func (ix *Index) Upsert(ctx context.Context, points []crawl.Point) error {
	qp := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		qp = append(qp, &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(p.ID),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: qdrant.NewValueMap(map[string]any{
				"url":        p.Payload.URL,
				"title":      p.Payload.Title,
				"content":    p.Payload.Content,
				"session_id": p.Payload.SessionID,
			}),
		})
	}
	_, err := ix.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: ix.cfg.Collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qp,
	})
	if err != nil {
		return fmt.Errorf("upsert points: %w", err)
	}
	return nil
}

// Search returns the closest points for the query vector, scoped to one
// session via a payload filter.
func (ix *Index) Search(
	ctx context.Context,
	vector []float32,
	sessionID string,
	limit int,
) ([]crawl.SearchHit, error) {
	res, err := ix.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: ix.cfg.Collection,
		Query:          qdrant.NewQuery(vector...),
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("session_id", sessionID),
			},
		},
		Limit:       qdrant.PtrOf(uint64(limit)),
		WithPayload: qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("query points: %w", err)
	}

	hits := make([]crawl.SearchHit, 0, len(res))
	for _, point := range res {
		hits = append(hits, crawl.SearchHit{
			URL:     point.Payload["url"].GetStringValue(),
			Content: point.Payload["content"].GetStringValue(),
			Score:   point.Score,
		})
	}
	return hits, nil
}
