// Package postgres provides the Postgres-backed document store.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crawlchat/crawlchat/internal/crawl"
)

// DB is the subset of pgxpool.Pool the store needs. Kept narrow so pgxmock
// can stand in during tests.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Store implements crawl.DocumentStore on Postgres.
type Store struct {
	db   DB
	pool *pgxpool.Pool
}

// New wraps an existing DB handle.
func New(db DB) *Store {
	return &Store{db: db}
}

// Connect opens a pgx pool, verifies connectivity, and ensures the schema.
func Connect(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := &Store{db: pool, pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying pool if this store owns one.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) ensureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS documents (
			id BIGSERIAL PRIMARY KEY,
			url TEXT NOT NULL,
			title TEXT NOT NULL,
			content TEXT NOT NULL,
			session_id TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`
	if _, err := s.db.Exec(ctx, query); err != nil {
		return fmt.Errorf("ensure documents schema: %w", err)
	}
	return nil
}

// Insert writes one document. Each insert is a single atomic statement, so
// concurrent fetch workers can interleave writes without partial visibility.
func (s *Store) Insert(ctx context.Context, doc crawl.Document) error {
	query := `
		INSERT INTO documents (url, title, content, session_id)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := s.db.Exec(ctx, query, doc.URL, doc.Title, doc.Content, doc.SessionID); err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// All reads back every document in insertion order. The projection excludes
// the store-internal id column.
func (s *Store) All(ctx context.Context) ([]crawl.Document, error) {
	query := `
		SELECT url, title, content, session_id
		FROM documents
		ORDER BY id
	`
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var docs []crawl.Document
	for rows.Next() {
		var doc crawl.Document
		if err := rows.Scan(&doc.URL, &doc.Title, &doc.Content, &doc.SessionID); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

// Clear removes all documents ahead of a fresh crawl run.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM documents`); err != nil {
		return fmt.Errorf("clear documents: %w", err)
	}
	return nil
}
