package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgExecer is the slice of *pgxpool.Pool the sink uses.
type pgExecer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresSink stores drafts in a Postgres table.
type PostgresSink struct {
	db   pgExecer
	pool *pgxpool.Pool
}

// NewPostgresSink connects to dsn and makes sure the documents table exists.
func NewPostgresSink(ctx context.Context, dsn string) (*PostgresSink, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres sink requires sink.dsn")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	s := &PostgresSink{db: pool, pool: pool}
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresSink) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS kb_documents (
			id UUID PRIMARY KEY,
			title TEXT NOT NULL,
			html_body TEXT NOT NULL,
			status TEXT NOT NULL,
			brief TEXT,
			mode TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create kb_documents table: %w", err)
	}
	return nil
}

func (s *PostgresSink) CreateDocument(ctx context.Context, doc Document) (DocumentHandle, error) {
	doc = prepare(doc)
	var id string
	err := s.db.QueryRow(ctx, `
		INSERT INTO kb_documents (id, title, html_body, status, brief, mode, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id::text
	`, doc.ID, doc.Title, doc.HTMLBody, string(doc.Status), doc.Brief, doc.Mode, doc.CreatedAt).Scan(&id)
	if err != nil {
		return DocumentHandle{}, fmt.Errorf("failed to insert document: %w", err)
	}
	return DocumentHandle{ID: id, Location: "postgres:kb_documents/" + id}, nil
}

func (s *PostgresSink) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}
