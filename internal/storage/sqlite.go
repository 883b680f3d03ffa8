package storage

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"

	"briefdoc/internal/knowledge"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a document id does not exist.
var ErrNotFound = errors.New("not found")

// SQLiteStore is the local knowledge store: passage chunks with their
// embeddings plus the documents table used by the sqlite sink.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates or opens a SQLite database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS passages (
			id TEXT PRIMARY KEY,
			collection TEXT NOT NULL,
			title TEXT,
			source TEXT,
			text TEXT NOT NULL,
			embedding BLOB
		);`,
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			html_body TEXT NOT NULL,
			status TEXT NOT NULL,
			brief TEXT,
			mode TEXT,
			created_at TIMESTAMP NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_passages_collection ON passages(collection);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// --- knowledge.Index ---

// Add upserts passages and their embeddings.
func (s *SQLiteStore) Add(ctx context.Context, items []knowledge.VectorItem) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO passages (id, collection, title, source, text, embedding) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			collection=excluded.collection,
			title=excluded.title,
			source=excluded.source,
			text=excluded.text,
			embedding=excluded.embedding
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, item := range items {
		blob, err := encodeVector(item.Embedding)
		if err != nil {
			return err
		}
		r := item.Record
		if _, err := stmt.ExecContext(ctx, r.ID, r.Collection, r.Title, r.Source, r.Text, blob); err != nil {
			return fmt.Errorf("failed to save passage %s: %w", r.ID, err)
		}
	}

	return tx.Commit()
}

// Search ranks the collection's passages by cosine similarity to queryVector.
// A linear scan is fine for the corpus sizes this store holds.
func (s *SQLiteStore) Search(ctx context.Context, collection string, queryVector []float32, topK int) ([]knowledge.ScoredRecord, error) {
	if topK <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, collection, title, source, text, embedding FROM passages WHERE collection = ?", collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []knowledge.ScoredRecord
	for rows.Next() {
		var r knowledge.Record
		var title, source sql.NullString
		var blob []byte
		if err := rows.Scan(&r.ID, &r.Collection, &title, &source, &r.Text, &blob); err != nil {
			return nil, err
		}
		r.Title = title.String
		r.Source = source.String

		embedding, err := decodeVector(blob)
		if err != nil {
			continue
		}
		hits = append(hits, knowledge.ScoredRecord{
			Record: r,
			Score:  float64(cosineSimilarity(queryVector, embedding)),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// Delete removes passages by id.
func (s *SQLiteStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, "DELETE FROM passages WHERE id = ?")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// CountPassages reports how many passages a collection holds.
func (s *SQLiteStore) CountPassages(ctx context.Context, collection string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM passages WHERE collection = ?", collection).Scan(&n)
	return n, err
}

// --- Sink ---

func (s *SQLiteStore) CreateDocument(ctx context.Context, doc Document) (DocumentHandle, error) {
	doc = prepare(doc)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, title, html_body, status, brief, mode, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, doc.ID, doc.Title, doc.HTMLBody, string(doc.Status), doc.Brief, doc.Mode, doc.CreatedAt)
	if err != nil {
		return DocumentHandle{}, fmt.Errorf("failed to insert document: %w", err)
	}
	return DocumentHandle{ID: doc.ID, Location: "sqlite:documents/" + doc.ID}, nil
}

// GetDocument loads a stored document by id.
func (s *SQLiteStore) GetDocument(ctx context.Context, id string) (Document, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, title, html_body, status, brief, mode, created_at FROM documents WHERE id = ?", id)

	var doc Document
	var status string
	var brief, mode sql.NullString
	if err := row.Scan(&doc.ID, &doc.Title, &doc.HTMLBody, &status, &brief, &mode, &doc.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, fmt.Errorf("document %s: %w", id, ErrNotFound)
		}
		return Document{}, err
	}
	doc.Status = Status(status)
	doc.Brief = brief.String
	doc.Mode = mode.String
	return doc, nil
}

func encodeVector(v []float32) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeVector(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("embedding blob has %d bytes", len(blob))
	}
	v := make([]float32, len(blob)/4)
	if err := binary.Read(bytes.NewReader(blob), binary.LittleEndian, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, magA, magB float32
	for i := 0; i < len(a); i++ {
		dot += a[i] * b[i]
		magA += a[i] * a[i]
		magB += b[i] * b[i]
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (float32(math.Sqrt(float64(magA))) * float32(math.Sqrt(float64(magB))))
}
