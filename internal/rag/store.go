// Package rag implements the local document-retrieval index: a sqlite-backed
// chunk store with Ollama embeddings and brute-force cosine search.
package rag

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	_ "github.com/mattn/go-sqlite3"
)

// Chunk is one indexed piece of a source document.
type Chunk struct {
	Source    string
	Page      int // 0 when the source has no page structure
	Content   string
	Embedding []float64
}

// Result is a scored search hit.
type Result struct {
	Source  string
	Page    int
	Content string
	Score   float64
}

// Store persists chunks and their embeddings in a sqlite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the index database at path. Use ":memory:"
// for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index database: %w", err)
	}

	createChunksTable := `
	CREATE TABLE IF NOT EXISTS chunks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source TEXT NOT NULL,
		page INTEGER NOT NULL DEFAULT 0,
		content TEXT NOT NULL,
		embedding BLOB NOT NULL
	);`

	if _, err := db.Exec(createChunksTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create chunks table: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Add inserts one chunk.
func (s *Store) Add(ctx context.Context, c Chunk) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO chunks (source, page, content, embedding) VALUES (?, ?, ?, ?)",
		c.Source, c.Page, c.Content, encodeVector(c.Embedding),
	)
	if err != nil {
		return fmt.Errorf("failed to insert chunk: %w", err)
	}
	return nil
}

// AddBatch inserts chunks in one transaction; on any failure nothing is
// persisted, so a source file is either fully indexed or absent.
func (s *Store) AddBatch(ctx context.Context, chunks []Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO chunks (source, page, content, embedding) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		if _, err := stmt.ExecContext(ctx, c.Source, c.Page, c.Content, encodeVector(c.Embedding)); err != nil {
			return fmt.Errorf("failed to insert chunk: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Count reports the number of indexed chunks.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return n, nil
}

// Search scans all chunks and returns the k best cosine matches for query,
// best first. Indexes here are small enough that a full scan is adequate.
func (s *Store) Search(ctx context.Context, query []float64, k int) ([]Result, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT source, page, content, embedding FROM chunks")
	if err != nil {
		return nil, fmt.Errorf("failed to load chunks: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var blob []byte
		if err := rows.Scan(&r.Source, &r.Page, &r.Content, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		r.Score = cosine(query, decodeVector(blob))
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read chunks: %w", err)
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// encodeVector packs a vector as little-endian float32.
func encodeVector(vec []float64) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(float32(v)))
	}
	return buf
}

func decodeVector(buf []byte) []float64 {
	vec := make([]float64, len(buf)/4)
	for i := range vec {
		vec[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:])))
	}
	return vec
}

func cosine(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
