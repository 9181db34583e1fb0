package rag

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Indexer walks a documents directory and writes chunk embeddings into a
// Store. Indexable sources are plain-text files (.txt, .md) and PDFs, which
// are split page by page so every chunk keeps its page number.
type Indexer struct {
	store      *Store
	embedder   Embedder
	embedModel string
	splitter   Splitter
	logger     *slog.Logger
}

// NewIndexer builds an indexer. A nil logger falls back to slog.Default.
func NewIndexer(store *Store, embedder Embedder, embedModel string, splitter Splitter, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{
		store:      store,
		embedder:   embedder,
		embedModel: embedModel,
		splitter:   splitter,
		logger:     logger,
	}
}

// IndexDir indexes every .txt and .md file under docsPath and returns the
// number of chunks written. A file that fails to read or embed is logged and
// skipped; a missing docs directory is an error.
func (ix *Indexer) IndexDir(ctx context.Context, docsPath string) (int, error) {
	info, err := os.Stat(docsPath)
	if err != nil || !info.IsDir() {
		return 0, fmt.Errorf("docs folder not found: %s", docsPath)
	}

	var total int
	walkErr := filepath.WalkDir(docsPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !indexable(path) {
			return nil
		}

		n, err := ix.indexFile(ctx, path)
		if err != nil {
			ix.logger.Warn("skipping file", "path", path, "error", err)
			return nil
		}
		total += n
		return nil
	})
	if walkErr != nil {
		return total, fmt.Errorf("failed to walk docs: %w", walkErr)
	}
	return total, nil
}

func (ix *Indexer) indexFile(ctx context.Context, path string) (int, error) {
	chunks, err := ix.buildChunks(path)
	if err != nil {
		return 0, err
	}
	if len(chunks) == 0 {
		ix.logger.Info("no extractable text", "path", path)
		return 0, nil
	}

	// Embed everything before touching the store, then insert atomically:
	// a file that fails partway contributes zero rows.
	for i := range chunks {
		vec, err := ix.embedder.Embeddings(ctx, ix.embedModel, chunks[i].Content)
		if err != nil {
			return 0, fmt.Errorf("failed to embed chunk: %w", err)
		}
		chunks[i].Embedding = vec
	}
	if err := ix.store.AddBatch(ctx, chunks); err != nil {
		return 0, err
	}

	ix.logger.Info("indexed file", "path", path, "chunks", len(chunks))
	return len(chunks), nil
}

func (ix *Indexer) buildChunks(path string) ([]Chunk, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		pages, err := extractPDFPages(path)
		if err != nil {
			return nil, err
		}
		return pagedChunks(ix.splitter, path, pages), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	var chunks []Chunk
	for _, c := range ix.splitter.Split(string(data)) {
		chunks = append(chunks, Chunk{Source: path, Content: c})
	}
	return chunks, nil
}

// pagedChunks splits each page separately so chunks never straddle a page
// boundary and every chunk carries its 1-based page number.
func pagedChunks(s Splitter, source string, pages []string) []Chunk {
	var out []Chunk
	for i, text := range pages {
		for _, c := range s.Split(text) {
			out = append(out, Chunk{Source: source, Page: i + 1, Content: c})
		}
	}
	return out
}

func indexable(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md", ".pdf":
		return true
	}
	return false
}
