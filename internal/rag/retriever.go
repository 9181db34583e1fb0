package rag

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// Embedder produces an embedding vector for a prompt. *backend.Client
// satisfies it.
type Embedder interface {
	Embeddings(ctx context.Context, model, prompt string) ([]float64, error)
}

const snippetLimit = 500

// Retriever answers similarity queries against a Store.
type Retriever struct {
	store      *Store
	embedder   Embedder
	embedModel string
	topK       int
}

// NewRetriever wires a retriever over store. A nil store yields a retriever
// that always reports no context.
func NewRetriever(store *Store, embedder Embedder, embedModel string, topK int) *Retriever {
	if topK <= 0 {
		topK = 4
	}
	return &Retriever{store: store, embedder: embedder, embedModel: embedModel, topK: topK}
}

// Retrieve returns the top matches for query. A missing or empty index
// returns no results rather than an error.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]Result, error) {
	if r.store == nil {
		return nil, nil
	}

	n, err := r.store.Count(ctx)
	if err != nil || n == 0 {
		return nil, nil
	}

	vec, err := r.embedder.Embeddings(ctx, r.embedModel, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	return r.store.Search(ctx, vec, r.topK)
}

// FormatContext renders results as the context block prepended to a model
// turn: a CONTEXT: header followed by one snippet line per hit with a
// [file p.N] source marker.
func FormatContext(results []Result) string {
	if len(results) == 0 {
		return "CONTEXT:\n(No relevant context found.)"
	}

	var b strings.Builder
	b.WriteString("CONTEXT:")
	for _, r := range results {
		pageTag := ""
		if r.Page > 0 {
			pageTag = fmt.Sprintf(" p.%d", r.Page)
		}
		text := strings.Join(strings.Fields(r.Content), " ")
		if runes := []rune(text); len(runes) > snippetLimit {
			text = string(runes[:snippetLimit]) + "..."
		}
		b.WriteString(fmt.Sprintf("\n- [%s%s] %s", filepath.Base(r.Source), pageTag, text))
	}
	return b.String()
}
