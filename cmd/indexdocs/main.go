// Command indexdocs builds the local retrieval index from a documents
// directory so the chatbot can ground answers in them.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"localchat/internal/backend"
	"localchat/internal/config"
	"localchat/internal/rag"
	"localchat/internal/telemetry"
)

func main() {
	cfg := config.FromEnv()

	docsPath := flag.String("docs", "./docs", "Directory of .txt/.md documents to index")
	storePath := flag.String("store", cfg.RAGStore, "Path to the retrieval index database")
	chunkSize := flag.Int("chunk-size", 1000, "Chunk size in runes")
	chunkOverlap := flag.Int("chunk-overlap", 200, "Overlap between consecutive chunks in runes")
	embedModel := flag.String("embed-model", cfg.EmbedModel, "Embedding model")
	ollamaURL := flag.String("ollama-url", cfg.OllamaURL, "Ollama base URL")
	flag.Parse()

	logger, err := telemetry.InitLogger(false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	store, err := rag.Open(*storePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open index: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	client := backend.NewClient(*ollamaURL)
	splitter := rag.Splitter{ChunkSize: *chunkSize, Overlap: *chunkOverlap}
	indexer := rag.NewIndexer(store, client, *embedModel, splitter, logger)

	fmt.Printf("Indexing %s into %s (embeddings: %s)\n", *docsPath, *storePath, *embedModel)

	n, err := indexer.IndexDir(context.Background(), *docsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Indexing failed: %v\n", err)
		os.Exit(1)
	}
	if n == 0 {
		fmt.Fprintln(os.Stderr, "No indexable text found under", *docsPath)
		os.Exit(1)
	}

	fmt.Printf("Indexed %d chunks\n", n)
}
