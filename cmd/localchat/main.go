package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"localchat/internal/chatbot"
	"localchat/internal/config"
)

func main() {
	cfg := config.FromEnv()
	var quitWords string

	flag.StringVar(&cfg.Model, "model", cfg.Model, "Model specification (format: model:version)")
	flag.StringVar(&cfg.ThreadID, "thread-id", "", "Session identifier (generated when empty)")
	flag.StringVar(&cfg.OllamaURL, "ollama-url", cfg.OllamaURL, "Ollama base URL (default http://localhost:11434)")
	flag.StringVar(&quitWords, "quit-words", "", "Comma-separated termination tokens (default quit,exit,q)")
	flag.Float64Var(&cfg.Temperature, "temperature", cfg.Temperature, "Sampling temperature")
	flag.IntVar(&cfg.MaxTurns, "max-turns", 0, "Cap retained history at this many turns, 0 = unbounded")
	flag.BoolVar(&cfg.Debug, "debug", false, "Enable debug logging")

	flag.BoolVar(&cfg.RAGEnabled, "rag-enabled", false, "Prepend retrieved document context to each turn")
	flag.StringVar(&cfg.RAGStore, "rag-store", cfg.RAGStore, "Path to the retrieval index database")
	flag.IntVar(&cfg.RAGTopK, "rag-topk", cfg.RAGTopK, "Number of context snippets per turn")
	flag.StringVar(&cfg.EmbedModel, "embed-model", cfg.EmbedModel, "Embedding model for retrieval")

	flag.Parse()

	if quitWords != "" {
		cfg.QuitWords = config.ParseQuitWords(quitWords)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	bot, err := chatbot.NewChatBot(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize chatbot: %v\n", err)
		os.Exit(1)
	}

	if err := bot.Run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
