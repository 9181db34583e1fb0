package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

const (
	DefaultModel       = "gemma3:4b-it-qat"
	DefaultEmbedModel  = "nomic-embed-text"
	DefaultRAGStore    = "./rag_store.db"
	DefaultTemperature = 0.7
)

// DefaultQuitWords are the termination tokens, matched case-insensitively
// against a trimmed input line.
var DefaultQuitWords = []string{"quit", "exit", "q"}

// Config holds application configuration.
type Config struct {
	Model       string // Model specification in format "model:version" (e.g., "llama3:latest")
	ThreadID    string // Session identifier; generated when empty
	OllamaURL   string
	QuitWords   []string
	Temperature float64
	MaxTurns    int // 0 = unbounded history
	Debug       bool

	// Retrieval configuration
	RAGEnabled bool
	RAGStore   string
	RAGTopK    int
	EmbedModel string
}

// ConfigurationError reports invalid startup configuration. It is fatal: the
// process exits before the conversation loop starts.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// FromEnv loads a .env file when present and returns defaults with any
// environment overrides applied. Flag values are layered on top by the
// caller.
func FromEnv() Config {
	_ = godotenv.Load()

	cfg := Config{
		Model:       envOr("LOCALCHAT_MODEL", DefaultModel),
		OllamaURL:   envOr("OLLAMA_HOST", ""),
		QuitWords:   DefaultQuitWords,
		Temperature: DefaultTemperature,
		RAGStore:    envOr("RAG_STORE_DIR", DefaultRAGStore),
		RAGTopK:     4,
		EmbedModel:  envOr("RAG_EMBED_MODEL", DefaultEmbedModel),
	}
	return cfg
}

// Validate checks the configuration and fills in a generated thread id when
// none was supplied.
func (c *Config) Validate() error {
	c.Model = strings.TrimSpace(c.Model)
	if c.Model == "" {
		return &ConfigurationError{Field: "model", Reason: "must not be empty"}
	}

	c.ThreadID = strings.TrimSpace(c.ThreadID)
	if c.ThreadID == "" {
		c.ThreadID = uuid.NewString()
	}

	if len(c.QuitWords) == 0 {
		c.QuitWords = DefaultQuitWords
	}
	if c.RAGTopK <= 0 {
		c.RAGTopK = 4
	}
	if c.Temperature < 0 {
		return &ConfigurationError{Field: "temperature", Reason: "must not be negative"}
	}
	if c.MaxTurns < 0 {
		return &ConfigurationError{Field: "max-turns", Reason: "must not be negative"}
	}
	return nil
}

// ParseQuitWords splits a comma-separated token list, dropping empties.
func ParseQuitWords(s string) []string {
	var words []string
	for _, w := range strings.Split(s, ",") {
		w = strings.TrimSpace(w)
		if w != "" {
			words = append(words, w)
		}
	}
	return words
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
