// Package backend implements the HTTP client for the locally hosted model
// service (Ollama). It is the only network surface of the application.
package backend

// ChatMessage is a role-tagged message as the chat API expects it.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest represents the request body for the Ollama chat API.
type ChatRequest struct {
	Model    string         `json:"model"`
	Messages []ChatMessage  `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

// StreamChunk represents a single chunk in a streaming chat response.
type StreamChunk struct {
	Model     string      `json:"model"`
	CreatedAt string      `json:"created_at"`
	Message   ChatMessage `json:"message"`
	Done      bool        `json:"done"`

	// Final chunk includes metrics
	TotalDuration      int64 `json:"total_duration,omitempty"`
	LoadDuration       int64 `json:"load_duration,omitempty"`
	PromptEvalCount    int   `json:"prompt_eval_count,omitempty"`
	PromptEvalDuration int64 `json:"prompt_eval_duration,omitempty"`
	EvalCount          int   `json:"eval_count,omitempty"`
	EvalDuration       int64 `json:"eval_duration,omitempty"`
}

// Usage carries the eval metrics from the final stream chunk.
type Usage struct {
	PromptEvalCount int
	EvalCount       int
	TotalDuration   int64
}

// TagsResponse represents the response from the Ollama /api/tags endpoint.
type TagsResponse struct {
	Models []Model `json:"models"`
}

// Model represents a single model in the tags response.
type Model struct {
	Name       string `json:"name"`
	ModifiedAt string `json:"modified_at"`
	Size       int64  `json:"size"`
	Digest     string `json:"digest"`
}

// EmbeddingsRequest represents the request body for /api/embeddings.
type EmbeddingsRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

// EmbeddingsResponse represents the response from /api/embeddings.
type EmbeddingsResponse struct {
	Embedding []float64 `json:"embedding"`
}

// errorResponse is the error body Ollama returns on non-200 statuses.
type errorResponse struct {
	Error string `json:"error"`
}
