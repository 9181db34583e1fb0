package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// DefaultBaseURL is the standard local Ollama endpoint.
const DefaultBaseURL = "http://localhost:11434"

// ServiceError reports a model-service failure: connection refused, an HTTP
// error status, or a decode failure mid-stream. The conversation loop
// surfaces it and aborts the current turn without retrying.
type ServiceError struct {
	Op  string // "chat", "tags", "embeddings"
	Err error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("model service %s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// FragmentFunc receives one streamed response fragment. Returning an error
// aborts the stream.
type FragmentFunc func(fragment string) error

// Client talks to an Ollama server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	options    map[string]any
}

// NewClient creates a client for the given base URL. An empty baseURL falls
// back to DefaultBaseURL. The HTTP client carries no timeout: a streaming
// chat call legitimately outlives any fixed deadline, and cancellation is the
// caller's context's job.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}
}

// SetTemperature pins the sampling temperature sent with every chat request.
func (c *Client) SetTemperature(t float64) {
	if c.options == nil {
		c.options = make(map[string]any)
	}
	c.options["temperature"] = t
}

// ChatStream sends the full ordered history to /api/chat with streaming
// enabled and forwards each fragment to fn in arrival order. It returns the
// usage metrics from the final chunk. Any failure, including mid-stream, is
// a *ServiceError; fragments delivered before the failure have already been
// forwarded.
func (c *Client) ChatStream(ctx context.Context, model string, messages []ChatMessage, fn FragmentFunc) (Usage, error) {
	reqBody := ChatRequest{
		Model:    model,
		Messages: messages,
		Stream:   true,
		Options:  c.options,
	}

	resp, err := c.post(ctx, "/api/chat", reqBody)
	if err != nil {
		return Usage{}, &ServiceError{Op: "chat", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Usage{}, &ServiceError{Op: "chat", Err: statusError(resp)}
	}

	var usage Usage
	dec := json.NewDecoder(resp.Body)
	for {
		var chunk StreamChunk
		if err := dec.Decode(&chunk); err != nil {
			if errors.Is(err, io.EOF) {
				// Server closed the stream without a done chunk.
				return usage, &ServiceError{Op: "chat", Err: fmt.Errorf("stream ended before completion")}
			}
			return usage, &ServiceError{Op: "chat", Err: fmt.Errorf("decode stream chunk: %w", err)}
		}

		if chunk.Message.Content != "" {
			if err := fn(chunk.Message.Content); err != nil {
				return usage, &ServiceError{Op: "chat", Err: err}
			}
		}

		if chunk.Done {
			usage = Usage{
				PromptEvalCount: chunk.PromptEvalCount,
				EvalCount:       chunk.EvalCount,
				TotalDuration:   chunk.TotalDuration,
			}
			return usage, nil
		}
	}
}

// Chat sends the history without streaming and returns the complete reply.
func (c *Client) Chat(ctx context.Context, model string, messages []ChatMessage) (string, error) {
	reqBody := ChatRequest{
		Model:    model,
		Messages: messages,
		Stream:   false,
		Options:  c.options,
	}

	resp, err := c.post(ctx, "/api/chat", reqBody)
	if err != nil {
		return "", &ServiceError{Op: "chat", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &ServiceError{Op: "chat", Err: statusError(resp)}
	}

	var chunk StreamChunk
	if err := json.NewDecoder(resp.Body).Decode(&chunk); err != nil {
		return "", &ServiceError{Op: "chat", Err: fmt.Errorf("decode response: %w", err)}
	}
	return chunk.Message.Content, nil
}

// ListModels returns the models available on the server.
func (c *Client) ListModels(ctx context.Context) ([]Model, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, &ServiceError{Op: "tags", Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ServiceError{Op: "tags", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &ServiceError{Op: "tags", Err: statusError(resp)}
	}

	var tags TagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, &ServiceError{Op: "tags", Err: fmt.Errorf("decode response: %w", err)}
	}
	return tags.Models, nil
}

// HasModel reports whether name is available on the server.
func (c *Client) HasModel(ctx context.Context, name string) (bool, error) {
	models, err := c.ListModels(ctx)
	if err != nil {
		return false, err
	}
	for _, m := range models {
		if m.Name == name {
			return true, nil
		}
	}
	return false, nil
}

// Embeddings returns the embedding vector for prompt under the given model.
func (c *Client) Embeddings(ctx context.Context, model, prompt string) ([]float64, error) {
	resp, err := c.post(ctx, "/api/embeddings", EmbeddingsRequest{Model: model, Prompt: prompt})
	if err != nil {
		return nil, &ServiceError{Op: "embeddings", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &ServiceError{Op: "embeddings", Err: statusError(resp)}
	}

	var out EmbeddingsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &ServiceError{Op: "embeddings", Err: fmt.Errorf("decode response: %w", err)}
	}
	return out.Embedding, nil
}

func (c *Client) post(ctx context.Context, path string, body any) (*http.Response, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("content-type", "application/json")

	return c.httpClient.Do(req)
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var apiErr errorResponse
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
		return fmt.Errorf("API error: %s - %s", resp.Status, apiErr.Error)
	}
	return fmt.Errorf("API error: %s - %s", resp.Status, string(body))
}
