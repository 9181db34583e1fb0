package backend_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"localchat/internal/backend"
)

func streamServer(t *testing.T, fragments []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)

		var req backend.ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.True(t, req.Stream)

		enc := json.NewEncoder(w)
		for _, frag := range fragments {
			enc.Encode(backend.StreamChunk{
				Model:   req.Model,
				Message: backend.ChatMessage{Role: "assistant", Content: frag},
			})
		}
		enc.Encode(backend.StreamChunk{
			Model:           req.Model,
			Done:            true,
			PromptEvalCount: 12,
			EvalCount:       34,
		})
	}))
}

func TestChatStreamDeliversFragmentsInOrder(t *testing.T) {
	fragments := []string{"Hello", ", ", "world", "!"}
	srv := streamServer(t, fragments)
	defer srv.Close()

	client := backend.NewClient(srv.URL)

	var got []string
	usage, err := client.ChatStream(context.Background(), "llama3:latest",
		[]backend.ChatMessage{{Role: "user", Content: "hi"}},
		func(frag string) error {
			got = append(got, frag)
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, fragments, got)
	assert.Equal(t, 12, usage.PromptEvalCount)
	assert.Equal(t, 34, usage.EvalCount)
}

func TestChatStreamTruncatedStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Fragments but never a done chunk.
		enc := json.NewEncoder(w)
		enc.Encode(backend.StreamChunk{Message: backend.ChatMessage{Role: "assistant", Content: "par"}})
		enc.Encode(backend.StreamChunk{Message: backend.ChatMessage{Role: "assistant", Content: "tial"}})
	}))
	defer srv.Close()

	client := backend.NewClient(srv.URL)

	var got strings.Builder
	_, err := client.ChatStream(context.Background(), "llama3:latest", nil, func(frag string) error {
		got.WriteString(frag)
		return nil
	})

	var svcErr *backend.ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, "chat", svcErr.Op)
	// Fragments before the failure were still delivered.
	assert.Equal(t, "partial", got.String())
}

func TestChatStreamServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "model 'nope' not found"})
	}))
	defer srv.Close()

	client := backend.NewClient(srv.URL)

	_, err := client.ChatStream(context.Background(), "nope", nil, func(string) error { return nil })

	var svcErr *backend.ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Contains(t, svcErr.Error(), "model 'nope' not found")
}

func TestChatStreamConnectionRefused(t *testing.T) {
	// Grab a port that is guaranteed closed.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := backend.NewClient(srv.URL)
	_, err := client.ChatStream(context.Background(), "llama3:latest", nil, func(string) error { return nil })

	var svcErr *backend.ServiceError
	require.ErrorAs(t, err, &svcErr)
}

func TestChatStreamSinkAbort(t *testing.T) {
	srv := streamServer(t, []string{"a", "b", "c"})
	defer srv.Close()

	client := backend.NewClient(srv.URL)

	calls := 0
	_, err := client.ChatStream(context.Background(), "llama3:latest", nil, func(string) error {
		calls++
		if calls == 2 {
			return fmt.Errorf("sink full")
		}
		return nil
	})
	require.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestChatStreamSendsTemperature(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req backend.ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		require.Contains(t, req.Options, "temperature")
		assert.InDelta(t, 0.7, req.Options["temperature"].(float64), 1e-9)

		json.NewEncoder(w).Encode(backend.StreamChunk{Done: true})
	}))
	defer srv.Close()

	client := backend.NewClient(srv.URL)
	client.SetTemperature(0.7)

	_, err := client.ChatStream(context.Background(), "llama3:latest", nil, func(string) error { return nil })
	require.NoError(t, err)
}

func TestChatStreamOmitsOptionsWhenUnset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]json.RawMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		assert.NotContains(t, raw, "options")

		json.NewEncoder(w).Encode(backend.StreamChunk{Done: true})
	}))
	defer srv.Close()

	client := backend.NewClient(srv.URL)
	_, err := client.ChatStream(context.Background(), "llama3:latest", nil, func(string) error { return nil })
	require.NoError(t, err)
}

func TestChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req backend.ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.False(t, req.Stream)

		json.NewEncoder(w).Encode(backend.StreamChunk{
			Message: backend.ChatMessage{Role: "assistant", Content: "full reply"},
			Done:    true,
		})
	}))
	defer srv.Close()

	client := backend.NewClient(srv.URL)
	reply, err := client.Chat(context.Background(), "llama3:latest", []backend.ChatMessage{{Role: "user", Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "full reply", reply)
}

func TestListModelsAndHasModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/tags", r.URL.Path)
		json.NewEncoder(w).Encode(backend.TagsResponse{Models: []backend.Model{
			{Name: "llama3:latest", Size: 4_000_000_000},
			{Name: "gemma3:4b-it-qat"},
		}})
	}))
	defer srv.Close()

	client := backend.NewClient(srv.URL)

	models, err := client.ListModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 2)

	ok, err := client.HasModel(context.Background(), "gemma3:4b-it-qat")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.HasModel(context.Background(), "missing:latest")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEmbeddings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/embeddings", r.URL.Path)

		var req backend.EmbeddingsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req.Model)

		json.NewEncoder(w).Encode(backend.EmbeddingsResponse{Embedding: []float64{0.1, 0.2, 0.3}})
	}))
	defer srv.Close()

	client := backend.NewClient(srv.URL)
	vec, err := client.Embeddings(context.Background(), "nomic-embed-text", "some text")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, vec)
}
