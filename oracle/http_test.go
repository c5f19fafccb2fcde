package oracle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/w4n9H/autocoder-nano-sub001/types"
)

func TestHTTPCompleter_Completion(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "trace-1", r.Header.Get("X-Trace-ID"))

		var req openAIRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "user", req.Messages[1].Role)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"model": "test-model",
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "8"}},
			},
			"usage": map[string]int{
				"prompt_tokens":     120,
				"completion_tokens": 1,
				"total_tokens":      121,
			},
		})
	}))
	defer server.Close()

	completer := NewHTTPCompleter(HTTPCompleterConfig{
		APIKey:  "test-key",
		BaseURL: server.URL,
	})

	resp, err := completer.Completion(context.Background(), &ChatRequest{
		TraceID: "trace-1",
		Model:   "test-model",
		Messages: []types.Message{
			types.NewSystemMessage("score files"),
			types.NewUserMessage("rate this file"),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "8", resp.Content)
	assert.Equal(t, 121, resp.Usage.TotalTokens)
}

func TestHTTPCompleter_ServerErrorIsRetryable(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"message": "overloaded"},
		})
	}))
	defer server.Close()

	completer := NewHTTPCompleter(HTTPCompleterConfig{BaseURL: server.URL})
	_, err := completer.Completion(context.Background(), &ChatRequest{Model: "m"})
	require.Error(t, err)

	var serr *types.Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, types.ErrOracleError, serr.Code)
	assert.True(t, serr.Retryable)
	assert.Contains(t, serr.Message, "overloaded")
}

func TestHTTPCompleter_ClientErrorNotRetryable(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key"}}`))
	}))
	defer server.Close()

	completer := NewHTTPCompleter(HTTPCompleterConfig{BaseURL: server.URL})
	_, err := completer.Completion(context.Background(), &ChatRequest{Model: "m"})
	require.Error(t, err)

	var serr *types.Error
	require.ErrorAs(t, err, &serr)
	assert.False(t, serr.Retryable)
}

func TestHTTPCompleter_EmptyChoices(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"model":"m","choices":[]}`))
	}))
	defer server.Close()

	completer := NewHTTPCompleter(HTTPCompleterConfig{BaseURL: server.URL})
	_, err := completer.Completion(context.Background(), &ChatRequest{Model: "m"})
	require.Error(t, err)
	assert.Equal(t, types.ErrOracleBadReply, types.CodeOf(err))
}
