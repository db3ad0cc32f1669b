package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf-translator/internal/types"
)

// mockOpenAIServer answers every request with the given body and status
func mockOpenAIServer(t *testing.T, responseFunc func(body map[string]interface{}) (string, int)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		var body map[string]interface{}
		_ = json.Unmarshal(data, &body)

		content, status := responseFunc(body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(content))
	}))
	t.Cleanup(server.Close)
	return server
}

func completion(content string) string {
	resp := map[string]interface{}{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1234567890,
		"model":   "Qwen/Qwen2.5-7B-Instruct",
		"choices": []map[string]interface{}{{
			"index":         0,
			"message":       map[string]string{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
		"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	}
	data, _ := json.Marshal(resp)
	return string(data)
}

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	temp := float32(0.3)
	client, err := New(context.Background(), Config{
		APIKey:      "test-key",
		BaseURL:     url + "/v1/",
		Model:       "Qwen/Qwen2.5-7B-Instruct",
		Timeout:     5 * time.Second,
		Temperature: &temp,
	})
	require.NoError(t, err)
	return client
}

func TestClientGenerate(t *testing.T) {
	var seen map[string]interface{}
	server := mockOpenAIServer(t, func(body map[string]interface{}) (string, int) {
		seen = body
		return completion("  Hello world  "), http.StatusOK
	})

	client := newTestClient(t, server.URL)
	got, err := client.Generate(context.Background(), []*schema.Message{
		schema.SystemMessage("Translate."),
		schema.UserMessage("你好世界"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello world", got)

	assert.Equal(t, "Qwen/Qwen2.5-7B-Instruct", seen["model"])
	assert.InDelta(t, 0.3, seen["temperature"], 0.001)
	msgs, ok := seen["messages"].([]interface{})
	require.True(t, ok)
	assert.Len(t, msgs, 2)
}

func TestClientGenerateErrors(t *testing.T) {
	t.Run("empty content", func(t *testing.T) {
		server := mockOpenAIServer(t, func(map[string]interface{}) (string, int) {
			return completion(""), http.StatusOK
		})
		_, err := newTestClient(t, server.URL).Generate(context.Background(), []*schema.Message{schema.UserMessage("x")})
		require.Error(t, err)
		assert.True(t, types.HasCode(err, types.ErrAPICall))
	})

	t.Run("rate limited", func(t *testing.T) {
		server := mockOpenAIServer(t, func(map[string]interface{}) (string, int) {
			return `{"error": {"message": "Rate limit reached", "type": "rate_limit"}}`, http.StatusTooManyRequests
		})
		_, err := newTestClient(t, server.URL).Generate(context.Background(), []*schema.Message{schema.UserMessage("x")})
		require.Error(t, err)
		assert.True(t, types.HasCode(err, types.ErrAPIRateLimit))
		assert.True(t, IsRetryable(err))
	})

	t.Run("missing model", func(t *testing.T) {
		_, err := New(context.Background(), Config{APIKey: "k"})
		assert.True(t, types.HasCode(err, types.ErrConfig))
	})
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"rate limit", types.NewAppErrorWithDetails(types.ErrAPIRateLimit, "API rate limit exceeded", "rate limit", nil), true},
		{"server error 500", Classify(errors.New("error, status code: 500, message: internal")), true},
		{"server error 503", Classify(errors.New("error, status code: 503, status: 503 Service Unavailable")), true},
		{"authentication", Classify(errors.New("error, status code: 401, message: invalid api key")), false},
		{"invalid request", Classify(errors.New("error, status code: 400, message: bad request")), false},
		{"generic API failure", types.NewAppError(types.ErrAPICall, "API call failed", nil), true},
		{"connection reset", fmt.Errorf("read tcp: connection reset by peer"), true},
		{"deadline", fmt.Errorf("attempt: %w", context.DeadlineExceeded), true},
		{"cancelled", types.NewAppError(types.ErrAPICall, "API call failed", context.Canceled), false},
		{"unknown plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsRetryable(tt.err))
		})
	}
}

func TestClassify(t *testing.T) {
	assert.Nil(t, Classify(nil))

	err := Classify(errors.New("error, status code: 429, message: Too Many Requests"))
	assert.True(t, types.HasCode(err, types.ErrAPIRateLimit))

	wrapped := Classify(fmt.Errorf("post: %w", context.Canceled))
	assert.True(t, types.HasCode(wrapped, types.ErrAPICall))
	assert.ErrorIs(t, wrapped, context.Canceled)

	app := types.NewAppError(types.ErrTranslation, "kept", nil)
	assert.Same(t, app, Classify(app))
}
