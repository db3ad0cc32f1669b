package einovision

import (
	"context"
	"encoding/json"
	"image"
	"image/color"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf-translator/internal/llm"
	"pdf-translator/internal/vision"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	} `json:"messages"`
}

type contentPart struct {
	Type     string `json:"type"`
	Text     string `json:"text"`
	ImageURL struct {
		URL string `json:"url"`
	} `json:"image_url"`
}

func TestAnalyzerSendsImageAndPrompt(t *testing.T) {
	var got chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &got)

		reply := "```json\n[{\"bbox_2d\": [10, 10, 200, 60], \"text_content\": \"你好\"}]\n```"
		resp, _ := json.Marshal(map[string]interface{}{
			"id":      "chatcmpl-vl",
			"object":  "chat.completion",
			"created": 1,
			"model":   got.Model,
			"choices": []map[string]interface{}{{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": reply},
				"finish_reason": "stop",
			}},
		})
		w.Header().Set("Content-Type", "application/json")
		w.Write(resp)
	}))
	defer server.Close()

	analyzer, err := New(context.Background(), llm.Config{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Model:   "Qwen/Qwen2.5-VL-7B-Instruct",
	})
	require.NoError(t, err)

	img := image.NewRGBA(image.Rect(0, 0, 800, 1000))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	img.Set(5, 5, color.Black)

	ex := vision.NewLLMExtractor(analyzer, vision.LLMOptions{Space: vision.SpacePage})
	regions, err := ex.Extract(context.Background(), img)
	require.NoError(t, err)
	require.Len(t, regions, 1)
	assert.Equal(t, "你好", regions[0].SourceText)
	assert.Equal(t, vision.Box{XMin: 10, YMin: 10, XMax: 200, YMax: 60}, regions[0].Box)

	assert.Equal(t, "Qwen/Qwen2.5-VL-7B-Instruct", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "user", got.Messages[1].Role)

	var parts []contentPart
	require.NoError(t, json.Unmarshal(got.Messages[1].Content, &parts))
	require.Len(t, parts, 2)
	assert.Equal(t, "image_url", parts[0].Type)
	assert.Contains(t, parts[0].ImageURL.URL, "data:image/png;base64,")
	assert.Equal(t, "text", parts[1].Type)
	assert.Equal(t, vision.DefaultPrompt, parts[1].Text)
}
