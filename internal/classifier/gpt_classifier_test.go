package classifier

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newOpenAIServer(t *testing.T, reply string, status int) (*httptest.Server, *[]string) {
	t.Helper()
	var prompts []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")

		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"upstream failure","type":"server_error"}}`))
			return
		}

		switch r.URL.Path {
		case "/chat/completions":
			var req struct {
				Messages []struct {
					Content string `json:"content"`
				} `json:"messages"`
			}
			_ = json.Unmarshal(body, &req)
			if len(req.Messages) > 0 {
				prompts = append(prompts, req.Messages[0].Content)
			}
			resp := map[string]any{
				"id":      "chatcmpl-1",
				"object":  "chat.completion",
				"created": 1,
				"model":   "gpt-test",
				"choices": []map[string]any{{
					"index":         0,
					"message":       map[string]any{"role": "assistant", "content": reply},
					"finish_reason": "stop",
				}},
			}
			_ = json.NewEncoder(w).Encode(resp)
		case "/embeddings":
			resp := map[string]any{
				"object": "list",
				"model":  "text-embedding-3-small",
				"data": []map[string]any{{
					"object":    "embedding",
					"index":     0,
					"embedding": []float32{0.25, -0.5, 1},
				}},
			}
			_ = json.NewEncoder(w).Encode(resp)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &prompts
}

func TestGPTClassifierClassify(t *testing.T) {
	t.Run("Returns the trimmed reply and lists candidates", func(t *testing.T) {
		srv, prompts := newOpenAIServer(t, "  Backend > Go \n", http.StatusOK)
		c := NewGPTClassifier("test-key", srv.URL, "gpt-test", 50, 0, zap.NewNop())

		got, err := c.Classify(context.Background(), "Goroutines", []string{"Backend > Go", "Frontend"})
		require.NoError(t, err)
		assert.Equal(t, "Backend > Go", got)
		require.Len(t, *prompts, 1)
		assert.Contains(t, (*prompts)[0], "- Backend > Go\n- Frontend\n")
		assert.Contains(t, (*prompts)[0], CreateNew)
	})

	t.Run("Upstream error is returned", func(t *testing.T) {
		srv, _ := newOpenAIServer(t, "", http.StatusInternalServerError)
		c := NewGPTClassifier("test-key", srv.URL, "gpt-test", 50, 0, zap.NewNop())

		_, err := c.Classify(context.Background(), "Goroutines", []string{"Frontend"})
		assert.Error(t, err)
	})

	t.Run("Empty reply is an error", func(t *testing.T) {
		srv, _ := newOpenAIServer(t, "   ", http.StatusOK)
		c := NewGPTClassifier("test-key", srv.URL, "gpt-test", 50, 0, zap.NewNop())

		_, err := c.ProposeLabel(context.Background(), "Goroutines", []string{"Frontend"})
		assert.ErrorIs(t, err, errEmptyCompletion)
	})
}

func TestGPTClassifierAnalyzeContent(t *testing.T) {
	t.Run("Parses a fenced JSON reply", func(t *testing.T) {
		reply := "```json\n{\"title\":\"Retry budgets\",\"category\":\"Backend\",\"summary\":\"Cap retries\",\"keyPoints\":[\"jitter\"],\"confidenceScore\":0.8}\n```"
		srv, _ := newOpenAIServer(t, reply, http.StatusOK)
		c := NewGPTClassifier("test-key", srv.URL, "gpt-test", 200, 0.2, zap.NewNop())

		draft := c.AnalyzeContent(context.Background(), "retry budgets notes")
		assert.Equal(t, "Retry budgets", draft.Title)
		assert.Equal(t, "Backend", draft.Category)
		assert.Equal(t, []string{"jitter"}, draft.KeyPoints)
		assert.InDelta(t, 0.8, draft.ConfidenceScore, 1e-9)
	})

	t.Run("Malformed reply falls back to the plain parser", func(t *testing.T) {
		srv, _ := newOpenAIServer(t, "not json", http.StatusOK)
		c := NewGPTClassifier("test-key", srv.URL, "gpt-test", 200, 0.2, zap.NewNop())

		draft := c.AnalyzeContent(context.Background(), "Retry budgets\n- jitter")
		assert.Equal(t, ParseDraft("Retry budgets\n- jitter"), draft)
	})

	t.Run("Upstream failure falls back to the plain parser", func(t *testing.T) {
		srv, _ := newOpenAIServer(t, "", http.StatusBadGateway)
		c := NewGPTClassifier("test-key", srv.URL, "gpt-test", 200, 0.2, zap.NewNop())

		draft := c.AnalyzeContent(context.Background(), "Retry budgets")
		assert.Equal(t, "Retry budgets", draft.Title)
		assert.Equal(t, DefaultCategory, draft.Category)
	})
}

func TestOpenAIEmbedder(t *testing.T) {
	srv, _ := newOpenAIServer(t, "", http.StatusOK)
	e := NewOpenAIEmbedder("test-key", srv.URL, "")

	vec, err := e.Embed(context.Background(), "goroutines")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.25, -0.5, 1}, vec)
}
