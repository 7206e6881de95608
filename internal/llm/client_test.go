package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	openai "github.com/sashabaranov/go-openai"

	"github.com/kbchat/backend/internal/metrics"
	"github.com/kbchat/backend/pkg/circuitbreaker"
	"github.com/kbchat/backend/pkg/logger"
	"github.com/kbchat/backend/pkg/retry"
)

// newStubClient points the openai client at a local server so Complete and
// Embed can run against canned responses.
func newStubClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"

	return &Client{
		client:         openai.NewClientWithConfig(cfg),
		model:          "stub-chat",
		embeddingModel: "stub-embed",
		temperature:    0.3,
		maxTokens:      100,
		cb: circuitbreaker.NewCircuitBreaker("llm-test", circuitbreaker.Config{
			MaxRequests:      5,
			Timeout:          time.Second,
			FailureThreshold: 5,
			SuccessThreshold: 2,
			Logger:           logger.GetLogger(),
		}),
		embedRetry: retry.FixedConfig(1, 0, logger.GetLogger()),
	}
}

func TestComplete_RecordsTokenUsage(t *testing.T) {
	client := newStubClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"choices": [{"message": {"role": "assistant", "content": "hello"}}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 8, "total_tokens": 20}
		}`))
	})

	counter := metrics.LLMTokensUsed.WithLabelValues("stub-chat", "completion")
	before := testutil.ToFloat64(counter)

	resp, err := client.Complete(context.Background(), CompletionRequest{
		SystemPrompt: "system",
		UserPrompt:   "user",
	})
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}

	if resp.Content != "hello" {
		t.Errorf("content = %q, want %q", resp.Content, "hello")
	}
	if resp.Usage.TotalTokens != 20 {
		t.Errorf("totalTokens = %d, want 20", resp.Usage.TotalTokens)
	}
	if got := testutil.ToFloat64(counter) - before; got != 20 {
		t.Errorf("token counter delta = %v, want 20", got)
	}
}

func TestEmbed_RecordsTokenUsage(t *testing.T) {
	client := newStubClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"data": [{"embedding": [0.1, 0.2, 0.3]}],
			"usage": {"prompt_tokens": 5, "total_tokens": 5}
		}`))
	})

	counter := metrics.LLMTokensUsed.WithLabelValues("stub-embed", "embedding")
	before := testutil.ToFloat64(counter)

	embedding, err := client.Embed(context.Background(), "business hours")
	if err != nil {
		t.Fatalf("Embed error: %v", err)
	}

	if len(embedding) != 3 {
		t.Errorf("embedding length = %d, want 3", len(embedding))
	}
	if got := testutil.ToFloat64(counter) - before; got != 5 {
		t.Errorf("token counter delta = %v, want 5", got)
	}
}
