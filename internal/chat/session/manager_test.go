package session

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/alicebob/miniredis/v2"

	rediscache "github.com/kbchat/backend/internal/cache/redis"
	"github.com/kbchat/backend/internal/llm"
	"github.com/kbchat/backend/internal/storage/models"
)

type mockCompleter struct {
	OnComplete func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)
}

func (m *mockCompleter) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if m.OnComplete != nil {
		return m.OnComplete(ctx, req)
	}
	return nil, errors.New("llm unavailable")
}

func newTestStore(t *testing.T) *rediscache.Client {
	t.Helper()

	mr := miniredis.RunT(t)

	store, err := rediscache.NewClient(mr.Addr(), "", 0)
	if err != nil {
		t.Fatalf("failed to create redis client: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return store
}

func TestGetOrCreate_Idempotent(t *testing.T) {
	store := newTestStore(t)
	m := NewManager(store, &mockCompleter{})
	ctx := context.Background()

	first, err := m.GetOrCreate(ctx, "tenant-1", "sess-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.TenantID != "tenant-1" || first.SessionID != "sess-1" {
		t.Fatalf("session keyed wrong: %+v", first)
	}

	if err := m.AddMessage(ctx, first, models.ChatMessage{
		Query: "business hours", Response: "9 to 5", Confidence: "high",
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second, err := m.GetOrCreate(ctx, "tenant-1", "sess-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(second.Messages) != 1 {
		t.Errorf("expected existing session with 1 message, got %d", len(second.Messages))
	}
}

func TestApplyMessage_Accounting(t *testing.T) {
	session := &models.ChatSession{TenantID: "t", SessionID: "s"}

	confidences := []string{"high", "medium", "low", "high"}
	for _, conf := range confidences {
		ApplyMessage(session, models.ChatMessage{
			Query:      "refund policy details",
			Response:   "answer",
			Confidence: conf,
		})
	}

	if session.Metadata.TotalQueries != 4 {
		t.Errorf("totalQueries got %d, want 4", session.Metadata.TotalQueries)
	}

	want := (1.0 + 0.6 + 0.3 + 1.0) / 4
	if math.Abs(session.Metadata.AvgConfidence-want) > 1e-9 {
		t.Errorf("avgConfidence got %f, want %f", session.Metadata.AvgConfidence, want)
	}
}

func TestApplyMessage_RecentTopics(t *testing.T) {
	session := &models.ChatSession{TenantID: "t", SessionID: "s"}

	ApplyMessage(session, models.ChatMessage{Query: "premium plan pricing", Confidence: "high"})
	ApplyMessage(session, models.ChatMessage{Query: "cancel premium subscription", Confidence: "high"})

	topics := session.Context.RecentTopics
	if len(topics) == 0 {
		t.Fatal("expected topics to be extracted")
	}

	// most recent query's keywords come first
	if topics[0] != "cancel" {
		t.Errorf("first topic got %q, want %q", topics[0], "cancel")
	}

	// "premium" appears in both queries but must be listed once
	count := 0
	for _, topic := range topics {
		if topic == "premium" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("premium listed %d times, want 1", count)
	}
}

func TestApplyMessage_TopicCap(t *testing.T) {
	session := &models.ChatSession{TenantID: "t", SessionID: "s"}

	queries := []string{
		"alpha bravo charlie delta echo",
		"foxtrot golf hotel india juliett",
		"kilo lima mike november oscar",
	}
	for _, q := range queries {
		ApplyMessage(session, models.ChatMessage{Query: q, Confidence: "low"})
	}

	if len(session.Context.RecentTopics) > 10 {
		t.Errorf("recentTopics length %d exceeds cap", len(session.Context.RecentTopics))
	}

	if session.Context.RecentTopics[0] != "kilo" {
		t.Errorf("expected most recent first, got %q", session.Context.RecentTopics[0])
	}
}

func TestBuildContextAwareQuery_Scenarios(t *testing.T) {
	history := &models.ChatSession{TenantID: "t", SessionID: "s"}
	ApplyMessage(history, models.ChatMessage{
		Query: "what plans do you offer", Response: "Basic and Premium", Confidence: "high",
	})

	tests := []struct {
		name     string
		session  *models.ChatSession
		llm      *mockCompleter
		query    string
		expected string
	}{
		{
			name:     "Empty_Session_Returns_Original",
			session:  &models.ChatSession{},
			llm:      &mockCompleter{},
			query:    "how much is premium",
			expected: "how much is premium",
		},
		{
			name:    "Valid_Rewrite_Accepted",
			session: history,
			llm: &mockCompleter{
				OnComplete: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
					return &llm.CompletionResponse{Content: "how much does the premium plan cost"}, nil
				},
			},
			query:    "how much is premium",
			expected: "how much does the premium plan cost",
		},
		{
			name:    "Unrelated_Rewrite_Rejected",
			session: history,
			llm: &mockCompleter{
				OnComplete: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
					return &llm.CompletionResponse{Content: "what is the weather in Paris"}, nil
				},
			},
			query:    "how much is premium",
			expected: "how much is premium",
		},
		{
			name:     "Model_Failure_Returns_Original",
			session:  history,
			llm:      &mockCompleter{},
			query:    "how much is premium",
			expected: "how much is premium",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestStore(t)
			m := NewManager(store, tt.llm)

			got := m.BuildContextAwareQuery(context.Background(), tt.query, tt.session)
			if got != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestExtractKeywords(t *testing.T) {
	got := ExtractKeywords("What are your Business Hours today?", 5)

	want := map[string]bool{"business": true, "hours": true, "today": true}
	for _, kw := range got {
		if !want[kw] {
			t.Errorf("unexpected keyword %q", kw)
		}
	}

	if len(got) != 3 {
		t.Errorf("keyword count got %d (%v), want 3", len(got), got)
	}

	if kws := ExtractKeywords("a an it", 5); len(kws) != 0 {
		t.Errorf("stop words leaked: %v", kws)
	}
}
