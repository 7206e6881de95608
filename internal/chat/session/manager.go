package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kbchat/backend/internal/llm"
	"github.com/kbchat/backend/internal/storage/models"
	"github.com/kbchat/backend/pkg/logger"
)

const (
	maxRecentTopics    = 10
	maxHistoryInPrompt = 3
	responsePrefixLen  = 120
)

// Weight of each confidence tier in the session's rolling average.
var tierWeights = map[string]float64{
	"high":   1.0,
	"medium": 0.6,
	"low":    0.3,
}

// Store is the session persistence surface the manager needs.
type Store interface {
	GetSession(ctx context.Context, tenantID, sessionID string) (*models.ChatSession, bool, error)
	SaveSession(ctx context.Context, session *models.ChatSession) error
}

// Manager owns per-(tenant, session) conversational state: the message log,
// recent topic keywords, and the rolling confidence average.
type Manager struct {
	store Store
	llm   llm.Completer
}

func NewManager(store Store, c llm.Completer) *Manager {
	return &Manager{store: store, llm: c}
}

// GetOrCreate is an idempotent lookup-or-insert; sessions are created lazily
// on the first query.
func (m *Manager) GetOrCreate(ctx context.Context, tenantID, sessionID string) (*models.ChatSession, error) {
	session, found, err := m.store.GetSession(ctx, tenantID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if found {
		return session, nil
	}

	session = &models.ChatSession{
		TenantID:  tenantID,
		SessionID: sessionID,
		Messages:  []models.ChatMessage{},
		Context: models.SessionContext{
			RecentTopics:    []string{},
			FrequentQueries: map[string]int{},
		},
	}

	if err := m.store.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	logger.Debug("Session created",
		zap.String("tenant_id", tenantID),
		zap.String("session_id", sessionID),
	)

	return session, nil
}

// AddMessage applies the interaction to the session and persists it.
func (m *Manager) AddMessage(ctx context.Context, session *models.ChatSession, msg models.ChatMessage) error {
	ApplyMessage(session, msg)
	return m.store.SaveSession(ctx, session)
}

// ApplyMessage is the single transition that appends to the message log and
// recomputes every derived field, so the aggregates can never drift from the
// log.
func ApplyMessage(session *models.ChatSession, msg models.ChatMessage) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	session.Messages = append(session.Messages, msg)
	session.Metadata.TotalQueries = len(session.Messages)
	session.Metadata.LastActive = msg.Timestamp
	session.Metadata.AvgConfidence = averageConfidence(session.Messages)

	if session.Context.FrequentQueries == nil {
		session.Context.FrequentQueries = map[string]int{}
	}
	session.Context.FrequentQueries[strings.ToLower(strings.TrimSpace(msg.Query))]++

	keywords := ExtractKeywords(msg.Query, 5)
	session.Context.RecentTopics = mergeTopics(keywords, session.Context.RecentTopics)
}

func averageConfidence(messages []models.ChatMessage) float64 {
	if len(messages) == 0 {
		return 0
	}

	var total float64
	for _, msg := range messages {
		if w, ok := tierWeights[msg.Confidence]; ok {
			total += w
		} else {
			total += tierWeights["low"]
		}
	}

	return total / float64(len(messages))
}

// mergeTopics prepends new keywords, dedupes keeping the most recent
// occurrence first, and caps the list.
func mergeTopics(incoming, existing []string) []string {
	merged := make([]string, 0, maxRecentTopics)
	seen := make(map[string]bool)

	for _, topic := range append(incoming, existing...) {
		if seen[topic] {
			continue
		}
		seen[topic] = true
		merged = append(merged, topic)
		if len(merged) == maxRecentTopics {
			break
		}
	}

	return merged
}

// BuildContextAwareQuery rewrites a follow-up question using the last few
// messages. The rewrite is accepted only when it shares at least one
// significant word with the original query; otherwise the original is kept,
// which guards against the model wandering off to an unrelated question.
func (m *Manager) BuildContextAwareQuery(ctx context.Context, query string, session *models.ChatSession) string {
	if session == nil || len(session.Messages) == 0 {
		return query
	}

	var history strings.Builder
	start := len(session.Messages) - maxHistoryInPrompt
	if start < 0 {
		start = 0
	}
	for _, msg := range session.Messages[start:] {
		prefix := msg.Response
		if len(prefix) > responsePrefixLen {
			prefix = prefix[:responsePrefixLen]
		}
		history.WriteString(fmt.Sprintf("User: %s\nBot: %s\n", msg.Query, prefix))
	}

	req := llm.CompletionRequest{
		SystemPrompt: "The user is chatting with a knowledge-base bot. Rewrite their latest question as a standalone question, resolving references like \"it\" or \"that one\" from the conversation. Respond with only the rewritten question.",
		UserPrompt:   fmt.Sprintf("Conversation:\n%sLatest question: %s", history.String(), query),
		Temperature:  0.2,
		MaxTokens:    100,
	}

	return llm.ClassifyWithFallback(ctx, m.llm, req,
		func(out string) (string, bool) {
			rewritten := strings.TrimSpace(out)
			if rewritten == "" || !sharesSignificantWord(query, rewritten) {
				return "", false
			}
			return rewritten, true
		},
		func() string { return query },
	)
}

// sharesSignificantWord requires the rewrite to keep at least one word longer
// than three characters from the original query.
func sharesSignificantWord(original, rewritten string) bool {
	rewrittenLower := strings.ToLower(rewritten)
	for _, word := range strings.Fields(strings.ToLower(original)) {
		word = strings.Trim(word, ".,!?\"'")
		if len(word) > 3 && strings.Contains(rewrittenLower, word) {
			return true
		}
	}
	return false
}
