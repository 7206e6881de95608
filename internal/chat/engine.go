package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kbchat/backend/internal/chat/intent"
	"github.com/kbchat/backend/internal/chat/postprocess"
	"github.com/kbchat/backend/internal/chat/session"
	"github.com/kbchat/backend/internal/llm"
	"github.com/kbchat/backend/internal/metrics"
	"github.com/kbchat/backend/internal/storage/models"
	"github.com/kbchat/backend/pkg/logger"
	"github.com/kbchat/backend/pkg/utils"
)

// ErrEmbeddingUnavailable marks a query that could not be embedded after
// retries. Handlers surface it as a generic internal error.
var ErrEmbeddingUnavailable = errors.New("query embedding unavailable")

const suggestionPreamble = "I couldn't find an exact answer, but one of these questions might help:"

// Gateway is the generative-model surface the pipeline depends on.
type Gateway interface {
	llm.Completer
	Embed(ctx context.Context, text string) ([]float32, error)
	DetectLanguage(ctx context.Context, text string) string
	Translate(ctx context.Context, text, targetLang string) string
}

// CorpusStore reads a tenant's retrievable pairs and records per-query
// analytics rows.
type CorpusStore interface {
	CompletedPairs(ctx context.Context, tenantID string) ([]models.QAPair, error)
	InsertQueryRecord(record *models.QueryRecord) error
}

// EmbeddingCache is an optional short-lived cache for query embeddings.
type EmbeddingCache interface {
	GetEmbedding(ctx context.Context, textHash string) ([]float32, bool, error)
	SetEmbedding(ctx context.Context, textHash string, embedding []float32, ttl time.Duration) error
}

// Engine runs the full query pipeline: intent triage, context-aware query
// rewriting, brute-force similarity ranking, confidence-tiered branching,
// and answer refinement.
type Engine struct {
	gateway    Gateway
	corpus     CorpusStore
	cache      EmbeddingCache
	sessions   *session.Manager
	classifier *intent.Classifier
	post       *postprocess.Processor
	policy     Policy
	cacheTTL   time.Duration
}

func NewEngine(gateway Gateway, corpus CorpusStore, cache EmbeddingCache, sessions *session.Manager, policy Policy, cacheTTL time.Duration) *Engine {
	return &Engine{
		gateway:    gateway,
		corpus:     corpus,
		cache:      cache,
		sessions:   sessions,
		classifier: intent.NewClassifier(gateway),
		post:       postprocess.NewProcessor(gateway, policy.AnswerThreshold),
		policy:     policy,
		cacheTTL:   cacheTTL,
	}
}

// ProcessQuery handles one inbound query end to end. Intent short-circuits
// come first and never touch ranking; greeting and restricted checks never
// touch the corpus at all. Only a corpus read failure or an unembeddable
// query abort the request; every refinement step degrades gracefully.
func (e *Engine) ProcessQuery(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	start := time.Now()

	logger.Info("Processing search query",
		zap.String("tenant_id", req.TenantID),
		zap.String("session_id", req.SessionID),
	)

	lang := e.gateway.DetectLanguage(ctx, req.Query)

	if e.classifier.IsGreeting(ctx, req.Query) {
		resp := &SearchResponse{
			Type:       TypeGreeting,
			Answer:     e.classifier.ComposeGreeting(ctx, lang),
			Score:      1.0,
			Confidence: ConfidenceHigh,
			Language:   lang,
		}
		e.record(req, nil, req.Query, resp, start)
		return resp, nil
	}

	if topic, ok := e.classifier.RestrictedTopic(req.Query); ok {
		logger.Info("Restricted topic refused", zap.String("topic", topic))
		resp := &SearchResponse{
			Type:     TypeRestricted,
			Answer:   e.gateway.Translate(ctx, intent.RestrictedMessage, lang),
			Score:    0,
			Language: lang,
		}
		e.record(req, nil, req.Query, resp, start)
		return resp, nil
	}

	pairs, err := e.corpus.CompletedPairs(ctx, req.TenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus: %w", err)
	}

	if contactType := e.classifier.ContactIntent(ctx, req.Query); contactType != intent.ContactNone {
		resp := e.contactResponse(ctx, contactType, lang, pairs)
		e.record(req, nil, req.Query, resp, start)
		return resp, nil
	}

	if intent.IsShortQuery(req.Query) {
		if label := e.classifier.ShortQueryLabel(ctx, req.Query); label == intent.LabelContactEmail {
			resp := e.contactResponse(ctx, intent.ContactEmail, lang, pairs)
			e.record(req, nil, req.Query, resp, start)
			return resp, nil
		}
	}

	sess := e.loadSession(ctx, req)

	// Users clicking a previously suggested question verbatim skip the
	// rewrite and ranking entirely.
	if pair, ok := e.classifier.DirectMatch(req.Query, pairs); ok {
		candidates := []postprocess.Candidate{{Question: pair.Question, Answer: pair.Answer, Score: 1.0}}
		resp := e.answerResponse(ctx, req.Query, lang, candidates, 1.0)
		e.record(req, sess, req.Query, resp, start)
		return resp, nil
	}

	refined := req.Query
	if sess != nil {
		refined = e.sessions.BuildContextAwareQuery(ctx, req.Query, sess)
	}

	if len(pairs) == 0 {
		resp := &SearchResponse{
			Type:     TypeNoData,
			Answer:   e.gateway.Translate(ctx, "No knowledge base content is available yet.", lang),
			Score:    0,
			Language: lang,
		}
		e.record(req, sess, refined, resp, start)
		return resp, nil
	}

	embedding, err := e.queryEmbedding(ctx, req.TenantID, refined)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}

	matches := RankPairs(embedding, pairs, e.policy.MaxCandidates)
	metrics.CorpusSize.Observe(float64(len(pairs)))

	var best float64
	if len(matches) > 0 {
		best = matches[0].Score
	}
	metrics.MatchScore.Observe(best)

	var resp *SearchResponse
	if len(matches) > 0 && best >= e.policy.AnswerThreshold {
		candidates := make([]postprocess.Candidate, len(matches))
		for i, m := range matches {
			candidates[i] = postprocess.Candidate{Question: m.Pair.Question, Answer: m.Pair.Answer, Score: m.Score}
		}
		resp = e.answerResponse(ctx, refined, lang, candidates, best)
	} else {
		resp = e.suggestionResponse(ctx, lang, matches, best)
	}

	e.record(req, sess, refined, resp, start)
	return resp, nil
}

func (e *Engine) contactResponse(ctx context.Context, contactType, lang string, pairs []models.QAPair) *SearchResponse {
	if pair, ok := e.classifier.FindContactAnswer(contactType, pairs); ok {
		return &SearchResponse{
			Type:            contactResponseType(contactType),
			Answer:          e.gateway.Translate(ctx, pair.Answer, lang),
			Score:           1.0,
			Confidence:      ConfidenceHigh,
			Language:        lang,
			MatchedQuestion: pair.Question,
		}
	}

	return &SearchResponse{
		Type:     TypeNoData,
		Answer:   e.gateway.Translate(ctx, intent.ContactNotFoundMessage(contactType), lang),
		Score:    0,
		Language: lang,
	}
}

func contactResponseType(contactType string) string {
	switch contactType {
	case intent.ContactEmail:
		return TypeContactEmail
	case intent.ContactPhone:
		return TypeContactPhone
	default:
		return TypeGeneral
	}
}

func (e *Engine) answerResponse(ctx context.Context, query, lang string, candidates []postprocess.Candidate, best float64) *SearchResponse {
	result := e.post.Process(ctx, query, candidates)

	respType := TypeAnswer
	if result.Synthesized {
		respType = TypeSynthesizedAnswer
	}

	return &SearchResponse{
		Type:              respType,
		Answer:            e.gateway.Translate(ctx, result.Answer, lang),
		Score:             best,
		Confidence:        e.policy.ConfidenceFor(best),
		Language:          lang,
		MatchedQuestion:   result.MatchedQuestion,
		CompletenessScore: result.CompletenessScore,
		FollowUpQuestions: result.FollowUpQuestions,
		SourceCount:       result.SourceCount,
	}
}

func (e *Engine) suggestionResponse(ctx context.Context, lang string, matches []Match, best float64) *SearchResponse {
	limit := e.policy.MaxSuggestions
	suggestions := make([]Suggestion, 0, limit)

	for _, m := range matches {
		if len(suggestions) == limit {
			break
		}

		question := m.Pair.Question
		if lang != "en" {
			question = e.gateway.Translate(ctx, question, lang)
		}

		suggestions = append(suggestions, Suggestion{
			ID:              m.Pair.ID,
			Question:        question,
			Score:           m.Score,
			RelevanceReason: relevanceReason(m.Score),
		})
	}

	return &SearchResponse{
		Type:        TypeSuggestions,
		Answer:      e.gateway.Translate(ctx, suggestionPreamble, lang),
		Suggestions: suggestions,
		Score:       best,
		Confidence:  ConfidenceLow,
		Language:    lang,
	}
}

// loadSession is best-effort: a session store outage degrades the request to
// context-free retrieval instead of failing it.
func (e *Engine) loadSession(ctx context.Context, req SearchRequest) *models.ChatSession {
	sess, err := e.sessions.GetOrCreate(ctx, req.TenantID, req.SessionID)
	if err != nil {
		logger.Warn("Session unavailable, continuing without context",
			zap.String("session_id", req.SessionID),
			zap.Error(err),
		)
		return nil
	}
	return sess
}

func (e *Engine) queryEmbedding(ctx context.Context, tenantID, query string) ([]float32, error) {
	key := utils.HashKey(tenantID, query)

	if e.cache != nil {
		if embedding, found, err := e.cache.GetEmbedding(ctx, key); err == nil && found {
			metrics.CacheHits.WithLabelValues("embedding").Inc()
			return embedding, nil
		}
		metrics.CacheMisses.WithLabelValues("embedding").Inc()
	}

	embedding, err := e.gateway.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		if err := e.cache.SetEmbedding(ctx, key, embedding, e.cacheTTL); err != nil {
			logger.Warn("Failed to cache embedding", zap.Error(err))
		}
	}

	return embedding, nil
}

// record persists the interaction to the session log and the query-history
// table and updates metrics. Persistence failures never fail the request.
func (e *Engine) record(req SearchRequest, sess *models.ChatSession, refined string, resp *SearchResponse, start time.Time) {
	ctx := context.Background()

	if sess != nil {
		msg := models.ChatMessage{
			Query:           req.Query,
			RefinedQuery:    refined,
			Response:        resp.Answer,
			Confidence:      resp.Confidence,
			Score:           resp.Score,
			Language:        resp.Language,
			MatchedQuestion: resp.MatchedQuestion,
		}
		if err := e.sessions.AddMessage(ctx, sess, msg); err != nil {
			logger.Warn("Failed to save session message", zap.Error(err))
		}
	}

	latency := int(time.Since(start).Milliseconds())

	record := &models.QueryRecord{
		ID:           uuid.New().String(),
		TenantID:     req.TenantID,
		SessionID:    req.SessionID,
		QueryText:    req.Query,
		RefinedQuery: refined,
		ResponseType: resp.Type,
		Confidence:   resp.Confidence,
		Score:        resp.Score,
		Language:     resp.Language,
		LatencyMS:    latency,
		CreatedAt:    time.Now(),
	}
	if err := e.corpus.InsertQueryRecord(record); err != nil {
		logger.Warn("Failed to record query", zap.Error(err))
	}

	metrics.QueryTotal.WithLabelValues(resp.Type).Inc()
	metrics.QueryDuration.WithLabelValues(resp.Type).Observe(time.Since(start).Seconds())

	logger.Info("Query processed",
		zap.String("tenant_id", req.TenantID),
		zap.String("response_type", resp.Type),
		zap.Float64("score", resp.Score),
		zap.Int("latency_ms", latency),
	)
}
