package models

import "time"

const (
	DocStatusProcessing = "processing"
	DocStatusCompleted  = "completed"
	DocStatusFailed     = "failed"
)

type Tenant struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Website        string     `json:"website"`
	ScrapeConfig   string     `json:"scrape_config"`
	EmbeddingModel string     `json:"embedding_model"`
	PageCount      int        `json:"page_count"`
	LastScraped    *time.Time `json:"last_scraped,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// QAPair is the atomic retrieval unit. Embedding may be empty until the
// owning document finishes processing; pairs without an embedding never
// participate in ranking.
type QAPair struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	TenantID   string    `json:"tenant_id"`
	Question   string    `json:"question"`
	Answer     string    `json:"answer"`
	Category   string    `json:"category"`
	Confidence float64   `json:"confidence"`
	Embedding  []float32 `json:"embedding,omitempty"`
}

// QADocument groups the pairs extracted from one uploaded file. All pairs of
// one tenant share the tenant's embedding model, so they stay comparable.
type QADocument struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	FileName  string    `json:"file_name"`
	FileType  string    `json:"file_type"`
	Status    string    `json:"status"`
	PairCount int       `json:"pair_count"`
	FullText  string    `json:"full_text,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ChatMessage struct {
	Query           string    `json:"query"`
	RefinedQuery    string    `json:"refined_query,omitempty"`
	Response        string    `json:"response"`
	Confidence      string    `json:"confidence"`
	Score           float64   `json:"score"`
	Language        string    `json:"language"`
	MatchedQuestion string    `json:"matched_question,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

type SessionContext struct {
	RecentTopics    []string       `json:"recent_topics"`
	FrequentQueries map[string]int `json:"frequent_queries,omitempty"`
}

type SessionMetadata struct {
	TotalQueries  int       `json:"total_queries"`
	AvgConfidence float64   `json:"avg_confidence"`
	LastActive    time.Time `json:"last_active"`
}

// ChatSession is keyed by (tenant, session) and created lazily on the first
// query. Derived fields in Context and Metadata are recomputed on every
// applied message; the message log is append-only.
type ChatSession struct {
	TenantID  string          `json:"tenant_id"`
	SessionID string          `json:"session_id"`
	Messages  []ChatMessage   `json:"messages"`
	Context   SessionContext  `json:"context"`
	Metadata  SessionMetadata `json:"metadata"`
}

// QueryRecord is the per-interaction analytics row, one per processed query.
type QueryRecord struct {
	ID           string    `json:"id"`
	TenantID     string    `json:"tenant_id"`
	SessionID    string    `json:"session_id"`
	QueryText    string    `json:"query_text"`
	RefinedQuery string    `json:"refined_query"`
	ResponseType string    `json:"response_type"`
	Confidence   string    `json:"confidence"`
	Score        float64   `json:"score"`
	Language     string    `json:"language"`
	LatencyMS    int       `json:"latency_ms"`
	CreatedAt    time.Time `json:"created_at"`
}
