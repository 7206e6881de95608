package chat

// Response types returned by the search pipeline.
const (
	TypeGreeting          = "greeting"
	TypeRestricted        = "restricted"
	TypeContactEmail      = "contact_email"
	TypeContactPhone      = "contact_phone"
	TypeGeneral           = "general"
	TypeNoData            = "no_data"
	TypeAnswer            = "answer"
	TypeSynthesizedAnswer = "synthesized_answer"
	TypeSuggestions       = "suggestions"
)

// Confidence tiers emitted to clients.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

type SearchRequest struct {
	Query     string `json:"query"`
	TenantID  string `json:"tenantId"`
	SessionID string `json:"sessionId"`
}

// SearchResponse is the single response shape for every pipeline outcome;
// fields not meaningful for a given Type are omitted from the JSON.
type SearchResponse struct {
	Type              string       `json:"type"`
	Answer            string       `json:"answer,omitempty"`
	Score             float64      `json:"score"`
	Confidence        string       `json:"confidence,omitempty"`
	Language          string       `json:"language,omitempty"`
	MatchedQuestion   string       `json:"matchedQuestion,omitempty"`
	CompletenessScore float64      `json:"completenessScore,omitempty"`
	FollowUpQuestions []string     `json:"followUpQuestions,omitempty"`
	SourceCount       int          `json:"sourceCount,omitempty"`
	Suggestions       []Suggestion `json:"suggestions,omitempty"`
}

type Suggestion struct {
	ID              string  `json:"id"`
	Question        string  `json:"question"`
	Score           float64 `json:"score"`
	RelevanceReason string  `json:"relevanceReason"`
}

// Policy is the confidence and decision policy applied uniformly across the
// pipeline: the same thresholds gate the answer-vs-suggestion branch and
// label the confidence tier sent to clients. All comparisons are inclusive.
type Policy struct {
	AnswerThreshold float64
	HighThreshold   float64
	MaxSuggestions  int
	MaxCandidates   int
}

func DefaultPolicy() Policy {
	return Policy{
		AnswerThreshold: 0.6,
		HighThreshold:   0.8,
		MaxSuggestions:  5,
		MaxCandidates:   5,
	}
}

func (p Policy) ConfidenceFor(score float64) string {
	switch {
	case score >= p.HighThreshold:
		return ConfidenceHigh
	case score >= p.AnswerThreshold:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// relevanceReason buckets a suggestion's score into a short human label.
func relevanceReason(score float64) string {
	switch {
	case score >= 0.50:
		return "closely related"
	case score >= 0.40:
		return "somewhat related"
	default:
		return "potentially relevant"
	}
}
