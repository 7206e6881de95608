package intent

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kbchat/backend/internal/llm"
	"github.com/kbchat/backend/internal/storage/models"
	"github.com/kbchat/backend/pkg/logger"
)

// Classifier triages an incoming query before any retrieval work happens.
// Stages run in strict order; the first terminal stage wins.
type Classifier struct {
	llm llm.Completer
}

func NewClassifier(c llm.Completer) *Classifier {
	return &Classifier{llm: c}
}

// IsGreeting asks the model for a yes/no judgement and falls back to the
// multilingual greeting pattern table.
func (cl *Classifier) IsGreeting(ctx context.Context, query string) bool {
	req := llm.CompletionRequest{
		SystemPrompt: "Decide whether the user message is only a greeting or small talk with no information request. Respond with exactly YES or NO.",
		UserPrompt:   query,
		Temperature:  0.1,
		MaxTokens:    3,
	}

	return llm.ClassifyWithFallback(ctx, cl.llm, req,
		func(out string) (bool, bool) {
			switch strings.ToUpper(strings.TrimSpace(out)) {
			case "YES":
				return true, true
			case "NO":
				return false, true
			}
			return false, false
		},
		func() bool { return greetingFallbackPattern.MatchString(query) },
	)
}

// ComposeGreeting produces a short greeting reply in the detected language,
// with a fixed per-language fallback string.
func (cl *Classifier) ComposeGreeting(ctx context.Context, lang string) string {
	fallback := func() string {
		if reply, ok := greetingReplies[lang]; ok {
			return reply
		}
		return greetingReplies["en"]
	}

	req := llm.CompletionRequest{
		SystemPrompt: fmt.Sprintf("Write one short, friendly greeting for a customer support chatbot in the language with ISO-639-1 code %q. Offer to help. No markup.", lang),
		UserPrompt:   "greeting",
		Temperature:  0.7,
		MaxTokens:    60,
	}

	return llm.ClassifyWithFallback(ctx, cl.llm, req,
		func(out string) (string, bool) {
			out = strings.TrimSpace(out)
			if out == "" {
				return "", false
			}
			return out, true
		},
		fallback,
	)
}

// RestrictedTopic checks the query against the refusal policy table. Returns
// the matching rule tag. Pure pattern matching, no model call.
func (cl *Classifier) RestrictedTopic(query string) (string, bool) {
	for _, rule := range restrictedRules {
		if rule.Pattern.MatchString(query) {
			return rule.Tag, true
		}
	}
	return "", false
}

// ContactIntent labels the query as an email, phone, or general contact
// request, or none. Keyword heuristics stand in when the model is down.
func (cl *Classifier) ContactIntent(ctx context.Context, query string) string {
	req := llm.CompletionRequest{
		SystemPrompt: "Classify whether the user is asking for contact information. Respond with exactly one of: email, phone, general, none.",
		UserPrompt:   query,
		Temperature:  0.1,
		MaxTokens:    5,
	}

	return llm.ClassifyWithFallback(ctx, cl.llm, req,
		func(out string) (string, bool) {
			label := strings.ToLower(strings.TrimSpace(out))
			switch label {
			case ContactEmail, ContactPhone, ContactGeneral, ContactNone:
				return label, true
			}
			return "", false
		},
		func() string { return contactIntentFallback(query) },
	)
}

func contactIntentFallback(query string) string {
	switch {
	case phoneKeywordPattern.MatchString(query):
		return ContactPhone
	case emailKeywordPattern.MatchString(query):
		return ContactEmail
	case contactKeywordPattern.MatchString(query):
		return ContactGeneral
	default:
		return ContactNone
	}
}

// FindContactAnswer scans corpus questions for the patterns bound to the
// contact sub-type and returns the first matching pair. When no question
// matches, answers are scanned for literal phone/email values. No embeddings
// are involved in this path.
func (cl *Classifier) FindContactAnswer(contactType string, pairs []models.QAPair) (*models.QAPair, bool) {
	patterns, ok := contactQuestionRules[contactType]
	if !ok {
		return nil, false
	}

	for _, pattern := range patterns {
		for i := range pairs {
			if pattern.MatchString(pairs[i].Question) {
				return &pairs[i], true
			}
		}
	}

	for _, pattern := range contactLiteralRules[contactType] {
		for i := range pairs {
			if pattern.MatchString(pairs[i].Answer) {
				return &pairs[i], true
			}
		}
	}

	return nil, false
}

// ContactNotFoundMessage is the terminal reply when no corpus pair matches a
// contact request.
func ContactNotFoundMessage(contactType string) string {
	if msg, ok := contactNotFoundMessages[contactType]; ok {
		return msg
	}
	return contactNotFoundMessages[ContactGeneral]
}

// DirectMatch finds a stored question that case-insensitively equals or
// contains the query, the shortcut for users clicking a suggested question
// verbatim.
func (cl *Classifier) DirectMatch(query string, pairs []models.QAPair) (*models.QAPair, bool) {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return nil, false
	}

	for i := range pairs {
		question := strings.ToLower(pairs[i].Question)
		if question == needle || strings.Contains(question, needle) {
			logger.Debug("Direct question match",
				zap.String("question", pairs[i].Question),
			)
			return &pairs[i], true
		}
	}

	return nil, false
}

// IsShortQuery reports whether the query is terse enough (four tokens or
// fewer) to route through the coarse label classifier.
func IsShortQuery(query string) bool {
	return len(strings.Fields(query)) <= 4
}

// ShortQueryLabel assigns a coarse label to terse queries as an extra
// short-circuit before full retrieval.
func (cl *Classifier) ShortQueryLabel(ctx context.Context, query string) string {
	req := llm.CompletionRequest{
		SystemPrompt: "Label this short user query. Respond with exactly one of: contact_email, contact_phone, website, pricing, appointment, other.",
		UserPrompt:   query,
		Temperature:  0.1,
		MaxTokens:    5,
	}

	return llm.ClassifyWithFallback(ctx, cl.llm, req,
		func(out string) (string, bool) {
			label := strings.ToLower(strings.TrimSpace(out))
			switch label {
			case LabelContactEmail, LabelContactPhone, LabelWebsite, LabelPricing, LabelAppointment, LabelOther:
				return label, true
			}
			return "", false
		},
		func() string {
			switch contactIntentFallback(query) {
			case ContactEmail:
				return LabelContactEmail
			case ContactPhone:
				return LabelContactPhone
			default:
				return LabelOther
			}
		},
	)
}
