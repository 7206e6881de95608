package postprocess

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/kbchat/backend/internal/llm"
	"github.com/kbchat/backend/pkg/logger"
)

const (
	completenessTarget = 0.8
	maxFollowUps       = 3
)

// Candidate is one ranked match handed over by the retrieval engine.
type Candidate struct {
	Question string
	Answer   string
	Score    float64
}

// Result is the refined answer. Synthesized reports whether multiple answers
// were combined; SourceCount is meaningful only when it is true.
type Result struct {
	Answer            string
	MatchedQuestion   string
	Synthesized       bool
	SourceCount       int
	CompletenessScore float64
	FollowUpQuestions []string
}

// Processor refines the raw best matches into the final answer. Every stage
// here is best-effort: a failed model call falls back to the value computed
// so far and the request always completes.
type Processor struct {
	llm             llm.Completer
	synthesisCutoff float64
}

func NewProcessor(c llm.Completer, synthesisCutoff float64) *Processor {
	return &Processor{llm: c, synthesisCutoff: synthesisCutoff}
}

// Process runs disambiguation, synthesis or single-answer formatting,
// completeness scoring with one enrichment pass, and follow-up generation.
func (p *Processor) Process(ctx context.Context, query string, candidates []Candidate) Result {
	if len(candidates) == 0 {
		return Result{}
	}

	qualifying := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Score >= p.synthesisCutoff {
			qualifying = append(qualifying, c)
		}
	}

	result := p.resolveAnswer(ctx, query, candidates[0], qualifying)

	result.CompletenessScore = p.scoreCompleteness(ctx, query, result.Answer)
	if result.CompletenessScore < completenessTarget {
		result.Answer = p.enrich(ctx, query, result.Answer)
	}

	result.FollowUpQuestions = p.followUps(ctx, query, result.Answer)

	return result
}

// resolveAnswer decides between a specific single answer and a synthesized
// overview when several candidates score high enough to be plausible.
func (p *Processor) resolveAnswer(ctx context.Context, query string, top Candidate, qualifying []Candidate) Result {
	if len(qualifying) < 2 {
		return p.singleAnswer(ctx, query, top)
	}

	wantsSpecific, index := p.disambiguate(ctx, query, qualifying)
	if wantsSpecific {
		return p.singleAnswer(ctx, query, qualifying[index])
	}

	if synthesized, ok := p.synthesize(ctx, query, qualifying); ok {
		return Result{
			Answer:          synthesized,
			MatchedQuestion: top.Question,
			Synthesized:     true,
			SourceCount:     len(qualifying),
		}
	}

	return p.singleAnswer(ctx, query, top)
}

// disambiguate asks whether the user wants one specific item or a general
// overview. Any parse failure selects the specific top candidate path via
// the caller's fallback.
func (p *Processor) disambiguate(ctx context.Context, query string, qualifying []Candidate) (bool, int) {
	var options strings.Builder
	for i, c := range qualifying {
		options.WriteString(fmt.Sprintf("%d. %s\n", i, c.Question))
	}

	req := llm.CompletionRequest{
		SystemPrompt: "The user question matched several knowledge-base entries. Decide whether they want ONE specific entry or a GENERAL overview combining them. Respond with exactly SPECIFIC:<index> or GENERAL.",
		UserPrompt:   fmt.Sprintf("Question: %s\n\nMatched entries:\n%s", query, options.String()),
		Temperature:  0.1,
		MaxTokens:    10,
	}

	type verdict struct {
		specific bool
		index    int
	}

	v := llm.ClassifyWithFallback(ctx, p.llm, req,
		func(out string) (verdict, bool) {
			out = strings.ToUpper(strings.TrimSpace(out))
			if out == "GENERAL" {
				return verdict{}, true
			}
			if rest, found := strings.CutPrefix(out, "SPECIFIC:"); found {
				idx, err := strconv.Atoi(strings.TrimSpace(rest))
				if err == nil && idx >= 0 && idx < len(qualifying) {
					return verdict{specific: true, index: idx}, true
				}
			}
			return verdict{}, false
		},
		func() verdict { return verdict{specific: true, index: 0} },
	)

	return v.specific, v.index
}

// synthesize combines the qualifying answers into one response. Residual
// markup is stripped regardless of whether the model followed instructions.
func (p *Processor) synthesize(ctx context.Context, query string, qualifying []Candidate) (string, bool) {
	var sources strings.Builder
	for i, c := range qualifying {
		sources.WriteString(fmt.Sprintf("[%d] %s\n", i+1, c.Answer))
	}

	req := llm.CompletionRequest{
		SystemPrompt: "Combine the given knowledge-base answers into one coherent response to the user question. Remove duplicated information. Plain sentences only: no asterisks, bullets, or headers.",
		UserPrompt:   fmt.Sprintf("Question: %s\n\nAnswers:\n%s", query, sources.String()),
		Temperature:  0.3,
		MaxTokens:    600,
	}

	resp, err := p.llm.Complete(ctx, req)
	if err != nil || strings.TrimSpace(resp.Content) == "" {
		logger.Warn("Answer synthesis failed, falling back to top match", zap.Error(err))
		return "", false
	}

	return StripMarkup(resp.Content), true
}

// singleAnswer cleans the stored answer and optionally tightens it with a
// direct-answer extraction pass, accepted only when strictly shorter.
func (p *Processor) singleAnswer(ctx context.Context, query string, c Candidate) Result {
	cleaned := CleanAnswer(c.Answer)

	req := llm.CompletionRequest{
		SystemPrompt: "Extract the direct answer to the user question from the given text. Keep every fact needed; drop filler. Respond with only the answer.",
		UserPrompt:   fmt.Sprintf("Question: %s\n\nText: %s", query, cleaned),
		Temperature:  0.2,
		MaxTokens:    400,
	}

	answer := llm.ClassifyWithFallback(ctx, p.llm, req,
		func(out string) (string, bool) {
			extracted := StripMarkup(out)
			if extracted == "" || len(extracted) >= len(cleaned) {
				return "", false
			}
			return extracted, true
		},
		func() string { return cleaned },
	)

	return Result{
		Answer:          answer,
		MatchedQuestion: c.Question,
	}
}

// scoreCompleteness rates the answer 0.0-1.0 against the question. Failures
// count as complete so broken scoring never triggers spurious enrichment.
func (p *Processor) scoreCompleteness(ctx context.Context, query, answer string) float64 {
	req := llm.CompletionRequest{
		SystemPrompt: "Rate how completely the answer addresses the question on a scale from 0.0 to 1.0. Respond with only the number.",
		UserPrompt:   fmt.Sprintf("Question: %s\n\nAnswer: %s", query, answer),
		Temperature:  0.1,
		MaxTokens:    5,
	}

	return llm.ClassifyWithFallback(ctx, p.llm, req,
		func(out string) (float64, bool) {
			score, err := strconv.ParseFloat(strings.TrimSpace(out), 64)
			if err != nil || score < 0 || score > 1 {
				return 0, false
			}
			return score, true
		},
		func() float64 { return 1.0 },
	)
}

// enrich makes one attempt to append missing essential information. The
// enriched version is accepted only when longer than the original, a weak
// proxy for added content kept for compatibility with the scoring loop.
func (p *Processor) enrich(ctx context.Context, query, answer string) string {
	req := llm.CompletionRequest{
		SystemPrompt: "The answer below is missing essential information for the question. Rewrite it with the missing essentials appended. Keep everything already there. Plain sentences only.",
		UserPrompt:   fmt.Sprintf("Question: %s\n\nAnswer: %s", query, answer),
		Temperature:  0.3,
		MaxTokens:    600,
	}

	return llm.ClassifyWithFallback(ctx, p.llm, req,
		func(out string) (string, bool) {
			enriched := StripMarkup(out)
			if len(enriched) <= len(answer) {
				return "", false
			}
			return enriched, true
		},
		func() string { return answer },
	)
}

// followUps asks for exactly three short follow-up questions. Failures yield
// an empty list; the feature degrades, never blocks.
func (p *Processor) followUps(ctx context.Context, query, answer string) []string {
	req := llm.CompletionRequest{
		SystemPrompt: "Suggest exactly 3 short follow-up questions the user might ask next, one per line, no numbering.",
		UserPrompt:   fmt.Sprintf("Question: %s\n\nAnswer: %s", query, answer),
		Temperature:  0.5,
		MaxTokens:    120,
	}

	return llm.ClassifyWithFallback(ctx, p.llm, req,
		func(out string) ([]string, bool) {
			questions := ParseFollowUps(out)
			if len(questions) == 0 {
				return nil, false
			}
			return questions, true
		},
		func() []string { return nil },
	)
}
