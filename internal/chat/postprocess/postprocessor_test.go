package postprocess

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kbchat/backend/internal/llm"
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

// scripted answers completions by matching a fragment of the system prompt,
// so one mock can serve the multi-stage pipeline.
func scripted(replies map[string]string) *mockCompleter {
	return &mockCompleter{
		OnComplete: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			for fragment, reply := range replies {
				if strings.Contains(req.SystemPrompt, fragment) {
					return &llm.CompletionResponse{Content: reply}, nil
				}
			}
			return nil, errors.New("no scripted reply")
		},
	}
}

func TestProcess_SingleCandidate_ModelDown(t *testing.T) {
	p := NewProcessor(&mockCompleter{}, 0.6)

	result := p.Process(context.Background(), "business hours?", []Candidate{
		{Question: "What are your business hours?", Answer: "Q: **9 to 5** Mon-Fri", Score: 0.9},
	})

	if result.Answer != "9 to 5 Mon-Fri" {
		t.Errorf("answer got %q, want cleaned stored answer", result.Answer)
	}
	if result.Synthesized {
		t.Error("single candidate must not be synthesized")
	}
	if result.MatchedQuestion != "What are your business hours?" {
		t.Errorf("matchedQuestion got %q", result.MatchedQuestion)
	}
	if result.CompletenessScore != 1.0 {
		t.Errorf("scoring failure should default complete, got %f", result.CompletenessScore)
	}
	if len(result.FollowUpQuestions) != 0 {
		t.Errorf("follow-ups should be empty on failure, got %v", result.FollowUpQuestions)
	}
}

func TestProcess_SpecificIntent_SelectsCandidate(t *testing.T) {
	p := NewProcessor(scripted(map[string]string{
		"SPECIFIC:<index> or GENERAL": "SPECIFIC:1",
		"Rate how completely":         "0.9",
	}), 0.6)

	result := p.Process(context.Background(), "premium plan price?", []Candidate{
		{Question: "What does the basic plan cost?", Answer: "Basic is $5", Score: 0.8},
		{Question: "What does the premium plan cost?", Answer: "Premium is $20", Score: 0.75},
	})

	if result.Answer != "Premium is $20" {
		t.Errorf("answer got %q, want the specific candidate", result.Answer)
	}
	if result.Synthesized {
		t.Error("specific intent must bypass synthesis")
	}
}

func TestProcess_GeneralIntent_Synthesizes(t *testing.T) {
	p := NewProcessor(scripted(map[string]string{
		"SPECIFIC:<index> or GENERAL": "GENERAL",
		"Combine the given":           "**Basic is $5** and Premium is $20.",
		"Rate how completely":         "0.95",
		"follow-up questions":         "How do I upgrade?\nIs there a trial?\nCan I cancel anytime?\nExtra question ignored",
	}), 0.6)

	result := p.Process(context.Background(), "what do your plans cost?", []Candidate{
		{Question: "What does the basic plan cost?", Answer: "Basic is $5", Score: 0.8},
		{Question: "What does the premium plan cost?", Answer: "Premium is $20", Score: 0.75},
	})

	if !result.Synthesized {
		t.Fatal("expected synthesized result")
	}
	if result.SourceCount != 2 {
		t.Errorf("sourceCount got %d, want 2", result.SourceCount)
	}
	if strings.Contains(result.Answer, "*") {
		t.Errorf("markup survived synthesis: %q", result.Answer)
	}
	if len(result.FollowUpQuestions) != 3 {
		t.Errorf("follow-ups got %d, want 3", len(result.FollowUpQuestions))
	}
}

func TestProcess_SynthesisFailure_FallsBackToTop(t *testing.T) {
	p := NewProcessor(scripted(map[string]string{
		"SPECIFIC:<index> or GENERAL": "GENERAL",
	}), 0.6)

	result := p.Process(context.Background(), "plans?", []Candidate{
		{Question: "Plan A?", Answer: "Answer A", Score: 0.9},
		{Question: "Plan B?", Answer: "Answer B", Score: 0.8},
	})

	if result.Synthesized {
		t.Error("failed synthesis must not report synthesized")
	}
	if result.Answer != "Answer A" {
		t.Errorf("answer got %q, want top candidate", result.Answer)
	}
}

func TestProcess_DirectExtraction_AcceptedOnlyIfShorter(t *testing.T) {
	longWinded := "Our office is open from 9 in the morning until 5 in the evening on weekdays only."

	tests := []struct {
		name      string
		extracted string
		expected  string
	}{
		{"Shorter_Accepted", "Open 9 to 5 on weekdays.", "Open 9 to 5 on weekdays."},
		{"Longer_Rejected", longWinded + " Also note we close on public holidays and weekends every year.", longWinded},
		{"Empty_Rejected", "", longWinded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProcessor(scripted(map[string]string{
				"Extract the direct answer": tt.extracted,
				"Rate how completely":       "1.0",
			}), 0.6)

			result := p.Process(context.Background(), "hours?", []Candidate{
				{Question: "Hours?", Answer: longWinded, Score: 0.9},
			})

			if result.Answer != tt.expected {
				t.Errorf("answer got %q, want %q", result.Answer, tt.expected)
			}
		})
	}
}

func TestProcess_Enrichment_AcceptedOnlyIfLonger(t *testing.T) {
	tests := []struct {
		name     string
		enriched string
		want     string
	}{
		{
			name:     "Longer_Accepted",
			enriched: "Short answer. Plus the essential detail that was missing from it.",
			want:     "Short answer. Plus the essential detail that was missing from it.",
		},
		{
			name:     "Shorter_Rejected",
			enriched: "Tiny.",
			want:     "Short answer.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProcessor(scripted(map[string]string{
				"Rate how completely": "0.4",
				"missing essential":   tt.enriched,
			}), 0.6)

			result := p.Process(context.Background(), "question?", []Candidate{
				{Question: "question?", Answer: "Short answer.", Score: 0.9},
			})

			if result.Answer != tt.want {
				t.Errorf("answer got %q, want %q", result.Answer, tt.want)
			}
		})
	}
}

func TestCleanAnswer(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Q: 9 to 5", "9 to 5"},
		{"Question: open weekdays", "open weekdays"},
		{"**bold** and #header", "bold and header"},
		{"- bullet item", "bullet item"},
		{"plain text", "plain text"},
	}

	for _, tt := range tests {
		if got := CleanAnswer(tt.in); got != tt.want {
			t.Errorf("CleanAnswer(%q) got %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseFollowUps(t *testing.T) {
	out := ParseFollowUps("1. First?\n2) Second?\n- Third?\nFourth?")

	if len(out) != 3 {
		t.Fatalf("got %d questions, want 3", len(out))
	}
	if out[0] != "First?" || out[1] != "Second?" || out[2] != "Third?" {
		t.Errorf("prefixes not stripped: %v", out)
	}

	if got := ParseFollowUps(""); len(got) != 0 {
		t.Errorf("empty input should yield no questions, got %v", got)
	}
}
