package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kbchat/backend/internal/metrics"
	"github.com/kbchat/backend/pkg/circuitbreaker"
	"github.com/kbchat/backend/pkg/logger"
	"github.com/kbchat/backend/pkg/retry"
)

// SupportedLanguages is the closed set of ISO-639-1 codes the backend
// answers in. Anything else falls back to English.
var SupportedLanguages = map[string]bool{
	"en": true,
	"hi": true,
	"es": true,
	"fr": true,
	"de": true,
}

type Client struct {
	client         *openai.Client
	model          string
	embeddingModel string
	temperature    float32
	maxTokens      int
	cb             *circuitbreaker.CircuitBreaker
	embedRetry     retry.Config
}

type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  float32
	MaxTokens    int
}

type CompletionResponse struct {
	Content string
	Usage   Usage
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

func NewClient(apiKey, model, embeddingModel string, temperature float32, maxTokens int) *Client {
	client := openai.NewClient(apiKey)

	cb := circuitbreaker.NewCircuitBreaker("llm", circuitbreaker.Config{
		MaxRequests:      5,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	logger.Info("LLM client initialized",
		zap.String("model", model),
		zap.String("embedding_model", embeddingModel),
	)

	return &Client{
		client:         client,
		model:          model,
		embeddingModel: embeddingModel,
		temperature:    temperature,
		maxTokens:      maxTokens,
		cb:             cb,
		embedRetry:     retry.FixedConfig(3, time.Second, logger.GetLogger()),
	}
}

// Complete issues a single chat completion attempt. Classification call sites
// carry their own deterministic fallbacks, so there is no retry here.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	temperature := req.Temperature
	if temperature == 0 {
		temperature = c.temperature
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}

	messages := []openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		},
		{
			Role:    openai.ChatMessageRoleUser,
			Content: req.UserPrompt,
		},
	}

	var result *CompletionResponse

	err := c.cb.Execute(ctx, func() error {
		resp, err := c.client.CreateChatCompletion(
			ctx,
			openai.ChatCompletionRequest{
				Model:       c.model,
				Messages:    messages,
				Temperature: temperature,
				MaxTokens:   maxTokens,
			},
		)

		if err != nil {
			return fmt.Errorf("failed to create completion: %w", err)
		}

		if len(resp.Choices) == 0 {
			return fmt.Errorf("completion returned no choices")
		}

		logger.Debug("LLM completion generated",
			zap.Int("prompt_tokens", resp.Usage.PromptTokens),
			zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		)

		metrics.LLMTokensUsed.WithLabelValues(c.model, "completion").Add(float64(resp.Usage.TotalTokens))

		result = &CompletionResponse{
			Content: resp.Choices[0].Message.Content,
			Usage: Usage{
				PromptTokens:     resp.Usage.PromptTokens,
				CompletionTokens: resp.Usage.CompletionTokens,
				TotalTokens:      resp.Usage.TotalTokens,
			},
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return result, nil
}

// Embed retries transient failures up to three times with a fixed one second
// delay. Callers must treat an error as "could not embed" and fail the
// request gracefully.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	var embedding []float32

	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.embedRetry, func() error {
			resp, err := c.client.CreateEmbeddings(
				ctx,
				openai.EmbeddingRequest{
					Input: []string{text},
					Model: openai.EmbeddingModel(c.embeddingModel),
				},
			)

			if err != nil {
				return fmt.Errorf("failed to generate embedding: %w", err)
			}

			if len(resp.Data) == 0 {
				return fmt.Errorf("embedding response is empty")
			}

			embedding = make([]float32, len(resp.Data[0].Embedding))
			copy(embedding, resp.Data[0].Embedding)

			metrics.LLMTokensUsed.WithLabelValues(c.embeddingModel, "embedding").Add(float64(resp.Usage.TotalTokens))

			return nil
		})
	})

	if err != nil {
		return nil, err
	}

	return embedding, nil
}

// DetectLanguage returns the ISO-639-1 code of the text, restricted to the
// supported set. Unrecognized codes and gateway failures fall back to "en".
func (c *Client) DetectLanguage(ctx context.Context, text string) string {
	if strings.TrimSpace(text) == "" {
		return "en"
	}

	req := CompletionRequest{
		SystemPrompt: "Detect the language of the user text. Respond with only the two-letter ISO-639-1 code, nothing else.",
		UserPrompt:   text,
		Temperature:  0.1,
		MaxTokens:    5,
	}

	return ClassifyWithFallback(ctx, c, req,
		func(out string) (string, bool) {
			code := strings.ToLower(strings.TrimSpace(out))
			if len(code) > 2 {
				code = code[:2]
			}
			if SupportedLanguages[code] {
				return code, true
			}
			return "", false
		},
		func() string { return "en" },
	)
}

// Translate renders text into the target language. Returns the input
// unchanged for English targets, empty input, or any gateway failure.
func (c *Client) Translate(ctx context.Context, text, targetLang string) string {
	if targetLang == "" || targetLang == "en" || strings.TrimSpace(text) == "" {
		return text
	}

	req := CompletionRequest{
		SystemPrompt: fmt.Sprintf("Translate the user text into the language with ISO-639-1 code %q. Respond with only the translation.", targetLang),
		UserPrompt:   text,
		Temperature:  0.2,
		MaxTokens:    c.maxTokens,
	}

	return ClassifyWithFallback(ctx, c, req,
		func(out string) (string, bool) {
			out = strings.TrimSpace(out)
			if out == "" {
				return "", false
			}
			return out, true
		},
		func() string { return text },
	)
}
