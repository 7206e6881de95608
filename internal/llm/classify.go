package llm

import (
	"context"

	"go.uber.org/zap"

	"github.com/kbchat/backend/pkg/logger"
)

// Completer is the narrow surface classification call sites depend on, so
// tests can substitute a canned completion.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// ClassifyWithFallback runs one completion attempt, parses it, and falls back
// to the deterministic alternative on any error or parse failure. Every
// classification point in the pipeline goes through here so that a model
// outage degrades behavior instead of failing requests.
func ClassifyWithFallback[T any](ctx context.Context, c Completer, req CompletionRequest, parse func(string) (T, bool), fallback func() T) T {
	resp, err := c.Complete(ctx, req)
	if err != nil {
		logger.Debug("Classification call failed, using fallback", zap.Error(err))
		return fallback()
	}

	result, ok := parse(resp.Content)
	if !ok {
		logger.Debug("Classification output rejected by parser, using fallback",
			zap.String("output", resp.Content),
		)
		return fallback()
	}

	return result
}
