package llm

import (
	"context"

	"go.uber.org/zap"
)

// FallbackAnswer is returned when the model cannot be reached. The
// retrieved passages still go out with it, so the caller gets sources
// even without a generated summary.
const FallbackAnswer = "I could not generate a full answer right now. " +
	"Please review the retrieved legal context below, or try again shortly."

// SafeProvider wraps a Provider so completion failures degrade to a
// canned answer instead of an error.
type SafeProvider struct {
	inner  Provider
	logger *zap.Logger
}

// NewSafeProvider wraps inner with degrade-on-failure semantics.
func NewSafeProvider(inner Provider, logger *zap.Logger) *SafeProvider {
	return &SafeProvider{
		inner:  inner,
		logger: logger.With(zap.String("component", "llm_safe")),
	}
}

// Model returns the wrapped provider's model name.
func (p *SafeProvider) Model() string {
	return p.inner.Model()
}

// Complete never returns an error; on failure the fallback answer comes
// back with zero confidence.
func (p *SafeProvider) Complete(ctx context.Context, prompt string) (*Completion, error) {
	completion, err := p.inner.Complete(ctx, prompt)
	if err != nil {
		p.logger.Warn("llm completion failed, using fallback answer", zap.Error(err))
		return &Completion{
			Answer:     FallbackAnswer,
			Confidence: 0.0,
		}, nil
	}
	return completion, nil
}
