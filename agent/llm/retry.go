package llm

import (
	"context"
	"errors"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"
)

// RetryConfig controls error-only retries of model calls.
type RetryConfig struct {
	MaxAttempts int
	ShouldRetry func(error) bool
}

// WrapModel retries Generate on error. Cancellation and deadline errors are
// never retried. Stream is passed through untouched.
func WrapModel(model einomodel.ToolCallingChatModel, cfg RetryConfig) einomodel.ToolCallingChatModel {
	if model == nil {
		return nil
	}
	return &retryingModel{next: model, cfg: cfg}
}

type retryingModel struct {
	next einomodel.ToolCallingChatModel
	cfg  RetryConfig
}

func (m *retryingModel) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	attempts := normalizedAttempts(m.cfg.MaxAttempts)
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		msg, err := m.next.Generate(ctx, input, opts...)
		if err == nil {
			return msg, nil
		}
		lastErr = err
		if attempt == attempts || !shouldRetry(ctx, m.cfg, err) {
			break
		}
		log.Ctx(ctx).Warn().Err(err).Int("attempt", attempt).Msg("model call failed, retrying")
	}
	return nil, lastErr
}

func (m *retryingModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return m.next.Stream(ctx, input, opts...)
}

func (m *retryingModel) WithTools(tools []*schema.ToolInfo) (einomodel.ToolCallingChatModel, error) {
	bound, err := m.next.WithTools(tools)
	if err != nil {
		return nil, err
	}
	return &retryingModel{next: bound, cfg: m.cfg}, nil
}

func normalizedAttempts(maxAttempts int) int {
	if maxAttempts < 1 {
		return 1
	}
	return maxAttempts
}

func shouldRetry(ctx context.Context, cfg RetryConfig, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if cfg.ShouldRetry == nil {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	return cfg.ShouldRetry(err)
}
