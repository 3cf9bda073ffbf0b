package llm

import (
	"context"
	"errors"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

type flakyModel struct {
	errs  []error
	calls int
	tools []*schema.ToolInfo
}

func (f *flakyModel) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	f.calls++
	if f.calls <= len(f.errs) {
		return nil, f.errs[f.calls-1]
	}
	return schema.AssistantMessage("ok", nil), nil
}

func (f *flakyModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not implemented in fake model")
}

func (f *flakyModel) WithTools(tools []*schema.ToolInfo) (einomodel.ToolCallingChatModel, error) {
	f.tools = tools
	return f, nil
}

func TestWrapModelRetriesTransientErrors(t *testing.T) {
	t.Parallel()

	fake := &flakyModel{errs: []error{errors.New("502 bad gateway")}}
	m := WrapModel(fake, RetryConfig{MaxAttempts: 2})

	msg, err := m.Generate(context.Background(), nil)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if msg.Content != "ok" || fake.calls != 2 {
		t.Fatalf("content=%q calls=%d", msg.Content, fake.calls)
	}
}

func TestWrapModelStopsAfterMaxAttempts(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	fake := &flakyModel{errs: []error{boom, boom, boom}}
	m := WrapModel(fake, RetryConfig{MaxAttempts: 2})

	if _, err := m.Generate(context.Background(), nil); !errors.Is(err, boom) {
		t.Fatalf("Generate() error = %v, want boom", err)
	}
	if fake.calls != 2 {
		t.Fatalf("calls = %d, want 2", fake.calls)
	}
}

func TestWrapModelDoesNotRetryDeadline(t *testing.T) {
	t.Parallel()

	fake := &flakyModel{errs: []error{context.DeadlineExceeded}}
	m := WrapModel(fake, RetryConfig{MaxAttempts: 3})

	if _, err := m.Generate(context.Background(), nil); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Generate() error = %v", err)
	}
	if fake.calls != 1 {
		t.Fatalf("calls = %d, want 1", fake.calls)
	}
}

func TestWrapModelWithToolsKeepsRetry(t *testing.T) {
	t.Parallel()

	fake := &flakyModel{errs: []error{errors.New("flaky")}}
	m := WrapModel(fake, RetryConfig{MaxAttempts: 2})
	bound, err := m.WithTools([]*schema.ToolInfo{{Name: "check_slots"}})
	if err != nil {
		t.Fatalf("WithTools() error = %v", err)
	}
	if _, err := bound.Generate(context.Background(), nil); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(fake.tools) != 1 {
		t.Fatalf("tools not forwarded: %v", fake.tools)
	}
}

func TestConfigValidateAndOpenRouter(t *testing.T) {
	t.Parallel()

	cfg := Config{Model: " m ", MaxIterations: 8, TurnTimeout: 1, MaxCompletionToken: 300}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error without api key")
	}
	cfg.APIKey = "k"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	or := cfg.OpenRouter()
	if or.Model != "m" || or.MaxCompletionToken == nil || *or.MaxCompletionToken != 300 {
		t.Fatalf("OpenRouter() = %+v", or)
	}
}
