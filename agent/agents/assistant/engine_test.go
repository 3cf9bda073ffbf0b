package assistant

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/tanpawarit/Chative-Slot-Booking/agent/booking"
	"github.com/tanpawarit/Chative-Slot-Booking/agent/booking/bookingtest"
	contractx "github.com/tanpawarit/Chative-Slot-Booking/agent/contract"
	statex "github.com/tanpawarit/Chative-Slot-Booking/agent/state"
	"github.com/tanpawarit/Chative-Slot-Booking/agent/tool"
)

var fixedNow = time.Date(2025, 6, 27, 10, 0, 0, 0, time.UTC)

type fakeToolCallingModel struct {
	responses []*schema.Message
	err       error
	block     bool
	idx       int
	inputs    [][]*schema.Message
	tools     []*schema.ToolInfo
}

func (f *fakeToolCallingModel) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	f.inputs = append(f.inputs, append([]*schema.Message(nil), input...))
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.idx >= len(f.responses) {
		return nil, errors.New("no fake response left")
	}
	msg := f.responses[f.idx]
	f.idx++
	return msg, nil
}

func (f *fakeToolCallingModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not implemented in fake model")
}

func (f *fakeToolCallingModel) WithTools(tools []*schema.ToolInfo) (einomodel.ToolCallingChatModel, error) {
	f.tools = tools
	return f, nil
}

type countingGateway struct {
	calls []contractx.ToolRequest
}

func (g *countingGateway) Execute(ctx context.Context, req contractx.ToolRequest) (contractx.ToolResult, error) {
	g.calls = append(g.calls, req)
	return contractx.ToolResult{Tool: req.Tool, Result: booking.ReserveResult{Success: true}}, nil
}

func toolCallMessage(calls ...schema.ToolCall) *schema.Message {
	return schema.AssistantMessage("", calls)
}

func call(id, name, args string) schema.ToolCall {
	return schema.ToolCall{
		ID:       id,
		Type:     "function",
		Function: schema.FunctionCall{Name: name, Arguments: args},
	}
}

func newTestEngine(t *testing.T, model *fakeToolCallingModel, gateway contractx.ToolGateway, cfg Config) *Engine {
	t.Helper()
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = "Book slots. Today is {today}, last day {window_end}, {window_days} days, slots {slots}."
	}
	if cfg.Window == (booking.Window{}) {
		cfg.Window = booking.NewWindow(2, time.UTC)
	}
	e, err := New(context.Background(), model, gateway, cfg, WithClock(func() time.Time { return fixedNow }))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return e
}

func realTools(t *testing.T) (contractx.ToolGateway, *booking.Service, *booking.BunRepository) {
	t.Helper()
	svc, repo := bookingtest.NewService(t)
	exec := tool.NewExecutor(tool.Deps{
		Slots:  svc,
		Window: booking.NewWindow(2, time.UTC),
		Now:    func() time.Time { return fixedNow },
	})
	return exec, svc, repo
}

func toolMessages(msgs []*schema.Message) []*schema.Message {
	var out []*schema.Message
	for _, m := range msgs {
		if m.Role == schema.Tool {
			out = append(out, m)
		}
	}
	return out
}

func TestRespondBooksThroughTools(t *testing.T) {
	t.Parallel()

	gateway, _, repo := realTools(t)
	model := &fakeToolCallingModel{
		responses: []*schema.Message{
			toolCallMessage(call("c1", tool.ToolCheckSlots, `{"date":"2025-06-28"}`)),
			toolCallMessage(call("c2", tool.ToolBookSlot, `{"name":"Ann","date":"2025-06-28","slot":"10:30","phone":"+15550001"}`)),
			schema.AssistantMessage("Booked 10:30 on 2025-06-28. See you!", nil),
		},
	}
	e := newTestEngine(t, model, gateway, Config{})

	s := statex.NewSession("+15550001", fixedNow)
	reply, err := e.Respond(context.Background(), s, "book me tomorrow 10:30, I'm Ann")
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if reply != "Booked 10:30 on 2025-06-28. See you!" {
		t.Fatalf("reply = %q", reply)
	}
	if !s.Booked || s.Date != "2025-06-28" || s.Slot != "10:30" || s.Name != "Ann" {
		t.Fatalf("session = %+v", s)
	}
	if len(model.tools) != 3 {
		t.Fatalf("bound tools = %d, want 3", len(model.tools))
	}

	first := model.inputs[0]
	if len(first) != 3 || first[0].Role != schema.System || first[1].Role != schema.Assistant || first[2].Role != schema.User {
		t.Fatalf("unexpected first transcript: %+v", first)
	}
	if !strings.Contains(first[0].Content, "2025-06-27") || !strings.Contains(first[0].Content, "2025-06-29") {
		t.Fatalf("system prompt not rendered: %q", first[0].Content)
	}
	if !strings.HasPrefix(first[1].Content, "Current state: ") || !strings.Contains(first[1].Content, `"phone":"+15550001"`) {
		t.Fatalf("state message = %q", first[1].Content)
	}

	second := toolMessages(model.inputs[1])
	if len(second) != 1 || second[0].ToolCallID != "c1" || !strings.Contains(second[0].Content, `"slots":["09:00","10:30","12:00","14:00","15:30"]`) {
		t.Fatalf("check_slots tool message = %+v", second)
	}

	stored, err := repo.List(context.Background(), "2025-06-28")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(stored) != 1 || stored[0].Slot != "10:30" {
		t.Fatalf("stored = %+v", stored)
	}
}

func TestRespondConflictLeavesSessionUnbooked(t *testing.T) {
	t.Parallel()

	gateway, svc, _ := realTools(t)
	if res, err := svc.Reserve(context.Background(), booking.ReserveRequest{Name: "Bob", Phone: "+1", Date: "2025-06-28", Slot: "10:30"}); err != nil || !res.Success {
		t.Fatalf("seed Reserve() = %+v, %v", res, err)
	}

	model := &fakeToolCallingModel{
		responses: []*schema.Message{
			toolCallMessage(call("c1", tool.ToolBookSlot, `{"name":"Ann","date":"2025-06-28","slot":"10:30","phone":"+15550001"}`)),
			schema.AssistantMessage("Sorry, 10:30 is taken.", nil),
		},
	}
	e := newTestEngine(t, model, gateway, Config{})

	s := statex.NewSession("+15550001", fixedNow)
	if _, err := e.Respond(context.Background(), s, "yes"); err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if s.Booked {
		t.Fatal("session must not be booked after a conflict")
	}
	msgs := toolMessages(model.inputs[1])
	if len(msgs) != 1 || !strings.Contains(msgs[0].Content, booking.ReasonSlotTaken) {
		t.Fatalf("tool message = %+v", msgs)
	}
}

func TestRespondIterationCapReturnsFallback(t *testing.T) {
	t.Parallel()

	gateway, _, _ := realTools(t)
	loop := toolCallMessage(call("c", tool.ToolCheckSlots, `{"date":"2025-06-28"}`))
	model := &fakeToolCallingModel{responses: []*schema.Message{loop, loop, loop}}
	e := newTestEngine(t, model, gateway, Config{MaxIterations: 2})

	s := statex.NewSession("+15550001", fixedNow)
	reply, err := e.Respond(context.Background(), s, "what is free?")
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if reply != FallbackReply {
		t.Fatalf("reply = %q", reply)
	}
	if len(model.inputs) != 2 {
		t.Fatalf("model calls = %d, want 2", len(model.inputs))
	}
	if s.Date != "2025-06-28" {
		t.Fatalf("last tool args not merged: %+v", s)
	}
}

func TestRespondFeedsToolErrorsBack(t *testing.T) {
	t.Parallel()

	gateway, _, _ := realTools(t)
	model := &fakeToolCallingModel{
		responses: []*schema.Message{
			toolCallMessage(
				call("c1", "weather", `{}`),
				call("c2", tool.ToolCheckSlots, `{not json`),
				call("c3", tool.ToolCheckSlots, `{"date":"2025-07-30"}`),
			),
			schema.AssistantMessage("Which date within the next two days?", nil),
		},
	}
	e := newTestEngine(t, model, gateway, Config{})

	s := statex.NewSession("+15550001", fixedNow)
	if _, err := e.Respond(context.Background(), s, "hi"); err != nil {
		t.Fatalf("Respond() error = %v", err)
	}

	msgs := toolMessages(model.inputs[1])
	if len(msgs) != 3 {
		t.Fatalf("tool messages = %d, want 3", len(msgs))
	}
	for i, want := range []string{"unknown tool", "invalid arguments", "outside the booking window"} {
		if !strings.Contains(msgs[i].Content, `"error"`) || !strings.Contains(msgs[i].Content, want) {
			t.Fatalf("tool message %d = %q, want %q", i, msgs[i].Content, want)
		}
	}
	if s.Date != "" || s.Booked {
		t.Fatalf("session = %+v", s)
	}
}

func TestRespondMergesCustomerInfo(t *testing.T) {
	t.Parallel()

	gateway, _, _ := realTools(t)
	model := &fakeToolCallingModel{
		responses: []*schema.Message{
			toolCallMessage(call("c1", tool.ToolSetCustomerInfo, `{"name":"Ann","phone":""}`)),
			schema.AssistantMessage("Thanks Ann! Which day?", nil),
		},
	}
	e := newTestEngine(t, model, gateway, Config{})

	s := statex.NewSession("+15550001", fixedNow)
	if _, err := e.Respond(context.Background(), s, "I'm Ann"); err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if s.Name != "Ann" || s.Phone != "+15550001" {
		t.Fatalf("session = %+v", s)
	}
}

func TestRespondBookedSessionNeverRebooks(t *testing.T) {
	t.Parallel()

	gateway := &countingGateway{}
	model := &fakeToolCallingModel{
		responses: []*schema.Message{
			toolCallMessage(call("c1", tool.ToolBookSlot, `{"name":"Ann","date":"2025-06-29","slot":"14:00","phone":"+15550001"}`)),
			schema.AssistantMessage("You already have a booking.", nil),
		},
	}
	e := newTestEngine(t, model, gateway, Config{})

	s := statex.NewSession("+15550001", fixedNow)
	s.MarkBooked(statex.Fields{Name: "Ann", Date: "2025-06-28", Slot: "10:30"})

	if _, err := e.Respond(context.Background(), s, "book 14:00 too"); err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if len(gateway.calls) != 0 {
		t.Fatalf("store was called: %+v", gateway.calls)
	}
	if s.Date != "2025-06-28" || s.Slot != "10:30" {
		t.Fatalf("booked session changed: %+v", s)
	}
	msgs := toolMessages(model.inputs[1])
	if len(msgs) != 1 || !strings.Contains(msgs[0].Content, `"success":false`) {
		t.Fatalf("tool message = %+v", msgs)
	}
}

func TestRespondModelErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("upstream 500")
	tests := []struct {
		name  string
		model *fakeToolCallingModel
		want  error
	}{
		{name: "generate error", model: &fakeToolCallingModel{err: boom}, want: contractx.ErrModelInvoke},
		{name: "empty content", model: &fakeToolCallingModel{responses: []*schema.Message{schema.AssistantMessage("  ", nil)}}, want: contractx.ErrSchemaViolation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e := newTestEngine(t, tt.model, &countingGateway{}, Config{})
			_, err := e.Respond(context.Background(), statex.NewSession("+1", fixedNow), "hi")
			if !errors.Is(err, tt.want) {
				t.Fatalf("Respond() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRespondTurnTimeout(t *testing.T) {
	t.Parallel()

	model := &fakeToolCallingModel{block: true}
	e := newTestEngine(t, model, &countingGateway{}, Config{TurnTimeout: 20 * time.Millisecond})

	_, err := e.Respond(context.Background(), statex.NewSession("+1", fixedNow), "hi")
	if !errors.Is(err, context.DeadlineExceeded) || !errors.Is(err, contractx.ErrModelInvoke) {
		t.Fatalf("Respond() error = %v, want deadline wrapped in ErrModelInvoke", err)
	}
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), &fakeToolCallingModel{}, &countingGateway{}, Config{SystemPrompt: "  "})
	if !errors.Is(err, contractx.ErrPromptMissing) {
		t.Fatalf("New() error = %v, want ErrPromptMissing", err)
	}
	if _, err := New(context.Background(), nil, &countingGateway{}, Config{SystemPrompt: "p"}); err == nil {
		t.Fatal("expected error for nil model")
	}

	e := newTestEngine(t, &fakeToolCallingModel{}, &countingGateway{}, Config{})
	if e.Name() != "model" || e.maxIterations != DefaultMaxIterations || e.turnTimeout != DefaultTurnTimeout {
		t.Fatalf("defaults not applied: %s %d %s", e.Name(), e.maxIterations, e.turnTimeout)
	}
}
