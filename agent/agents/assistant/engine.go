package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	"github.com/tanpawarit/Chative-Slot-Booking/agent/booking"
	contractx "github.com/tanpawarit/Chative-Slot-Booking/agent/contract"
	statex "github.com/tanpawarit/Chative-Slot-Booking/agent/state"
	"github.com/tanpawarit/Chative-Slot-Booking/agent/tool"
)

const (
	DefaultMaxIterations = 8
	DefaultTurnTimeout   = 45 * time.Second

	// FallbackReply is sent when the model keeps calling tools past the iteration cap.
	FallbackReply = "Sorry, I couldn't finish that just now. Please reply with your preferred date and time."

	reasonAlreadyBooked = "this conversation already has a confirmed booking"
)

type Config struct {
	SystemPrompt  string
	Window        booking.Window
	MaxIterations int
	TurnTimeout   time.Duration
}

// Engine runs the tool-augmented model loop for one turn at a time.
type Engine struct {
	model  einomodel.ToolCallingChatModel
	tools  contractx.ToolGateway
	prompt compose.Runnable[map[string]any, []*schema.Message]
	window booking.Window

	maxIterations int
	turnTimeout   time.Duration
	now           func() time.Time
}

var _ contractx.Engine = (*Engine)(nil)

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// New binds the tool catalog to chatModel once and compiles the prompt graph.
func New(
	ctx context.Context,
	chatModel einomodel.ToolCallingChatModel,
	tools contractx.ToolGateway,
	cfg Config,
	opts ...Option,
) (*Engine, error) {
	if chatModel == nil {
		return nil, errors.New("chat model is required")
	}
	if tools == nil {
		return nil, errors.New("tool gateway is required")
	}
	systemPrompt := strings.TrimSpace(cfg.SystemPrompt)
	if systemPrompt == "" {
		return nil, fmt.Errorf("%w: assistant system prompt", contractx.ErrPromptMissing)
	}

	bound, err := chatModel.WithTools(tool.Infos())
	if err != nil {
		return nil, fmt.Errorf("%w: bind booking tools: %v", contractx.ErrModelInvoke, err)
	}
	prompt, err := compilePromptGraph(ctx, systemPrompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contractx.ErrPromptMissing, err)
	}

	e := &Engine{
		model:         bound,
		tools:         tools,
		prompt:        prompt,
		window:        cfg.Window,
		maxIterations: cfg.MaxIterations,
		turnTimeout:   cfg.TurnTimeout,
		now:           time.Now,
	}
	if e.maxIterations < 1 {
		e.maxIterations = DefaultMaxIterations
	}
	if e.turnTimeout <= 0 {
		e.turnTimeout = DefaultTurnTimeout
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e, nil
}

func (e *Engine) Name() string {
	return string(contractx.EngineTypeModel)
}

// Respond exchanges messages with the model until it answers in plain text.
// Tool results are merged into the session as they arrive.
func (e *Engine) Respond(ctx context.Context, s *statex.Session, message string) (string, error) {
	if s == nil {
		return "", statex.ErrNilSessionState
	}

	ctx, cancel := context.WithTimeout(ctx, e.turnTimeout)
	defer cancel()

	logger := log.Ctx(ctx).With().Str("engine", e.Name()).Logger()
	ctx = logger.WithContext(ctx)

	transcript, err := e.prompt.Invoke(ctx, e.promptVars(s, message))
	if err != nil {
		return "", fmt.Errorf("%w: render transcript: %v", contractx.ErrPromptMissing, err)
	}

	var last *contractx.ToolRequest
	for iteration := 1; iteration <= e.maxIterations; iteration++ {
		resp, err := e.model.Generate(ctx, transcript)
		if err != nil {
			return "", fmt.Errorf("%w: iteration %d: %w", contractx.ErrModelInvoke, iteration, err)
		}
		if resp == nil {
			return "", fmt.Errorf("%w: empty model response", contractx.ErrSchemaViolation)
		}

		if len(resp.ToolCalls) == 0 {
			mergeLastArgs(s, last, e.window, e.now())
			reply := strings.TrimSpace(resp.Content)
			if reply == "" {
				return "", fmt.Errorf("%w: model returned neither tool calls nor content", contractx.ErrSchemaViolation)
			}
			return reply, nil
		}

		transcript = append(transcript, schema.AssistantMessage(resp.Content, resp.ToolCalls))
		for _, call := range resp.ToolCalls {
			req, result, parsed, err := e.invoke(ctx, s, call)
			if err != nil {
				return "", fmt.Errorf("tool %s: %w", call.Function.Name, err)
			}
			logger.Debug().
				Int("iteration", iteration).
				Str("tool", req.Tool).
				Str("tool_error", result.Error).
				Msg("tool call executed")

			if parsed {
				last = &req
			}
			applyResult(s, req, result)

			payload, err := json.Marshal(result.Payload())
			if err != nil {
				payload = []byte(`{"error":"unencodable tool result"}`)
			}
			transcript = append(transcript, schema.ToolMessage(string(payload), call.ID))
		}
	}

	mergeLastArgs(s, last, e.window, e.now())
	logger.Warn().Int("max_iterations", e.maxIterations).Msg("model loop hit iteration cap")
	return FallbackReply, nil
}

// invoke runs one tool call. Unparseable arguments and calls the session
// cannot accept are answered with a result value; only context errors escape.
func (e *Engine) invoke(
	ctx context.Context,
	s *statex.Session,
	call schema.ToolCall,
) (contractx.ToolRequest, contractx.ToolResult, bool, error) {
	name := strings.TrimSpace(call.Function.Name)
	req := contractx.ToolRequest{Tool: name, Args: map[string]any{}}

	if raw := strings.TrimSpace(call.Function.Arguments); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.Args); err != nil {
			return req, contractx.ToolResult{
				Tool:  name,
				Error: fmt.Sprintf("invalid arguments for %s: %v", name, err),
			}, false, nil
		}
	}

	if name == tool.ToolBookSlot && s.Booked {
		return req, contractx.ToolResult{
			Tool:   name,
			Result: booking.ReserveResult{Success: false, Reason: reasonAlreadyBooked},
		}, true, nil
	}

	result, err := e.tools.Execute(ctx, req)
	if err != nil {
		return req, contractx.ToolResult{}, true, err
	}
	return req, result, true, nil
}

func (e *Engine) promptVars(s *statex.Session, message string) map[string]any {
	now := e.now()
	stateJSON, err := json.Marshal(stateView{
		Name:   s.Name,
		Phone:  s.Phone,
		Date:   s.Date,
		Slot:   s.Slot,
		Slots:  s.Slots,
		Booked: s.Booked,
	})
	if err != nil {
		stateJSON = []byte("{}")
	}
	return map[string]any{
		"today":       e.window.Today(now).Format(booking.DateLayout),
		"window_end":  e.window.Last(now).Format(booking.DateLayout),
		"window_days": e.window.Days,
		"slots":       strings.Join(booking.Vocabulary(), ", "),
		"state":       string(stateJSON),
		"message":     message,
	}
}

// stateView is what the model sees of the session.
type stateView struct {
	Name   string   `json:"name,omitempty"`
	Phone  string   `json:"phone"`
	Date   string   `json:"date,omitempty"`
	Slot   string   `json:"slot,omitempty"`
	Slots  []string `json:"slots,omitempty"`
	Booked bool     `json:"booked"`
}
