package tool

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	"github.com/tanpawarit/Chative-Slot-Booking/agent/booking"
	contractx "github.com/tanpawarit/Chative-Slot-Booking/agent/contract"
)

const (
	ToolCheckSlots      = "check_slots"
	ToolSetCustomerInfo = "set_customer_info"
	ToolBookSlot        = "book_slot"
)

type Executor func(ctx context.Context, tool string, args map[string]any) (contractx.ToolResult, error)

var _ contractx.ToolGateway = Executor(nil)

func (e Executor) Execute(ctx context.Context, req contractx.ToolRequest) (contractx.ToolResult, error) {
	return e(ctx, req.Tool, req.Args)
}

// SlotService is the slice of booking.Service the tools call into.
type SlotService interface {
	AvailableSlots(ctx context.Context, date string) ([]string, error)
	Reserve(ctx context.Context, req booking.ReserveRequest) (booking.ReserveResult, error)
}

type Deps struct {
	Slots  SlotService
	Window booking.Window
	Now    func() time.Time
}

type CheckSlotsOutput struct {
	Date  string   `json:"date"`
	Slots []string `json:"slots"`
}

type CustomerInfoOutput struct {
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
}

func Build(deps Deps) ([]*schema.ToolInfo, Executor) {
	return Infos(), NewExecutor(deps)
}

func NewExecutor(deps Deps) Executor {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	fallback := DefaultExecutor()
	return func(ctx context.Context, tool string, args map[string]any) (contractx.ToolResult, error) {
		var (
			out contractx.ToolResult
			err error
		)
		switch tool {
		case ToolCheckSlots:
			out, err = executeCheckSlots(ctx, deps, args)
		case ToolSetCustomerInfo:
			out, err = executeSetCustomerInfo(args)
		case ToolBookSlot:
			out, err = executeBookSlot(ctx, deps, args)
		default:
			return fallback(ctx, tool, args)
		}
		out.Tool = tool
		return out, err
	}
}

func DefaultExecutor() Executor {
	return func(ctx context.Context, tool string, _ map[string]any) (contractx.ToolResult, error) {
		return contractx.ToolResult{
			Tool:  tool,
			Error: fmt.Sprintf("unknown tool %q; available tools: %s, %s, %s", tool, ToolCheckSlots, ToolSetCustomerInfo, ToolBookSlot),
		}, nil
	}
}

func Infos() []*schema.ToolInfo {
	return []*schema.ToolInfo{
		{
			Name: ToolCheckSlots,
			Desc: "List the free time slots for a date within the booking window.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"date": {Type: schema.String, Desc: "Date in YYYY-MM-DD", Required: true},
			}),
		},
		{
			Name: ToolSetCustomerInfo,
			Desc: "Record the customer's name and/or phone number.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"name":  {Type: schema.String, Desc: "Customer name"},
				"phone": {Type: schema.String, Desc: "Customer phone number"},
			}),
		},
		{
			Name: ToolBookSlot,
			Desc: "Book a time slot on a date for the customer. Only call after the customer confirmed.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"name":  {Type: schema.String, Desc: "Customer name", Required: true},
				"date":  {Type: schema.String, Desc: "Date in YYYY-MM-DD", Required: true},
				"slot":  {Type: schema.String, Desc: "Slot time exactly as returned by check_slots, e.g. 10:30", Required: true},
				"phone": {Type: schema.String, Desc: "Customer phone number", Required: true},
			}),
		},
	}
}

func executeCheckSlots(ctx context.Context, deps Deps, args map[string]any) (contractx.ToolResult, error) {
	date, err := stringArg(args, "date", true)
	if err != nil {
		return contractx.ToolResult{Error: err.Error()}, nil
	}
	if _, err := deps.Window.Check(date, deps.Now()); err != nil {
		return contractx.ToolResult{Error: err.Error()}, nil
	}

	slots, err := deps.Slots.AvailableSlots(ctx, date)
	if err != nil {
		return storeFault(ctx, ToolCheckSlots, err)
	}
	return contractx.ToolResult{Result: CheckSlotsOutput{Date: date, Slots: slots}}, nil
}

func executeSetCustomerInfo(args map[string]any) (contractx.ToolResult, error) {
	name, err := stringArg(args, "name", false)
	if err != nil {
		return contractx.ToolResult{Error: err.Error()}, nil
	}
	phone, err := stringArg(args, "phone", false)
	if err != nil {
		return contractx.ToolResult{Error: err.Error()}, nil
	}
	return contractx.ToolResult{Result: CustomerInfoOutput{Name: name, Phone: phone}}, nil
}

func executeBookSlot(ctx context.Context, deps Deps, args map[string]any) (contractx.ToolResult, error) {
	var req booking.ReserveRequest
	var missing []string
	for _, field := range []struct {
		key string
		dst *string
	}{
		{"name", &req.Name},
		{"date", &req.Date},
		{"slot", &req.Slot},
		{"phone", &req.Phone},
	} {
		v, err := stringArg(args, field.key, true)
		if errors.Is(err, errMissingArg) {
			missing = append(missing, field.key)
			continue
		}
		if err != nil {
			return contractx.ToolResult{Error: err.Error()}, nil
		}
		*field.dst = v
	}
	if len(missing) > 0 {
		return contractx.ToolResult{Error: fmt.Sprintf("missing required fields: %s", strings.Join(missing, ", "))}, nil
	}
	if _, err := deps.Window.Check(req.Date, deps.Now()); err != nil {
		return contractx.ToolResult{Error: err.Error()}, nil
	}

	res, err := deps.Slots.Reserve(ctx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return contractx.ToolResult{}, ctxErr
		}
		log.Ctx(ctx).Error().Err(err).Str("tool", ToolBookSlot).Msg("reserve failed")
	}
	return contractx.ToolResult{Result: res}, nil
}

// storeFault hands a persistence failure back to the model as a value;
// only cancellation escapes as an error.
func storeFault(ctx context.Context, tool string, err error) (contractx.ToolResult, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return contractx.ToolResult{}, ctxErr
	}
	log.Ctx(ctx).Error().Err(err).Str("tool", tool).Msg("tool store fault")
	return contractx.ToolResult{Error: fmt.Sprintf("%s failed: %v", tool, err)}, nil
}
