package assistant

import (
	"strconv"
	"strings"
	"time"

	"github.com/tanpawarit/Chative-Slot-Booking/agent/booking"
	contractx "github.com/tanpawarit/Chative-Slot-Booking/agent/contract"
	statex "github.com/tanpawarit/Chative-Slot-Booking/agent/state"
	"github.com/tanpawarit/Chative-Slot-Booking/agent/tool"
)

// applyResult folds a successful tool result into the session.
func applyResult(s *statex.Session, req contractx.ToolRequest, res contractx.ToolResult) {
	if res.Error != "" {
		return
	}
	switch req.Tool {
	case tool.ToolBookSlot:
		if r, ok := res.Result.(booking.ReserveResult); ok && r.Success {
			s.MarkBooked(fieldsFromArgs(req.Args))
		}
	case tool.ToolSetCustomerInfo:
		if out, ok := res.Result.(tool.CustomerInfoOutput); ok {
			s.Merge(statex.Fields{Name: out.Name, Phone: out.Phone})
		}
	case tool.ToolCheckSlots:
		if out, ok := res.Result.(tool.CheckSlotsOutput); ok {
			s.Slots = out.Slots
		}
	}
}

// mergeLastArgs copies booking facts from the most recent tool call into the
// session. Dates outside the window and slots outside the vocabulary are dropped.
func mergeLastArgs(s *statex.Session, last *contractx.ToolRequest, window booking.Window, now time.Time) {
	if last == nil {
		return
	}
	f := fieldsFromArgs(last.Args)
	if f.Date != "" {
		if _, err := window.Check(f.Date, now); err != nil {
			f.Date = ""
		}
	}
	if f.Slot != "" && !booking.IsSlot(f.Slot) {
		f.Slot = ""
	}
	s.Merge(f)
}

func fieldsFromArgs(args map[string]any) statex.Fields {
	return statex.Fields{
		Name:  argString(args, "name"),
		Phone: argString(args, "phone"),
		Date:  argString(args, "date"),
		Slot:  argString(args, "slot"),
	}
}

func argString(args map[string]any, key string) string {
	switch v := args[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}
