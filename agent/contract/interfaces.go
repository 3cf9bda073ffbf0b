package contract

import (
	"context"

	statex "github.com/tanpawarit/Chative-Slot-Booking/agent/state"
)

// Engine turns one inbound message into a reply, mutating the session in place.
type Engine interface {
	Name() string
	Respond(ctx context.Context, session *statex.Session, message string) (string, error)
}

type ToolGateway interface {
	Execute(ctx context.Context, req ToolRequest) (ToolResult, error)
}
