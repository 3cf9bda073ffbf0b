package orchestratornode

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	statex "github.com/tanpawarit/Chative-Slot-Booking/agent/state"
)

// MaxMessageLength is ten concatenated SMS segments.
const MaxMessageLength = 1600

var (
	ErrInvalidMessage = errors.New("message is too long")
	ErrInvalidCaller  = errors.New("caller id is empty")
)

type GraphInput struct {
	CallerID string
	Text     string
}

type GraphOutput struct {
	Reply string
}

type GraphState struct {
	CallerID string
	Text     string
	Now      time.Time

	Session *statex.Session
	Reply   string
}

// ValidateRequest normalises the inbound message. Empty text is allowed:
// the engines answer it with a reprompt.
func ValidateRequest(in GraphInput, nowFn func() time.Time) (*GraphState, error) {
	callerID := strings.TrimSpace(in.CallerID)
	if callerID == "" {
		return nil, ErrInvalidCaller
	}

	text := strings.TrimSpace(in.Text)
	if n := utf8.RuneCountInString(text); n > MaxMessageLength {
		return nil, fmt.Errorf("%w: %d characters", ErrInvalidMessage, n)
	}

	return &GraphState{
		CallerID: callerID,
		Text:     text,
		Now:      nowFn().UTC(),
	}, nil
}
