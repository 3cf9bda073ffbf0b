package state

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"time"
)

// Session is the per-caller booking conversation, persisted between turns.
// - Booked sessions are terminal: Date and Slot are frozen once Booked is set.
// - Step only drives the deterministic dialogue; the model engine ignores it.
type Session struct {
	CallerID string `json:"caller_id"`

	// Booking facts
	Name   string   `json:"name,omitempty"`
	Phone  string   `json:"phone"`
	Date   string   `json:"date,omitempty"` // YYYY-MM-DD
	Slot   string   `json:"slot,omitempty"`
	Slots  []string `json:"slots,omitempty"` // last computed availability
	Booked bool     `json:"booked"`

	Step Step `json:"step,omitempty"`

	// Message is the raw text of the current turn only.
	Message string `json:"-"`

	UpdatedAt time.Time `json:"updated_at"`
}

type Step string

const (
	StepAskName Step = "ask_name"
	StepGetName Step = "get_name"
	StepGetDate Step = "get_date"
	StepGetSlot Step = "get_slot"
	StepConfirm Step = "confirm"
	StepEnd     Step = "end"
)

func (s Step) Valid() bool {
	switch s {
	case "", StepAskName, StepGetName, StepGetDate, StepGetSlot, StepConfirm, StepEnd:
		return true
	default:
		return false
	}
}

// Fields carries optional booking facts for Session.Merge. Empty values are ignored.
type Fields struct {
	Name  string
	Phone string
	Date  string
	Slot  string
}

/* ---------------------------- Session helpers ---------------------------- */

var (
	ErrBookedImmutable = errors.New("booked session cannot change date or slot")
	ErrInvalidStep     = errors.New("invalid dialogue step")
	ErrInvalidDate     = errors.New("invalid session date")
)

var isoDate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// NewSession returns the default session for a caller; the phone falls back to the caller id.
func NewSession(callerID string, now time.Time) *Session {
	return &Session{
		CallerID:  callerID,
		Phone:     callerID,
		UpdatedAt: now.UTC(),
	}
}

func (s *Session) Touch(now time.Time) {
	s.UpdatedAt = now.UTC()
}

// Terminal reports whether the next inbound message should start a fresh session.
func (s *Session) Terminal() bool {
	return s != nil && (s.Booked || s.Step == StepEnd)
}

// Merge copies non-empty fields into the session. Date and Slot are skipped
// once the session is booked.
func (s *Session) Merge(f Fields) {
	if s == nil {
		return
	}
	if f.Name != "" {
		s.Name = f.Name
	}
	if f.Phone != "" {
		s.Phone = f.Phone
	}
	if s.Booked {
		return
	}
	if f.Date != "" {
		s.Date = f.Date
	}
	if f.Slot != "" {
		s.Slot = f.Slot
	}
}

// MarkBooked freezes the session on the reserved booking.
func (s *Session) MarkBooked(f Fields) {
	s.Merge(f)
	s.Booked = true
}

// Clone returns a deep copy safe to hand to another goroutine.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Slots = slices.Clone(s.Slots)
	return &out
}

func (s *Session) Validate() error {
	if s == nil {
		return ErrNilSessionState
	}
	if s.CallerID == "" {
		return ErrInvalidSession
	}
	if !s.Step.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStep, s.Step)
	}
	if s.Date != "" && !isoDate.MatchString(s.Date) {
		return fmt.Errorf("%w: %q", ErrInvalidDate, s.Date)
	}
	if s.Booked && (s.Date == "" || s.Slot == "") {
		return fmt.Errorf("%w: booked session must carry date and slot", ErrBookedImmutable)
	}
	return nil
}
