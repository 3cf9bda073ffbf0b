package dialogue

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tanpawarit/Chative-Slot-Booking/agent/booking"
	contractx "github.com/tanpawarit/Chative-Slot-Booking/agent/contract"
	statex "github.com/tanpawarit/Chative-Slot-Booking/agent/state"
	"github.com/tanpawarit/Chative-Slot-Booking/agent/tool"
)

// Engine is the deterministic booking dialogue:
// ask_name -> get_name -> get_date -> get_slot -> confirm -> end.
type Engine struct {
	slots  tool.SlotService
	window booking.Window
	dates  *DateParser
	now    func() time.Time
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

func New(slots tool.SlotService, window booking.Window, opts ...Option) *Engine {
	e := &Engine{
		slots:  slots,
		window: window,
		dates:  NewDateParser(),
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

func (e *Engine) Name() string {
	return string(contractx.EngineTypeFSM)
}

// Respond advances the session by one step. Input mistakes are answered with
// a reprompt; only store faults return an error.
func (e *Engine) Respond(ctx context.Context, s *statex.Session, message string) (string, error) {
	if s == nil {
		return "", statex.ErrNilSessionState
	}
	s.Message = message
	text := strings.TrimSpace(message)

	from := s.Step
	reply, err := e.step(ctx, s, text)
	if err != nil {
		return "", err
	}

	log.Ctx(ctx).Debug().Str("from", string(from)).Str("to", string(s.Step)).Msg("dialogue step")
	return reply, nil
}

func (e *Engine) step(ctx context.Context, s *statex.Session, text string) (string, error) {
	switch s.Step {
	case "", statex.StepAskName:
		s.Step = statex.StepGetName
		return replyAskName, nil
	case statex.StepGetName:
		return e.onName(s, text), nil
	case statex.StepGetDate:
		return e.onDate(ctx, s, text)
	case statex.StepGetSlot:
		return e.onSlot(s, text), nil
	case statex.StepConfirm:
		return e.onConfirm(ctx, s, text)
	case statex.StepEnd:
		return replyAllSet, nil
	default:
		return "", fmt.Errorf("%w: %q", statex.ErrInvalidStep, s.Step)
	}
}

func (e *Engine) onName(s *statex.Session, text string) string {
	name := ExtractName(text)
	if name == "" {
		return replyNameMissing
	}
	s.Name = name
	s.Step = statex.StepGetDate
	return replyGreetName(name)
}

func (e *Engine) onDate(ctx context.Context, s *statex.Session, text string) (string, error) {
	now := e.window.Local(e.now())
	day, ok := e.dates.Parse(text, now)
	if !ok {
		return replyDateUnknown, nil
	}
	if !e.window.Contains(day, now) {
		return fmt.Sprintf(replyDateOutside, e.window.Days), nil
	}

	date := day.Format(booking.DateLayout)
	slots, err := e.slots.AvailableSlots(ctx, date)
	if err != nil {
		return "", fmt.Errorf("available slots for %s: %w", date, err)
	}
	if len(slots) == 0 {
		return replyNoSlots, nil
	}

	s.Date = date
	s.Slots = slots
	s.Step = statex.StepGetSlot
	return replySlotsOn(date, slots), nil
}

func (e *Engine) onSlot(s *statex.Session, text string) string {
	if !slices.Contains(s.Slots, text) {
		return replySlotInvalid(s.Slots)
	}
	s.Slot = text
	s.Step = statex.StepConfirm
	return replyConfirmPrompt(s.Slot, s.Date)
}

func (e *Engine) onConfirm(ctx context.Context, s *statex.Session, text string) (string, error) {
	if !IsAffirmative(text) {
		s.Step = statex.StepEnd
		return replyCancelled, nil
	}

	res, err := e.slots.Reserve(ctx, booking.ReserveRequest{
		Name:  s.Name,
		Phone: s.Phone,
		Date:  s.Date,
		Slot:  s.Slot,
	})
	if err != nil {
		return "", fmt.Errorf("reserve %s %s: %w", s.Date, s.Slot, err)
	}
	if res.Success {
		s.MarkBooked(statex.Fields{Date: s.Date, Slot: s.Slot})
		s.Step = statex.StepEnd
		return replyBooked(s.Date, s.Slot), nil
	}

	log.Ctx(ctx).Info().Str("date", s.Date).Str("slot", s.Slot).Str("reason", res.Reason).Msg("reservation lost, recomputing slots")

	slots, err := e.slots.AvailableSlots(ctx, s.Date)
	if err != nil {
		return "", fmt.Errorf("available slots for %s: %w", s.Date, err)
	}
	s.Slot = ""
	s.Slots = slots
	if len(slots) == 0 {
		s.Date = ""
		s.Step = statex.StepGetDate
		return replyTakenNoneLeft, nil
	}
	s.Step = statex.StepGetSlot
	return replyTakenRemaining(slots), nil
}
