package booking

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/Chative-Slot-Booking/agent/contract"
)

const (
	DateLayout = "2006-01-02"

	ReasonSlotTaken = "slot already taken"
)

var vocabulary = []string{"09:00", "10:30", "12:00", "14:00", "15:30"}

// Vocabulary returns the fixed daily slot list in booking order.
func Vocabulary() []string {
	return slices.Clone(vocabulary)
}

func IsSlot(s string) bool {
	return slices.Contains(vocabulary, s)
}

type ReserveRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Date  string `json:"date"`
	Slot  string `json:"slot"`
}

type ReserveResult struct {
	Success   bool   `json:"success"`
	Reason    string `json:"reason,omitempty"`
	BookingID string `json:"booking_id,omitempty"`
}

// Notifier is told about confirmed bookings. Failures never undo a booking.
type Notifier interface {
	BookingConfirmed(ctx context.Context, b Booking) error
}

type Service struct {
	repo     Repository
	notifier Notifier
	now      func() time.Time
	newID    func() string
}

type Option func(*Service)

func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(repo Repository, opts ...Option) (*Service, error) {
	if repo == nil {
		return nil, errors.New("booking repository is required")
	}
	s := &Service{
		repo:  repo,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// AvailableSlots reads current bookings on every call so concurrent
// reservations by other callers are always reflected.
func (s *Service) AvailableSlots(ctx context.Context, date string) ([]string, error) {
	if _, err := time.Parse(DateLayout, date); err != nil {
		return nil, fmt.Errorf("%w: date %q is not YYYY-MM-DD", contractx.ErrValidation, date)
	}

	booked, err := s.repo.BookedSlots(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contractx.ErrStore, err)
	}

	free := make([]string, 0, len(vocabulary))
	for _, slot := range vocabulary {
		if !slices.Contains(booked, slot) {
			free = append(free, slot)
		}
	}
	return free, nil
}

// Reserve books (date, slot). A lost race or invalid input is reported in the
// result with a nil error; only store faults return an error.
func (s *Service) Reserve(ctx context.Context, req ReserveRequest) (ReserveResult, error) {
	req.Date = strings.TrimSpace(req.Date)
	req.Slot = strings.TrimSpace(req.Slot)

	if _, err := time.Parse(DateLayout, req.Date); err != nil {
		return ReserveResult{Reason: fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", req.Date)}, nil
	}
	if !IsSlot(req.Slot) {
		return ReserveResult{Reason: fmt.Sprintf("unknown slot %q, choose one of %s", req.Slot, strings.Join(vocabulary, ", "))}, nil
	}

	b := &Booking{
		ID:        s.newID(),
		Name:      strings.TrimSpace(req.Name),
		Phone:     strings.TrimSpace(req.Phone),
		Date:      req.Date,
		Slot:      req.Slot,
		CreatedAt: s.now().UTC(),
	}

	inserted, err := s.repo.InsertIfAbsent(ctx, b)
	if err != nil {
		return ReserveResult{Reason: "booking failed: " + err.Error()}, fmt.Errorf("%w: %v", contractx.ErrStore, err)
	}
	if !inserted {
		log.Ctx(ctx).Info().Str("date", b.Date).Str("slot", b.Slot).Msg("slot already taken")
		return ReserveResult{Reason: ReasonSlotTaken}, nil
	}

	log.Ctx(ctx).Info().Str("booking_id", b.ID).Str("date", b.Date).Str("slot", b.Slot).Msg("slot booked")
	s.notify(ctx, *b)

	return ReserveResult{Success: true, BookingID: b.ID}, nil
}

func (s *Service) notify(ctx context.Context, b Booking) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.BookingConfirmed(ctx, b); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("booking_id", b.ID).Msg("booking notification failed")
	}
}
