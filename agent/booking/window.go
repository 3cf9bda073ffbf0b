package booking

import (
	"errors"
	"fmt"
	"time"
)

const DefaultWindowDays = 2

var (
	ErrDateFormat      = errors.New("date must be YYYY-MM-DD")
	ErrDateOutOfWindow = errors.New("date is outside the booking window")
)

// Window is the range of bookable days: today through today+Days, inclusive,
// in Location.
type Window struct {
	Days     int
	Location *time.Location
}

func NewWindow(days int, loc *time.Location) Window {
	if days < 0 {
		days = DefaultWindowDays
	}
	if loc == nil {
		loc = time.Local
	}
	return Window{Days: days, Location: loc}
}

func (w Window) loc() *time.Location {
	if w.Location == nil {
		return time.Local
	}
	return w.Location
}

// Local converts t into the window location.
func (w Window) Local(t time.Time) time.Time {
	return t.In(w.loc())
}

// Today is midnight of now's calendar day in the window location.
func (w Window) Today(now time.Time) time.Time {
	return Midnight(now.In(w.loc()))
}

func (w Window) Last(now time.Time) time.Time {
	return w.Today(now).AddDate(0, 0, w.Days)
}

// Contains compares calendar days only; the clock time of day is ignored.
func (w Window) Contains(day, now time.Time) bool {
	d := Midnight(day.In(w.loc()))
	return !d.Before(w.Today(now)) && !d.After(w.Last(now))
}

// Check parses an ISO date and verifies it is bookable.
func (w Window) Check(date string, now time.Time) (time.Time, error) {
	day, err := time.ParseInLocation(DateLayout, date, w.loc())
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrDateFormat, date)
	}
	if !w.Contains(day, now) {
		return time.Time{}, fmt.Errorf("%w: %s not within %s..%s", ErrDateOutOfWindow, date,
			w.Today(now).Format(DateLayout), w.Last(now).Format(DateLayout))
	}
	return day, nil
}

func Midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
