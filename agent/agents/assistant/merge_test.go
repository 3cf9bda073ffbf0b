package assistant

import (
	"testing"
	"time"

	"github.com/tanpawarit/Chative-Slot-Booking/agent/booking"
	contractx "github.com/tanpawarit/Chative-Slot-Booking/agent/contract"
	statex "github.com/tanpawarit/Chative-Slot-Booking/agent/state"
)

func TestMergeLastArgs(t *testing.T) {
	t.Parallel()

	window := booking.NewWindow(2, time.UTC)
	tests := []struct {
		name     string
		args     map[string]any
		wantDate string
		wantSlot string
		wantName string
	}{
		{name: "valid", args: map[string]any{"date": "2025-06-29", "slot": "15:30", "name": "Ann"}, wantDate: "2025-06-29", wantSlot: "15:30", wantName: "Ann"},
		{name: "unknown slot", args: map[string]any{"date": "2025-06-28", "slot": "11:00"}, wantDate: "2025-06-28"},
		{name: "natural language date", args: map[string]any{"date": "tomorrow", "slot": "09:00"}, wantSlot: "09:00"},
		{name: "past date", args: map[string]any{"date": "2025-06-26"}},
		{name: "non string", args: map[string]any{"name": 42.0, "slot": true}, wantName: "42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := statex.NewSession("+1", fixedNow)
			mergeLastArgs(s, &contractx.ToolRequest{Args: tt.args}, window, fixedNow)
			if s.Date != tt.wantDate || s.Slot != tt.wantSlot || s.Name != tt.wantName {
				t.Fatalf("session = %+v", s)
			}
		})
	}
}

func TestMergeLastArgsNil(t *testing.T) {
	t.Parallel()

	s := statex.NewSession("+1", fixedNow)
	mergeLastArgs(s, nil, booking.NewWindow(2, time.UTC), fixedNow)
	if s.Date != "" || s.Name != "" {
		t.Fatalf("session changed: %+v", s)
	}
}
