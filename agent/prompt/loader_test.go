package prompt

import (
	"errors"
	"strings"
	"testing"

	contractx "github.com/tanpawarit/Chative-Slot-Booking/agent/contract"
)

func TestLoadPromptSet(t *testing.T) {
	t.Parallel()

	set := LoadPromptSet()
	if err := set.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	for _, placeholder := range []string{"{today}", "{window_end}", "{window_days}", "{slots}"} {
		if !strings.Contains(set.Assistant, placeholder) {
			t.Fatalf("assistant prompt missing %s", placeholder)
		}
	}
}

func TestValidateEmpty(t *testing.T) {
	t.Parallel()

	if err := (PromptSet{}).Validate(); !errors.Is(err, contractx.ErrPromptMissing) {
		t.Fatalf("Validate() error = %v, want ErrPromptMissing", err)
	}
}
