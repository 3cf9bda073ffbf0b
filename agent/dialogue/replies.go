package dialogue

import (
	"fmt"
	"strings"
)

const (
	replyAskName       = "Hi! What is your name?"
	replyNameMissing   = "Sorry, I didn't catch your name. Could you repeat it?"
	replyDateUnknown   = "I couldn't understand that date. Could you rephrase (e.g., 'tomorrow' or '2025-06-27')?"
	replyDateOutside   = "You can only book within the next %d days. Please pick today, tomorrow, or the day after."
	replyNoSlots       = "No slots are available that day. Please choose another date."
	replyCancelled     = "Booking cancelled. If you'd like to start over, just say 'hi'."
	replyTakenNoneLeft = "Oops, that slot was just taken and no others are free that day. Try another date."
	replyAllSet        = "You're all set!"
)

func replyGreetName(name string) string {
	return fmt.Sprintf("Nice to meet you, %s! What date would you like to book? (Today, tomorrow, or a specific date)", name)
}

func replySlotsOn(date string, slots []string) string {
	return fmt.Sprintf("Available slots on %s: %s. Which slot do you prefer?", date, strings.Join(slots, ", "))
}

func replySlotInvalid(slots []string) string {
	return fmt.Sprintf("That slot isn't available. Please choose one of: %s.", strings.Join(slots, ", "))
}

func replyConfirmPrompt(slot, date string) string {
	return fmt.Sprintf("Great! Booking %s on %s. Please confirm by replying 'yes'.", slot, date)
}

func replyBooked(date, slot string) string {
	return fmt.Sprintf("You're booked for %s at %s! 🎉", date, slot)
}

func replyTakenRemaining(slots []string) string {
	return fmt.Sprintf("Oops, that slot was taken. Remaining slots: %s. Choose one.", strings.Join(slots, ", "))
}
