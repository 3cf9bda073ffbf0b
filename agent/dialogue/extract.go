package dialogue

import (
	"regexp"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tanpawarit/Chative-Slot-Booking/agent/booking"
)

// Checked in order; first match wins.
var namePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^my name is\s+(.+)`),
	regexp.MustCompile(`(?i)^i am\s+(.+)`),
	regexp.MustCompile(`(?i)^i[’']m\s+(.+)`),
	regexp.MustCompile(`(?i)^this is\s+(.+)`),
}

// ExtractName pulls a caller name out of free text, falling back to the last
// word, and title-cases it. Empty input yields "".
func ExtractName(message string) string {
	text := strings.TrimSpace(message)
	if text == "" {
		return ""
	}

	name := ""
	for _, re := range namePatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			name = strings.TrimSpace(m[1])
			break
		}
	}
	if name == "" {
		words := strings.Fields(text)
		name = words[len(words)-1]
	}

	// cases.Caser keeps state, so one per call.
	return cases.Title(language.Und).String(name)
}

var dateLayouts = []string{
	booking.DateLayout,
	"2006/01/02",
	"01/02/2006",
	"Jan 2 2006",
	"Jan 2, 2006",
	"January 2 2006",
	"January 2, 2006",
}

// DateParser resolves natural-language dates ("tomorrow", "friday",
// "June 28", "2025-06-29") against a reference time.
type DateParser struct {
	w *when.Parser
}

func NewDateParser() *DateParser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return &DateParser{w: w}
}

// Parse returns midnight of the resolved day in now's location.
func (p *DateParser) Parse(text string, now time.Time) (time.Time, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, false
	}

	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, text, now.Location()); err == nil {
			return t, true
		}
	}

	r, err := p.w.Parse(text, now)
	if err != nil || r == nil {
		return time.Time{}, false
	}
	return booking.Midnight(r.Time.In(now.Location())), true
}

var affirmatives = map[string]struct{}{
	"yes":     {},
	"y":       {},
	"confirm": {},
}

func IsAffirmative(message string) bool {
	_, ok := affirmatives[strings.ToLower(strings.TrimSpace(message))]
	return ok
}
