package units

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/prophylaxis-audit/internal/domain"
)

var (
	clockStripPattern = regexp.MustCompile(`[^\d:]`)
	clockColonPattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})`)
	clockDigitPattern = regexp.MustCompile(`^(\d{2})(\d{2})`)
)

// ClockTime is a same-day clock time in minutes since midnight.
type ClockTime int

// Hour returns the hour component.
func (c ClockTime) Hour() int { return int(c) / 60 }

// Minute returns the minute component.
func (c ClockTime) Minute() int { return int(c) % 60 }

// String formats the time as HH:MM.
func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// ParseClock reads "HH:MM", "H:MM", "HHMM" and spreadsheet values such as
// "09:15:00" or "9h15". Characters other than digits and ':' are dropped first.
func ParseClock(raw string) (ClockTime, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return 0, domain.ErrNotFound
	}
	// "9h15" -> "9:15"
	text = strings.NewReplacer("h", ":", "H", ":").Replace(text)
	text = clockStripPattern.ReplaceAllString(text, "")

	for _, p := range []*regexp.Regexp{clockColonPattern, clockDigitPattern} {
		m := p.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		if hour >= 0 && hour <= 23 && minute >= 0 && minute <= 59 {
			return ClockTime(hour*60 + minute), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", domain.ErrInvalidClockTime, raw)
}

// MinutesBetween returns to - from in minutes. Both times belong to the same
// calendar day; there is no midnight rollover.
func MinutesBetween(from, to ClockTime) int {
	return int(to) - int(from)
}
