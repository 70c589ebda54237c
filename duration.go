package assistant

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

var reDuration = wordRE(`(\d{1,4})\s*(minutes?|mins?|m|dakika|dk|hours?|hrs?|h|saat|days?|d|gün|gun|weeks?|w|hafta)`)

// ParseDuration parses an amount and unit such as ("2", "hours") or
// ("30", "dk").
func ParseDuration(amount, unit string) (time.Duration, error) {
	n, err := strconv.Atoi(strings.TrimSpace(amount))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid amount %q", amount)
	}
	per, ok := durationUnit(unit)
	if !ok {
		return 0, fmt.Errorf("unknown unit %q", unit)
	}
	return time.Duration(n) * per, nil
}

// FindDuration returns the first "N unit" duration in text and the text
// with it removed.
func FindDuration(text string) (time.Duration, string, bool) {
	m := reDuration.FindStringSubmatchIndex(text)
	if m == nil {
		return 0, text, false
	}
	d, err := ParseDuration(text[m[4]:m[5]], text[m[6]:m[7]])
	if err != nil {
		return 0, text, false
	}
	rest := strings.Join(strings.Fields(text[:m[2]]+" "+text[m[3]:]), " ")
	return d, rest, true
}

func durationUnit(unit string) (time.Duration, bool) {
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "m", "min", "mins", "minute", "minutes", "dk", "dakika":
		return time.Minute, true
	case "h", "hr", "hrs", "hour", "hours", "saat":
		return time.Hour, true
	case "d", "day", "days", "gün", "gun":
		return 24 * time.Hour, true
	case "w", "week", "weeks", "hafta":
		return 7 * 24 * time.Hour, true
	}
	return 0, false
}

// formatDuration renders d the way users type it, e.g. "2 hours".
func formatDuration(d time.Duration) string {
	plural := func(n int64, unit string) string {
		if n == 1 {
			return "1 " + unit
		}
		return strconv.FormatInt(n, 10) + " " + unit + "s"
	}
	switch {
	case d%(7*24*time.Hour) == 0:
		return plural(int64(d/(7*24*time.Hour)), "week")
	case d%(24*time.Hour) == 0:
		return plural(int64(d/(24*time.Hour)), "day")
	case d%time.Hour == 0:
		return plural(int64(d/time.Hour), "hour")
	}
	return plural(int64(d/time.Minute), "minute")
}
