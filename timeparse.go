package assistant

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	dps "github.com/markusmobius/go-dateparser"
)

// TimeMatch is a time expression found in free text.
type TimeMatch struct {
	// Due is the resolved instant in the parse location
	Due time.Time

	// Rest is the input with the time phrases removed
	Rest string
}

// Hour used when a date is given without a clock time.
const defaultDueHour = 9

// wordRE wraps body in letter/digit boundaries. RE2's \b is ASCII-only and
// would not match around Turkish letters. Group 1 is the whole phrase.
func wordRE(body string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}])(` + body + `)(?:$|[^\p{L}\p{N}])`)
}

const weekdayNames = `monday|tuesday|wednesday|thursday|friday|saturday|sunday|` +
	`pazartesi|salı|sali|çarşamba|carsamba|perşembe|persembe|cumartesi|cuma|pazar`

var (
	// Offsets resolve to an exact instant and are cut before the date
	// parser runs.
	reRelative   = wordRE(`in\s+(\d{1,4})\s*(minutes?|mins?|hours?|hrs?|days?|weeks?)`)
	reRelativeTR = wordRE(`(\d{1,4})\s*(dakika|dk|saat|gün|gun|hafta)\s+sonra`)

	// Periods are deadlines the date parser has no notion of.
	reThisWeek  = wordRE(`this\s+week|bu\s+hafta`)
	reThisMonth = wordRE(`this\s+month|bu\s+ay`)
	reNextWeek  = wordRE(`next\s+week|gelecek\s+hafta|haftaya`)
	reTonight   = wordRE(`tonight|bu\s+akşam|bu\s+aksam`)

	// Rewrites into forms the date parser reads reliably.
	reWeekdayPrefix = wordRE(`(?:next|this|on)\s+(` + weekdayNames + `)`)
	reClockWord     = wordRE(`(?:at|saat)\s+(\d{1,2})[:.](\d{2})`)
	reClockAMPM     = wordRE(`(?:at\s+)?(\d{1,2})(?::(\d{2}))?\s*(am|pm)`)
	reNoon          = wordRE(`(?:at\s+)?noon|öğlen|oglen|öğle|ogle`)
	reClockAt       = regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}])((?:at|saat)\s+(\d{1,2}))(?:$|[^\p{L}\p{N}:.])`)

	// A found phrase that is only a clock time, e.g. "15:00'te".
	reClockOnly = regexp.MustCompile(`(?i)^(?:at\s+|saat\s+)?\d{1,2}:\d{2}(?:['’]\p{L}+)?$`)
	reFullDate  = regexp.MustCompile(`\d{4}-\d{1,2}-\d{1,2}|\d{1,2}[./]\d{1,2}[./]\d{4}`)

	// Turkish case suffix after a time phrase, e.g. "15:00'te".
	reSuffix = regexp.MustCompile(`^['’]\p{L}+`)
)

type timeParser struct {
	// text has the phrases consumed so far cut out
	text string
	now  time.Time

	hasDate          bool
	year, month, day int

	hasClock     bool
	hour, minute int

	// clock used when only a date matched
	defaultHour, defaultMinute int
	evening                    bool

	// set by minute and hour offsets
	instant *time.Time
}

// ParseTime finds a time expression in text and resolves it relative to
// now in loc. It reports false when the text has no time expression.
//
// Calendar phrases are read by go-dateparser with dates preferred from
// the future; offsets, deadline periods and clock shorthands are handled
// here around it.
func ParseTime(text string, now time.Time, loc *time.Location) (TimeMatch, bool) {
	if loc == nil {
		loc = time.UTC
	}
	p := &timeParser{
		text:        text,
		now:         now.In(loc),
		defaultHour: defaultDueHour,
	}
	p.offsets()
	p.periods()
	p.rewriteClocks()
	p.search()

	due, ok := p.resolve()
	if !ok {
		return TimeMatch{Rest: strings.TrimSpace(text)}, false
	}
	return TimeMatch{Due: due, Rest: p.rest()}, true
}

func (p *timeParser) offsets() {
	for _, re := range []*regexp.Regexp{reRelative, reRelativeTR} {
		p.cut(re, func(g []string) bool {
			n, _ := strconv.Atoi(g[1])
			return p.offset(n, g[2])
		})
	}
}

func (p *timeParser) periods() {
	p.cut(reThisWeek, func([]string) bool {
		wd := mondayIndex(p.now.Weekday())
		if !p.setDate(p.now.AddDate(0, 0, 6-wd)) {
			return false
		}
		p.defaultHour, p.defaultMinute = 23, 59
		return true
	})
	p.cut(reThisMonth, func([]string) bool {
		first := time.Date(p.now.Year(), p.now.Month(), 1, 0, 0, 0, 0, p.now.Location())
		if !p.setDate(first.AddDate(0, 1, -1)) {
			return false
		}
		p.defaultHour, p.defaultMinute = 23, 59
		return true
	})
	p.cut(reNextWeek, func([]string) bool {
		wd := mondayIndex(p.now.Weekday())
		return p.setDate(p.now.AddDate(0, 0, 7-wd))
	})
	p.cut(reTonight, func([]string) bool {
		if !p.setDate(p.now) {
			return false
		}
		p.defaultHour, p.defaultMinute = 20, 0
		p.evening = true
		return true
	})
}

// rewriteClocks turns "5pm", "noon" and "at 9" into 24-hour "HH:MM".
func (p *timeParser) rewriteClocks() {
	p.text = rewrite(reWeekdayPrefix, p.text, func(g []string) (string, bool) {
		return g[1], true
	})
	p.text = rewrite(reClockWord, p.text, func(g []string) (string, bool) {
		return g[1] + ":" + g[2], true
	})
	p.text = rewrite(reClockAMPM, p.text, func(g []string) (string, bool) {
		h, _ := strconv.Atoi(g[1])
		m, _ := strconv.Atoi(g[2])
		if h < 1 || h > 12 || m > 59 {
			return "", false
		}
		h %= 12
		if strings.EqualFold(g[3], "pm") {
			h += 12
		}
		return clock(h, m), true
	})
	p.text = rewrite(reNoon, p.text, func([]string) (string, bool) {
		return "12:00", true
	})
	p.text = rewrite(reClockAt, p.text, func(g []string) (string, bool) {
		h, _ := strconv.Atoi(g[1])
		if h > 23 {
			return "", false
		}
		// "at 5" means 17:00.
		if h >= 1 && h <= 7 {
			h += 12
		}
		return clock(h, 0), true
	})
}

// search hands the remaining text to the date parser.
func (p *timeParser) search() {
	cfg := &dps.Configuration{
		Languages:           []string{"en", "tr"},
		DefaultLanguages:    []string{"en"},
		CurrentTime:         p.now,
		DefaultTimezone:     p.now.Location(),
		PreferredDateSource: dps.Future,
		ReturnTimeAsPeriod:  true,
	}
	_, found, err := dps.Search(cfg, p.text)
	if err != nil {
		return
	}
	for _, r := range found {
		phrase := strings.TrimSpace(r.Text)
		if phrase == "" || r.Date.IsZero() || !plausibleDate(phrase) {
			continue
		}
		t := r.Date.Time.In(p.now.Location())
		used := false
		if r.Date.Period.IsTime() && !p.hasClock && p.instant == nil {
			p.hasClock = true
			p.hour, p.minute = t.Hour(), t.Minute()
			used = true
		}
		if !reClockOnly.MatchString(phrase) && p.setDate(t) {
			used = true
		}
		if used {
			p.remove(phrase)
		}
	}
}

// plausibleDate rejects bare numbers such as section numbers ("3.4"),
// which the date parser would read as a day and month.
func plausibleDate(phrase string) bool {
	if strings.ContainsFunc(phrase, unicode.IsLetter) || strings.Contains(phrase, ":") {
		return true
	}
	return reFullDate.MatchString(phrase)
}

// cut removes the first match of re that accept takes. g[0] is the
// phrase, g[1:] its groups.
func (p *timeParser) cut(re *regexp.Regexp, accept func(g []string) bool) {
	for _, m := range re.FindAllStringSubmatchIndex(p.text, -1) {
		if !accept(submatches(p.text, m)) {
			continue
		}
		p.text = p.text[:m[2]] + " " + p.text[withSuffix(p.text, m[3]):]
		return
	}
}

func (p *timeParser) remove(phrase string) {
	i := strings.Index(p.text, phrase)
	if i < 0 {
		return
	}
	p.text = p.text[:i] + " " + p.text[withSuffix(p.text, i+len(phrase)):]
}

// withSuffix extends end over a Turkish case suffix.
func withSuffix(s string, end int) int {
	if loc := reSuffix.FindStringIndex(s[end:]); loc != nil {
		return end + loc[1]
	}
	return end
}

// rewrite replaces the phrase of every match of re with repl's result.
func rewrite(re *regexp.Regexp, s string, repl func(g []string) (string, bool)) string {
	var sb strings.Builder
	last := 0
	for _, m := range re.FindAllStringSubmatchIndex(s, -1) {
		if m[2] < last {
			continue
		}
		out, ok := repl(submatches(s, m))
		if !ok {
			continue
		}
		sb.WriteString(s[last:m[2]])
		sb.WriteString(out)
		last = m[3]
	}
	sb.WriteString(s[last:])
	return sb.String()
}

func submatches(s string, m []int) []string {
	g := make([]string, 0, len(m)/2-1)
	for i := 2; i < len(m); i += 2 {
		if m[i] < 0 {
			g = append(g, "")
			continue
		}
		g = append(g, s[m[i]:m[i+1]])
	}
	return g
}

func clock(h, m int) string {
	return time.Date(0, 1, 1, h, m, 0, 0, time.UTC).Format("15:04")
}

func (p *timeParser) offset(n int, unit string) bool {
	unit = strings.ToLower(unit)
	switch {
	case strings.HasPrefix(unit, "min"), unit == "dakika", unit == "dk":
		t := p.now.Add(time.Duration(n) * time.Minute)
		p.instant = &t
	case strings.HasPrefix(unit, "h"), unit == "saat":
		t := p.now.Add(time.Duration(n) * time.Hour)
		p.instant = &t
	case strings.HasPrefix(unit, "day"), unit == "gün", unit == "gun":
		return p.setDate(p.now.AddDate(0, 0, n))
	case strings.HasPrefix(unit, "week"), unit == "hafta":
		return p.setDate(p.now.AddDate(0, 0, 7*n))
	default:
		return false
	}
	return true
}

func (p *timeParser) setDate(t time.Time) bool {
	if p.hasDate {
		return false
	}
	p.hasDate = true
	p.year, p.month, p.day = t.Year(), int(t.Month()), t.Day()
	return true
}

func (p *timeParser) resolve() (time.Time, bool) {
	loc := p.now.Location()
	if p.instant != nil && !p.hasDate {
		return p.instant.Truncate(time.Minute), true
	}

	switch {
	case p.hasDate:
		h, m := p.defaultHour, p.defaultMinute
		if p.hasClock {
			h, m = p.hour, p.minute
			// "tonight at 9" means 21:00.
			if p.evening && h < 12 {
				h += 12
			}
		}
		return time.Date(p.year, time.Month(p.month), p.day, h, m, 0, 0, loc), true
	case p.hasClock:
		due := time.Date(p.now.Year(), p.now.Month(), p.now.Day(), p.hour, p.minute, 0, 0, loc)
		if !due.After(p.now) {
			due = due.AddDate(0, 0, 1)
		}
		return due, true
	}
	return time.Time{}, false
}

func (p *timeParser) rest() string {
	return trimConnectors(strings.Join(strings.Fields(p.text), " "))
}

// Words left dangling once a time phrase is cut out of a sentence.
var connectorWords = map[string]bool{
	"at": true, "on": true, "by": true, "in": true, "until": true,
	"due": true, "before": true, "for": true, "saat": true,
}

func trimConnectors(s string) string {
	words := strings.Fields(s)
	for len(words) > 0 && connectorWords[strings.ToLower(words[len(words)-1])] {
		words = words[:len(words)-1]
	}
	out := strings.Join(words, " ")
	return strings.TrimRightFunc(out, func(r rune) bool {
		return unicode.IsSpace(r) || r == ',' || r == '-'
	})
}

func mondayIndex(wd time.Weekday) int {
	return (int(wd) + 6) % 7
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return startOfDay(t).AddDate(0, 0, 1).Add(-time.Second)
}
