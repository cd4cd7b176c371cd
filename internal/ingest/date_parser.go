package ingest

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

// Italian tender deadlines are stated in local time.
var rome = func() *time.Location {
	loc, err := time.LoadLocation("Europe/Rome")
	if err != nil {
		return time.UTC
	}
	return loc
}()

// deadlineLabelRegex anchors the phrases that introduce the offer
// submission deadline.
var deadlineLabelRegex = regexp.MustCompile(`(?i)(termine (?:ultimo |perentorio )?(?:per la |di )?(?:presentazione|ricezione)|scadenza(?: del termine| presentazione)?|entro(?: e non oltre| il| le ore)|deadline|closing date|submission deadline)`)

const deadlineWindow = 160

var monthNames = map[string]time.Month{
	"gennaio": time.January, "febbraio": time.February, "marzo": time.March,
	"aprile": time.April, "maggio": time.May, "giugno": time.June,
	"luglio": time.July, "agosto": time.August, "settembre": time.September,
	"ottobre": time.October, "novembre": time.November, "dicembre": time.December,
	"january": time.January, "february": time.February, "march": time.March,
	"april": time.April, "may": time.May, "june": time.June,
	"july": time.July, "august": time.August, "september": time.September,
	"october": time.October, "november": time.November, "december": time.December,
	"gen": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
	"mag": time.May, "giu": time.June, "lug": time.July, "ago": time.August,
	"set": time.September, "ott": time.October, "nov": time.November, "dic": time.December,
	"jan": time.January, "jun": time.June, "jul": time.July, "aug": time.August,
	"sep": time.September, "oct": time.October, "dec": time.December,
}

const monthAlternation = `gennaio|febbraio|marzo|aprile|maggio|giugno|luglio|agosto|settembre|ottobre|novembre|dicembre|` +
	`january|february|march|april|may|june|july|august|september|october|november|december|` +
	`gen|feb|mar|apr|mag|giu|lug|ago|set|ott|nov|dic|jan|jun|jul|aug|sep|oct|dec`

type dateLayout int

const (
	layoutDMY dateLayout = iota
	layoutISO
	layoutDayMonthName
	layoutMonthNameDay
)

var dateRegexes = []struct {
	re     *regexp.Regexp
	layout dateLayout
}{
	{regexp.MustCompile(`\b(\d{1,2})[/.\-](\d{1,2})[/.\-](20\d{2})\b`), layoutDMY},
	{regexp.MustCompile(`\b(20\d{2})-(\d{2})-(\d{2})\b`), layoutISO},
	{regexp.MustCompile(`(?i)\b(\d{1,2})[°º]?\s+(` + monthAlternation + `)\.?\s+(20\d{2})\b`), layoutDayMonthName},
	{regexp.MustCompile(`(?i)\b(` + monthAlternation + `)\.?\s+(\d{1,2}),?\s+(20\d{2})\b`), layoutMonthNameDay},
}

var clockRegex = regexp.MustCompile(`(?i)\b(?:ore|h\.?|alle|at)\s*(\d{1,2})[:.](\d{2})\b`)

// ParseDeadline finds the first labelled submission deadline in text. A
// clock time near the date ("ore 12:00") is honoured; otherwise the
// deadline is the end of that day. Times are Europe/Rome wall clock,
// returned in UTC.
func ParseDeadline(text string) *time.Time {
	for _, loc := range deadlineLabelRegex.FindAllStringIndex(text, -1) {
		end := loc[1] + deadlineWindow
		if end > len(text) {
			end = len(text)
		}
		window := text[loc[1]:end]

		day, dateEnd, ok := firstDate(window)
		if !ok {
			continue
		}
		hour, minute := 23, 59
		// The clock may sit in the label ("entro le ore 12:00 del ...").
		span := text[loc[0]:min(len(text), loc[1]+dateEnd+30)]
		if m := clockRegex.FindStringSubmatch(span); m != nil {
			h, _ := strconv.Atoi(m[1])
			mi, _ := strconv.Atoi(m[2])
			if h < 24 && mi < 60 {
				hour, minute = h, mi
			}
		}
		t := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, rome).UTC()
		return &t
	}
	return nil
}

// ParseDate parses a single date in any of the supported layouts and
// returns midnight UTC of that day.
func ParseDate(s string) (time.Time, bool) {
	d, _, ok := firstDate(strings.TrimSpace(s))
	return d, ok
}

// firstDate returns the earliest valid date in s and the offset where it
// ends.
func firstDate(s string) (time.Time, int, bool) {
	var best time.Time
	bestStart, bestEnd := -1, 0
	for _, dr := range dateRegexes {
		for _, m := range dr.re.FindAllStringSubmatchIndex(s, -1) {
			if bestStart >= 0 && m[0] >= bestStart {
				break
			}
			groups := []string{s[m[2]:m[3]], s[m[4]:m[5]], s[m[6]:m[7]]}
			if d, ok := buildDate(dr.layout, groups); ok {
				best, bestStart, bestEnd = d, m[0], m[1]
				break
			}
		}
	}
	return best, bestEnd, bestStart >= 0
}

func buildDate(layout dateLayout, g []string) (time.Time, bool) {
	var day, month, year int
	switch layout {
	case layoutDMY:
		day, month, year = atoi(g[0]), atoi(g[1]), atoi(g[2])
	case layoutISO:
		year, month, day = atoi(g[0]), atoi(g[1]), atoi(g[2])
	case layoutDayMonthName:
		day, month, year = atoi(g[0]), int(monthNames[strings.ToLower(g[1])]), atoi(g[2])
	case layoutMonthNameDay:
		month, day, year = int(monthNames[strings.ToLower(g[0])]), atoi(g[1]), atoi(g[2])
	}
	if month < 1 || month > 12 || day < 1 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, false
	}
	return t, true
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
