package extraction

import (
	"regexp"
	"strings"
	"time"

	"github.com/gatherly/plan-engine/internal/types"
)

// The date vocabulary is kept as data so it can be tested independently of the
// orchestrator. Scan order doubles as precedence: seasons, then holidays, then
// month names, then relative terms. Only the first matched term is converted.

type monthDay struct {
	Month time.Month
	Day   int
}

type seasonSpan struct {
	Name  string
	Start monthDay
	End   monthDay
}

// Northern-Hemisphere season boundaries.
var seasonSpans = []seasonSpan{
	{"spring", monthDay{time.March, 20}, monthDay{time.June, 20}},
	{"summer", monthDay{time.June, 21}, monthDay{time.September, 22}},
	{"fall", monthDay{time.September, 23}, monthDay{time.December, 20}},
	{"autumn", monthDay{time.September, 23}, monthDay{time.December, 20}},
	// Winter crosses the calendar-year boundary; handled specially below.
	{"winter", monthDay{time.December, 21}, monthDay{time.March, 19}},
}

type holidaySpan struct {
	Name     string
	Date     monthDay
	Duration int // days, inclusive of the holiday itself
}

var holidaySpans = []holidaySpan{
	{"new year's eve", monthDay{time.December, 31}, 1},
	{"new years", monthDay{time.January, 1}, 3},
	{"new year", monthDay{time.January, 1}, 3},
	{"valentines", monthDay{time.February, 14}, 1},
	{"valentine", monthDay{time.February, 14}, 1},
	{"easter", monthDay{time.April, 15}, 4}, // approximate, varies by year
	{"memorial day", monthDay{time.May, 25}, 3},
	{"independence day", monthDay{time.July, 4}, 1},
	{"july 4th", monthDay{time.July, 4}, 1},
	{"4th of july", monthDay{time.July, 4}, 1},
	{"labor day", monthDay{time.September, 1}, 3},
	{"halloween", monthDay{time.October, 31}, 1},
	{"thanksgiving", monthDay{time.November, 25}, 4},
	{"christmas", monthDay{time.December, 25}, 7},
	{"xmas", monthDay{time.December, 25}, 7},
	{"nye", monthDay{time.December, 31}, 1},
}

type monthName struct {
	Name  string
	Month time.Month
}

var monthNames = []monthName{
	{"january", time.January}, {"jan", time.January},
	{"february", time.February}, {"feb", time.February},
	{"march", time.March}, {"mar", time.March},
	{"april", time.April}, {"apr", time.April},
	{"may", time.May},
	{"june", time.June}, {"jun", time.June},
	{"july", time.July}, {"jul", time.July},
	{"august", time.August}, {"aug", time.August},
	{"september", time.September}, {"sept", time.September}, {"sep", time.September},
	{"october", time.October}, {"oct", time.October},
	{"november", time.November}, {"nov", time.November},
	{"december", time.December}, {"dec", time.December},
}

// Weekend terms come before week terms so "next weekend" is not shadowed by
// its "next week" prefix.
var relativeTerms = []string{
	"this weekend", "next weekend", "this week", "next week",
	"this month", "next month", "this year", "next year",
	"today", "tomorrow",
}

var monthWordRe = func() map[string]*regexp.Regexp {
	res := make(map[string]*regexp.Regexp, len(monthNames))
	for _, m := range monthNames {
		res[m.Name] = regexp.MustCompile(`\b` + m.Name + `\b`)
	}
	return res
}()

// ExtractDateTerms returns every vocabulary term found in the text, in
// precedence order. An empty slice means the text carries no date intent.
func ExtractDateTerms(text string) []string {
	if text == "" {
		return nil
	}
	lowered := strings.ToLower(text)
	var terms []string

	for _, s := range seasonSpans {
		if strings.Contains(lowered, s.Name) {
			terms = append(terms, s.Name)
		}
	}
	for _, h := range holidaySpans {
		if strings.Contains(lowered, h.Name) {
			terms = append(terms, h.Name)
		}
	}
	for _, m := range monthNames {
		if monthWordRe[m.Name].MatchString(lowered) {
			terms = append(terms, m.Name)
		}
	}
	for _, t := range relativeTerms {
		if strings.Contains(lowered, t) {
			terms = append(terms, t)
		}
	}
	return terms
}

// HasDateTerms reports whether the text contains any supported date term.
func HasDateTerms(text string) bool {
	return len(ExtractDateTerms(text)) > 0
}

// ParseSemanticDates converts the first date term found in the text to a
// concrete date range relative to the current time. nil means no term matched
// or the matched term has no range conversion.
func ParseSemanticDates(text string) *types.DateRange {
	return ParseSemanticDatesAt(text, time.Now())
}

// ParseSemanticDatesAt is ParseSemanticDates with an explicit "now", used by
// tests and by callers replaying past input.
func ParseSemanticDatesAt(text string, now time.Time) *types.DateRange {
	terms := ExtractDateTerms(text)
	if len(terms) == 0 {
		return nil
	}
	primary := terms[0]

	if r := seasonDateRange(primary, now); r != nil {
		return r
	}
	if r := holidayDateRange(primary, now); r != nil {
		return r
	}
	if r := monthDateRange(primary, now); r != nil {
		return r
	}
	return relativeDateRange(primary, now)
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func onDay(year int, md monthDay, loc *time.Location) time.Time {
	return time.Date(year, md.Month, md.Day, 0, 0, 0, 0, loc)
}

func seasonDateRange(name string, now time.Time) *types.DateRange {
	var span *seasonSpan
	for i := range seasonSpans {
		if seasonSpans[i].Name == name {
			span = &seasonSpans[i]
			break
		}
	}
	if span == nil {
		return nil
	}

	year := now.Year()

	// Winter's end lands in the following year, so the upcoming occurrence is
	// always the one starting this December.
	if span.Name == "winter" {
		return &types.DateRange{
			StartDate: onDay(year, span.Start, now.Location()),
			EndDate:   onDay(year+1, span.End, now.Location()),
		}
	}

	start := onDay(year, span.Start, now.Location())
	end := onDay(year, span.End, now.Location())
	if now.After(end) {
		start = onDay(year+1, span.Start, now.Location())
		end = onDay(year+1, span.End, now.Location())
	}
	return &types.DateRange{StartDate: start, EndDate: end}
}

func holidayDateRange(name string, now time.Time) *types.DateRange {
	var span *holidaySpan
	for i := range holidaySpans {
		if holidaySpans[i].Name == name {
			span = &holidaySpans[i]
			break
		}
	}
	if span == nil {
		return nil
	}

	year := now.Year()
	start := onDay(year, span.Date, now.Location())
	if now.After(start) {
		start = onDay(year+1, span.Date, now.Location())
	}
	return &types.DateRange{
		StartDate: start,
		EndDate:   start.AddDate(0, 0, span.Duration-1),
	}
}

func monthDateRange(name string, now time.Time) *types.DateRange {
	var month time.Month
	found := false
	for _, m := range monthNames {
		if m.Name == name {
			month = m.Month
			found = true
			break
		}
	}
	if !found {
		return nil
	}

	// A mention of the current month still means this month until mid-month,
	// then rolls to next year (15-day grace window).
	year := now.Year()
	if month < now.Month() || (month == now.Month() && now.Day() > 15) {
		year++
	}
	start := time.Date(year, month, 1, 0, 0, 0, 0, now.Location())
	end := start.AddDate(0, 1, -1)
	return &types.DateRange{StartDate: start, EndDate: end}
}

func relativeDateRange(term string, now time.Time) *types.DateRange {
	today := dateOnly(now)
	weekday := int(now.Weekday()) // Sunday = 0

	switch term {
	case "today":
		return &types.DateRange{StartDate: today, EndDate: today}

	case "tomorrow":
		d := today.AddDate(0, 0, 1)
		return &types.DateRange{StartDate: d, EndDate: d}

	case "this week":
		start := today.AddDate(0, 0, -weekday)
		return &types.DateRange{StartDate: start, EndDate: start.AddDate(0, 0, 6)}

	case "next week":
		start := today.AddDate(0, 0, 7-weekday)
		return &types.DateRange{StartDate: start, EndDate: start.AddDate(0, 0, 6)}

	case "this weekend":
		sat := today.AddDate(0, 0, 6-weekday)
		return &types.DateRange{StartDate: sat, EndDate: sat.AddDate(0, 0, 1)}

	case "next weekend":
		sat := today.AddDate(0, 0, 13-weekday)
		return &types.DateRange{StartDate: sat, EndDate: sat.AddDate(0, 0, 1)}

	case "this month":
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return &types.DateRange{StartDate: start, EndDate: start.AddDate(0, 1, -1)}

	case "next month":
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, 1, 0)
		return &types.DateRange{StartDate: start, EndDate: start.AddDate(0, 1, -1)}
	}

	// "this year" / "next year" are recognized but deliberately not converted.
	return nil
}
