package extraction

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Fixed reference point: Wednesday, April 15, 2026.
var refNow = time.Date(2026, time.April, 15, 12, 0, 0, 0, time.UTC)

func TestExtractDateTerms(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"empty text", "", nil},
		{"no terms", "dinner with friends", nil},
		{"season", "beach trip this summer", []string{"summer"}},
		{"holiday", "christmas market crawl", []string{"christmas"}},
		{"month word boundary", "maybe in june", []string{"june"}},
		{"abbreviation not inside word", "majestic views", nil},
		{"relative weekend before week", "brunch next weekend", []string{"next weekend", "next week"}},
		{"season outranks relative", "summer picnic next week", []string{"summer", "next week"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractDateTerms(tt.text))
		})
	}
}

func TestParseSemanticDates_SeasonRanges(t *testing.T) {
	t.Run("upcoming season this year", func(t *testing.T) {
		r := ParseSemanticDatesAt("trip this summer", refNow)
		require.NotNil(t, r)
		assert.Equal(t, time.Date(2026, time.June, 21, 0, 0, 0, 0, time.UTC), r.StartDate)
		assert.Equal(t, time.Date(2026, time.September, 22, 0, 0, 0, 0, time.UTC), r.EndDate)
	})

	t.Run("season already passed rolls to next year", func(t *testing.T) {
		r := ParseSemanticDatesAt("spring flowers", time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC))
		require.NotNil(t, r)
		assert.Equal(t, 2027, r.StartDate.Year())
		assert.Equal(t, time.March, r.StartDate.Month())
	})

	t.Run("winter spans the year boundary", func(t *testing.T) {
		r := ParseSemanticDatesAt("winter cabin weekend", refNow)
		require.NotNil(t, r)
		assert.Equal(t, time.Date(2026, time.December, 21, 0, 0, 0, 0, time.UTC), r.StartDate)
		assert.Equal(t, time.Date(2027, time.March, 19, 0, 0, 0, 0, time.UTC), r.EndDate)
		assert.NotEqual(t, r.StartDate.Year(), r.EndDate.Year())
	})
}

func TestParseSemanticDates_Holidays(t *testing.T) {
	t.Run("future holiday stays this year", func(t *testing.T) {
		r := ParseSemanticDatesAt("halloween party", refNow)
		require.NotNil(t, r)
		assert.Equal(t, time.Date(2026, time.October, 31, 0, 0, 0, 0, time.UTC), r.StartDate)
		assert.Equal(t, r.StartDate, r.EndDate) // one-day holiday
	})

	t.Run("passed holiday rolls forward", func(t *testing.T) {
		r := ParseSemanticDatesAt("valentines dinner", refNow)
		require.NotNil(t, r)
		assert.Equal(t, 2027, r.StartDate.Year())
		assert.Equal(t, time.February, r.StartDate.Month())
	})

	t.Run("multi-day holiday duration", func(t *testing.T) {
		r := ParseSemanticDatesAt("christmas getaway", refNow)
		require.NotNil(t, r)
		assert.Equal(t, time.Date(2026, time.December, 25, 0, 0, 0, 0, time.UTC), r.StartDate)
		assert.Equal(t, time.Date(2026, time.December, 31, 0, 0, 0, 0, time.UTC), r.EndDate)
	})
}

func TestParseSemanticDates_Months(t *testing.T) {
	t.Run("future month this year", func(t *testing.T) {
		r := ParseSemanticDatesAt("concert in september", refNow)
		require.NotNil(t, r)
		assert.Equal(t, time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC), r.StartDate)
		assert.Equal(t, time.Date(2026, time.September, 30, 0, 0, 0, 0, time.UTC), r.EndDate)
	})

	t.Run("passed month rolls to next year", func(t *testing.T) {
		r := ParseSemanticDatesAt("ski trip in february", refNow)
		require.NotNil(t, r)
		assert.Equal(t, 2027, r.StartDate.Year())
	})

	t.Run("current month within grace window", func(t *testing.T) {
		r := ParseSemanticDatesAt("something in april", refNow) // April 15: day <= 15
		require.NotNil(t, r)
		assert.Equal(t, 2026, r.StartDate.Year())
	})

	t.Run("current month past grace window", func(t *testing.T) {
		late := time.Date(2026, time.April, 20, 0, 0, 0, 0, time.UTC)
		r := ParseSemanticDatesAt("something in april", late)
		require.NotNil(t, r)
		assert.Equal(t, 2027, r.StartDate.Year())
	})
}

func TestParseSemanticDates_RelativeTerms(t *testing.T) {
	// refNow is a Wednesday (weekday 3).
	tests := []struct {
		term      string
		wantStart time.Time
		wantEnd   time.Time
	}{
		{"today", dateOnly(refNow), dateOnly(refNow)},
		{"tomorrow", dateOnly(refNow).AddDate(0, 0, 1), dateOnly(refNow).AddDate(0, 0, 1)},
		{"this week", time.Date(2026, time.April, 12, 0, 0, 0, 0, time.UTC), time.Date(2026, time.April, 18, 0, 0, 0, 0, time.UTC)},
		{"next week", time.Date(2026, time.April, 19, 0, 0, 0, 0, time.UTC), time.Date(2026, time.April, 25, 0, 0, 0, 0, time.UTC)},
		{"this weekend", time.Date(2026, time.April, 18, 0, 0, 0, 0, time.UTC), time.Date(2026, time.April, 19, 0, 0, 0, 0, time.UTC)},
		{"next weekend", time.Date(2026, time.April, 25, 0, 0, 0, 0, time.UTC), time.Date(2026, time.April, 26, 0, 0, 0, 0, time.UTC)},
		{"this month", time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, time.April, 30, 0, 0, 0, 0, time.UTC)},
		{"next month", time.Date(2026, time.May, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, time.May, 31, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.term, func(t *testing.T) {
			r := ParseSemanticDatesAt("let's do it "+tt.term, refNow)
			require.NotNil(t, r)
			assert.Equal(t, tt.wantStart, r.StartDate)
			assert.Equal(t, tt.wantEnd, r.EndDate)
		})
	}
}

func TestParseSemanticDates_Invariants(t *testing.T) {
	inputs := []string{
		"spring", "summer", "fall", "autumn", "winter",
		"christmas", "thanksgiving", "easter", "labor day", "nye",
		"january", "february", "july", "december",
		"today", "tomorrow", "this week", "next week",
		"this weekend", "next weekend", "this month", "next month",
	}

	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			r := ParseSemanticDatesAt("plan something for "+in, refNow)
			require.NotNil(t, r)
			assert.False(t, r.StartDate.After(r.EndDate), "start must not be after end")
			// The resolved occurrence must never be fully in the past.
			assert.False(t, r.EndDate.Before(dateOnly(refNow)), "range must not end before now")
		})
	}
}

func TestParseSemanticDates_FirstTermWins(t *testing.T) {
	// Both "summer" and "next week" appear; season precedence wins.
	r := ParseSemanticDatesAt("summer hike or maybe next week", refNow)
	require.NotNil(t, r)
	assert.Equal(t, time.June, r.StartDate.Month())
}

func TestParseSemanticDates_NoMatch(t *testing.T) {
	assert.Nil(t, ParseSemanticDatesAt("dinner with friends", refNow))
	assert.Nil(t, ParseSemanticDatesAt("", refNow))
}
