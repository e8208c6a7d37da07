package week

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Token
	}{
		{in: "2026-W04", want: Token{Kind: KindISO, Year: 2026, Week: 4}},
		{in: "2026-W4", want: Token{Kind: KindISO, Year: 2026, Week: 4}},
		{in: " 2020-W53 ", want: Token{Kind: KindISO, Year: 2020, Week: 53}},
		{in: "Week 12", want: Token{Kind: KindLegacy, Week: 12, Label: "Week 12"}},
		{in: "week 3", want: Token{Kind: KindLegacy, Week: 3, Label: "week 3"}},
	}

	for _, tt := range tests {
		got, err := Parse(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, in := range []string{"", "2026-W00", "2026-W54", "26-W04", "Week", "Week 0", "2026W04", "next week"} {
		_, err := Parse(in)
		assert.True(t, errors.Is(err, ErrMalformedToken), "expected malformed for %q", in)
	}
}

func TestResolveWindowRegression(t *testing.T) {
	w := ResolveWindow("2026-W04", 2030, time.Now())

	assert.False(t, w.Degraded)
	assert.Equal(t, "2026-01-19", w.MondayISO())
	assert.Equal(t, "2026-01-23", w.FridayISO())
	assert.Equal(t, 4, w.Week)
}

func TestResolveWindowMondayFridaySpan(t *testing.T) {
	for year := 2015; year <= 2035; year++ {
		for num := 1; num <= 52; num++ {
			w := ResolveWindow(Format(year, num), 0, time.Time{})
			require.Equal(t, time.Monday, w.Monday.Weekday(), "%d-W%02d", year, num)
			require.Equal(t, time.Friday, w.Friday.Weekday(), "%d-W%02d", year, num)
			require.Equal(t, 4*24*time.Hour, w.Friday.Sub(w.Monday))

			isoYear, isoWeek := ISOWeek(w.Monday)
			require.Equal(t, year, isoYear)
			require.Equal(t, num, isoWeek)
		}
	}
}

func TestResolveWindowLegacyUsesCurrentYear(t *testing.T) {
	legacy := ResolveWindow("Week 4", 2026, time.Now())
	iso := ResolveWindow("2026-W04", 1999, time.Now())

	assert.Equal(t, iso.Monday, legacy.Monday)
	assert.Equal(t, iso.Friday, legacy.Friday)
}

func TestResolveWindowMalformedFallsBackToNextFriday(t *testing.T) {
	wednesday := time.Date(2026, 10, 14, 15, 30, 0, 0, time.UTC)
	w := ResolveWindow("garbage", 2026, wednesday)

	assert.True(t, w.Degraded)
	assert.Equal(t, "2026-10-16", w.FridayISO())
	assert.Equal(t, "2026-10-12", w.MondayISO())
	assert.Equal(t, 42, w.Week)

	friday := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-10-16", ResolveWindow("", 2026, friday).FridayISO())

	saturday := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-10-23", ResolveWindow("", 2026, saturday).FridayISO())
}

func TestISOWeekMatchesStdlib(t *testing.T) {
	day := time.Date(2018, 12, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3*366; i++ {
		wantYear, wantWeek := day.ISOWeek()
		gotYear, gotWeek := ISOWeek(day)
		require.Equal(t, wantYear, gotYear, day.Format(dateLayout))
		require.Equal(t, wantWeek, gotWeek, day.Format(dateLayout))
		day = day.AddDate(0, 0, 1)
	}
}

func TestOptions(t *testing.T) {
	// August 2026 starts on a Saturday, so its first working week is W32.
	options := Options(2026, time.August)
	require.Len(t, options, 5)

	assert.Equal(t, "2026-W32", options[0].Token)
	assert.Equal(t, "2026-08-03", options[0].Monday)
	assert.Equal(t, 1, options[0].Ordinal)
	assert.Equal(t, "2026-W36", options[4].Token)
	assert.Equal(t, "2026-09-04", options[4].Friday)
}

func TestOptionsIncludeWeekStartingInPreviousMonth(t *testing.T) {
	// 1 January 2026 is a Thursday; the week belongs to 2026-W01 but starts in December.
	options := Options(2026, time.January)
	require.NotEmpty(t, options)
	assert.Equal(t, "2026-W01", options[0].Token)
	assert.Equal(t, "2025-12-29", options[0].Monday)
}

func TestResolveOrdinalMatchesISOToken(t *testing.T) {
	for month := time.January; month <= time.December; month++ {
		for _, opt := range Options(2026, month) {
			byOrdinal, ok := ResolveOrdinal(2026, month, opt.Ordinal)
			require.True(t, ok)

			byToken := ResolveWindow(opt.Token, 2026, time.Time{})
			assert.Equal(t, byToken.Monday, byOrdinal.Monday)
			assert.Equal(t, byToken.Friday, byOrdinal.Friday)
		}
	}

	_, ok := ResolveOrdinal(2026, time.February, 9)
	assert.False(t, ok)
}
