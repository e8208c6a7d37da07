// Package week maps timesheet week tokens to calendar spans.
//
// Two encodings are accepted: ISO tokens such as "2026-W04" and the legacy
// free-text form "Week 4", whose year is supplied by the caller. Both are
// normalized to the same Monday/Friday computation, which must agree with the
// backend's own calculation day for day.
package week

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

var ErrMalformedToken = errors.New("malformed week token")

type Kind string

const (
	KindISO    Kind = "iso"
	KindLegacy Kind = "legacy"
)

var (
	isoTokenPattern    = regexp.MustCompile(`^(\d{4})-W(\d{1,2})$`)
	legacyTokenPattern = regexp.MustCompile(`(?i)^week\s*(\d{1,2})$`)
)

// Token is the parsed form of a week token. Year is only set for ISO tokens,
// Label only for legacy ones.
type Token struct {
	Kind  Kind
	Year  int
	Week  int
	Label string
}

func Parse(raw string) (Token, error) {
	raw = strings.TrimSpace(raw)
	if m := isoTokenPattern.FindStringSubmatch(raw); m != nil {
		year, _ := strconv.Atoi(m[1])
		num, _ := strconv.Atoi(m[2])
		if num < 1 || num > 53 {
			return Token{}, fmt.Errorf("%w: week %d out of range", ErrMalformedToken, num)
		}
		return Token{Kind: KindISO, Year: year, Week: num}, nil
	}
	if m := legacyTokenPattern.FindStringSubmatch(raw); m != nil {
		num, _ := strconv.Atoi(m[1])
		if num < 1 || num > 53 {
			return Token{}, fmt.Errorf("%w: week %d out of range", ErrMalformedToken, num)
		}
		return Token{Kind: KindLegacy, Week: num, Label: raw}, nil
	}
	return Token{}, fmt.Errorf("%w: %q", ErrMalformedToken, raw)
}

// String renders ISO tokens canonically and legacy tokens as received.
func (t Token) String() string {
	if t.Kind == KindISO {
		return Format(t.Year, t.Week)
	}
	return t.Label
}

func Format(year, week int) string {
	return fmt.Sprintf("%04d-W%02d", year, week)
}

// Monday returns the Monday of the given ISO week. Week 1 is the week holding
// January 4th.
func Monday(year, week int) time.Time {
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	jan4Weekday := int(jan4.Weekday())
	isoWeekday := jan4Weekday - 1
	if jan4Weekday == 0 {
		isoWeekday = 6
	}
	week1Monday := jan4.AddDate(0, 0, -isoWeekday)
	return week1Monday.AddDate(0, 0, (week-1)*7)
}

// ISOWeek returns the ISO year and week of t: the week belongs to the year its
// Thursday falls in.
func ISOWeek(t time.Time) (year, week int) {
	d := dateOnly(t)
	weekday := int(d.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	thursday := d.AddDate(0, 0, 4-weekday)
	year = thursday.Year()
	return year, (thursday.YearDay()-1)/7 + 1
}

type Window struct {
	Year     int
	Week     int
	Monday   time.Time
	Friday   time.Time
	Degraded bool
}

func (w Window) MondayISO() string { return w.Monday.Format(dateLayout) }

func (w Window) FridayISO() string { return w.Friday.Format(dateLayout) }

func (w Window) Token() string { return Format(w.Year, w.Week) }

// WindowOf builds the Monday..Friday span of an ISO week.
func WindowOf(year, week int) Window {
	monday := Monday(year, week)
	return Window{
		Year:   year,
		Week:   week,
		Monday: monday,
		Friday: monday.AddDate(0, 0, 4),
	}
}

// ResolveWindow never fails. Legacy tokens take currentYear; anything
// unparseable falls back to the week ending on the next Friday from now and
// is flagged as Degraded.
func ResolveWindow(raw string, currentYear int, now time.Time) Window {
	token, err := Parse(raw)
	if err != nil {
		return fallbackWindow(now)
	}
	return resolveToken(token, currentYear)
}

func resolveToken(token Token, currentYear int) Window {
	year := token.Year
	if token.Kind == KindLegacy {
		year = currentYear
	}
	return WindowOf(year, token.Week)
}

func fallbackWindow(now time.Time) Window {
	friday := NextFriday(now)
	year, num := ISOWeek(friday)
	return Window{
		Year:     year,
		Week:     num,
		Monday:   friday.AddDate(0, 0, -4),
		Friday:   friday,
		Degraded: true,
	}
}

// NextFriday returns now's date when it is a Friday, otherwise the following one.
func NextFriday(now time.Time) time.Time {
	d := dateOnly(now)
	offset := (int(time.Friday) - int(d.Weekday()) + 7) % 7
	return d.AddDate(0, 0, offset)
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
