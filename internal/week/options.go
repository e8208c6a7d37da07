package week

import (
	"fmt"
	"time"
)

// Option is one selectable week of a month on the timesheet screen.
type Option struct {
	Token   string `json:"token"`
	Label   string `json:"label"`
	Ordinal int    `json:"ordinal"`
	Week    int    `json:"week"`
	Monday  string `json:"monday"`
	Friday  string `json:"friday"`
}

// Options lists the ISO weeks whose working days touch the month, in order.
func Options(year int, month time.Month) []Option {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)

	isoYear, isoWeek := ISOWeek(first)
	monday := Monday(isoYear, isoWeek)

	var options []Option
	for !monday.After(last) {
		friday := monday.AddDate(0, 0, 4)
		if !friday.Before(first) {
			y, w := ISOWeek(monday)
			ordinal := len(options) + 1
			options = append(options, Option{
				Token:   Format(y, w),
				Label:   fmt.Sprintf("Week %d (%s - %s)", ordinal, monday.Format("02 Jan"), friday.Format("02 Jan")),
				Ordinal: ordinal,
				Week:    w,
				Monday:  monday.Format(dateLayout),
				Friday:  friday.Format(dateLayout),
			})
		}
		monday = monday.AddDate(0, 0, 7)
	}
	return options
}

// ResolveOrdinal maps the n-th working week of a month to its window. It
// reports false when the month has fewer weeks.
func ResolveOrdinal(year int, month time.Month, ordinal int) (Window, bool) {
	options := Options(year, month)
	if ordinal < 1 || ordinal > len(options) {
		return Window{}, false
	}
	token, err := Parse(options[ordinal-1].Token)
	if err != nil {
		return Window{}, false
	}
	return resolveToken(token, year), true
}
