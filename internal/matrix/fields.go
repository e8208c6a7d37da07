package matrix

import "github.com/nurpe/staffing-timesheets/internal/model"

// entryField is the numbered hours field of a timesheet entry holding one
// rate type.
type entryField struct {
	Name string
	get  func(e *model.TimesheetEntry) *float64
}

var entryFields = map[int64]entryField{
	1: {Name: "standard_hours", get: func(e *model.TimesheetEntry) *float64 { return e.StandardHours }},
	2: {Name: "rate2_hours", get: func(e *model.TimesheetEntry) *float64 { return e.Rate2Hours }},
	3: {Name: "rate3_hours", get: func(e *model.TimesheetEntry) *float64 { return e.Rate3Hours }},
	4: {Name: "rate4_hours", get: func(e *model.TimesheetEntry) *float64 { return e.Rate4Hours }},
	5: {Name: "rate5_hours", get: func(e *model.TimesheetEntry) *float64 { return e.Rate5Hours }},
	6: {Name: "rate6_hours", get: func(e *model.TimesheetEntry) *float64 { return e.Rate6Hours }},
	7: {Name: "holiday_hours", get: func(e *model.TimesheetEntry) *float64 { return e.HolidayHours }},
	8: {Name: "bank_holiday_hours", get: func(e *model.TimesheetEntry) *float64 { return e.BankHolidayHours }},
}

// EntryField names the entry field written for a rate type. Rate types
// without a field are only tracked locally.
func EntryField(rateTypeID int64) (string, bool) {
	f, ok := entryFields[rateTypeID]
	if !ok {
		return "", false
	}
	return f.Name, true
}

// legacyHoursField reads the flat contractor-hours columns that predate
// per-rate quantities. Rate type 7 lives in weekend_hours even though it is
// holiday hours; the backend never migrated the column.
type legacyHoursField struct {
	Name string
	get  func(h model.ContractorHours) float64
	set  func(h *model.ContractorHours, v float64)
}

var legacyHoursFields = map[int64]legacyHoursField{
	1: {
		Name: "standard_hours",
		get:  func(h model.ContractorHours) float64 { return h.StandardHours },
		set:  func(h *model.ContractorHours, v float64) { h.StandardHours = v },
	},
	7: {
		Name: "weekend_hours",
		get:  func(h model.ContractorHours) float64 { return h.WeekendHours },
		set:  func(h *model.ContractorHours, v float64) { h.WeekendHours = v },
	},
	8: {
		Name: "bank_holiday_hours",
		get:  func(h model.ContractorHours) float64 { return h.BankHolidayHours },
		set:  func(h *model.ContractorHours, v float64) { h.BankHolidayHours = v },
	},
}

// LegacyField names the contractor-hours column mirrored for a rate type.
func LegacyField(rateTypeID int64) (string, bool) {
	f, ok := legacyHoursFields[rateTypeID]
	if !ok {
		return "", false
	}
	return f.Name, true
}

// SetLegacyHours writes v into the legacy column of the rate type, if any.
func SetLegacyHours(h *model.ContractorHours, rateTypeID int64, v float64) bool {
	f, ok := legacyHoursFields[rateTypeID]
	if !ok {
		return false
	}
	f.set(h, v)
	return true
}
