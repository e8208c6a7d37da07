package model

import "time"

type TimesheetExport struct {
	TimesheetID int64
	WeekToken   string
	Monday      time.Time
	Friday      time.Time
	Columns     []RateColumn
	Rows        []TimesheetExportRow
	GeneratedAt time.Time
}

// TimesheetExportRow holds the values of enabled columns only; a missing key
// is a locked cell.
type TimesheetExportRow struct {
	ContractorID int64
	Name         string
	Values       map[string]float64
	Total        float64
}
