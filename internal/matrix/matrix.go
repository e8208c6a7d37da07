// Package matrix assembles the timesheet hours matrix: one column per
// (rate type, rate frequency) pair and, per contractor, which columns are
// editable and what they currently hold.
//
// A Matrix is not safe for concurrent use; its owner serializes access.
package matrix

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nurpe/staffing-timesheets/internal/model"
)

const (
	// Rate types from this id upward are system types, never entered as hours.
	maxRateTypeID  = 50
	fixedFrequency = "Fixed"
)

func ColumnKey(rateTypeID, rateFrequencyID int64) string {
	return fmt.Sprintf("%d-%d", rateTypeID, rateFrequencyID)
}

func ParseColumnKey(key string) (rateTypeID, rateFrequencyID int64, err error) {
	parts := strings.Split(key, "-")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid column key %q", key)
	}
	rateTypeID, err = strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid column key %q: %w", key, err)
	}
	rateFrequencyID, err = strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid column key %q: %w", key, err)
	}
	return rateTypeID, rateFrequencyID, nil
}

// BuildColumns filters the catalogs and returns their product, rate types
// outer and frequencies inner, both in catalog order.
func BuildColumns(types []model.RateType, freqs []model.RateFrequency) []model.RateColumn {
	filteredFreqs := make([]model.RateFrequency, 0, len(freqs))
	for _, f := range freqs {
		if f.Name == fixedFrequency {
			continue
		}
		filteredFreqs = append(filteredFreqs, f)
	}

	columns := make([]model.RateColumn, 0, len(types)*len(filteredFreqs))
	for _, t := range types {
		if t.ID >= maxRateTypeID {
			continue
		}
		for _, f := range filteredFreqs {
			columns = append(columns, model.RateColumn{
				Key:               ColumnKey(t.ID, f.ID),
				RateTypeID:        t.ID,
				RateTypeName:      t.Name,
				RateFrequencyID:   f.ID,
				RateFrequencyName: f.Name,
			})
		}
	}
	return columns
}

// FindRate returns the active rate tuple matching the column.
func FindRate(rates []model.ContractorRate, col model.RateColumn) (model.ContractorRate, bool) {
	for _, r := range rates {
		if r.RateType == col.RateTypeID && r.RateFrequency == col.RateFrequencyID && r.Active() {
			return r, true
		}
	}
	return model.ContractorRate{}, false
}

func Enabled(rates []model.ContractorRate, col model.RateColumn) bool {
	_, ok := FindRate(rates, col)
	return ok
}

// Row is the in-memory state of one timesheet entry. Edited holds values typed
// in this session; Values holds the resolved value of every enabled column.
type Row struct {
	EntryID      int64
	ContractorID int64
	Name         string
	Entry        model.TimesheetEntry
	Edited       map[string]float64
	Values       map[string]float64
}

func NewRow(entry model.TimesheetEntry) *Row {
	return &Row{
		EntryID:      entry.ID,
		ContractorID: entry.Contractor(),
		Name:         entry.ContractorName,
		Entry:        entry,
		Edited:       make(map[string]float64),
		Values:       make(map[string]float64),
	}
}

// Set records a locally edited value.
func (r *Row) Set(key string, v float64) {
	r.Edited[key] = v
	r.Values[key] = v
}

type Matrix struct {
	Columns []model.RateColumn
	Rows    []*Row
	// Rates is keyed by contractor id, Hours by contractor id.
	Rates map[int64][]model.ContractorRate
	Hours map[int64]model.ContractorHours

	columnIndex map[string]int
	rowIndex    map[int64]int
}

// Build resolves every row against the columns. Nil inputs are treated as
// empty so a failed catalog or rate load still yields a renderable matrix.
func Build(
	columns []model.RateColumn,
	rows []*Row,
	rates map[int64][]model.ContractorRate,
	hours map[int64]model.ContractorHours,
) *Matrix {
	if rates == nil {
		rates = map[int64][]model.ContractorRate{}
	}
	if hours == nil {
		hours = map[int64]model.ContractorHours{}
	}
	m := &Matrix{
		Columns:     columns,
		Rows:        rows,
		Rates:       rates,
		Hours:       hours,
		columnIndex: make(map[string]int, len(columns)),
		rowIndex:    make(map[int64]int, len(rows)),
	}
	for i, col := range columns {
		m.columnIndex[col.Key] = i
	}
	for i, row := range rows {
		m.rowIndex[row.EntryID] = i
	}
	m.Rebuild()
	return m
}

// Rebuild re-resolves all values, keeping edits made in this session.
func (m *Matrix) Rebuild() {
	owners := make(map[int64]int64, len(m.Rows))
	for _, row := range m.Rows {
		if row.ContractorID == 0 {
			continue
		}
		if _, ok := owners[row.ContractorID]; !ok {
			owners[row.ContractorID] = row.EntryID
		}
	}
	for _, row := range m.Rows {
		m.resolveRow(row, owners[row.ContractorID] == row.EntryID)
	}
}

// resolveRow fills the enabled cells of a row. The contractor-hours record
// is one per contractor, so only the contractor's first row reads it.
func (m *Matrix) resolveRow(row *Row, ownsHours bool) {
	values := make(map[string]float64)
	if row.ContractorID != 0 {
		rates := m.Rates[row.ContractorID]
		hours, hasHours := m.Hours[row.ContractorID]
		hasHours = hasHours && ownsHours
		for _, col := range m.Columns {
			if !Enabled(rates, col) {
				continue
			}
			primary := m.primaryKey(rates, col.RateTypeID) == col.Key
			values[col.Key] = resolveValue(row, col, primary, hours, hasHours)
		}
	}
	row.Values = values
}

// primaryKey is the first enabled column of a rate type in catalog order.
// The single per-type fields (the entry's own field and the legacy
// contractor-hours column) map to this column only.
func (m *Matrix) primaryKey(rates []model.ContractorRate, rateTypeID int64) string {
	for _, col := range m.Columns {
		if col.RateTypeID == rateTypeID && Enabled(rates, col) {
			return col.Key
		}
	}
	return ""
}

// resolveValue picks, in order: the value edited in this session, the
// entry's own field for the rate type, the persisted per-rate quantity, the
// legacy contractor-hours column, zero. Per-type fields only feed the
// primary column of their rate type, and legacy columns are only consulted
// for records that carry no per-rate quantities at all.
func resolveValue(row *Row, col model.RateColumn, primary bool, hours model.ContractorHours, hasHours bool) float64 {
	if v, ok := row.Edited[col.Key]; ok {
		return v
	}
	if primary {
		if f, ok := entryFields[col.RateTypeID]; ok {
			if v := f.get(&row.Entry); v != nil {
				return *v
			}
		}
	}
	if !hasHours {
		return 0
	}
	if len(hours.RateHours) > 0 {
		q, _ := hours.Quantity(col.RateTypeID, col.RateFrequencyID)
		return q
	}
	if primary {
		if f, ok := legacyHoursFields[col.RateTypeID]; ok {
			return f.get(hours)
		}
	}
	return 0
}

// CellField names the entry field a cell is written to. Only the primary
// column of rate types 1..8 has one; other cells are kept locally and
// persisted by the contractor-hours save.
func (m *Matrix) CellField(row *Row, col model.RateColumn) (string, bool) {
	name, ok := EntryField(col.RateTypeID)
	if !ok || !m.IsPrimary(row, col) {
		return "", false
	}
	return name, true
}

// IsPrimary reports whether col is the column the per-type fields of the
// row's contractor map to.
func (m *Matrix) IsPrimary(row *Row, col model.RateColumn) bool {
	if row.ContractorID == 0 {
		return false
	}
	return m.primaryKey(m.Rates[row.ContractorID], col.RateTypeID) == col.Key
}

func (m *Matrix) Column(key string) (model.RateColumn, bool) {
	i, ok := m.columnIndex[key]
	if !ok {
		return model.RateColumn{}, false
	}
	return m.Columns[i], true
}

func (m *Matrix) Row(entryID int64) (*Row, bool) {
	i, ok := m.rowIndex[entryID]
	if !ok {
		return nil, false
	}
	return m.Rows[i], true
}

// Enabled reports whether the row's contractor holds an active rate for the
// column.
func (m *Matrix) Enabled(row *Row, col model.RateColumn) bool {
	if row.ContractorID == 0 {
		return false
	}
	return Enabled(m.Rates[row.ContractorID], col)
}

// Rate returns the active rate backing a cell.
func (m *Matrix) Rate(row *Row, col model.RateColumn) (model.ContractorRate, bool) {
	if row.ContractorID == 0 {
		return model.ContractorRate{}, false
	}
	return FindRate(m.Rates[row.ContractorID], col)
}

// ValuesByContractor maps contractor id to column key to value, summed over
// the contractor's rows. Disabled columns are absent.
func (m *Matrix) ValuesByContractor() map[int64]map[string]float64 {
	out := make(map[int64]map[string]float64, len(m.Rows))
	for _, row := range m.Rows {
		if row.ContractorID == 0 {
			continue
		}
		values, ok := out[row.ContractorID]
		if !ok {
			values = make(map[string]float64, len(row.Values))
			out[row.ContractorID] = values
		}
		for k, v := range row.Values {
			values[k] += v
		}
	}
	return out
}

// SetHours replaces persisted contractor-hours records, e.g. after an upsert
// returned backend ids.
func (m *Matrix) SetHours(records []model.ContractorHours) {
	for _, rec := range records {
		if rec.ContractorID == 0 {
			continue
		}
		m.Hours[rec.ContractorID] = rec
	}
}
