package autosave

import (
	"github.com/shopspring/decimal"

	"github.com/nurpe/staffing-timesheets/internal/matrix"
	"github.com/nurpe/staffing-timesheets/internal/model"
	"github.com/nurpe/staffing-timesheets/internal/week"
)

// contractorSums accumulates the rows of one contractor.
type contractorSums struct {
	row     *matrix.Row
	total   decimal.Decimal
	legacy  map[int64]decimal.Decimal
	columns map[string]decimal.Decimal
}

// BuildUpsert turns the matrix into one upsert record per contractor for the
// week, in order of the contractor's first row. Rows sharing a contractor are
// summed. Per-rate quantities are only sent for contractors holding at least
// one rate, and only when positive. Legacy columns take the primary column of
// their rate type.
func BuildUpsert(m *matrix.Matrix, window week.Window) []model.ContractorHours {
	order := make([]int64, 0, len(m.Rows))
	sums := make(map[int64]*contractorSums, len(m.Rows))

	for _, row := range m.Rows {
		if row.ContractorID == 0 {
			continue
		}
		acc, ok := sums[row.ContractorID]
		if !ok {
			acc = &contractorSums{
				row:     row,
				legacy:  make(map[int64]decimal.Decimal),
				columns: make(map[string]decimal.Decimal),
			}
			sums[row.ContractorID] = acc
			order = append(order, row.ContractorID)
		}

		for _, col := range m.Columns {
			v, ok := row.Values[col.Key]
			if !ok {
				continue
			}
			d := decimal.NewFromFloat(v)
			acc.total = acc.total.Add(d)
			acc.columns[col.Key] = acc.columns[col.Key].Add(d)
			if _, isLegacy := matrix.LegacyField(col.RateTypeID); isLegacy && m.IsPrimary(row, col) {
				acc.legacy[col.RateTypeID] = acc.legacy[col.RateTypeID].Add(d)
			}
		}
	}

	records := make([]model.ContractorHours, 0, len(order))
	for _, contractorID := range order {
		acc := sums[contractorID]
		rec := model.ContractorHours{
			ContractorID: contractorID,
			WorkDate:     window.FridayISO(),
			Week:         window.Week,
			TotalHours:   acc.total.InexactFloat64(),
		}
		if existing, ok := m.Hours[contractorID]; ok && existing.ID != nil {
			id := *existing.ID
			rec.ID = &id
		}

		if len(m.Rates[contractorID]) > 0 {
			for _, col := range m.Columns {
				sum, ok := acc.columns[col.Key]
				if !ok || !sum.IsPositive() {
					continue
				}
				rate, _ := m.Rate(acc.row, col)
				rec.RateHours = append(rec.RateHours, model.RateHours{
					RateTypeID:      col.RateTypeID,
					RateFrequencyID: col.RateFrequencyID,
					TCRID:           rate.ID,
					Quantity:        sum.InexactFloat64(),
					PayRate:         rate.PayRate,
					BillRate:        rate.BillRate,
				})
			}
		}

		for rateTypeID, sum := range acc.legacy {
			matrix.SetLegacyHours(&rec, rateTypeID, sum.InexactFloat64())
		}
		records = append(records, rec)
	}
	return records
}
