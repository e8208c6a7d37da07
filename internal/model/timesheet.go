package model

// TimesheetEntry is one row of a timesheet as the backend stores it. The
// numbered hour fields are per rate type and nil until first written.
type TimesheetEntry struct {
	ID               int64    `json:"id"`
	TimesheetID      int64    `json:"timesheet_id"`
	CandidateID      *int64   `json:"candidate_id"`
	ContractorID     *int64   `json:"contractor_id"`
	ContractorName   string   `json:"contractor_name"`
	StandardHours    *float64 `json:"standard_hours"`
	Rate2Hours       *float64 `json:"rate2_hours"`
	Rate3Hours       *float64 `json:"rate3_hours"`
	Rate4Hours       *float64 `json:"rate4_hours"`
	Rate5Hours       *float64 `json:"rate5_hours"`
	Rate6Hours       *float64 `json:"rate6_hours"`
	HolidayHours     *float64 `json:"holiday_hours"`
	BankHolidayHours *float64 `json:"bank_holiday_hours"`
}

// Contractor resolves the contractor of the row, falling back to the
// candidate. Zero means unresolved.
func (e TimesheetEntry) Contractor() int64 {
	if e.ContractorID != nil && *e.ContractorID > 0 {
		return *e.ContractorID
	}
	if e.CandidateID != nil && *e.CandidateID > 0 {
		return *e.CandidateID
	}
	return 0
}

// ContractorHours is the persisted hours record (tch) of a contractor for one
// work week. WeekendHours carries holiday hours for rate type 7.
type ContractorHours struct {
	ID               *int64      `json:"tch_id,omitempty"`
	ContractorID     int64       `json:"contractor_id" validate:"required,gt=0"`
	WorkDate         string      `json:"work_date" validate:"required,datetime=2006-01-02"`
	Week             int         `json:"week" validate:"min=1,max=53"`
	TotalHours       float64     `json:"total_hours" validate:"gte=0"`
	StandardHours    float64     `json:"standard_hours"`
	WeekendHours     float64     `json:"weekend_hours"`
	BankHolidayHours float64     `json:"bank_holiday_hours"`
	RateHours        []RateHours `json:"rate_hours,omitempty" validate:"dive"`
}

type RateHours struct {
	RateTypeID      int64   `json:"rate_type_id" validate:"required"`
	RateFrequencyID int64   `json:"rate_frequency_id" validate:"required"`
	TCRID           int64   `json:"tcr_id"`
	Quantity        float64 `json:"quantity" validate:"gt=0"`
	PayRate         float64 `json:"pay_rate"`
	BillRate        float64 `json:"bill_rate"`
}

// Quantity returns the hours recorded for a rate type/frequency pair.
func (h ContractorHours) Quantity(rateTypeID, rateFrequencyID int64) (float64, bool) {
	for _, rh := range h.RateHours {
		if rh.RateTypeID == rateTypeID && rh.RateFrequencyID == rateFrequencyID {
			return rh.Quantity, true
		}
	}
	return 0, false
}
