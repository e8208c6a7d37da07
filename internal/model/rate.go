package model

import "strings"

type RateType struct {
	ID   int64  `json:"rate_type_id"`
	Name string `json:"rate_type_name"`
}

type RateFrequency struct {
	ID   int64  `json:"rate_frequency_id"`
	Name string `json:"rate_frequency_name"`
}

// ContractorRate is a candidate's pay/bill rate for one rate type and
// frequency. DeletedOn marks a soft-deleted tuple.
type ContractorRate struct {
	ID            int64   `json:"id"`
	RateType      int64   `json:"rate_type"`
	RateFrequency int64   `json:"rate_frequency"`
	PayRate       float64 `json:"pay_rate"`
	BillRate      float64 `json:"bill_rate"`
	DeletedOn     *string `json:"deleted_on"`
}

func (r ContractorRate) Active() bool {
	return r.DeletedOn == nil || strings.TrimSpace(*r.DeletedOn) == ""
}

// RateColumn is one (rate type, rate frequency) column of the hours matrix.
type RateColumn struct {
	Key               string `json:"key"`
	RateTypeID        int64  `json:"rate_type_id"`
	RateTypeName      string `json:"rate_type_name"`
	RateFrequencyID   int64  `json:"rate_frequency_id"`
	RateFrequencyName string `json:"rate_frequency_name"`
}
