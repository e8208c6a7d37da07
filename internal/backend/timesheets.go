package backend

import (
	"context"
	"fmt"
	"net/http"

	"github.com/nurpe/staffing-timesheets/internal/model"
)

func (c *Client) ListRateTypes(ctx context.Context) ([]model.RateType, error) {
	var out []model.RateType
	if err := c.get(ctx, "/rate-types", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListRateFrequencies(ctx context.Context) ([]model.RateFrequency, error) {
	var out []model.RateFrequency
	if err := c.get(ctx, "/rate-frequencies", &out); err != nil {
		return nil, err
	}
	return out, nil
}

type ratesMatrixRequest struct {
	CandidateIDs []int64 `json:"candidate_ids"`
}

// RatesMatrix returns the rate tuples of each candidate, deleted ones
// included.
func (c *Client) RatesMatrix(ctx context.Context, candidateIDs []int64) (map[int64][]model.ContractorRate, error) {
	out := make(map[int64][]model.ContractorRate)
	if len(candidateIDs) == 0 {
		return out, nil
	}
	// Read-only despite the verb, so it is retried like a GET.
	err := c.do(ctx, http.MethodPost, "/candidates/rates-matrix", ratesMatrixRequest{CandidateIDs: candidateIDs}, &out, true)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListEntries(ctx context.Context, timesheetID int64) ([]model.TimesheetEntry, error) {
	var out []model.TimesheetEntry
	if err := c.get(ctx, fmt.Sprintf("/timesheets/%d/entries", timesheetID), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListContractorHours(ctx context.Context, timesheetID int64) ([]model.ContractorHours, error) {
	var out []model.ContractorHours
	if err := c.get(ctx, fmt.Sprintf("/timesheets/%d/contractor-hours", timesheetID), &out); err != nil {
		return nil, err
	}
	return out, nil
}

type upsertContractorHoursRequest struct {
	Records []model.ContractorHours `json:"records"`
}

// UpsertContractorHours creates or updates the records in one call. Records
// carrying a tch_id update that row. It is sent once: a retried create
// could duplicate rows.
func (c *Client) UpsertContractorHours(ctx context.Context, timesheetID int64, records []model.ContractorHours) ([]model.ContractorHours, error) {
	for i := range records {
		if err := c.validate.Struct(records[i]); err != nil {
			return nil, fmt.Errorf("%w: contractor %d: %v", ErrInvalidRecord, records[i].ContractorID, err)
		}
	}

	var out []model.ContractorHours
	path := fmt.Sprintf("/timesheets/%d/contractor-hours", timesheetID)
	if err := c.do(ctx, http.MethodPost, path, upsertContractorHoursRequest{Records: records}, &out, false); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateEntry writes a partial set of hour fields onto a timesheet entry.
func (c *Client) UpdateEntry(ctx context.Context, entryID int64, fields map[string]float64) error {
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/timesheet-entries/%d", entryID), fields, nil, true)
}
