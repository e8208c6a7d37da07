package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/staffing-timesheets/internal/model"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		BaseURL:       srv.URL + "/",
		Timeout:       time.Second,
		MaxRetries:    2,
		RetryInterval: time.Millisecond,
	}, zerolog.Nop())
}

func TestListRateTypesForwardsToken(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/rate-types", r.URL.Path)
		assert.Equal(t, "Bearer abc", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		_, _ = w.Write([]byte(`[{"rate_type_id":1,"rate_type_name":"Standard"},{"rate_type_id":2,"rate_type_name":"Overtime"}]`))
	})

	types, err := client.WithToken("abc").ListRateTypes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []model.RateType{{ID: 1, Name: "Standard"}, {ID: 2, Name: "Overtime"}}, types)
}

func TestGetRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`[{"rate_frequency_id":1,"rate_frequency_name":"Hourly"}]`))
	})

	freqs, err := client.ListRateFrequencies(context.Background())
	require.NoError(t, err)
	assert.Len(t, freqs, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "no such timesheet", http.StatusNotFound)
	})

	_, err := client.ListEntries(context.Background(), 5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBackend))

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.Equal(t, "/timesheets/5/entries", statusErr.Path)
	assert.Equal(t, "no such timesheet", statusErr.Body)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRatesMatrix(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/candidates/rates-matrix", r.URL.Path)

		var req ratesMatrixRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []int64{7, 8}, req.CandidateIDs)

		_, _ = w.Write([]byte(`{
			"7": [{"id": 70, "rate_type": 1, "rate_frequency": 1, "pay_rate": 12.5, "bill_rate": 18, "deleted_on": null}],
			"8": [{"id": 80, "rate_type": 2, "rate_frequency": 1, "pay_rate": 20, "bill_rate": 30, "deleted_on": "2026-01-01"}]
		}`))
	})

	rates, err := client.RatesMatrix(context.Background(), []int64{7, 8})
	require.NoError(t, err)
	require.Len(t, rates[7], 1)
	assert.True(t, rates[7][0].Active())
	assert.Equal(t, 12.5, rates[7][0].PayRate)
	require.Len(t, rates[8], 1)
	assert.False(t, rates[8][0].Active())
}

func TestRatesMatrixSkipsEmptyRequest(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s", r.URL.Path)
	})

	rates, err := client.RatesMatrix(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, rates)
}

func TestUpsertContractorHours(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/timesheets/3/contractor-hours", r.URL.Path)

		var req upsertContractorHoursRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if !assert.Len(t, req.Records, 1) {
			return
		}
		assert.Nil(t, req.Records[0].ID)

		saved := req.Records
		id := int64(900)
		saved[0].ID = &id
		_ = json.NewEncoder(w).Encode(saved)
	})

	saved, err := client.UpsertContractorHours(context.Background(), 3, []model.ContractorHours{{
		ContractorID: 4,
		WorkDate:     "2026-01-23",
		Week:         4,
		TotalHours:   8,
		RateHours:    []model.RateHours{{RateTypeID: 1, RateFrequencyID: 1, TCRID: 2, Quantity: 8}},
	}})
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, int64(900), *saved[0].ID)
	assert.Equal(t, int32(1), calls.Load())
}

func TestUpsertIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.UpsertContractorHours(context.Background(), 3, []model.ContractorHours{{
		ContractorID: 4, WorkDate: "2026-01-23", Week: 4,
	}})
	assert.ErrorIs(t, err, ErrBackend)
	assert.Equal(t, int32(1), calls.Load())
}

func TestUpsertValidatesRecords(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("invalid records must not be sent")
	})

	bad := []model.ContractorHours{
		{ContractorID: 0, WorkDate: "2026-01-23", Week: 4},
		{ContractorID: 1, WorkDate: "23/01/2026", Week: 4},
		{ContractorID: 1, WorkDate: "2026-01-23", Week: 0},
		{ContractorID: 1, WorkDate: "2026-01-23", Week: 4, RateHours: []model.RateHours{{RateTypeID: 1, RateFrequencyID: 1, Quantity: 0}}},
	}
	for _, rec := range bad {
		_, err := client.UpsertContractorHours(context.Background(), 1, []model.ContractorHours{rec})
		assert.ErrorIs(t, err, ErrInvalidRecord)
	}
}

func TestUpdateEntry(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/timesheet-entries/42", r.URL.Path)

		var fields map[string]float64
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&fields))
		assert.Equal(t, map[string]float64{"holiday_hours": 7.5}, fields)
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, client.UpdateEntry(context.Background(), 42, map[string]float64{"holiday_hours": 7.5}))
}
