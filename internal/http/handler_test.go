package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/staffing-timesheets/internal/config"
	"github.com/nurpe/staffing-timesheets/internal/excel"
	"github.com/nurpe/staffing-timesheets/internal/http/middleware"
	"github.com/nurpe/staffing-timesheets/internal/model"
	"github.com/nurpe/staffing-timesheets/internal/service"
)

type stubParser map[string]model.Principal

func (p stubParser) Parse(raw string) (model.Principal, error) {
	principal, ok := p[raw]
	if !ok {
		return model.Principal{}, errors.New("unknown token")
	}
	principal.Token = raw
	return principal, nil
}

type stubBackend struct {
	mu      sync.Mutex
	upserts int
}

func (b *stubBackend) ListRateTypes(context.Context) ([]model.RateType, error) {
	return []model.RateType{{ID: 1, Name: "Standard"}, {ID: 2, Name: "Overtime"}}, nil
}

func (b *stubBackend) ListRateFrequencies(context.Context) ([]model.RateFrequency, error) {
	return []model.RateFrequency{{ID: 1, Name: "Hourly"}}, nil
}

func (b *stubBackend) RatesMatrix(context.Context, []int64) (map[int64][]model.ContractorRate, error) {
	return map[int64][]model.ContractorRate{
		100: {{ID: 1, RateType: 1, RateFrequency: 1, PayRate: 10, BillRate: 15}},
	}, nil
}

func (b *stubBackend) ListEntries(context.Context, int64) ([]model.TimesheetEntry, error) {
	id := int64(100)
	return []model.TimesheetEntry{{ID: 10, TimesheetID: 5, CandidateID: &id, ContractorName: "Ada"}}, nil
}

func (b *stubBackend) ListContractorHours(context.Context, int64) ([]model.ContractorHours, error) {
	return nil, nil
}

func (b *stubBackend) UpdateEntry(context.Context, int64, map[string]float64) error {
	return nil
}

func (b *stubBackend) UpsertContractorHours(_ context.Context, _ int64, records []model.ContractorHours) ([]model.ContractorHours, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.upserts++
	return records, nil
}

type memoryJournal struct {
	mu      sync.Mutex
	entries []model.WriteLog
}

func (j *memoryJournal) Record(_ context.Context, entry model.WriteLog) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, entry)
	return nil
}

func (j *memoryJournal) ListFailures(context.Context, uuid.UUID, time.Time, int) ([]model.WriteLog, error) {
	return nil, nil
}

var testNow = time.Date(2026, 1, 14, 9, 0, 0, 0, time.UTC)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	backend := &stubBackend{}
	svc := service.NewTimesheetService(func(string) service.Backend { return backend }, &memoryJournal{}, excel.NewGenerator(), config.TimesheetConfig{
		AutosaveDebounce: 10 * time.Millisecond,
		WriteTimeout:     time.Second,
		SessionIdleTTL:   time.Hour,
	}, zerolog.Nop())
	t.Cleanup(svc.Shutdown)

	handler := NewHandler(svc, zerolog.Nop())
	handler.now = func() time.Time { return testNow }

	parser := stubParser{
		"operator": {UserID: "u-1", Role: model.RoleOperator},
		"viewer":   {UserID: "u-1", Role: model.RoleViewer},
	}
	return NewRouter(handler, middleware.Auth(parser), "test", nil, zerolog.Nop())
}

func do(t *testing.T, router *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthNeedsNoToken(t *testing.T) {
	router := newTestRouter(t)
	rec := do(t, router, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))
}

func TestAuthRequired(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, http.MethodGet, "/weeks/resolve?token=2026-W04", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, router, http.MethodGet, "/weeks/resolve?token=2026-W04", "forged", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestResolveWeek(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, http.MethodGet, "/weeks/resolve?token=2026-W04", "viewer", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	w := decode[windowResponse](t, rec)
	assert.Equal(t, "2026-01-19", w.Monday)
	assert.Equal(t, "2026-01-23", w.Friday)
	assert.False(t, w.Degraded)

	rec = do(t, router, http.MethodGet, "/weeks/resolve?token=Week%205&year=2027", "viewer", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	w = decode[windowResponse](t, rec)
	assert.Equal(t, "2027-W05", w.Token)

	rec = do(t, router, http.MethodGet, "/weeks/resolve?token=soon", "viewer", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	w = decode[windowResponse](t, rec)
	assert.True(t, w.Degraded)
	assert.Equal(t, "2026-01-16", w.Friday)
	assert.Equal(t, "2026-01-12", w.Monday)
}

func TestWeekOptions(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, http.MethodGet, "/weeks/options?year=2026&month=8", "viewer", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Options []struct {
			Token string `json:"token"`
		} `json:"options"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Options, 5)
	assert.Equal(t, "2026-W32", body.Options[0].Token)

	rec = do(t, router, http.MethodGet, "/weeks/options?year=2026&month=1&ordinal=1", "viewer", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2025-12-29", decode[windowResponse](t, rec).Monday)

	rec = do(t, router, http.MethodGet, "/weeks/options?year=2026&month=13", "viewer", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func openTestSession(t *testing.T, router *gin.Engine) service.Snapshot {
	t.Helper()
	rec := do(t, router, http.MethodPost, "/timesheets/5/sessions", "operator", gin.H{"week": "2026-W04"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[service.Snapshot](t, rec)
}

func TestSessionLifecycle(t *testing.T) {
	router := newTestRouter(t)
	snap := openTestSession(t, router)
	require.Len(t, snap.Rows, 1)
	require.Len(t, snap.Columns, 2)

	base := "/sessions/" + snap.SessionID.String()

	rec := do(t, router, http.MethodPatch, base+"/cells", "operator", gin.H{"row_id": 10, "column_key": "1-1", "value": "7.5"})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	row := decode[service.RowView](t, rec)
	assert.Equal(t, 7.5, row.Values["1-1"])
	assert.Equal(t, 7.5, row.Total)

	rec = do(t, router, http.MethodPatch, base+"/cells", "operator", gin.H{"row_id": 10, "column_key": "1-1", "value": 8})
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 8.0, decode[service.RowView](t, rec).Values["1-1"])

	rec = do(t, router, http.MethodPatch, base+"/cells", "operator", gin.H{"row_id": 10, "column_key": "1-1", "value": "eight"})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, router, http.MethodPatch, base+"/cells", "operator", gin.H{"row_id": 10, "column_key": "2-1", "value": "1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPatch, base+"/cells", "viewer", gin.H{"row_id": 10, "column_key": "1-1", "value": "1"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, router, http.MethodGet, base, "viewer", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 8.0, decode[service.Snapshot](t, rec).Rows[0].Values["1-1"])

	rec = do(t, router, http.MethodPost, base+"/save", "operator", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	saved := decode[service.SaveResult](t, rec)
	assert.Equal(t, "2026-01-23", saved.Week.Friday)
	require.Len(t, saved.Records, 1)
	assert.Equal(t, 8.0, saved.Records[0].TotalHours)

	rec = do(t, router, http.MethodGet, base+"/notifications", "operator", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodGet, base+"/export", "viewer", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.True(t, strings.Contains(rec.Header().Get("Content-Disposition"), "timesheet_5_2026-W04.xlsx"))
	assert.NotEmpty(t, rec.Body.Bytes())

	rec = do(t, router, http.MethodDelete, base, "operator", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, router, http.MethodGet, base, "operator", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionRequestValidation(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, http.MethodGet, "/sessions/not-a-uuid", "operator", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, "/timesheets/abc/sessions", "operator", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodGet, "/sessions/"+uuid.NewString(), "operator", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	snap := openTestSession(t, router)
	rec = do(t, router, http.MethodPatch, "/sessions/"+snap.SessionID.String()+"/cells", "operator", gin.H{"column_key": "1-1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodGet, "/sessions/"+snap.SessionID.String()+"/notifications?since=yesterday", "operator", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCellText(t *testing.T) {
	cases := map[string]string{
		`"7.5"`: "7.5",
		`8`:     "8",
		`null`:  "",
		``:      "",
		`" "`:   " ",
	}
	for raw, want := range cases {
		assert.Equal(t, want, cellText(json.RawMessage(raw)), raw)
	}
}
