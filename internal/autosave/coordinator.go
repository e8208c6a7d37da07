// Package autosave applies hour edits to a session's matrix and writes them
// back to the backend: one debounced entry update per cell, plus an explicit
// save of the whole timesheet.
package autosave

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nurpe/staffing-timesheets/internal/matrix"
	"github.com/nurpe/staffing-timesheets/internal/model"
	"github.com/nurpe/staffing-timesheets/internal/week"
)

var (
	ErrUnknownRow     = errors.New("unknown row")
	ErrUnknownColumn  = errors.New("unknown column")
	ErrCellLocked     = errors.New("cell is locked")
	ErrSaveInProgress = errors.New("save already in progress")
	ErrClosed         = errors.New("coordinator closed")
)

const defaultWriteTimeout = 15 * time.Second

type EntryUpdater interface {
	UpdateEntry(ctx context.Context, entryID int64, fields map[string]float64) error
}

type HoursUpserter interface {
	UpsertContractorHours(ctx context.Context, timesheetID int64, records []model.ContractorHours) ([]model.ContractorHours, error)
}

type Backend interface {
	EntryUpdater
	HoursUpserter
}

type WriteKind string

const (
	WriteKindCell  WriteKind = "cell"
	WriteKindBatch WriteKind = "batch"
)

// WriteResult describes one remote write, successful or not.
type WriteResult struct {
	Kind        WriteKind
	TimesheetID int64
	EntryID     int64
	ColumnKey   string
	Field       string
	Value       float64
	Records     int
	Err         error
}

// Reporter is told about every remote write. Failed writes surface to the
// user as notifications.
type Reporter interface {
	Report(ctx context.Context, res WriteResult)
}

type Options struct {
	TimesheetID  int64
	Debounce     time.Duration
	WriteTimeout time.Duration
	Now          func() time.Time
	Logger       zerolog.Logger
}

type Coordinator struct {
	timesheetID  int64
	writeTimeout time.Duration
	now          func() time.Time
	backend      Backend
	reporter     Reporter
	debouncer    *Debouncer
	log          zerolog.Logger

	mu     sync.Mutex
	matrix *matrix.Matrix
	saving bool
	closed bool
}

func NewCoordinator(m *matrix.Matrix, backend Backend, reporter Reporter, opts Options) *Coordinator {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Coordinator{
		timesheetID:  opts.TimesheetID,
		writeTimeout: opts.WriteTimeout,
		now:          opts.Now,
		backend:      backend,
		reporter:     reporter,
		debouncer:    NewDebouncer(opts.Debounce),
		log:          opts.Logger.With().Str("component", "autosave").Int64("timesheet_id", opts.TimesheetID).Logger(),
		matrix:       m,
	}
}

// Edit applies a typed value to the row immediately and schedules the remote
// write for the cell. Input that is not a number is ignored: applied is false
// and nothing changes.
func (c *Coordinator) Edit(entryID int64, columnKey, raw string) (applied bool, err error) {
	value, ok := ParseHours(raw)
	if !ok {
		return false, nil
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false, ErrClosed
	}
	row, ok := c.matrix.Row(entryID)
	if !ok {
		c.mu.Unlock()
		return false, fmt.Errorf("%w: %d", ErrUnknownRow, entryID)
	}
	col, ok := c.matrix.Column(columnKey)
	if !ok {
		c.mu.Unlock()
		return false, fmt.Errorf("%w: %s", ErrUnknownColumn, columnKey)
	}
	if !c.matrix.Enabled(row, col) {
		c.mu.Unlock()
		return false, fmt.Errorf("%w: row %d column %s", ErrCellLocked, entryID, columnKey)
	}
	row.Set(columnKey, value)
	field, hasField := c.matrix.CellField(row, col)
	c.mu.Unlock()

	// Cells without an entry field are only persisted by SaveAll.
	if !hasField {
		return true, nil
	}
	c.debouncer.Schedule(cellKey(entryID, columnKey), func() {
		c.flushCell(entryID, col, field)
	})
	return true, nil
}

func cellKey(entryID int64, columnKey string) string {
	return strconv.FormatInt(entryID, 10) + ":" + columnKey
}

// flushCell sends the value the cell holds when the quiet period ends.
func (c *Coordinator) flushCell(entryID int64, col model.RateColumn, field string) {
	c.mu.Lock()
	row, ok := c.matrix.Row(entryID)
	if !ok {
		c.mu.Unlock()
		return
	}
	value, ok := row.Values[col.Key]
	c.mu.Unlock()
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.writeTimeout)
	defer cancel()

	err := c.backend.UpdateEntry(ctx, entryID, map[string]float64{field: value})
	if err != nil {
		c.log.Error().Err(err).Int64("entry_id", entryID).Str("field", field).Msg("entry update failed")
	} else {
		c.log.Debug().Int64("entry_id", entryID).Str("field", field).Float64("value", value).Msg("entry updated")
	}
	c.report(ctx, WriteResult{
		Kind:        WriteKindCell,
		TimesheetID: c.timesheetID,
		EntryID:     entryID,
		ColumnKey:   col.Key,
		Field:       field,
		Value:       value,
		Err:         err,
	})
}

func (c *Coordinator) report(ctx context.Context, res WriteResult) {
	if c.reporter == nil {
		return
	}
	c.reporter.Report(ctx, res)
}

type SaveResult struct {
	Window    week.Window
	Submitted []model.ContractorHours
	Saved     []model.ContractorHours
}

// SaveAll upserts one contractor-hours record per contractor in the matrix.
// On failure the local values are kept so the user can retry.
func (c *Coordinator) SaveAll(ctx context.Context, token string) (*SaveResult, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if c.saving {
		c.mu.Unlock()
		return nil, ErrSaveInProgress
	}
	c.saving = true
	now := c.now()
	window := week.ResolveWindow(token, now.Year(), now)
	records := BuildUpsert(c.matrix, window)
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.saving = false
		c.mu.Unlock()
	}()

	if window.Degraded {
		c.log.Warn().Str("token", token).Str("work_date", window.FridayISO()).Msg("malformed week token, using next friday")
	}

	saved, err := c.backend.UpsertContractorHours(ctx, c.timesheetID, records)
	c.report(ctx, WriteResult{
		Kind:        WriteKindBatch,
		TimesheetID: c.timesheetID,
		Records:     len(records),
		Err:         err,
	})
	if err != nil {
		c.log.Error().Err(err).Int("records", len(records)).Msg("save contractor hours failed")
		return nil, err
	}

	// Keep backend ids so the next save updates the same rows.
	c.mu.Lock()
	if len(saved) > 0 {
		c.matrix.SetHours(saved)
	} else {
		c.matrix.SetHours(records)
	}
	c.mu.Unlock()

	c.log.Info().Int("records", len(records)).Str("work_date", window.FridayISO()).Msg("contractor hours saved")
	return &SaveResult{Window: window, Submitted: records, Saved: saved}, nil
}

func (c *Coordinator) Saving() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saving
}

// PendingWrites is the number of cells waiting for their quiet period.
func (c *Coordinator) PendingWrites() int {
	return c.debouncer.Pending()
}

// View runs fn with exclusive access to the matrix.
func (c *Coordinator) View(fn func(m *matrix.Matrix)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c.matrix)
}

// Close drops pending cell writes. Writes already sent are left to finish.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	if dropped := c.debouncer.Stop(); dropped > 0 {
		c.log.Info().Int("dropped", dropped).Msg("pending cell writes cancelled")
	}
}
