package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/nurpe/staffing-timesheets/internal/autosave"
	"github.com/nurpe/staffing-timesheets/internal/matrix"
	"github.com/nurpe/staffing-timesheets/internal/model"
	"github.com/nurpe/staffing-timesheets/internal/week"
)

const reportTimeout = 5 * time.Second

// Session is one user's editing view of a timesheet. It owns the matrix and
// the pending cell writes; closing it drops writes that have not fired yet.
type Session struct {
	ID          uuid.UUID
	TimesheetID int64
	OwnerID     string
	WeekToken   string
	Window      week.Window
	OpenedAt    time.Time
	Warnings    []string

	coordinator *autosave.Coordinator
	lastUsed    time.Time
}

type WeekView struct {
	Token    string `json:"token"`
	Week     int    `json:"week"`
	Monday   string `json:"monday"`
	Friday   string `json:"friday"`
	Degraded bool   `json:"degraded"`
}

func newWeekView(token string, w week.Window) WeekView {
	return WeekView{
		Token:    token,
		Week:     w.Week,
		Monday:   w.MondayISO(),
		Friday:   w.FridayISO(),
		Degraded: w.Degraded,
	}
}

// RowView is a row as rendered: Values only holds editable columns.
type RowView struct {
	EntryID      int64              `json:"entry_id"`
	ContractorID *int64             `json:"contractor_id"`
	Name         string             `json:"name"`
	Values       map[string]float64 `json:"values"`
	Total        float64            `json:"total"`
}

type Snapshot struct {
	SessionID     uuid.UUID          `json:"session_id"`
	TimesheetID   int64              `json:"timesheet_id"`
	Week          WeekView           `json:"week"`
	Columns       []model.RateColumn `json:"columns"`
	Rows          []RowView          `json:"rows"`
	Saving        bool               `json:"saving"`
	PendingWrites int                `json:"pending_writes"`
	Warnings      []string           `json:"warnings,omitempty"`
}

func newRowView(row *matrix.Row, columns []model.RateColumn) RowView {
	view := RowView{
		EntryID: row.EntryID,
		Name:    row.Name,
		Values:  make(map[string]float64, len(row.Values)),
		Total:   rowTotal(row, columns),
	}
	if row.ContractorID != 0 {
		id := row.ContractorID
		view.ContractorID = &id
	}
	for k, v := range row.Values {
		view.Values[k] = v
	}
	return view
}

func rowTotal(row *matrix.Row, columns []model.RateColumn) float64 {
	total := decimal.Zero
	for _, col := range columns {
		if v, ok := row.Values[col.Key]; ok {
			total = total.Add(decimal.NewFromFloat(v))
		}
	}
	return total.InexactFloat64()
}

func (s *Session) snapshot() *Snapshot {
	snap := &Snapshot{
		SessionID:     s.ID,
		TimesheetID:   s.TimesheetID,
		Week:          newWeekView(s.WeekToken, s.Window),
		Saving:        s.coordinator.Saving(),
		PendingWrites: s.coordinator.PendingWrites(),
		Warnings:      s.Warnings,
	}
	s.coordinator.View(func(m *matrix.Matrix) {
		snap.Columns = append([]model.RateColumn(nil), m.Columns...)
		snap.Rows = make([]RowView, 0, len(m.Rows))
		for _, row := range m.Rows {
			snap.Rows = append(snap.Rows, newRowView(row, m.Columns))
		}
	})
	return snap
}

func (s *Session) rowView(entryID int64) (RowView, bool) {
	var (
		view  RowView
		found bool
	)
	s.coordinator.View(func(m *matrix.Matrix) {
		row, ok := m.Row(entryID)
		if !ok {
			return
		}
		view = newRowView(row, m.Columns)
		found = true
	})
	return view, found
}

// WriteLogStore journals remote writes.
type WriteLogStore interface {
	Record(ctx context.Context, entry model.WriteLog) error
	ListFailures(ctx context.Context, sessionID uuid.UUID, since time.Time, limit int) ([]model.WriteLog, error)
}

// sessionReporter journals the writes of one session.
type sessionReporter struct {
	sessionID uuid.UUID
	store     WriteLogStore
	log       zerolog.Logger
}

func (r *sessionReporter) Report(ctx context.Context, res autosave.WriteResult) {
	entry := model.WriteLog{
		SessionID:   r.sessionID,
		TimesheetID: res.TimesheetID,
		Kind:        string(res.Kind),
		Records:     res.Records,
		Status:      model.WriteStatusOK,
	}
	if res.Kind == autosave.WriteKindCell {
		entryID, key, field, value := res.EntryID, res.ColumnKey, res.Field, res.Value
		entry.EntryID = &entryID
		entry.ColumnKey = &key
		entry.Field = &field
		entry.Value = &value
	}
	if res.Err != nil {
		msg := res.Err.Error()
		entry.Status = model.WriteStatusFailed
		entry.ErrorMessage = &msg
	}

	// The write's own context may already be done; the journal entry must
	// still land.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reportTimeout)
	defer cancel()
	if err := r.store.Record(ctx, entry); err != nil {
		r.log.Error().Err(err).Str("session_id", r.sessionID.String()).Msg("record write log failed")
	}
}
