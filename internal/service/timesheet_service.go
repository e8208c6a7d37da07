package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/nurpe/staffing-timesheets/internal/autosave"
	"github.com/nurpe/staffing-timesheets/internal/backend"
	"github.com/nurpe/staffing-timesheets/internal/config"
	"github.com/nurpe/staffing-timesheets/internal/matrix"
	"github.com/nurpe/staffing-timesheets/internal/model"
	"github.com/nurpe/staffing-timesheets/internal/week"
)

// Backend is what a session needs from the agency backend.
type Backend interface {
	ListRateTypes(ctx context.Context) ([]model.RateType, error)
	ListRateFrequencies(ctx context.Context) ([]model.RateFrequency, error)
	RatesMatrix(ctx context.Context, candidateIDs []int64) (map[int64][]model.ContractorRate, error)
	ListEntries(ctx context.Context, timesheetID int64) ([]model.TimesheetEntry, error)
	ListContractorHours(ctx context.Context, timesheetID int64) ([]model.ContractorHours, error)
	autosave.Backend
}

// BackendFunc binds a backend to the caller's bearer token.
type BackendFunc func(token string) Backend

type ExcelGenerator interface {
	Generate(export model.TimesheetExport) ([]byte, error)
}

type TimesheetService struct {
	backends BackendFunc
	journal  WriteLogStore
	excel    ExcelGenerator
	cfg      config.TimesheetConfig
	log      zerolog.Logger
	now      func() time.Time

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}

func NewTimesheetService(
	backends BackendFunc,
	journal WriteLogStore,
	excel ExcelGenerator,
	cfg config.TimesheetConfig,
	log zerolog.Logger,
) *TimesheetService {
	return &TimesheetService{
		backends: backends,
		journal:  journal,
		excel:    excel,
		cfg:      cfg,
		log:      log.With().Str("component", "timesheets").Logger(),
		now:      time.Now,
		sessions: make(map[uuid.UUID]*Session),
	}
}

type OpenSessionInput struct {
	TimesheetID int64
	WeekToken   string
	Principal   model.Principal
}

// OpenSession loads everything the hours matrix needs and registers a new
// editing session. Failed catalog or rate loads leave the matrix empty rather
// than failing; only an unknown timesheet is an error.
func (s *TimesheetService) OpenSession(ctx context.Context, input OpenSessionInput) (*Snapshot, error) {
	if input.TimesheetID <= 0 {
		return nil, fmt.Errorf("%w: timesheet_id is required", ErrInvalidInput)
	}

	client := s.backends(input.Principal.Token)
	log := s.log.With().Int64("timesheet_id", input.TimesheetID).Logger()

	var (
		types    []model.RateType
		freqs    []model.RateFrequency
		entries  []model.TimesheetEntry
		hours    []model.ContractorHours
		warnMu   sync.Mutex
		warnings []string
	)
	degrade := func(what string, err error) {
		log.Warn().Err(err).Str("load", what).Msg("load failed, continuing with empty data")
		warnMu.Lock()
		warnings = append(warnings, what+" unavailable")
		warnMu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if types, err = client.ListRateTypes(gctx); err != nil {
			types = nil
			degrade("rate types", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if freqs, err = client.ListRateFrequencies(gctx); err != nil {
			freqs = nil
			degrade("rate frequencies", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if entries, err = client.ListEntries(gctx, input.TimesheetID); err != nil {
			if isNotFound(err) {
				return fmt.Errorf("%w: timesheet %d", ErrNotFound, input.TimesheetID)
			}
			entries = nil
			degrade("timesheet entries", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if hours, err = client.ListContractorHours(gctx, input.TimesheetID); err != nil {
			hours = nil
			degrade("contractor hours", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	rows := make([]*matrix.Row, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, matrix.NewRow(e))
	}

	rates, err := client.RatesMatrix(ctx, contractorIDs(rows))
	if err != nil {
		rates = nil
		degrade("contractor rates", err)
	}

	m := matrix.Build(matrix.BuildColumns(types, freqs), rows, rates, hoursByContractor(hours))

	now := s.now()
	sess := &Session{
		ID:          uuid.New(),
		TimesheetID: input.TimesheetID,
		OwnerID:     input.Principal.UserID,
		WeekToken:   strings.TrimSpace(input.WeekToken),
		Window:      week.ResolveWindow(input.WeekToken, now.Year(), now),
		OpenedAt:    now,
		Warnings:    warnings,
		lastUsed:    now,
	}
	sess.coordinator = autosave.NewCoordinator(m, client, &sessionReporter{
		sessionID: sess.ID,
		store:     s.journal,
		log:       s.log,
	}, autosave.Options{
		TimesheetID:  input.TimesheetID,
		Debounce:     s.cfg.AutosaveDebounce,
		WriteTimeout: s.cfg.WriteTimeout,
		Now:          s.now,
		Logger:       log,
	})

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	log.Info().
		Str("session_id", sess.ID.String()).
		Int("rows", len(rows)).
		Int("columns", len(m.Columns)).
		Msg("timesheet session opened")
	return sess.snapshot(), nil
}

func contractorIDs(rows []*matrix.Row) []int64 {
	seen := make(map[int64]struct{}, len(rows))
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		if row.ContractorID == 0 {
			continue
		}
		if _, ok := seen[row.ContractorID]; ok {
			continue
		}
		seen[row.ContractorID] = struct{}{}
		ids = append(ids, row.ContractorID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func hoursByContractor(records []model.ContractorHours) map[int64]model.ContractorHours {
	out := make(map[int64]model.ContractorHours, len(records))
	for _, rec := range records {
		if rec.ContractorID == 0 {
			continue
		}
		out[rec.ContractorID] = rec
	}
	return out
}

func isNotFound(err error) bool {
	var statusErr *backend.StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound
}

// session looks up a session the principal may use and marks it as used.
func (s *TimesheetService) session(principal model.Principal, id uuid.UUID) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: session %s", ErrNotFound, id)
	}
	if sess.OwnerID != principal.UserID && !strings.EqualFold(principal.Role, model.RoleAdmin) {
		return nil, ErrPermissionDenied
	}
	sess.lastUsed = s.now()
	return sess, nil
}

func (s *TimesheetService) Snapshot(principal model.Principal, id uuid.UUID) (*Snapshot, error) {
	sess, err := s.session(principal, id)
	if err != nil {
		return nil, err
	}
	return sess.snapshot(), nil
}

type EditCellInput struct {
	SessionID uuid.UUID
	EntryID   int64
	ColumnKey string
	Value     string
	Principal model.Principal
}

type EditCellResult struct {
	Applied bool
	Row     RowView
}

// EditCell applies a typed value. Values that are not numbers are ignored
// without error and reported as not applied.
func (s *TimesheetService) EditCell(input EditCellInput) (*EditCellResult, error) {
	if !input.Principal.CanEdit() {
		return nil, ErrPermissionDenied
	}
	sess, err := s.session(input.Principal, input.SessionID)
	if err != nil {
		return nil, err
	}

	applied, err := sess.coordinator.Edit(input.EntryID, input.ColumnKey, input.Value)
	if err != nil {
		switch {
		case errors.Is(err, autosave.ErrUnknownRow), errors.Is(err, autosave.ErrUnknownColumn):
			return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
		case errors.Is(err, autosave.ErrCellLocked):
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		case errors.Is(err, autosave.ErrClosed):
			return nil, fmt.Errorf("%w: session %s", ErrNotFound, input.SessionID)
		default:
			return nil, err
		}
	}

	row, _ := sess.rowView(input.EntryID)
	return &EditCellResult{Applied: applied, Row: row}, nil
}

type SaveInput struct {
	SessionID uuid.UUID
	WeekToken string
	Principal model.Principal
}

type SaveResult struct {
	Week    WeekView                `json:"week"`
	Records []model.ContractorHours `json:"records"`
}

// SaveAll submits the whole matrix. An empty week token reuses the session's.
func (s *TimesheetService) SaveAll(ctx context.Context, input SaveInput) (*SaveResult, error) {
	if !input.Principal.CanEdit() {
		return nil, ErrPermissionDenied
	}
	sess, err := s.session(input.Principal, input.SessionID)
	if err != nil {
		return nil, err
	}

	token := strings.TrimSpace(input.WeekToken)
	if token == "" {
		token = sess.WeekToken
	}

	res, err := sess.coordinator.SaveAll(ctx, token)
	if err != nil {
		switch {
		case errors.Is(err, autosave.ErrSaveInProgress):
			return nil, fmt.Errorf("%w: %v", ErrConflict, err)
		case errors.Is(err, autosave.ErrClosed):
			return nil, fmt.Errorf("%w: session %s", ErrNotFound, input.SessionID)
		case errors.Is(err, backend.ErrInvalidRecord):
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		default:
			return nil, err
		}
	}

	records := res.Saved
	if len(records) == 0 {
		records = res.Submitted
	}
	return &SaveResult{Week: newWeekView(token, res.Window), Records: records}, nil
}

// Notifications lists the failed writes of a session since the given time.
func (s *TimesheetService) Notifications(ctx context.Context, principal model.Principal, id uuid.UUID, since time.Time, limit int) ([]model.WriteLog, error) {
	if _, err := s.session(principal, id); err != nil {
		return nil, err
	}
	return s.journal.ListFailures(ctx, id, since, limit)
}

type ExportResult struct {
	FileName string
	Content  []byte
}

// Export renders the session's matrix as a workbook. Locked cells stay blank.
func (s *TimesheetService) Export(principal model.Principal, id uuid.UUID) (*ExportResult, error) {
	sess, err := s.session(principal, id)
	if err != nil {
		return nil, err
	}

	export := model.TimesheetExport{
		TimesheetID: sess.TimesheetID,
		WeekToken:   sess.Window.Token(),
		Monday:      sess.Window.Monday,
		Friday:      sess.Window.Friday,
		GeneratedAt: s.now(),
	}
	sess.coordinator.View(func(m *matrix.Matrix) {
		export.Columns = append([]model.RateColumn(nil), m.Columns...)
		export.Rows = make([]model.TimesheetExportRow, 0, len(m.Rows))
		for _, row := range m.Rows {
			view := newRowView(row, m.Columns)
			export.Rows = append(export.Rows, model.TimesheetExportRow{
				ContractorID: row.ContractorID,
				Name:         view.Name,
				Values:       view.Values,
				Total:        view.Total,
			})
		}
	})

	content, err := s.excel.Generate(export)
	if err != nil {
		return nil, fmt.Errorf("generate timesheet workbook: %w", err)
	}
	return &ExportResult{
		FileName: fmt.Sprintf("timesheet_%d_%s.xlsx", sess.TimesheetID, export.WeekToken),
		Content:  content,
	}, nil
}

func (s *TimesheetService) CloseSession(principal model.Principal, id uuid.UUID) error {
	sess, err := s.session(principal, id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()

	sess.coordinator.Close()
	s.log.Info().Str("session_id", id.String()).Msg("timesheet session closed")
	return nil
}

// ReapIdle closes sessions unused for longer than the idle TTL.
func (s *TimesheetService) ReapIdle() int {
	cutoff := s.now().Add(-s.cfg.SessionIdleTTL)

	s.mu.Lock()
	var idle []*Session
	for id, sess := range s.sessions {
		if sess.lastUsed.Before(cutoff) {
			idle = append(idle, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, sess := range idle {
		sess.coordinator.Close()
		s.log.Info().Str("session_id", sess.ID.String()).Msg("idle timesheet session closed")
	}
	return len(idle)
}

// RunReaper reaps idle sessions until ctx is done.
func (s *TimesheetService) RunReaper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.ReapIdle()
		}
	}
}

// Shutdown closes every session.
func (s *TimesheetService) Shutdown() {
	s.mu.Lock()
	sessions := make([]*Session, 0, len(s.sessions))
	for id, sess := range s.sessions {
		sessions = append(sessions, sess)
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.coordinator.Close()
	}
}
