package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nurpe/staffing-timesheets/internal/model"
)

const defaultFailureLimit = 50

type WriteLogRepository struct {
	db *gorm.DB
}

func NewWriteLogRepository(db *gorm.DB) *WriteLogRepository {
	return &WriteLogRepository{db: db}
}

func (r *WriteLogRepository) Record(ctx context.Context, entry model.WriteLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Exec(`
		INSERT INTO timesheet_write_log (
			id, session_id, timesheet_id, kind, entry_id, column_key,
			field, value, records, status, error, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?::timesheet_write_status, ?, ?)
	`,
		entry.ID,
		entry.SessionID,
		entry.TimesheetID,
		entry.Kind,
		entry.EntryID,
		entry.ColumnKey,
		entry.Field,
		entry.Value,
		entry.Records,
		string(entry.Status),
		entry.ErrorMessage,
		entry.CreatedAt,
	).Error
}

// ListFailures returns the newest failed writes of a session first.
func (r *WriteLogRepository) ListFailures(
	ctx context.Context,
	sessionID uuid.UUID,
	since time.Time,
	limit int,
) ([]model.WriteLog, error) {
	if limit <= 0 {
		limit = defaultFailureLimit
	}

	var rows []model.WriteLog
	if err := r.db.WithContext(ctx).Raw(`
		SELECT
			id,
			session_id,
			timesheet_id,
			kind,
			entry_id,
			column_key,
			field,
			value,
			records,
			status::text AS status,
			error,
			created_at
		FROM timesheet_write_log
		WHERE session_id = ?
			AND status = 'FAILED'
			AND created_at >= ?
		ORDER BY created_at DESC
		LIMIT ?
	`, sessionID, since, limit).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
