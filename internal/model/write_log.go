package model

import (
	"time"

	"github.com/google/uuid"
)

type WriteStatus string

const (
	WriteStatusOK     WriteStatus = "OK"
	WriteStatusFailed WriteStatus = "FAILED"
)

// WriteLog is a journal row for one remote write made on behalf of an
// editing session. Failed rows are shown to the user as notifications.
type WriteLog struct {
	ID           uuid.UUID   `json:"id"`
	SessionID    uuid.UUID   `json:"session_id"`
	TimesheetID  int64       `json:"timesheet_id"`
	Kind         string      `json:"kind"`
	EntryID      *int64      `json:"entry_id,omitempty"`
	ColumnKey    *string     `json:"column_key,omitempty"`
	Field        *string     `json:"field,omitempty"`
	Value        *float64    `json:"value,omitempty"`
	Records      int         `json:"records"`
	Status       WriteStatus `json:"status"`
	ErrorMessage *string     `json:"error,omitempty" gorm:"column:error"`
	CreatedAt    time.Time   `json:"created_at"`
}
