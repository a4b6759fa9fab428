package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// LogType categorizes audit-trail entries.
type LogType string

const (
	LogInfo    LogType = "info"
	LogAction  LogType = "action"
	LogWarning LogType = "warning"
	LogSuccess LogType = "success"
	LogError   LogType = "error"
)

// LogEntry is one append-only audit row for a job.
type LogEntry struct {
	ID         int64           `db:"id" json:"id"`
	JobID      uuid.UUID       `db:"job_id" json:"job_id"`
	ActionType LogType         `db:"action_type" json:"action_type"`
	Message    string          `db:"message" json:"message"`
	Details    json.RawMessage `db:"details" json:"details,omitempty"`
	Timestamp  time.Time       `db:"timestamp" json:"timestamp"`
}
