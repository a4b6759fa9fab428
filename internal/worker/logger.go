package worker

import (
	"context"
	"fmt"
	"log"

	"formpilot/internal/models"

	"github.com/google/uuid"
)

// JobLogger writes the durable audit trail for one job and mirrors every
// entry to the process log.
type JobLogger struct {
	store Store
	jobID uuid.UUID
}

func NewJobLogger(store Store, jobID uuid.UUID) *JobLogger {
	return &JobLogger{store: store, jobID: jobID}
}

func (l *JobLogger) Log(actionType models.LogType, message string, details interface{}) {
	l.store.AppendLog(context.Background(), l.jobID, actionType, message, details)
	log.Printf("[Job %s] [%s] %s", l.jobID, actionType, message)
}

func (l *JobLogger) Info(format string, args ...interface{}) {
	l.Log(models.LogInfo, fmt.Sprintf(format, args...), nil)
}

func (l *JobLogger) Action(format string, args ...interface{}) {
	l.Log(models.LogAction, fmt.Sprintf(format, args...), nil)
}

func (l *JobLogger) Warning(format string, args ...interface{}) {
	l.Log(models.LogWarning, fmt.Sprintf(format, args...), nil)
}

func (l *JobLogger) Success(format string, args ...interface{}) {
	l.Log(models.LogSuccess, fmt.Sprintf(format, args...), nil)
}

func (l *JobLogger) Error(format string, args ...interface{}) {
	l.Log(models.LogError, fmt.Sprintf(format, args...), nil)
}
