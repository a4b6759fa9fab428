package worker

import (
	"context"
	"errors"
	"time"

	"formpilot/internal/models"

	"github.com/google/uuid"
)

// Store is the slice of the job store the worker needs. *store.Store
// satisfies it; tests use an in-memory fake.
type Store interface {
	ClaimNextPending(ctx context.Context) (*models.Job, error)
	GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.JobStatus) error
	MarkTerminal(ctx context.Context, id uuid.UUID, status models.JobStatus) error
	SetPendingInput(ctx context.Context, id uuid.UUID, typ models.InputType, label string) error
	GetProfile(ctx context.Context, id uuid.UUID) (*models.Profile, error)
	MergeProfilePayload(ctx context.Context, id uuid.UUID, key, value string) error
	AppendLog(ctx context.Context, jobID uuid.UUID, actionType models.LogType, message string, details interface{})
}

// Sentinel errors for the lifecycle protocols. The session propagates
// these instead of containing them like ordinary action failures.
var (
	ErrUnknownJobType = errors.New("no executor registered for job type")
	ErrInputCancelled = errors.New("job cancelled while waiting for input")
	ErrInputTimeout   = errors.New("timed out waiting for user input")
	ErrJobStopped     = errors.New("job stopped while paused")
)

// RunContext is everything an executor gets for one job run.
type RunContext struct {
	Job  *models.Job
	URL  string
	Data map[string]string // merged profile payload + custom data + injected fields

	Log      *JobLogger
	Controls *Controls
}

// Executor runs one claimed job to completion or error.
type Executor interface {
	Run(ctx context.Context, run *RunContext) error
}

// ScraperExecutor is the placeholder executor for SCRAPER jobs; it proves
// the typed dispatch path without driving a browser.
type ScraperExecutor struct{}

func (ScraperExecutor) Run(ctx context.Context, run *RunContext) error {
	run.Log.Info("Starting scraper for %s", run.URL)
	select {
	case <-time.After(2 * time.Second):
	case <-ctx.Done():
		return ctx.Err()
	}
	run.Log.Success("Scraping complete")
	return nil
}
