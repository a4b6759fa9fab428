package worker

import (
	"context"
	"time"

	"formpilot/internal/config"
	"formpilot/internal/models"

	"github.com/google/uuid"
)

// Controls are the lifecycle hooks handed to an executor: suspend for
// missing input, honor a manual pause, and feed learned answers back into
// the profile. All waiting is cooperative polling against the job row;
// no external wake-up signal exists.
type Controls struct {
	store     Store
	jobID     uuid.UUID
	profileID *uuid.UUID
	log       *JobLogger

	resumePoll    time.Duration
	resumeTimeout time.Duration
	pausePoll     time.Duration
}

func NewControls(store Store, jobID uuid.UUID, profileID *uuid.UUID, log *JobLogger, cfg *config.Config) *Controls {
	return &Controls{
		store:         store,
		jobID:         jobID,
		profileID:     profileID,
		log:           log,
		resumePoll:    cfg.ResumePollInterval,
		resumeTimeout: cfg.ResumeTimeout,
		pausePoll:     cfg.PausePollInterval,
	}
}

// AskUser suspends the job until an external actor supplies the requested
// input. Returns the answer, or an empty string when the operator resumed
// without one. ErrInputCancelled is returned when the job is flipped to
// FAILED while waiting; ErrInputTimeout when the timeout elapses.
func (c *Controls) AskUser(ctx context.Context, typ models.InputType, label string) (string, error) {
	c.log.Warning("Waiting for user input (%s): %s", typ, label)

	if err := c.store.SetPendingInput(ctx, c.jobID, typ, label); err != nil {
		return "", err
	}

	deadline := time.Now().Add(c.resumeTimeout)
	for time.Now().Before(deadline) {
		select {
		case <-time.After(c.resumePoll):
		case <-ctx.Done():
			return "", ctx.Err()
		}

		job, err := c.store.GetJob(ctx, c.jobID)
		if err != nil {
			continue // transient store error, keep polling
		}

		switch job.Status {
		case models.StatusResuming:
			if err := c.store.UpdateStatus(ctx, c.jobID, models.StatusProcessing); err != nil {
				return "", err
			}
			c.log.Success("Job resuming with input")
			return extractAnswer(job, typ, label), nil
		case models.StatusFailed:
			return "", ErrInputCancelled
		}
	}
	return "", ErrInputTimeout
}

// extractAnswer pulls the supplied value off the resumed job row: the new
// file path for file requests; for text, the exact label asked first, then
// the generic user_response fallback.
func extractAnswer(job *models.Job, typ models.InputType, label string) string {
	if typ == models.InputFile {
		if job.FilePath != nil {
			return *job.FilePath
		}
		return ""
	}
	if v := job.CustomData.Get(label); v != "" {
		return v
	}
	return job.CustomData.Get(models.UserResponseKey)
}

// CheckPause blocks while the job is manually PAUSED. Returns nil once the
// job is back in PROCESSING, ErrJobStopped if it went terminal meanwhile.
func (c *Controls) CheckPause(ctx context.Context) error {
	job, err := c.store.GetJob(ctx, c.jobID)
	if err != nil {
		return nil // transient read error is not a pause
	}
	if job.Status != models.StatusPaused {
		return nil
	}

	c.log.Warning("Job manually paused, waiting for continue")
	for {
		select {
		case <-time.After(c.pausePoll):
		case <-ctx.Done():
			return ctx.Err()
		}

		job, err := c.store.GetJob(ctx, c.jobID)
		if err != nil {
			continue
		}
		switch {
		case job.Status == models.StatusProcessing:
			c.log.Success("Job manually resumed")
			return nil
		case job.Status.Terminal():
			return ErrJobStopped
		}
	}
}

// SaveLearned upserts a freshly supplied answer into the associated
// profile so future jobs stop asking. No-op without a profile.
func (c *Controls) SaveLearned(ctx context.Context, key, value string) {
	if c.profileID == nil || key == "" || value == "" {
		return
	}
	if err := c.store.MergeProfilePayload(ctx, *c.profileID, key, value); err != nil {
		c.log.Warning("Failed to save learned answer %q: %v", key, err)
		return
	}
	c.log.Success("Saved %q to the profile for future use", key)
}
